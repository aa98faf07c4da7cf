// Package ledgerdirs manages the set of directories a bookie may persist
// auxiliary state to. The journal stores its durability marker file in every
// writable directory so the marker survives single-disk failures.
package ledgerdirs

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/streamvault/bookie/utils/log"
)

const probeFileName = ".writable"

// Manager tracks the configured directories and probes them for
// writability on demand. Safe for concurrent use.
type Manager struct {
	mu   sync.Mutex
	dirs []string
}

// New creates the configured directories if needed and returns a Manager
// over them.
func New(dirs []string) (*Manager, error) {
	if len(dirs) == 0 {
		return nil, errors.New("no ledger directories configured")
	}
	cleaned := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.Wrapf(err, "cannot resolve ledger directory %s", d)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, errors.Wrapf(err, "cannot create ledger directory %s", abs)
		}
		cleaned = append(cleaned, abs)
	}
	return &Manager{dirs: cleaned}, nil
}

// AllDirs returns every configured directory, writable or not.
func (m *Manager) AllDirs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.dirs))
	copy(out, m.dirs)
	return out
}

// WritableDirs probes each directory and returns those that currently
// accept writes. Directories failing the probe are logged and skipped.
func (m *Manager) WritableDirs() []string {
	var writable []string
	for _, d := range m.AllDirs() {
		if err := probe(d); err != nil {
			log.Warn("ledger directory %s is not writable: %v", d, err)
			continue
		}
		writable = append(writable, d)
	}
	return writable
}

func probe(dir string) error {
	p := filepath.Join(dir, probeFileName)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(p)
}
