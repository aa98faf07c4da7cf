package journal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/streamvault/bookie/ledgerdirs"
	"github.com/streamvault/bookie/utils/log"
)

// lastMarkFileName is the marker file kept in every writable ledger
// directory: 16 bytes, logFileID then logFileOffset, both big-endian.
const lastMarkFileName = "lastMark"

const logMarkBytes = 16

// LogMark names a position in the journal stream: everything before
// (LogFileID, LogFileOffset) is durable. Ordering is lexicographic.
type LogMark struct {
	LogFileID     int64
	LogFileOffset int64
}

// Compare returns -1, 0 or 1 as m orders before, equal to or after o.
func (m LogMark) Compare(o LogMark) int {
	switch {
	case m.LogFileID < o.LogFileID:
		return -1
	case m.LogFileID > o.LogFileID:
		return 1
	case m.LogFileOffset < o.LogFileOffset:
		return -1
	case m.LogFileOffset > o.LogFileOffset:
		return 1
	}
	return 0
}

func (m LogMark) String() string {
	return fmt.Sprintf("(%d, %d)", m.LogFileID, m.LogFileOffset)
}

func (m LogMark) marshal() []byte {
	buf := make([]byte, logMarkBytes)
	binary.BigEndian.PutUint64(buf[0:8], uint64(m.LogFileID))
	binary.BigEndian.PutUint64(buf[8:16], uint64(m.LogFileOffset))
	return buf
}

func unmarshalLogMark(buf []byte) LogMark {
	return LogMark{
		LogFileID:     int64(binary.BigEndian.Uint64(buf[0:8])),
		LogFileOffset: int64(binary.BigEndian.Uint64(buf[8:16])),
	}
}

// LastLogMark tracks the most recent durable point of the journal. Only the
// force-write goroutine advances it during normal operation; replay advances
// it single-threaded before the writer starts. Reads may come from any
// goroutine.
type LastLogMark struct {
	mu   sync.RWMutex
	cur  LogMark
	dirs *ledgerdirs.Manager
}

func newLastLogMark(dirs *ledgerdirs.Manager) *LastLogMark {
	return &LastLogMark{dirs: dirs}
}

// CurMark returns the current durable position.
func (l *LastLogMark) CurMark() LogMark {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// setCurMark advances the mark. The mark never regresses within a process
// lifetime; a regression means the writer/force-writer contract is broken.
func (l *LastLogMark) setCurMark(logFileID, logFileOffset int64) {
	next := LogMark{LogFileID: logFileID, LogFileOffset: logFileOffset}
	l.mu.Lock()
	defer l.mu.Unlock()
	if next.Compare(l.cur) < 0 {
		panic(fmt.Sprintf("last log mark regression: %v -> %v", l.cur, next))
	}
	l.cur = next
}

// MarkLog snapshots the current mark for use as a checkpoint.
func (l *LastLogMark) MarkLog() LogMark {
	return l.CurMark()
}

// RollLog persists mark to the lastMark file of every writable ledger
// directory. Individual directory failures are logged and tolerated, but at
// least one copy must land durably or an error is returned.
func (l *LastLogMark) RollLog(mark LogMark) error {
	buf := mark.marshal()
	written := 0
	for _, dir := range l.dirs.WritableDirs() {
		fn := filepath.Join(dir, lastMarkFileName)
		if err := writeMarkFile(fn, buf); err != nil {
			log.Error("problems writing mark to %s: %v", fn, err)
			continue
		}
		written++
	}
	log.Debug("rolled last marked log: %v", mark)
	if written == 0 {
		return fmt.Errorf("could not persist log mark %v to any ledger directory", mark)
	}
	return nil
}

func writeMarkFile(fn string, buf []byte) error {
	f, err := os.OpenFile(fn, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(buf); err != nil {
		return err
	}
	return f.Sync()
}

// ReadLog loads the mark from every ledger directory, writable or not, and
// keeps the maximum. Missing or short files are normal on a first boot and
// after partial failures, so they are only logged.
func (l *LastLogMark) ReadLog() {
	buf := make([]byte, logMarkBytes)
	for _, dir := range l.dirs.AllDirs() {
		fn := filepath.Join(dir, lastMarkFileName)
		f, err := os.Open(fn)
		if err != nil {
			log.Debug("no mark file at %s (okay on first boot): %v", fn, err)
			continue
		}
		_, err = io.ReadFull(f, buf)
		f.Close()
		if err != nil {
			log.Error("problems reading mark from %s: %v", fn, err)
			continue
		}
		mark := unmarshalLogMark(buf)
		l.mu.Lock()
		if l.cur.Compare(mark) < 0 {
			l.cur = mark
		}
		l.mu.Unlock()
	}
}
