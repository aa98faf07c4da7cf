package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/streamvault/bookie/utils/log"
)

var InstanceConfig BookieConfig

// BookieConfig is the parsed server configuration. Journal option semantics
// follow the documented configuration surface: sizes keep their MB/KB units
// here and are converted to bytes when the journal configuration is built.
type BookieConfig struct {
	JournalDirectory  string
	LedgerDirectories []string
	ListenPort        string
	StopGracePeriod   time.Duration
	StartTime         time.Time

	MaxJournalSizeMB                int64
	JournalPreAllocSizeMB           int64
	JournalWriteBufferSizeKB        int
	JournalAlignmentSize            int
	JournalFormatVersionToWrite     int
	JournalAdaptiveGroupWrites      bool
	JournalMaxGroupWaitMS           int64
	JournalBufferedWritesThreshold  int64
	JournalBufferedEntriesThreshold int64
	JournalFlushWhenQueueEmpty      bool
	JournalRemovePagesFromCache     bool
	MaxBackupJournals               int
	NumJournalCallbackThreads       int
	CheckpointIntervalMS            int64
}

func parseBool(s string, defaultVal bool) bool {
	if s == "" {
		return defaultVal
	}
	return strings.EqualFold(s, "true")
}

// Parse unmarshals a YAML config into m, applying defaults for every option
// that is absent from the input.
func (m *BookieConfig) Parse(data []byte) error {
	aux := struct {
		JournalDirectory                string   `yaml:"journal_directory"`
		LedgerDirectories               []string `yaml:"ledger_directories"`
		ListenPort                      string   `yaml:"listen_port"`
		LogLevel                        string   `yaml:"log_level"`
		StopGracePeriod                 int      `yaml:"stop_grace_period"`
		MaxJournalSizeMB                int64    `yaml:"max_journal_size_mb"`
		JournalPreAllocSizeMB           int64    `yaml:"journal_prealloc_size_mb"`
		JournalWriteBufferSizeKB        int      `yaml:"journal_write_buffer_size_kb"`
		JournalAlignmentSize            int      `yaml:"journal_alignment_size"`
		JournalFormatVersionToWrite     int      `yaml:"journal_format_version_to_write"`
		JournalAdaptiveGroupWrites      string   `yaml:"journal_adaptive_group_writes"`
		JournalMaxGroupWaitMS           int64    `yaml:"journal_max_group_wait_ms"`
		JournalBufferedWritesThreshold  int64    `yaml:"journal_buffered_writes_threshold"`
		JournalBufferedEntriesThreshold int64    `yaml:"journal_buffered_entries_threshold"`
		JournalFlushWhenQueueEmpty      string   `yaml:"journal_flush_when_queue_empty"`
		JournalRemovePagesFromCache     string   `yaml:"journal_remove_pages_from_cache"`
		MaxBackupJournals               int      `yaml:"max_backup_journals"`
		NumJournalCallbackThreads       int      `yaml:"num_journal_callback_threads"`
		CheckpointIntervalMS            int64    `yaml:"checkpoint_interval_ms"`
	}{
		ListenPort:                      "5555",
		MaxJournalSizeMB:                2048,
		JournalPreAllocSizeMB:           16,
		JournalWriteBufferSizeKB:        64,
		JournalAlignmentSize:            512,
		JournalFormatVersionToWrite:     5,
		JournalMaxGroupWaitMS:           200,
		JournalBufferedWritesThreshold:  512 * 1024,
		JournalBufferedEntriesThreshold: 0,
		MaxBackupJournals:               5,
		NumJournalCallbackThreads:       1,
		CheckpointIntervalMS:            10000,
	}

	if err := yaml.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to parse bookie configuration: %w", err)
	}

	if aux.JournalDirectory == "" {
		return errors.New("journal_directory is not set in the configuration")
	}
	if len(aux.LedgerDirectories) == 0 {
		return errors.New("ledger_directories is not set in the configuration")
	}

	switch strings.ToLower(aux.LogLevel) {
	case "debug":
		log.SetLevel(log.DEBUG)
	case "warning":
		log.SetLevel(log.WARNING)
	case "error":
		log.SetLevel(log.ERROR)
	default:
		log.SetLevel(log.INFO)
	}

	m.JournalDirectory = aux.JournalDirectory
	m.LedgerDirectories = aux.LedgerDirectories
	m.ListenPort = aux.ListenPort
	m.StopGracePeriod = time.Duration(aux.StopGracePeriod) * time.Second
	m.MaxJournalSizeMB = aux.MaxJournalSizeMB
	m.JournalPreAllocSizeMB = aux.JournalPreAllocSizeMB
	m.JournalWriteBufferSizeKB = aux.JournalWriteBufferSizeKB
	m.JournalAlignmentSize = aux.JournalAlignmentSize
	m.JournalFormatVersionToWrite = aux.JournalFormatVersionToWrite
	m.JournalAdaptiveGroupWrites = parseBool(aux.JournalAdaptiveGroupWrites, true)
	m.JournalMaxGroupWaitMS = aux.JournalMaxGroupWaitMS
	m.JournalBufferedWritesThreshold = aux.JournalBufferedWritesThreshold
	m.JournalBufferedEntriesThreshold = aux.JournalBufferedEntriesThreshold
	m.JournalFlushWhenQueueEmpty = parseBool(aux.JournalFlushWhenQueueEmpty, false)
	m.JournalRemovePagesFromCache = parseBool(aux.JournalRemovePagesFromCache, true)
	m.MaxBackupJournals = aux.MaxBackupJournals
	m.NumJournalCallbackThreads = aux.NumJournalCallbackThreads
	m.CheckpointIntervalMS = aux.CheckpointIntervalMS

	return nil
}
