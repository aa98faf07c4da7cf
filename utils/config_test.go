package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/bookie/utils"
)

func TestConfigParseDefaults(t *testing.T) {
	yml := `
journal_directory: /data/journal
ledger_directories:
  - /data/ledger0
`
	var cfg utils.BookieConfig
	require.Nil(t, cfg.Parse([]byte(yml)))

	assert.Equal(t, "/data/journal", cfg.JournalDirectory)
	assert.Equal(t, []string{"/data/ledger0"}, cfg.LedgerDirectories)
	assert.Equal(t, "5555", cfg.ListenPort)
	assert.Equal(t, int64(2048), cfg.MaxJournalSizeMB)
	assert.Equal(t, int64(16), cfg.JournalPreAllocSizeMB)
	assert.Equal(t, 64, cfg.JournalWriteBufferSizeKB)
	assert.Equal(t, 512, cfg.JournalAlignmentSize)
	assert.Equal(t, 5, cfg.JournalFormatVersionToWrite)
	assert.True(t, cfg.JournalAdaptiveGroupWrites)
	assert.Equal(t, int64(200), cfg.JournalMaxGroupWaitMS)
	assert.Equal(t, int64(512*1024), cfg.JournalBufferedWritesThreshold)
	assert.Equal(t, int64(0), cfg.JournalBufferedEntriesThreshold)
	assert.False(t, cfg.JournalFlushWhenQueueEmpty)
	assert.True(t, cfg.JournalRemovePagesFromCache)
	assert.Equal(t, 5, cfg.MaxBackupJournals)
	assert.Equal(t, 1, cfg.NumJournalCallbackThreads)
	assert.Equal(t, int64(10000), cfg.CheckpointIntervalMS)
}

func TestConfigParseOverrides(t *testing.T) {
	yml := `
journal_directory: /j
ledger_directories: [/l0, /l1]
listen_port: "9900"
max_journal_size_mb: 64
journal_prealloc_size_mb: 4
journal_write_buffer_size_kb: 128
journal_alignment_size: 4096
journal_format_version_to_write: 4
journal_adaptive_group_writes: "false"
journal_max_group_wait_ms: 5
journal_buffered_writes_threshold: 1024
journal_buffered_entries_threshold: 16
journal_flush_when_queue_empty: "true"
journal_remove_pages_from_cache: "false"
max_backup_journals: 3
num_journal_callback_threads: 4
checkpoint_interval_ms: 2500
`
	var cfg utils.BookieConfig
	require.Nil(t, cfg.Parse([]byte(yml)))

	assert.Equal(t, []string{"/l0", "/l1"}, cfg.LedgerDirectories)
	assert.Equal(t, "9900", cfg.ListenPort)
	assert.Equal(t, int64(64), cfg.MaxJournalSizeMB)
	assert.Equal(t, int64(4), cfg.JournalPreAllocSizeMB)
	assert.Equal(t, 128, cfg.JournalWriteBufferSizeKB)
	assert.Equal(t, 4096, cfg.JournalAlignmentSize)
	assert.Equal(t, 4, cfg.JournalFormatVersionToWrite)
	assert.False(t, cfg.JournalAdaptiveGroupWrites)
	assert.Equal(t, int64(5), cfg.JournalMaxGroupWaitMS)
	assert.Equal(t, int64(1024), cfg.JournalBufferedWritesThreshold)
	assert.Equal(t, int64(16), cfg.JournalBufferedEntriesThreshold)
	assert.True(t, cfg.JournalFlushWhenQueueEmpty)
	assert.False(t, cfg.JournalRemovePagesFromCache)
	assert.Equal(t, 3, cfg.MaxBackupJournals)
	assert.Equal(t, 4, cfg.NumJournalCallbackThreads)
	assert.Equal(t, int64(2500), cfg.CheckpointIntervalMS)
}

func TestConfigParseRequiresDirectories(t *testing.T) {
	var cfg utils.BookieConfig
	assert.NotNil(t, cfg.Parse([]byte("ledger_directories: [/l0]")))
	assert.NotNil(t, cfg.Parse([]byte("journal_directory: /j")))
	assert.NotNil(t, cfg.Parse([]byte("journal_directory: [broken")))
}
