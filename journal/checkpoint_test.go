package journal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/bookie/journal"
)

func TestCheckpointCompactPrunesOldJournals(t *testing.T) {
	env := newTestEnv(t, func(cfg *journal.Config) {
		cfg.MaxJournalSize = 512
		cfg.PreAllocSize = 16 * 1024
		cfg.MaxBackupJournals = 2
	})
	j := env.open()
	j.Start()
	defer j.Shutdown()

	// tiny journals rotate on practically every batch
	for i := int64(0); i < 10; i++ {
		cb, acks := ackCollector(1)
		j.LogAddEntry(makeEntry(1, i, 300), cb, "ledger-1")
		waitAcks(t, acks, 1)
	}

	ckpt := j.NewCheckpoint()
	markedID := j.LastLogMark().LogFileID
	before := env.journalFiles()
	oldBefore := 0
	for _, id := range before {
		if id < markedID {
			oldBefore++
		}
	}
	require.GreaterOrEqual(t, oldBefore, 3, "setup must produce enough rotated journals")

	require.Nil(t, j.CheckpointComplete(ckpt, true))

	after := env.journalFiles()
	oldAfter := 0
	for _, id := range after {
		if id < markedID {
			oldAfter++
		} else {
			assert.Contains(t, before, id, "journals at or past the mark must survive")
		}
	}
	assert.Equal(t, env.cfg.MaxBackupJournals, oldAfter)

	// completing the same checkpoint again changes nothing
	require.Nil(t, j.CheckpointComplete(ckpt, true))
	assert.Equal(t, after, env.journalFiles())
}

func TestCheckpointWithoutCompactKeepsJournals(t *testing.T) {
	env := newTestEnv(t, func(cfg *journal.Config) {
		cfg.MaxJournalSize = 512
		cfg.PreAllocSize = 16 * 1024
	})
	j := env.open()
	j.Start()
	defer j.Shutdown()

	for i := int64(0); i < 6; i++ {
		cb, acks := ackCollector(1)
		j.LogAddEntry(makeEntry(1, i, 300), cb, nil)
		waitAcks(t, acks, 1)
	}
	before := env.journalFiles()
	require.Nil(t, j.CheckpointComplete(j.NewCheckpoint(), false))
	assert.Equal(t, before, env.journalFiles())
}

func TestCheckpointSurvivesUnwritableDir(t *testing.T) {
	env := newTestEnv(t, nil)
	j := env.open()
	j.Start()
	defer j.Shutdown()

	// break one ledger directory under the running journal, the way a
	// filled-up disk would
	require.Nil(t, os.RemoveAll(env.ledgerPaths[0]))
	require.Nil(t, os.WriteFile(env.ledgerPaths[0], []byte("disk full stand-in"), 0o644))

	cb, acks := ackCollector(1)
	j.LogAddEntry(makeEntry(1, 0, 100), cb, nil)
	waitAcks(t, acks, 1)

	require.Nil(t, j.CheckpointComplete(j.NewCheckpoint(), true))

	_, err := os.Stat(filepath.Join(env.ledgerPaths[1], "lastMark"))
	assert.Nil(t, err, "the healthy directory must hold the mark")
	_, err = os.Stat(filepath.Join(env.ledgerPaths[0], "lastMark"))
	assert.NotNil(t, err)
}
