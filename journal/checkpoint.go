package journal

import (
	"os"

	"github.com/streamvault/bookie/utils/log"
)

// Checkpoint is an opaque handle over a durability frontier. External
// subsystems take one, durably persist their own state up to it, then call
// CheckpointComplete.
type Checkpoint struct {
	mark LogMark
}

func (c Checkpoint) String() string {
	return c.mark.String()
}

// NewCheckpoint snapshots the current last log mark.
func (j *Journal) NewCheckpoint() Checkpoint {
	return Checkpoint{mark: j.lastLogMark.MarkLog()}
}

// CheckpointComplete persists the checkpoint's mark to every writable
// ledger directory and, when compact is set, garbage collects journals the
// mark has passed, keeping the youngest MaxBackupJournals of them.
// Completing the same checkpoint twice is harmless.
func (j *Journal) CheckpointComplete(checkpoint Checkpoint, compact bool) error {
	if err := j.lastLogMark.RollLog(checkpoint.mark); err != nil {
		return err
	}
	if !compact {
		return nil
	}
	markedID := checkpoint.mark.LogFileID
	ids, err := listJournalIDs(j.conf.JournalDir, func(id int64) bool {
		return id < markedID
	})
	if err != nil {
		return err
	}
	if len(ids) >= j.conf.MaxBackupJournals {
		maxIdx := len(ids) - j.conf.MaxBackupJournals
		for _, id := range ids[:maxIdx] {
			fn := journalFilePath(j.conf.JournalDir, id)
			if err := os.Remove(fn); err != nil {
				log.Warn("could not delete old journal file %s: %v", fn, err)
				continue
			}
			log.Info("garbage collected journal %s", fn)
		}
	}
	return nil
}
