// Package journal implements the write-ahead journal of a bookie: every
// acknowledged entry is fsynced to an append-only journal file before its
// callback fires, so a crashed node replays the journal tail on restart and
// recovers all acknowledged writes.
package journal

import (
	"encoding/binary"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/channels"

	"github.com/streamvault/bookie/ledgerdirs"
	"github.com/streamvault/bookie/metrics"
	"github.com/streamvault/bookie/ordered"
	"github.com/streamvault/bookie/utils/log"
)

// WriteCallback delivers the per-entry completion: rc 0 means the entry is
// durable in the journal. Callbacks for entries sharing a non-nil ctx run in
// submission order.
type WriteCallback func(rc int, ledgerID, entryID int64, ctx interface{})

// Callback return codes.
const (
	OK            = 0
	ShutdownError = -102
)

// Config carries the journal options in bytes and durations; conversion
// from the MB/KB config surface happens at the config layer.
type Config struct {
	JournalDir string

	MaxJournalSize  int64
	PreAllocSize    int64
	WriteBufferSize int
	AlignmentSize   int64
	FormatVersion   int

	AdaptiveGroupWrites      bool
	MaxGroupWait             time.Duration
	BufferedWritesThreshold  int64
	BufferedEntriesThreshold int64
	FlushWhenQueueEmpty      bool
	RemovePagesFromCache     bool

	MaxBackupJournals  int
	NumCallbackWorkers int
}

// DefaultConfig mirrors the documented option defaults.
func DefaultConfig(journalDir string) Config {
	return Config{
		JournalDir:              journalDir,
		MaxJournalSize:          2048 * 1024 * 1024,
		PreAllocSize:            16 * 1024 * 1024,
		WriteBufferSize:         64 * 1024,
		AlignmentSize:           512,
		FormatVersion:           CurrentJournalFormatVersion,
		AdaptiveGroupWrites:     true,
		MaxGroupWait:            200 * time.Millisecond,
		BufferedWritesThreshold: 512 * 1024,
		RemovePagesFromCache:    true,
		MaxBackupJournals:       5,
		NumCallbackWorkers:      1,
	}
}

type queueEntry struct {
	entry       []byte
	ledgerID    int64
	entryID     int64
	cb          WriteCallback
	ctx         interface{}
	enqueueTime time.Time
}

// run acknowledges the entry. Invoked on the callback executor only after
// the entry's batch has been fsynced.
func (qe *queueEntry) run() {
	metrics.JournalAddLatency.Observe(time.Since(qe.enqueueTime).Seconds())
	log.Debug("acknowledge ledger: %d, entry: %d", qe.ledgerID, qe.entryID)
	qe.cb(OK, qe.ledgerID, qe.entryID, qe.ctx)
}

// Journal couples the ingest queue, the single writer goroutine and the
// background force-write goroutine.
type Journal struct {
	conf Config
	dirs *ledgerdirs.Manager

	lastLogMark *LastLogMark

	queue              *channels.InfiniteChannel
	forceWriteRequests *channels.InfiniteChannel
	cbPool             *ordered.Executor

	// flushWhenQueueEmpty is forced on when there is no bounded group wait:
	// with nothing to wait for, a batch is flushed once the queue runs dry.
	flushWhenQueueEmpty bool

	running      int32
	quit         chan struct{}
	quitOnce     sync.Once
	fwQuit       chan struct{}
	fwQuitOnce   sync.Once
	shutdownOnce sync.Once
	writerWG     sync.WaitGroup
	fwWG         sync.WaitGroup

	// curLogFile is the writer's open file at exit. Written by the writer
	// goroutine, read by Shutdown only after the writer has been joined.
	curLogFile *JournalChannel
}

// NewJournal builds a journal over journalDir, reading the last log mark
// from the ledger directories. Call Replay before Start on a recovering
// node.
func NewJournal(conf Config, dirs *ledgerdirs.Manager) (*Journal, error) {
	if err := os.MkdirAll(conf.JournalDir, 0o755); err != nil {
		return nil, err
	}
	j := &Journal{
		conf:                conf,
		dirs:                dirs,
		lastLogMark:         newLastLogMark(dirs),
		queue:               channels.NewInfiniteChannel(),
		forceWriteRequests:  channels.NewInfiniteChannel(),
		cbPool:              ordered.New("journal-callback", conf.NumCallbackWorkers),
		flushWhenQueueEmpty: conf.MaxGroupWait <= 0 || conf.FlushWhenQueueEmpty,
		running:             1,
		quit:                make(chan struct{}),
		fwQuit:              make(chan struct{}),
	}
	j.lastLogMark.ReadLog()
	log.Debug("last log mark: %v", j.lastLogMark.CurMark())
	return j, nil
}

// LastLogMark returns the current durability frontier.
func (j *Journal) LastLogMark() LogMark {
	return j.lastLogMark.CurMark()
}

// QueueLength reports how many entries await the writer.
func (j *Journal) QueueLength() int {
	return j.queue.Len()
}

// LogAddEntry queues an entry for journaling. The first 16 bytes of entry
// must carry the ledger and entry ids. The buffer is referenced, not
// copied; the caller must not mutate it until the callback fires.
func (j *Journal) LogAddEntry(entry []byte, cb WriteCallback, ctx interface{}) {
	var ledgerID, entryID int64 = -1, -1
	if len(entry) >= 16 {
		ledgerID = int64(binary.BigEndian.Uint64(entry[0:8]))
		entryID = int64(binary.BigEndian.Uint64(entry[8:16]))
	}
	if !j.isRunning() {
		cb(ShutdownError, ledgerID, entryID, ctx)
		return
	}
	metrics.JournalQueueSize.Inc()
	j.queue.In() <- &queueEntry{
		entry:       entry,
		ledgerID:    ledgerID,
		entryID:     entryID,
		cb:          cb,
		ctx:         ctx,
		enqueueTime: time.Now(),
	}
}

// Start launches the writer and force-write goroutines.
func (j *Journal) Start() {
	j.fwWG.Add(1)
	go j.forceWriteLoop()
	j.writerWG.Add(1)
	go j.writerLoop()
}

// Shutdown stops the journal. The writer exits first, abandoning any
// partial batch (those entries were never acknowledged); the force-writer
// then drains its queue so durability completes for every batch already
// flushed; finally the callback pool drains.
func (j *Journal) Shutdown() {
	j.shutdownOnce.Do(func() {
		log.Info("shutting down journal")
		atomic.StoreInt32(&j.running, 0)
		j.signalQuit()
		j.writerWG.Wait()
		j.fwQuitOnce.Do(func() { close(j.fwQuit) })
		j.fwWG.Wait()
		// Batches flushed before shutdown are durable now; the current file
		// can be released. Close is idempotent in case the force-writer got
		// there first on a rotation boundary.
		if j.curLogFile != nil {
			if err := j.curLogFile.Close(); err != nil {
				log.Error("problems closing journal file on shutdown: %v", err)
			}
		}
		j.cbPool.Shutdown()
		log.Info("finished shutting down journal")
	})
}

func (j *Journal) isRunning() bool {
	return atomic.LoadInt32(&j.running) == 1
}

func (j *Journal) signalQuit() {
	j.quitOnce.Do(func() { close(j.quit) })
}

// abort is the force-writer's fatal-IO path: flag the node down and kick
// the writer out of its blocking dequeue.
func (j *Journal) abort() {
	atomic.StoreInt32(&j.running, 0)
	j.signalQuit()
}

func (j *Journal) takeEntry() *queueEntry {
	select {
	case v := <-j.queue.Out():
		if qe, ok := v.(*queueEntry); ok {
			return qe
		}
		return nil
	case <-j.quit:
		return nil
	}
}

func (j *Journal) pollEntry(timeout time.Duration) *queueEntry {
	if timeout <= 0 {
		select {
		case v := <-j.queue.Out():
			if qe, ok := v.(*queueEntry); ok {
				return qe
			}
		default:
		}
		return nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case v := <-j.queue.Out():
		if qe, ok := v.(*queueEntry); ok {
			return qe
		}
		return nil
	case <-t.C:
		return nil
	case <-j.quit:
		return nil
	}
}

// listJournalIDs returns the sorted ids of the journal files in journalDir,
// optionally filtered.
func listJournalIDs(journalDir string, filter func(int64) bool) ([]int64, error) {
	entries, err := os.ReadDir(journalDir)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, journalFileSuffix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, journalFileSuffix), 16, 64)
		if err != nil {
			continue
		}
		if filter == nil || filter(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids, nil
}

// nextLogID allocates a rotation id strictly above every existing journal
// and the wall clock, so ids stay monotonic across restarts too.
func nextLogID(journalDir string) (int64, error) {
	ids, err := listJournalIDs(journalDir, nil)
	if err != nil {
		return 0, err
	}
	id := time.Now().UnixMilli()
	if n := len(ids); n > 0 && ids[n-1] > id {
		id = ids[n-1]
	}
	return id + 1, nil
}

// writerLoop dequeues entries, frames them into the current journal file
// and decides when a batch is flushed and handed to the force-writer.
//
// Flush causes, in priority order: the oldest pending entry outlived the
// group wait (with a one-entry lookahead to admit a straggler), the batch
// crossed a size threshold, or the queue went empty with nothing to group.
func (j *Journal) writerLoop() {
	defer j.writerWG.Done()

	var (
		toFlush           []*queueEntry
		logFile           *JournalChannel
		logID             int64
		batchSize         int64
		lastFlushPosition int64
		groupWhenTimeout  bool
		qe                *queueEntry
		lenBuf            [4]byte
	)

	// The file is not closed here: batches for it may still sit in the
	// force-write queue. Shutdown closes it once the force-writer is done.
	defer func() {
		j.curLogFile = logFile
	}()

	for {
		if logFile == nil {
			var err error
			logID, err = nextLogID(j.conf.JournalDir)
			if err != nil {
				log.Error("cannot list journal directory %s: %v", j.conf.JournalDir, err)
				return
			}
			created := time.Now()
			logFile, err = newJournalChannel(j.conf.JournalDir, logID,
				j.conf.PreAllocSize, j.conf.WriteBufferSize, j.conf.AlignmentSize,
				j.conf.RemovePagesFromCache, j.conf.FormatVersion)
			if err != nil {
				log.Error("I/O error creating journal file: %v", err)
				return
			}
			metrics.JournalCreationLatency.Observe(time.Since(created).Seconds())
			lastFlushPosition = 0
		}

		if qe == nil {
			if len(toFlush) == 0 {
				qe = j.takeEntry()
			} else {
				pollWait := j.conf.MaxGroupWait - time.Since(toFlush[0].enqueueTime)
				if j.flushWhenQueueEmpty || pollWait < 0 {
					pollWait = 0
				}
				qe = j.pollEntry(pollWait)

				shouldFlush := false
				if j.conf.MaxGroupWait > 0 && !groupWhenTimeout &&
					time.Since(toFlush[0].enqueueTime) > j.conf.MaxGroupWait {
					// The oldest pending entry timed out. Don't flush yet:
					// admit this arrival, flush on the next one that is
					// still fresh.
					groupWhenTimeout = true
				} else if j.conf.MaxGroupWait > 0 && groupWhenTimeout && qe != nil &&
					time.Since(qe.enqueueTime) < j.conf.MaxGroupWait {
					groupWhenTimeout = false
					shouldFlush = true
					metrics.JournalFlushMaxWait.Inc()
				} else if qe != nil &&
					((j.conf.BufferedEntriesThreshold > 0 &&
						int64(len(toFlush)) > j.conf.BufferedEntriesThreshold) ||
						logFile.bc.Position() > lastFlushPosition+j.conf.BufferedWritesThreshold) {
					shouldFlush = true
					metrics.JournalFlushMaxOutstandingBytes.Inc()
				} else if qe == nil {
					// Nothing arrived: either flushWhenQueueEmpty skipped the
					// wait, or the timed-out batch found no straggler.
					shouldFlush = true
					metrics.JournalFlushEmptyQueue.Inc()
				}

				if shouldFlush {
					prevFlushPosition := lastFlushPosition
					flushStart := time.Now()
					if j.conf.FormatVersion >= V5 {
						if err := writePaddingBytes(logFile, j.conf.AlignmentSize); err != nil {
							log.Error("I/O error writing journal padding: %v", err)
							return
						}
					}
					if err := logFile.Flush(j.conf.RemovePagesFromCache); err != nil {
						log.Error("I/O error flushing journal: %v", err)
						return
					}
					lastFlushPosition = logFile.bc.Position()
					if !j.conf.AdaptiveGroupWrites {
						logFile.StartSyncRange(prevFlushPosition, lastFlushPosition)
					}
					metrics.JournalFlushLatency.Observe(time.Since(flushStart).Seconds())
					metrics.JournalForceWriteBatchEntries.Observe(float64(len(toFlush)))
					metrics.JournalForceWriteBatchBytes.Observe(float64(batchSize))

					j.forceWriteRequests.In() <- &forceWriteRequest{
						logFile:           logFile,
						logID:             logID,
						startFlushPos:     prevFlushPosition,
						endFlushPos:       lastFlushPosition,
						forceWriteWaiters: toFlush,
						shouldClose:       lastFlushPosition > j.conf.MaxJournalSize,
					}
					metrics.JournalForceWriteQueueSize.Inc()
					toFlush = nil
					batchSize = 0

					// Roll over once the file is over the size limit. The
					// force-writer closes the old file after its fsync.
					if logFile.bc.Position() > j.conf.MaxJournalSize {
						logFile = nil
						continue
					}
				}
			}
		}

		if !j.isRunning() {
			log.Info("journal writer asked to shut down, quitting")
			break
		}
		if qe == nil {
			continue
		}

		metrics.JournalWriteBytes.Add(float64(len(qe.entry)))
		metrics.JournalQueueSize.Dec()
		batchSize += 4 + int64(len(qe.entry))

		if err := logFile.PreAllocIfNeeded(4 + int64(len(qe.entry))); err != nil {
			log.Error("I/O error pre-allocating journal space: %v", err)
			return
		}
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(qe.entry)))
		flushes, err := logFile.Write(lenBuf[:])
		if err == nil {
			var n int
			n, err = logFile.Write(qe.entry)
			flushes += n
		}
		if err != nil {
			log.Error("I/O error writing journal entry: %v", err)
			return
		}
		metrics.JournalMemAddFlushes.Observe(float64(flushes))
		metrics.JournalMemAddLatency.Observe(time.Since(qe.enqueueTime).Seconds())

		toFlush = append(toFlush, qe)
		qe = nil
	}
}
