package journal

import (
	"time"

	"github.com/streamvault/bookie/metrics"
	"github.com/streamvault/bookie/utils/log"
)

// forceWriteRequest is one flushed batch awaiting durability. A marker
// request carries no waiters and no fsync work: it only tells the
// force-writer that requests behind it were flushed after the last fsync
// was issued, so the next real request must force again.
type forceWriteRequest struct {
	logFile           *JournalChannel
	logID             int64
	startFlushPos     int64
	endFlushPos       int64
	forceWriteWaiters []*queueEntry
	shouldClose       bool
	isMarker          bool
}

// process makes the batch durable, advances the last log mark and hands the
// waiter callbacks to the ordered executor. Returns the number of waiters
// acknowledged.
func (r *forceWriteRequest) process(j *Journal, shouldForceWrite bool) (int, error) {
	metrics.JournalForceWriteQueueSize.Dec()
	if r.isMarker {
		return 0, nil
	}
	defer r.closeFileIfNecessary()

	if shouldForceWrite {
		var err error
		if j.conf.AdaptiveGroupWrites {
			err = r.logFile.ForceWrite(false)
		} else {
			err = r.logFile.SyncRangeOrForceWrite(r.startFlushPos, r.endFlushPos-r.startFlushPos)
		}
		if err != nil {
			return 0, err
		}
	}
	j.lastLogMark.setCurMark(r.logID, r.endFlushPos)

	for _, qe := range r.forceWriteWaiters {
		if qe.ctx != nil {
			j.cbPool.SubmitOrdered(qe.ctx, qe.run)
		} else {
			j.cbPool.Submit(qe.run)
		}
	}
	return len(r.forceWriteWaiters), nil
}

// closeFileIfNecessary closes the journal file when this batch was the last
// one bound for it. Guarded so retries in error paths can't double close.
func (r *forceWriteRequest) closeFileIfNecessary() {
	if r.shouldClose {
		if err := r.logFile.Close(); err != nil {
			log.Error("I/O error closing journal file: %v", err)
		}
		r.shouldClose = false
	}
}

// forceWriteLoop consumes flush batches FIFO and fsyncs them. With adaptive
// group writes a marker is posted before each fsync: every real request that
// was already queued ahead of the marker had its bytes flushed before the
// fsync was issued, so it may skip its own.
func (j *Journal) forceWriteLoop() {
	defer j.fwWG.Done()
	log.Info("journal force-write started")

	shouldForceWrite := true
	numReqInLastForceWrite := 0

	for {
		var req *forceWriteRequest
		select {
		case v := <-j.forceWriteRequests.Out():
			req = v.(*forceWriteRequest)
		case <-j.fwQuit:
			j.drainForceWriteRequests()
			return
		}

		if !req.isMarker && shouldForceWrite {
			if j.conf.AdaptiveGroupWrites {
				j.forceWriteRequests.In() <- &forceWriteRequest{logFile: req.logFile, isMarker: true}
				metrics.JournalForceWriteQueueSize.Inc()
			}
			if numReqInLastForceWrite > 0 {
				metrics.JournalForceWriteGrouping.Observe(float64(numReqInLastForceWrite))
				numReqInLastForceWrite = 0
			}
		}

		// process() consumes shouldClose when it closes the file; the
		// closing request must still re-arm forcing for the next file.
		wasClosing := req.shouldClose
		n, err := req.process(j, shouldForceWrite)
		if err != nil {
			log.Error("I/O error in journal force-write: %v", err)
			req.closeFileIfNecessary()
			j.abort()
			return
		}
		numReqInLastForceWrite += n

		if j.conf.AdaptiveGroupWrites && !req.isMarker && !wasClosing {
			shouldForceWrite = false
		} else {
			shouldForceWrite = true
		}
	}
}

// drainForceWriteRequests completes durability for every batch the writer
// flushed before shutting down. No new markers are posted; every remaining
// real request is force written. The queue hands elements over through an
// internal goroutine, so the drain waits a grace period rather than relying
// on a non-blocking receive.
func (j *Journal) drainForceWriteRequests() {
	for {
		t := time.NewTimer(50 * time.Millisecond)
		select {
		case v := <-j.forceWriteRequests.Out():
			t.Stop()
			req := v.(*forceWriteRequest)
			if _, err := req.process(j, true); err != nil {
				log.Error("I/O error draining journal force-write queue: %v", err)
				req.closeFileIfNecessary()
				return
			}
		case <-t.C:
			return
		}
	}
}
