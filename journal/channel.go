package journal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/streamvault/bookie/utils/log"
)

// Journal file format versions. V5 introduced padding records and an
// alignment-sized header block.
const (
	V1 = 1
	V2 = 2
	V3 = 3
	V4 = 4
	V5 = 5

	CurrentJournalFormatVersion = V5
)

const (
	journalMagic      = "BKLG"
	versionHeaderSize = 8 // 4 byte magic word, 4 byte version
	journalFileSuffix = ".txn"
)

func journalFilePath(journalDir string, logID int64) string {
	return filepath.Join(journalDir, fmt.Sprintf("%x%s", logID, journalFileSuffix))
}

// headerSizeForVersion is the offset of the first record. From V5 on the
// header occupies a whole alignment block so records start aligned.
func headerSizeForVersion(version int, align int64) int64 {
	if version >= V5 {
		if align < versionHeaderSize {
			return versionHeaderSize
		}
		return align
	}
	return versionHeaderSize
}

// JournalChannel is an append-only journal file: a fixed header followed by
// framed records, pre-allocated in large extents so that appends almost
// never pay a file-growth metadata sync. All writes go through an internal
// BufferedChannel; durability is explicit via ForceWrite.
type JournalChannel struct {
	f  *os.File
	bc *BufferedChannel

	formatVersion int
	headerSize    int64
	alignSize     int64
	preAllocSize  int64
	nextPrealloc  int64
	zeroBlock     []byte

	removePagesFromCache bool
	lastDropPosition     int64

	// sync_file_range availability is discovered at run time; once a call
	// fails with ENOSYS/EINVAL we fall back to fdatasync for good.
	syncRangeSupported bool

	closed bool
}

// newJournalChannel creates the journal file for logID and prepares it for
// appending: header written, first extent pre-allocated, write cursor
// positioned past the header. The file must not already exist; log ids are
// strictly monotonic so a collision means an allocation bug.
func newJournalChannel(journalDir string, logID int64, preAllocSize int64, writeBufferSize int,
	alignSize int64, removePagesFromCache bool, formatVersion int,
) (*JournalChannel, error) {
	if formatVersion < V1 || formatVersion > CurrentJournalFormatVersion {
		return nil, formatErrorf("unsupported journal format version %d", formatVersion)
	}
	fn := journalFilePath(journalDir, logID)
	f, err := os.OpenFile(fn, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot create journal file %s: %w", fn, err)
	}

	headerSize := headerSizeForVersion(formatVersion, alignSize)
	header := make([]byte, headerSize)
	copy(header[0:4], journalMagic)
	binary.BigEndian.PutUint32(header[4:8], uint32(formatVersion))
	if _, err := f.WriteAt(header, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot write journal header to %s: %w", fn, err)
	}

	jc := &JournalChannel{
		f:                    f,
		formatVersion:        formatVersion,
		headerSize:           headerSize,
		alignSize:            alignSize,
		preAllocSize:         preAllocSize,
		zeroBlock:            make([]byte, alignSize),
		removePagesFromCache: removePagesFromCache,
		syncRangeSupported:   true,
	}
	jc.bc = newBufferedChannel(f, headerSize, writeBufferSize)

	// Extend to the first extent up front so the header write and the first
	// batch share one allocation.
	jc.nextPrealloc = preAllocSize
	if jc.nextPrealloc < headerSize+alignSize {
		jc.nextPrealloc = headerSize + alignSize
	}
	if err := jc.extendTo(jc.nextPrealloc); err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot pre-allocate journal file %s: %w", fn, err)
	}
	return jc, nil
}

// extendTo grows the file length to limit by writing a zero block at its
// tail, without forcing a metadata sync.
func (jc *JournalChannel) extendTo(limit int64) error {
	_, err := jc.f.WriteAt(jc.zeroBlock, limit-jc.alignSize)
	return err
}

// FormatVersion reports the version recorded in the file header.
func (jc *JournalChannel) FormatVersion() int {
	return jc.formatVersion
}

// PreAllocIfNeeded extends the pre-allocated region when the next n bytes
// would overrun it.
func (jc *JournalChannel) PreAllocIfNeeded(n int64) error {
	for jc.bc.Position()+n > jc.nextPrealloc {
		jc.nextPrealloc += jc.preAllocSize
		if err := jc.extendTo(jc.nextPrealloc); err != nil {
			return err
		}
	}
	return nil
}

// Write appends buf through the write buffer, reporting how many internal
// flushes it caused.
func (jc *JournalChannel) Write(buf []byte) (flushes int, err error) {
	return jc.bc.Write(buf)
}

// Flush pushes buffered bytes to the OS. No fsync. When clearCache is set,
// the flushed range is hinted out of the page cache — journal pages are
// never read back during normal operation.
func (jc *JournalChannel) Flush(clearCache bool) error {
	if err := jc.bc.Flush(); err != nil {
		return err
	}
	if clearCache {
		pos := jc.bc.FlushPosition()
		if pos > jc.lastDropPosition {
			if err := unix.Fadvise(int(jc.f.Fd()), jc.lastDropPosition,
				pos-jc.lastDropPosition, unix.FADV_DONTNEED); err != nil {
				log.Debug("fadvise DONTNEED failed on %s: %v", jc.f.Name(), err)
			}
			jc.lastDropPosition = pos
		}
	}
	return nil
}

// ForceWrite makes all flushed bytes durable. With forceMetadata false a
// data-only sync is used; file length changes are already covered because
// extents are materialized by writes, not truncate.
func (jc *JournalChannel) ForceWrite(forceMetadata bool) error {
	if forceMetadata {
		return jc.f.Sync()
	}
	return unix.Fdatasync(int(jc.f.Fd()))
}

// StartSyncRange asks the kernel to start writing back [start, end) without
// waiting for completion. Purely advisory; errors only disable the facility.
func (jc *JournalChannel) StartSyncRange(start, end int64) {
	if !jc.syncRangeSupported || end <= start {
		return
	}
	err := unix.SyncFileRange(int(jc.f.Fd()), start, end-start, unix.SYNC_FILE_RANGE_WRITE)
	if err != nil {
		log.Warn("sync_file_range unavailable on %s, disabling: %v", jc.f.Name(), err)
		jc.syncRangeSupported = false
	}
}

// SyncRangeOrForceWrite durably syncs length bytes from start, preferring a
// blocking range sync and falling back to fdatasync where unsupported.
func (jc *JournalChannel) SyncRangeOrForceWrite(start, length int64) error {
	if jc.syncRangeSupported {
		err := unix.SyncFileRange(int(jc.f.Fd()), start, length,
			unix.SYNC_FILE_RANGE_WAIT_BEFORE|unix.SYNC_FILE_RANGE_WRITE|unix.SYNC_FILE_RANGE_WAIT_AFTER)
		if err == nil {
			return nil
		}
		if err != unix.ENOSYS && err != unix.EINVAL {
			return err
		}
		log.Warn("sync_file_range unavailable on %s, disabling: %v", jc.f.Name(), err)
		jc.syncRangeSupported = false
	}
	return jc.ForceWrite(false)
}

// Close flushes any buffered bytes and releases the file handle.
// Idempotent: Shutdown and the force-writer may both end up closing the
// same channel.
func (jc *JournalChannel) Close() error {
	if jc.closed {
		return nil
	}
	jc.closed = true
	if err := jc.bc.Flush(); err != nil {
		jc.f.Close()
		return err
	}
	return jc.f.Close()
}
