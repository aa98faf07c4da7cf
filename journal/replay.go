package journal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/streamvault/bookie/utils/log"
)

// JournalScanner receives each replayed record: the journal format version,
// the file offset the record starts at, and the opaque payload. The payload
// buffer is reused between calls; copy it to retain it.
type JournalScanner interface {
	Process(journalVersion int, offset int64, entry []byte) error
}

// ScannerFunc adapts a function to the JournalScanner interface.
type ScannerFunc func(journalVersion int, offset int64, entry []byte) error

func (f ScannerFunc) Process(journalVersion int, offset int64, entry []byte) error {
	return f(journalVersion, offset, entry)
}

// openJournalForScan opens a journal file read-only, validates its header
// and returns the handle along with the format version and header size.
func openJournalForScan(path string, alignSize int64) (*os.File, int, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	header := make([]byte, versionHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, 0, 0, formatErrorf("journal %s has no header: %v", path, err)
	}
	if string(header[0:4]) != journalMagic {
		f.Close()
		return nil, 0, 0, formatErrorf("journal %s has bad magic %q", path, header[0:4])
	}
	version := int(binary.BigEndian.Uint32(header[4:8]))
	if version < V1 || version > CurrentJournalFormatVersion {
		f.Close()
		return nil, 0, 0, formatErrorf("journal %s has unknown format version %d", path, version)
	}
	return f, version, headerSizeForVersion(version, alignSize), nil
}

// ScanJournalFile sequentially reads the framed records of the journal file
// at path, starting at journalPos (or right after the header when
// journalPos is smaller), handing each real record to scanner. progress, if
// non-nil, is invoked with the start offset of every fully read record,
// padding included.
//
// A truncated tail is the normal end of an uncleanly shut down journal and
// terminates the scan silently, as does a zero length marker. A padding
// record in a pre-V5 file is a format error.
func ScanJournalFile(path string, journalPos int64, alignSize int64,
	scanner JournalScanner, progress func(offset int64),
) error {
	f, version, headerSize, err := openJournalForScan(path, alignSize)
	if err != nil {
		return err
	}
	defer f.Close()

	offset := headerSize
	if journalPos > offset {
		offset = journalPos
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	lenBuf := make([]byte, 4)
	recBuf := make([]byte, 64*1024)
	for {
		recordStart := offset
		ok, err := fullRead(f, lenBuf)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		offset += 4
		length := int32(binary.BigEndian.Uint32(lenBuf))
		if length == 0 {
			return nil
		}
		isPadding := false
		if length == PaddingMask {
			if version < V5 {
				return formatErrorf("invalid record length %#x in %s (version %d journals have no padding)",
					uint32(length), path, version)
			}
			ok, err := fullRead(f, lenBuf)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			offset += 4
			length = int32(binary.BigEndian.Uint32(lenBuf))
			if length == 0 {
				if progress != nil {
					progress(recordStart)
				}
				continue
			}
			isPadding = true
		}
		if length < 0 {
			return formatErrorf("invalid record length %d at offset %d in %s", length, recordStart, path)
		}
		if int(length) > len(recBuf) {
			recBuf = make([]byte, length)
		}
		ok, err = fullRead(f, recBuf[:length])
		if err != nil {
			return err
		}
		if !ok {
			// A short payload is where the crash cut the file off.
			return nil
		}
		offset += int64(length)
		if !isPadding {
			if err := scanner.Process(version, recordStart, recBuf[:length]); err != nil {
				return err
			}
		}
		if progress != nil {
			progress(recordStart)
		}
	}
}

// namedReader is the slice of *os.File the scan loop needs; errors name
// the file they came from.
type namedReader interface {
	io.Reader
	Name() string
}

// fullRead fills buf or reports that the file ended first. Read errors
// other than EOF are returned to the caller: hitting one during recovery
// aborts startup, and the journal debugger reports it instead of dying.
func fullRead(f namedReader, buf []byte) (bool, error) {
	_, err := io.ReadFull(f, buf)
	if err == nil {
		return true, nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return false, nil
	}
	return false, fmt.Errorf("reading journal %s: %w", f.Name(), err)
}

// ScanJournal replays one journal file of this journal's directory,
// advancing the last log mark as records are read so a crash during replay
// resumes where it left off.
func (j *Journal) ScanJournal(journalID, journalPos int64, scanner JournalScanner) error {
	path := journalFilePath(j.conf.JournalDir, journalID)
	return ScanJournalFile(path, journalPos, j.conf.AlignmentSize, scanner,
		func(offset int64) {
			j.lastLogMark.setCurMark(journalID, offset)
		})
}

// Replay scans every journal at or above the last log mark, oldest first,
// handing each surviving record to scanner. Call before Start.
func (j *Journal) Replay(scanner JournalScanner) error {
	marked := j.lastLogMark.CurMark()
	ids, err := listJournalIDs(j.conf.JournalDir, func(id int64) bool {
		return id >= marked.LogFileID
	})
	if err != nil {
		return err
	}
	// The mark may be zero when no checkpoint ever completed; only validate
	// the journal list against a real mark.
	if marked.LogFileID > 0 {
		if len(ids) == 0 || ids[0] != marked.LogFileID {
			return formatErrorf("recovery journal %x is missing", marked.LogFileID)
		}
	}
	log.Debug("journals to replay: %v", ids)
	for _, id := range ids {
		pos := int64(0)
		if id == marked.LogFileID {
			pos = marked.LogFileOffset
		}
		if err := j.ScanJournal(id, pos, scanner); err != nil {
			return fmt.Errorf("replaying journal %x: %w", id, err)
		}
	}
	return nil
}
