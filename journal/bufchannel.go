package journal

import (
	"os"
)

// BufferedChannel layers a user-space write buffer over an *os.File so that
// many small framed records become a few large write syscalls. It tracks its
// own file position and never relies on the kernel file offset, which keeps
// it safe to mix with positional reads elsewhere. Not goroutine safe; the
// journal writer is its only user.
type BufferedChannel struct {
	f       *os.File
	buf     []byte
	filePos int64 // file offset where buf begins; bytes below are in the OS
}

func newBufferedChannel(f *os.File, startPos int64, capacity int) *BufferedChannel {
	return &BufferedChannel{
		f:       f,
		buf:     make([]byte, 0, capacity),
		filePos: startPos,
	}
}

// Position is the logical write cursor: flushed bytes plus buffered bytes.
func (bc *BufferedChannel) Position() int64 {
	return bc.filePos + int64(len(bc.buf))
}

// FlushPosition is the file offset up to which data has reached the OS.
func (bc *BufferedChannel) FlushPosition() int64 {
	return bc.filePos
}

// Write appends p to the buffer, flushing to the OS each time the buffer
// fills. Returns how many flushes the write triggered.
func (bc *BufferedChannel) Write(p []byte) (flushes int, err error) {
	for len(p) > 0 {
		space := cap(bc.buf) - len(bc.buf)
		if space == 0 {
			if err = bc.Flush(); err != nil {
				return flushes, err
			}
			flushes++
			space = cap(bc.buf)
		}
		n := len(p)
		if n > space {
			n = space
		}
		bc.buf = append(bc.buf, p[:n]...)
		p = p[n:]
	}
	return flushes, nil
}

// Flush pushes the buffered bytes to the OS file. It does not fsync.
func (bc *BufferedChannel) Flush() error {
	if len(bc.buf) == 0 {
		return nil
	}
	if _, err := bc.f.WriteAt(bc.buf, bc.filePos); err != nil {
		return err
	}
	bc.filePos += int64(len(bc.buf))
	bc.buf = bc.buf[:0]
	return nil
}
