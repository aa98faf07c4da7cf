package journal

import (
	"encoding/binary"
)

// PaddingMask is the record length value that introduces a padding record:
// 4 bytes mask, 4 bytes pad length, then that many zero bytes. Padding
// records appear only in format V5 and later.
const PaddingMask = int32(-0x100) // 0xFFFFFF00

const paddingHeaderBytes = 8

// alignmentPadding returns the pad length for a padding record written at
// file position pos so that the position after the record lands on an align
// boundary. Returns -1 when pos is already aligned and no record is needed.
// The 8-byte padding record header is part of the contract: the chosen pad
// length always satisfies (pos + 8 + padLen) % align == 0.
func alignmentPadding(pos, align int64) int64 {
	residual := pos % align
	if residual == 0 {
		return -1
	}
	padLen := align - residual
	if padLen < paddingHeaderBytes {
		padLen = align - (paddingHeaderBytes - padLen)
	} else {
		padLen -= paddingHeaderBytes
	}
	return padLen
}

// writePaddingBytes emits a padding record so the next real record starts
// aligned to align. No-op when the cursor is already aligned.
func writePaddingBytes(jc *JournalChannel, align int64) error {
	padLen := alignmentPadding(jc.bc.Position(), align)
	if padLen < 0 {
		return nil
	}
	record := make([]byte, paddingHeaderBytes+padLen)
	mask := PaddingMask
	binary.BigEndian.PutUint32(record[0:4], uint32(mask))
	binary.BigEndian.PutUint32(record[4:8], uint32(padLen))
	if err := jc.PreAllocIfNeeded(int64(len(record))); err != nil {
		return err
	}
	_, err := jc.bc.Write(record)
	return err
}
