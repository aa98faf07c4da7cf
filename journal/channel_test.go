package journal

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPreAlloc  = 64 * 1024
	testWriteBuf  = 4 * 1024
	testAlignSize = 512
)

func newTestChannel(t *testing.T, logID int64) (*JournalChannel, string) {
	t.Helper()
	dir := t.TempDir()
	jc, err := newJournalChannel(dir, logID, testPreAlloc, testWriteBuf,
		testAlignSize, false, CurrentJournalFormatVersion)
	require.Nil(t, err)
	t.Cleanup(func() { jc.Close() })
	return jc, dir
}

func TestJournalChannelHeader(t *testing.T) {
	jc, dir := newTestChannel(t, 0x1a2b)
	require.Nil(t, jc.Close())

	raw, err := os.ReadFile(journalFilePath(dir, 0x1a2b))
	require.Nil(t, err)
	require.True(t, len(raw) >= versionHeaderSize)
	assert.Equal(t, journalMagic, string(raw[0:4]))
	assert.Equal(t, uint32(CurrentJournalFormatVersion), binary.BigEndian.Uint32(raw[4:8]))

	// V5 positions the first record on an alignment boundary
	assert.Equal(t, int64(testAlignSize), jc.bc.Position())
}

func TestJournalChannelPreAllocation(t *testing.T) {
	jc, dir := newTestChannel(t, 7)
	fi, err := os.Stat(journalFilePath(dir, 7))
	require.Nil(t, err)
	assert.Equal(t, int64(testPreAlloc), fi.Size())

	// writing past the extent grows the file by whole extents
	require.Nil(t, jc.PreAllocIfNeeded(testPreAlloc+1))
	fi, err = os.Stat(journalFilePath(dir, 7))
	require.Nil(t, err)
	assert.Equal(t, int64(2*testPreAlloc), fi.Size())
}

func TestJournalChannelWriteFlushForce(t *testing.T) {
	jc, dir := newTestChannel(t, 9)
	payload := []byte("journal payload bytes")
	_, err := jc.Write(payload)
	require.Nil(t, err)
	require.Nil(t, jc.Flush(false))
	require.Nil(t, jc.ForceWrite(false))

	raw := make([]byte, len(payload))
	f, err := os.Open(journalFilePath(dir, 9))
	require.Nil(t, err)
	defer f.Close()
	_, err = f.ReadAt(raw, int64(testAlignSize))
	require.Nil(t, err)
	assert.Equal(t, payload, raw)
}

func TestJournalChannelCloseIdempotent(t *testing.T) {
	jc, _ := newTestChannel(t, 11)
	require.Nil(t, jc.Close())
	require.Nil(t, jc.Close())
}

func TestJournalChannelRefusesExistingFile(t *testing.T) {
	jc, dir := newTestChannel(t, 13)
	require.Nil(t, jc.Close())
	_, err := newJournalChannel(dir, 13, testPreAlloc, testWriteBuf,
		testAlignSize, false, CurrentJournalFormatVersion)
	assert.NotNil(t, err)
}

func TestJournalChannelRejectsBogusVersion(t *testing.T) {
	_, err := newJournalChannel(t.TempDir(), 1, testPreAlloc, testWriteBuf,
		testAlignSize, false, CurrentJournalFormatVersion+1)
	assert.NotNil(t, err)
	_, err = newJournalChannel(t.TempDir(), 1, testPreAlloc, testWriteBuf,
		testAlignSize, false, 0)
	assert.NotNil(t, err)
}
