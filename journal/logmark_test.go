package journal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/bookie/ledgerdirs"
)

func TestLogMarkCompare(t *testing.T) {
	assert.Equal(t, 0, LogMark{1, 10}.Compare(LogMark{1, 10}))
	assert.Equal(t, -1, LogMark{1, 10}.Compare(LogMark{1, 11}))
	assert.Equal(t, 1, LogMark{1, 11}.Compare(LogMark{1, 10}))
	assert.Equal(t, -1, LogMark{1, 999}.Compare(LogMark{2, 0}))
	assert.Equal(t, 1, LogMark{2, 0}.Compare(LogMark{1, 999}))
}

func TestLogMarkMarshalRoundTrip(t *testing.T) {
	m := LogMark{LogFileID: 0x1122334455, LogFileOffset: 0x66778899}
	assert.Equal(t, m, unmarshalLogMark(m.marshal()))
}

func newTestDirs(t *testing.T, n int) (*ledgerdirs.Manager, []string) {
	t.Helper()
	base := t.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(base, "ledger", string(rune('a'+i)))
	}
	m, err := ledgerdirs.New(paths)
	require.Nil(t, err)
	return m, m.AllDirs()
}

func TestLastLogMarkRollAndRead(t *testing.T) {
	dirs, paths := newTestDirs(t, 2)
	l := newLastLogMark(dirs)
	mark := LogMark{LogFileID: 42, LogFileOffset: 4096}
	require.Nil(t, l.RollLog(mark))

	for _, d := range paths {
		raw, err := os.ReadFile(filepath.Join(d, lastMarkFileName))
		require.Nil(t, err)
		require.Len(t, raw, logMarkBytes)
		assert.Equal(t, mark, unmarshalLogMark(raw))
	}

	reloaded := newLastLogMark(dirs)
	reloaded.ReadLog()
	assert.Equal(t, mark, reloaded.CurMark())
}

func TestLastLogMarkReadTakesMaximum(t *testing.T) {
	dirs, paths := newTestDirs(t, 3)
	older := LogMark{LogFileID: 7, LogFileOffset: 100}
	newer := LogMark{LogFileID: 9, LogFileOffset: 50}
	require.Nil(t, os.WriteFile(filepath.Join(paths[0], lastMarkFileName), older.marshal(), 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(paths[2], lastMarkFileName), newer.marshal(), 0o644))
	// paths[1] holds a short, unreadable mark file, which is tolerated
	require.Nil(t, os.WriteFile(filepath.Join(paths[1], lastMarkFileName), []byte{1, 2, 3}, 0o644))

	l := newLastLogMark(dirs)
	l.ReadLog()
	assert.Equal(t, newer, l.CurMark())
}

func TestLastLogMarkRollSurvivesOneBadDir(t *testing.T) {
	dirs, paths := newTestDirs(t, 2)
	// turn one directory into a plain file so writes into it fail
	require.Nil(t, os.RemoveAll(paths[0]))
	require.Nil(t, os.WriteFile(paths[0], []byte("not a directory"), 0o644))

	l := newLastLogMark(dirs)
	mark := LogMark{LogFileID: 3, LogFileOffset: 512}
	require.Nil(t, l.RollLog(mark))

	raw, err := os.ReadFile(filepath.Join(paths[1], lastMarkFileName))
	require.Nil(t, err)
	assert.Equal(t, mark, unmarshalLogMark(raw))
}

func TestLastLogMarkRollFailsWithNoWritableDir(t *testing.T) {
	dirs, paths := newTestDirs(t, 2)
	for _, d := range paths {
		require.Nil(t, os.RemoveAll(d))
		require.Nil(t, os.WriteFile(d, []byte("not a directory"), 0o644))
	}
	l := newLastLogMark(dirs)
	assert.NotNil(t, l.RollLog(LogMark{LogFileID: 1, LogFileOffset: 1}))
}

func TestLastLogMarkNeverRegresses(t *testing.T) {
	dirs, _ := newTestDirs(t, 1)
	l := newLastLogMark(dirs)
	l.setCurMark(5, 100)
	l.setCurMark(5, 100) // equal is fine
	l.setCurMark(5, 200)
	l.setCurMark(6, 0)
	assert.Panics(t, func() { l.setCurMark(5, 999) })
}
