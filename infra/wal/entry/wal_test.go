package entry

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, dir string) ([]*Record, uint64) {
	t.Helper()
	var recs []*Record
	last, err := Replay(dir, func(r *Record) error {
		recs = append(recs, r)
		return nil
	})
	require.NoError(t, err)
	return recs, last
}

func TestAppendReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)

	require.NoError(t, w.Append(NewRecord(RecordBase, 1, []byte{0})))
	require.NoError(t, w.Append(NewRecord(RecordRollup, 2, []byte{6, 1, 2, 3})))
	require.NoError(t, w.Close())

	recs, last := collect(t, dir)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(2), last)
	assert.Equal(t, RecordBase, recs[0].Type)
	assert.Equal(t, []byte{0}, recs[0].Data)
	assert.Equal(t, RecordRollup, recs[1].Type)
	assert.Equal(t, []byte{6, 1, 2, 3}, recs[1].Data)
	assert.NotZero(t, recs[1].Time)
}

func TestReopenContinuesNewestSegment(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 30})
	require.NoError(t, err)
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, w.Append(NewRecord(RecordRollup, seq, []byte{byte(seq)})))
	}
	require.NoError(t, w.Close())

	w, err = Open(Config{Dir: dir, SegmentSize: 30})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordRollup, 4, []byte{4})))
	require.NoError(t, w.Close())

	recs, last := collect(t, dir)
	assert.Equal(t, uint64(4), last)
	require.Len(t, recs, 4)
	for i, r := range recs {
		assert.Equal(t, uint64(i+1), r.Seq)
	}
}

func TestTruncateBefore(t *testing.T) {
	dir := t.TempDir()
	// every 26-byte frame fills a segment
	w, err := Open(Config{Dir: dir, SegmentSize: 20})
	require.NoError(t, err)
	for seq := uint64(1); seq <= 4; seq++ {
		require.NoError(t, w.Append(NewRecord(RecordBase, seq, []byte{byte(seq)})))
	}

	files, err := listSegments(dir)
	require.NoError(t, err)
	require.Len(t, files, 5)

	removed, err := w.TruncateBefore(2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	require.NoError(t, w.Close())

	recs, last := collect(t, dir)
	assert.Equal(t, uint64(4), last)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(3), recs[0].Seq)
}

func TestTruncateKeepsHighestSequence(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 20})
	require.NoError(t, err)
	for seq := uint64(1); seq <= 4; seq++ {
		require.NoError(t, w.Append(NewRecord(RecordBase, seq, []byte{byte(seq)})))
	}

	// the active segment is empty after the last rotation
	removed, err := w.TruncateBefore(4)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	require.NoError(t, w.Close())

	w, err = Open(Config{Dir: dir, SegmentSize: 20})
	require.NoError(t, err)
	removed, err = w.TruncateBefore(4)
	require.NoError(t, err)
	assert.Zero(t, removed)
	require.NoError(t, w.Close())

	recs, last := collect(t, dir)
	assert.Equal(t, uint64(4), last)
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(4), recs[0].Seq)
}

func TestReplayTornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordBase, 1, []byte("abc"))))
	require.NoError(t, w.Append(NewRecord(RecordBase, 2, []byte("defg"))))
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))

	recs, last := collect(t, dir)
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(1), last)
}

func TestReplayDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordBase, 1, []byte("abc"))))
	require.NoError(t, w.Close())

	path := segmentPath(dir, 0)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[headerSize] ^= 0xFF
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = Replay(dir, func(*Record) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestReplayRejectsNonMonotonic(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordBase, 5, nil)))
	require.NoError(t, w.Append(NewRecord(RecordBase, 5, nil)))
	require.NoError(t, w.Close())

	_, err = Replay(dir, func(*Record) error { return nil })
	assert.ErrorContains(t, err, "non-monotonic")
}

func TestReplayResultSharesSequence(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordRollup, 1, []byte{1})))
	require.NoError(t, w.Append(NewRecord(RecordResult, 1, []byte{2})))
	require.NoError(t, w.Append(NewRecord(RecordBase, 2, []byte{3})))
	require.NoError(t, w.Close())

	recs, last := collect(t, dir)
	assert.Equal(t, uint64(2), last)
	require.Len(t, recs, 3)
	assert.Equal(t, RecordResult, recs[1].Type)
	assert.Equal(t, "result", recs[1].Type.String())
}

func TestReplayHandlerError(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordBase, 1, nil)))
	require.NoError(t, w.Close())

	stop := errors.New("stop")
	_, err = Replay(dir, func(*Record) error { return stop })
	assert.Equal(t, stop, err)
}

func TestReplayEmptyDir(t *testing.T) {
	recs, last := collect(t, t.TempDir())
	assert.Empty(t, recs)
	assert.Zero(t, last)
}
