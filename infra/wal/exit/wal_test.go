package exit

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMem(t *testing.T) *ExitWAL {
	t.Helper()
	w, err := OpenWithOptions("outbox", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func sub(seq uint64) Submission {
	return Submission{
		Seq:          seq,
		Ledger:       "rollup",
		Kind:         "BatchUpdate",
		Market:       "5zv2PEb1mfQJ8tEPZjJBiRW4Tbxv57aer5UCWymteZB3",
		Signature:    "sig",
		Instructions: 1,
	}
}

func TestRecordRoundTrip(t *testing.T) {
	in := sub(9)
	in.Error = "blockhash not found"
	in.State = StateFailed
	in.Retries = 3
	in.Created = 123
	in.LastAttempt = 456

	b, err := encodeRecord(in)
	require.NoError(t, err)
	out, err := decodeRecord(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.True(t, out.Rejected())
}

func TestPutNewAndGet(t *testing.T) {
	w := openMem(t)

	s := sub(1)
	s.State = StateAcked
	require.NoError(t, w.PutNew(s))

	got, err := w.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StateNew, got.State)
	assert.NotZero(t, got.Created)
	assert.Equal(t, "BatchUpdate", got.Kind)

	_, err = w.Get(2)
	assert.True(t, errors.Is(err, pebble.ErrNotFound))
}

func TestStateTransitions(t *testing.T) {
	w := openMem(t)
	require.NoError(t, w.PutNew(sub(1)))

	require.NoError(t, w.MarkSent(1))
	got, err := w.Get(1)
	require.NoError(t, err)
	assert.Equal(t, StateSent, got.State)
	assert.NotZero(t, got.LastAttempt)

	require.NoError(t, w.MarkFailed(1, 2))
	got, _ = w.Get(1)
	assert.Equal(t, StateNew, got.State)
	assert.Equal(t, uint32(1), got.Retries)

	require.NoError(t, w.MarkFailed(1, 2))
	got, _ = w.Get(1)
	assert.Equal(t, StateFailed, got.State)

	require.NoError(t, w.MarkAcked(1))
	got, _ = w.Get(1)
	assert.Equal(t, StateAcked, got.State)

	assert.Error(t, w.MarkSent(42))
}

func TestScanByStateOrdered(t *testing.T) {
	w := openMem(t)
	for _, seq := range []uint64{10, 2, 7, 100} {
		require.NoError(t, w.PutNew(sub(seq)))
	}
	require.NoError(t, w.MarkAcked(7))

	var seqs []uint64
	require.NoError(t, w.ScanByState(StateNew, func(s Submission) error {
		seqs = append(seqs, s.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{2, 10, 100}, seqs)

	counts, err := w.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, counts[StateNew])
	assert.Equal(t, 1, counts[StateAcked])

	boom := errors.New("boom")
	assert.Equal(t, boom, w.ScanByState(StateNew, func(Submission) error { return boom }))
}

func TestTruncateAckedUpTo(t *testing.T) {
	w := openMem(t)
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, w.PutNew(sub(seq)))
	}
	for _, seq := range []uint64{1, 2, 4, 5} {
		require.NoError(t, w.MarkAcked(seq))
	}

	n, err := w.TruncateAckedUpTo(4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	counts, err := w.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[StateNew])
	assert.Equal(t, 1, counts[StateAcked])

	n, err = w.TruncateAckedUpTo(4)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPutNewRefusesDuplicate(t *testing.T) {
	w := openMem(t)
	require.NoError(t, w.PutNew(sub(1)))
	require.NoError(t, w.MarkFailed(1, 1))

	again := sub(1)
	again.Kind = "DelegateMarket"
	err := w.PutNew(again)
	assert.True(t, errors.Is(err, ErrDuplicate))

	got, err := w.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "BatchUpdate", got.Kind)
	assert.Equal(t, StateFailed, got.State)
}

func TestWatermarkSurvivesTruncation(t *testing.T) {
	w := openMem(t)
	high, err := w.Watermark()
	require.NoError(t, err)
	assert.Zero(t, high)

	for _, seq := range []uint64{3, 1, 2} {
		require.NoError(t, w.PutNew(sub(seq)))
	}
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, w.MarkAcked(seq))
	}
	n, err := w.TruncateAckedUpTo(3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	high, err = w.Watermark()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), high)

	counts, err := w.Count()
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "NEW", StateNew.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}
