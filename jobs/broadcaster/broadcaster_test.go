package broadcaster

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifest/infra/metrics"
	exitwal "manifest/infra/wal/exit"
)

func openOutbox(t *testing.T) *exitwal.ExitWAL {
	t.Helper()
	w, err := exitwal.OpenWithOptions("outbox", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func put(t *testing.T, w *exitwal.ExitWAL, seq uint64, errMsg string) {
	t.Helper()
	require.NoError(t, w.PutNew(exitwal.Submission{
		Seq:       seq,
		Ledger:    "rollup",
		Kind:      "BatchUpdate",
		Market:    "market",
		Signature: "sig",
		Error:     errMsg,
	}))
}

func TestDrainPublishesAndAcks(t *testing.T) {
	w := openOutbox(t)
	put(t, w, 1, "")
	put(t, w, 2, "blockhash not found")

	var got []Event
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	for i := 0; i < 2; i++ {
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			b, err := msg.Value.Encode()
			if err != nil {
				return err
			}
			var e Event
			if err := json.Unmarshal(b, &e); err != nil {
				return err
			}
			got = append(got, e)
			return nil
		})
	}

	m := metrics.New()
	b := New(Config{Topic: "events"}, w, producer, nil, m)
	n, err := b.DrainOnce()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, got, 2)
	assert.Equal(t, "submission.sent", got[0].Type)
	assert.Equal(t, "submission.rejected", got[1].Type)
	assert.Equal(t, "blockhash not found", got[1].Error)
	assert.Equal(t, eventVersion, got[0].V)
	_, err = uuid.Parse(got[0].ID)
	assert.NoError(t, err)
	assert.NotEqual(t, got[0].ID, got[1].ID)

	counts, err := w.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[exitwal.StateAcked])

	n, err = b.DrainOnce()
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, b.Close())
}

func TestDrainRetriesThenFails(t *testing.T) {
	w := openOutbox(t)
	put(t, w, 1, "")

	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	b := New(Config{Topic: "events", MaxRetries: 2}, w, producer, nil, nil)

	n, err := b.DrainOnce()
	require.NoError(t, err)
	assert.Zero(t, n)
	s, err := w.Get(1)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateNew, s.State)
	assert.Equal(t, uint32(1), s.Retries)

	_, err = b.DrainOnce()
	require.NoError(t, err)
	s, err = w.Get(1)
	require.NoError(t, err)
	assert.Equal(t, exitwal.StateFailed, s.State)

	n, err = b.DrainOnce()
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, b.Close())
}

func TestDrainRepublishesSent(t *testing.T) {
	w := openOutbox(t)
	put(t, w, 1, "")
	require.NoError(t, w.MarkSent(1))

	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndSucceed()

	n, err := New(Config{Topic: "events"}, w, producer, nil, nil).DrainOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, producer.Close())
}
