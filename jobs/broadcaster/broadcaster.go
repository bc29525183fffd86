package broadcaster

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"manifest/infra/metrics"
	exitwal "manifest/infra/wal/exit"
)

const eventVersion = 1

// Event is the message published for every outbox entry.
type Event struct {
	V         int       `json:"v"`
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Seq       uint64    `json:"seq"`
	Ledger    string    `json:"ledger"`
	Kind      string    `json:"kind"`
	Market    string    `json:"market"`
	Signature string    `json:"signature,omitempty"`
	Error     string    `json:"error,omitempty"`
	Created   time.Time `json:"created"`
}

func newEvent(s exitwal.Submission) Event {
	typ := "submission.sent"
	if s.Rejected() {
		typ = "submission.rejected"
	}
	return Event{
		V:         eventVersion,
		ID:        uuid.NewString(),
		Type:      typ,
		Seq:       s.Seq,
		Ledger:    s.Ledger,
		Kind:      s.Kind,
		Market:    s.Market,
		Signature: s.Signature,
		Error:     s.Error,
		Created:   time.Unix(0, s.Created).UTC(),
	}
}

type Config struct {
	Topic      string
	Interval   time.Duration
	MaxRetries uint32
}

// Broadcaster drains the outbox to the events topic. Delivery is at least
// once: an entry left SENT by a crash is published again.
type Broadcaster struct {
	cfg      Config
	outbox   *exitwal.ExitWAL
	producer sarama.SyncProducer
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

// NewProducer builds a sync producer that waits for all replicas.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "sarama producer")
	}
	return producer, nil
}

func New(cfg Config, outbox *exitwal.ExitWAL, producer sarama.SyncProducer, log *zap.Logger, m *metrics.Metrics) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		cfg:      cfg,
		outbox:   outbox,
		producer: producer,
		log:      log.Named("broadcaster"),
		metrics:  m,
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run drains on every tick until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.log.Info("started", zap.String("topic", b.cfg.Topic), zap.Duration("interval", b.cfg.Interval))

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopped")
			return nil
		case <-ticker.C:
			if _, err := b.DrainOnce(); err != nil {
				b.log.Warn("drain failed", zap.Error(err))
			}
		}
	}
}

// ------------------------------------------------
// DRAIN
// ------------------------------------------------

// DrainOnce publishes every NEW or SENT entry and returns how many were
// acknowledged by the broker.
func (b *Broadcaster) DrainOnce() (int, error) {
	var pending []exitwal.Submission
	collect := func(s exitwal.Submission) error {
		pending = append(pending, s)
		return nil
	}
	if err := b.outbox.ScanByState(exitwal.StateSent, collect); err != nil {
		return 0, err
	}
	if err := b.outbox.ScanByState(exitwal.StateNew, collect); err != nil {
		return 0, err
	}

	acked := 0
	for _, s := range pending {
		ok, err := b.publish(s)
		if err != nil {
			return acked, err
		}
		if ok {
			acked++
		}
	}
	return acked, nil
}

func (b *Broadcaster) publish(s exitwal.Submission) (bool, error) {
	if err := b.outbox.MarkSent(s.Seq); err != nil {
		return false, err
	}

	value, err := json.Marshal(newEvent(s))
	if err != nil {
		return false, errors.Wrap(err, "encode event")
	}

	partition, offset, err := b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.cfg.Topic,
		Key:   sarama.StringEncoder(s.Market),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		b.metrics.PublishResult(false)
		b.log.Warn("publish failed", zap.Uint64("seq", s.Seq), zap.Uint32("retries", s.Retries+1), zap.Error(err))
		return false, b.outbox.MarkFailed(s.Seq, b.cfg.MaxRetries)
	}

	b.metrics.PublishResult(true)
	b.log.Debug("published",
		zap.Uint64("seq", s.Seq),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return true, b.outbox.MarkAcked(s.Seq)
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
