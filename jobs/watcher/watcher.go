package watcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"manifest/domain/orderbook"
	"manifest/infra/kafka"
	"manifest/infra/metrics"
	"manifest/service"
)

// BookSource reads the current book of a market. *service.MarketService
// implements it.
type BookSource interface {
	FetchOrderBook(ctx context.Context, sess service.Session) (*orderbook.Book, error)
}

// Publisher sends a decoded book downstream. *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, e kafka.BookEvent) error
}

// Watcher polls one market and publishes every book it reads.
type Watcher struct {
	session  service.Session
	interval time.Duration

	source  BookSource
	pub     Publisher
	log     *zap.Logger
	metrics *metrics.Metrics

	now func() time.Time
}

// New builds a watcher. pub may be nil, in which case books are only read
// (and snapshotted by the source).
func New(sess service.Session, interval time.Duration, source BookSource, pub Publisher, log *zap.Logger, m *metrics.Metrics) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		session:  sess,
		interval: interval,
		source:   source,
		pub:      pub,
		log:      log.Named("watcher"),
		metrics:  m,
		now:      time.Now,
	}
}

// Run polls until ctx is done. A failed poll is logged and retried on the
// next tick.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("started", zap.Stringer("market", w.session.Market), zap.Duration("interval", w.interval))

	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		if _, err := w.Tick(ctx); err != nil && ctx.Err() == nil {
			w.log.Warn("poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.log.Info("stopped")
			return nil
		case <-t.C:
		}
	}
}

// Tick reads the book once and publishes it.
func (w *Watcher) Tick(ctx context.Context) (*orderbook.Book, error) {
	book, err := w.source.FetchOrderBook(ctx, w.session)
	if err != nil {
		return nil, err
	}
	if w.pub == nil {
		return book, nil
	}

	err = w.pub.Publish(ctx, kafka.NewBookEvent(w.session.Market, book, w.now()))
	w.metrics.PublishResult(err == nil)
	if err != nil {
		return book, err
	}
	w.log.Debug("book published",
		zap.Uint64("slot", book.Slot),
		zap.Int("bids", len(book.Bids.Orders)),
		zap.Int("asks", len(book.Asks.Orders)))
	return book, nil
}
