package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"manifest/domain/orderbook"
	"manifest/infra/metrics"
	"manifest/snapshot"
)

// FetchOrderBook reads the market account from the rollup, stores the raw
// bytes as a snapshot and decodes them. Traversal faults do not fail the
// read; they are logged and counted.
func (s *MarketService) FetchOrderBook(ctx context.Context, sess Session) (*orderbook.Book, error) {
	if err := sess.requireMarket(); err != nil {
		return nil, err
	}
	start := time.Now()

	slot, err := s.rollup.ledger.CurrentSlot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "current slot")
	}
	data, err := s.rollup.ledger.FetchAccount(ctx, sess.Market)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch market %s", sess.Market)
	}
	s.metrics.ObserveFetch(time.Since(start).Seconds())

	snap := snapshot.New(sess.Market, slot, data)
	if s.snaps != nil {
		if err := s.snaps.Put(snap); err != nil {
			s.log.Warn("snapshot write failed", zap.Stringer("market", sess.Market), zap.Error(err))
		}
	}
	return s.decode(sess, snap)
}

// LoadOrderBook decodes the newest stored snapshot of the session's market.
func (s *MarketService) LoadOrderBook(sess Session) (*orderbook.Book, error) {
	if err := sess.requireMarket(); err != nil {
		return nil, err
	}
	if s.snaps == nil {
		return nil, snapshot.ErrNoSnapshot
	}
	snap, err := s.snaps.Latest(sess.Market)
	if err != nil {
		return nil, err
	}
	return s.decode(sess, snap)
}

func (s *MarketService) decode(sess Session, snap snapshot.Snapshot) (*orderbook.Book, error) {
	slot := snap.Slot
	book, err := snap.Book(s.bookLimit)
	if err != nil {
		return nil, err
	}
	if err := book.Header.CheckDiscriminant(s.discriminant); err != nil {
		return nil, err
	}

	s.observe(book)
	for _, f := range book.Faults() {
		s.log.Warn("order tree fault", zap.Stringer("market", sess.Market), zap.Uint64("slot", slot), zap.Error(f))
	}
	s.log.Debug("book decoded",
		zap.Stringer("market", sess.Market),
		zap.Uint64("slot", slot),
		zap.Int("bids", len(book.Bids.Orders)),
		zap.Int("asks", len(book.Asks.Orders)))
	return book, nil
}

func (s *MarketService) observe(book *orderbook.Book) {
	bid := metrics.SideStats{Visited: book.Bids.TotalVisited, Live: len(book.Bids.Orders), Faults: len(book.Bids.Faults)}
	if o, ok := book.BestBid(); ok {
		bid.BestPrice, bid.HasBest = o.UnitPrice(book.Header.BaseDecimals, book.Header.QuoteDecimals).InexactFloat64(), true
	}
	ask := metrics.SideStats{Visited: book.Asks.TotalVisited, Live: len(book.Asks.Orders), Faults: len(book.Asks.Faults)}
	if o, ok := book.BestAsk(); ok {
		ask.BestPrice, ask.HasBest = o.UnitPrice(book.Header.BaseDecimals, book.Header.QuoteDecimals).InexactFloat64(), true
	}
	s.metrics.ObserveSide("bid", bid)
	s.metrics.ObserveSide("ask", ask)
}
