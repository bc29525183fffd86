package service

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"manifest/infra/wal/entry"
	exitwal "manifest/infra/wal/exit"
)

// CompactionStats reports what one Compact call imported and removed.
type CompactionStats struct {
	Imported  int
	Segments  int
	Outbox    int
	Snapshots int
}

// Reconcile copies journaled ledger results above the outbox watermark into
// the outbox. Other processes append to the journal without opening the
// outbox; this is how their submissions reach the broadcaster. It returns
// the number of submissions added.
func (s *MarketService) Reconcile() (int, error) {
	if s.outbox == nil {
		return 0, nil
	}
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	high, err := s.outbox.Watermark()
	if err != nil {
		return 0, err
	}
	n := 0
	_, err = entry.Replay(s.journal.Dir(), func(r *entry.Record) error {
		if r.Type != entry.RecordResult || r.Seq <= high {
			return nil
		}
		res, err := DecodeJournalResult(r.Data)
		if err != nil {
			return errors.Wrapf(err, "journal result %d", r.Seq)
		}
		if err := s.outbox.PutNew(res.submission(r.Seq)); err != nil {
			if errors.Is(err, exitwal.ErrDuplicate) {
				return nil
			}
			return err
		}
		n++
		return nil
	})
	if n > 0 {
		s.log.Debug("journal results imported", zap.Int("count", n))
	}
	return n, err
}

// Compact imports pending journal results, then drops journal segments and
// acknowledged outbox entries at or below the highest imported sequence, and
// keeps only the newest keep snapshots of market. Unacknowledged outbox
// entries are never removed. Without an outbox the bound is the local
// sequence.
func (s *MarketService) Compact(market solana.PublicKey, keep int) (CompactionStats, error) {
	var st CompactionStats
	seq := s.seq.Current()

	var err error
	if s.outbox != nil {
		if st.Imported, err = s.Reconcile(); err != nil {
			return st, err
		}
		if seq, err = s.outbox.Watermark(); err != nil {
			return st, err
		}
		if st.Outbox, err = s.outbox.TruncateAckedUpTo(seq); err != nil {
			return st, err
		}
	}
	if st.Segments, err = s.journal.TruncateBefore(seq); err != nil {
		return st, err
	}
	if s.snaps != nil && !market.IsZero() {
		if st.Snapshots, err = s.snaps.Prune(market, keep); err != nil {
			return st, err
		}
	}
	return st, nil
}

// RunCompaction calls Compact every interval until ctx is done.
func (s *MarketService) RunCompaction(ctx context.Context, market solana.PublicKey, keep int, interval time.Duration) error {
	return every(ctx, interval, func() {
		st, err := s.Compact(market, keep)
		if err != nil {
			s.log.Warn("compaction failed", zap.Error(err))
			return
		}
		if st != (CompactionStats{}) {
			s.log.Info("compacted",
				zap.Int("imported", st.Imported),
				zap.Int("segments", st.Segments),
				zap.Int("outbox", st.Outbox),
				zap.Int("snapshots", st.Snapshots))
		}
	})
}

// RunReconcile calls Reconcile every interval until ctx is done.
func (s *MarketService) RunReconcile(ctx context.Context, interval time.Duration) error {
	return every(ctx, interval, func() {
		if _, err := s.Reconcile(); err != nil {
			s.log.Warn("reconcile failed", zap.Error(err))
		}
	})
}

func every(ctx context.Context, interval time.Duration, fn func()) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			fn()
		}
	}
}
