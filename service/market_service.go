package service

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"manifest/domain/instruction"
	"manifest/infra/metrics"
	"manifest/infra/sequence"
	"manifest/infra/wal/entry"
	exitwal "manifest/infra/wal/exit"
	"manifest/snapshot"
)

// Programs are the on-chain programs the service addresses.
type Programs struct {
	Market        solana.PublicKey
	Delegation    solana.PublicKey
	Rollup        solana.PublicKey
	RollupContext solana.PublicKey
}

// Deps wires a MarketService. Outbox, Snapshots and Metrics are optional.
// Outbox and Snapshots are pebble stores held by one process at a time;
// other processes share only Journal and reach the outbox through Reconcile.
type Deps struct {
	Base   Ledger
	Rollup Ledger
	Payer  solana.PublicKey

	Programs Programs

	Journal   *entry.WAL
	Sequencer *sequence.Sequencer
	Outbox    *exitwal.ExitWAL
	Snapshots *snapshot.Store
	Metrics   *metrics.Metrics
	Log       *zap.Logger

	// MarketDiscriminant, when non-zero, is checked on every fetched header.
	MarketDiscriminant uint64
	// BookLimit caps the orders decoded per side.
	BookLimit int
}

type MarketService struct {
	base   target
	rollup target

	payer    solana.PublicKey
	programs Programs
	builder  *instruction.Builder

	journal *entry.WAL
	seq     *sequence.Sequencer
	outbox  *exitwal.ExitWAL
	snaps   *snapshot.Store
	metrics *metrics.Metrics
	log     *zap.Logger

	discriminant uint64
	bookLimit    int

	reconcileMu sync.Mutex
}

func New(d Deps) *MarketService {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	seq := d.Sequencer
	if seq == nil {
		seq = sequence.New(0)
	}
	return &MarketService{
		base:         target{name: LedgerBase, record: entry.RecordBase, ledger: d.Base},
		rollup:       target{name: LedgerRollup, record: entry.RecordRollup, ledger: d.Rollup},
		payer:        d.Payer,
		programs:     d.Programs,
		builder:      instruction.NewBuilder(d.Programs.Market),
		journal:      d.Journal,
		seq:          seq,
		outbox:       d.Outbox,
		snaps:        d.Snapshots,
		metrics:      d.Metrics,
		log:          log.Named("market"),
		discriminant: d.MarketDiscriminant,
		bookLimit:    d.BookLimit,
	}
}

// Recover replays the journal and moves the sequencer past the last entry
// and past the outbox watermark, whichever is higher. It returns the number
// of entries replayed.
func (s *MarketService) Recover() (int, error) {
	n := 0
	unsettled := make(map[uint64]struct{})
	last, err := entry.Replay(s.journal.Dir(), func(r *entry.Record) error {
		if r.Type == entry.RecordResult {
			if _, err := DecodeJournalResult(r.Data); err != nil {
				return errors.Wrapf(err, "journal result %d", r.Seq)
			}
			delete(unsettled, r.Seq)
			return nil
		}
		if _, err := DecodeJournalEntry(r.Data); err != nil {
			return errors.Wrapf(err, "journal seq %d", r.Seq)
		}
		unsettled[r.Seq] = struct{}{}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	if s.outbox != nil {
		high, err := s.outbox.Watermark()
		if err != nil {
			return n, err
		}
		last = max(last, high)
	}
	s.seq.Observe(last)

	if len(unsettled) > 0 {
		s.log.Warn("journal entries without a ledger result", zap.Int("count", len(unsettled)))
	}
	s.log.Info("journal replayed", zap.Int("entries", n), zap.Uint64("last_seq", last))
	return n, nil
}

// Sequence is the last sequence number handed out.
func (s *MarketService) Sequence() uint64 { return s.seq.Current() }

// submit journals, sends, and records one transaction.
func (s *MarketService) submit(ctx context.Context, t target, kind string, market solana.PublicKey, ixs ...solana.Instruction) (solana.Signature, error) {
	je, err := newJournalEntry(kind, market, ixs)
	if err != nil {
		return solana.Signature{}, err
	}
	payload, err := je.encode()
	if err != nil {
		return solana.Signature{}, err
	}

	seq := s.seq.Next()
	if err := s.journal.Append(entry.NewRecord(t.record, seq, payload)); err != nil {
		return solana.Signature{}, errors.Wrapf(err, "journal %s", kind)
	}

	start := time.Now()
	sig, sendErr := t.ledger.Submit(ctx, ixs)

	res := JournalResult{
		Ledger:       t.name,
		Kind:         kind,
		Market:       market.String(),
		Instructions: uint32(len(ixs)),
		Created:      time.Now().UnixNano(),
	}
	if sendErr != nil {
		res.Error = sendErr.Error()
	} else {
		res.Signature = sig.String()
	}
	s.settle(seq, res)
	s.metrics.Submitted(t.name, kind, sendErr)

	fields := []zap.Field{
		zap.Uint64("seq", seq),
		zap.String("ledger", t.name),
		zap.String("kind", kind),
		zap.Stringer("market", market),
		zap.Duration("took", time.Since(start)),
	}
	if sendErr != nil {
		s.log.Warn("submission rejected", append(fields, zap.Error(sendErr))...)
		return solana.Signature{}, errors.Wrapf(sendErr, "%s on %s", kind, t.name)
	}
	s.log.Info("submitted", append(fields, zap.Stringer("signature", sig))...)
	return sig, nil
}

// settle journals the ledger's answer and, when this process owns the
// outbox, records it there too. Failures are logged: the transaction has
// already been sent.
func (s *MarketService) settle(seq uint64, res JournalResult) {
	payload, err := res.encode()
	if err == nil {
		err = s.journal.Append(entry.NewRecord(entry.RecordResult, seq, payload))
	}
	if err != nil {
		s.log.Error("journal result write failed", zap.Uint64("seq", seq), zap.Error(err))
	}

	if s.outbox == nil {
		return
	}
	if err := s.outbox.PutNew(res.submission(seq)); err != nil {
		s.log.Error("outbox write failed", zap.Uint64("seq", seq), zap.Error(err))
	}
}
