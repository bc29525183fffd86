package main

import (
	"path/filepath"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"manifest/infra/ledger"
	"manifest/infra/metrics"
	"manifest/infra/sequence"
	"manifest/infra/wal/entry"
	exitwal "manifest/infra/wal/exit"
	"manifest/pkg/config"
	"manifest/pkg/logger"
	"manifest/service"
	"manifest/snapshot"
)

// stores says which pebble stores a command opens. Pebble locks its
// directory, so the outbox belongs to watch alone; other commands journal
// their results and watch reconciles them into the outbox.
type stores uint8

const (
	journalOnly stores = iota
	// snapshotsIfFree opens the snapshot store unless another process holds it.
	snapshotsIfFree
	allStores
)

// app holds everything a command needs. close releases it in reverse order.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	signer  solana.PrivateKey
	metrics *metrics.Metrics

	journal *entry.WAL
	outbox  *exitwal.ExitWAL
	snaps   *snapshot.Store
	svc     *service.MarketService

	closers []func() error
}

func newApp(want stores) (a *app, err error) {
	cfg := &config.Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Options{Level: logger.Level(cfg.LogLevel)})
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}

	a = &app{cfg: cfg, log: log, metrics: metrics.New()}
	a.closers = append(a.closers, func() error { _ = log.Sync(); return nil })
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if a.signer, err = solana.PrivateKeyFromSolanaKeygenFile(cfg.Keypair); err != nil {
		return nil, errors.Wrapf(err, "read keypair %s", cfg.Keypair)
	}

	if a.journal, err = entry.Open(entry.Config{
		Dir:             filepath.Join(cfg.DataDir, "journal"),
		SegmentSize:     2 << 20,
		SegmentDuration: time.Hour,
		SyncEveryWrite:  true,
	}); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.journal.Close)

	switch want {
	case allStores:
		if a.outbox, err = exitwal.Open(filepath.Join(cfg.DataDir, "outbox")); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.outbox.Close)
		if a.snaps, err = snapshot.Open(filepath.Join(cfg.DataDir, "snapshots")); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.snaps.Close)
	case snapshotsIfFree:
		if snaps, serr := snapshot.Open(filepath.Join(cfg.DataDir, "snapshots")); serr != nil {
			log.Warn("snapshot store unavailable, continuing without it", zap.Error(serr))
		} else {
			a.snaps = snaps
			a.closers = append(a.closers, a.snaps.Close)
		}
	}

	commitment := rpc.CommitmentType(cfg.Ledger.Commitment)
	base := ledger.Dial(ledger.Config{
		Name:       service.LedgerBase,
		Endpoint:   cfg.Ledger.BaseRPC,
		Commitment: commitment,
		Confirm:    true,
	}, a.signer, log)
	rollup := ledger.Dial(ledger.Config{
		Name:          service.LedgerRollup,
		Endpoint:      cfg.Ledger.RollupRPC,
		Commitment:    rpc.CommitmentConfirmed,
		SkipPreflight: cfg.Ledger.SkipPreflight,
		Confirm:       true,
	}, a.signer, log)

	log.Info("ledgers configured",
		zap.Stringer("payer", base.Payer()),
		zap.String("base", cfg.Ledger.BaseRPC),
		zap.String("rollup", cfg.Ledger.RollupRPC))

	a.svc = service.New(service.Deps{
		Base:   base,
		Rollup: rollup,
		Payer:  base.Payer(),
		Programs: service.Programs{
			Market:        cfg.ProgramID,
			Delegation:    cfg.DelegationProgram,
			Rollup:        cfg.MagicProgram,
			RollupContext: cfg.MagicContext,
		},
		Journal:            a.journal,
		Sequencer:          sequence.New(0),
		Outbox:             a.outbox,
		Snapshots:          a.snaps,
		Metrics:            a.metrics,
		Log:                log,
		MarketDiscriminant: cfg.MarketDiscriminant,
		BookLimit:          cfg.BookLimit,
	})
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
}

func (a *app) sessionPath() string {
	return filepath.Join(a.cfg.DataDir, service.SessionFile)
}

// session loads the saved session, or starts one for the configured mints.
// A configured market address always wins over the derived one.
func (a *app) session() (service.Session, error) {
	s, err := service.LoadSession(a.sessionPath())
	if errors.Is(err, service.ErrNoSession) {
		s, err = service.NewSession(a.cfg.ProgramID, a.cfg.BaseMint, a.cfg.QuoteMint)
	}
	if err != nil {
		return service.Session{}, err
	}
	if !a.cfg.Market.IsZero() && !a.cfg.Market.Equals(s.Market) {
		s.Market = a.cfg.Market
		if s.BaseVault, err = ledger.VaultAddress(a.cfg.ProgramID, s.Market, s.BaseMint); err != nil {
			return service.Session{}, err
		}
		if s.QuoteVault, err = ledger.VaultAddress(a.cfg.ProgramID, s.Market, s.QuoteMint); err != nil {
			return service.Session{}, err
		}
	}
	return s, nil
}

func (a *app) save(s service.Session) error {
	return s.Save(a.sessionPath())
}
