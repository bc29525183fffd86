package service

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"manifest/domain/orderbook"
	"manifest/infra/ledger"
)

var (
	ErrNoSession       = errors.New("no saved session")
	ErrNoMarket        = errors.New("no market selected")
	ErrNotDelegated    = errors.New("market is not delegated to the rollup")
	ErrNoSeat          = errors.New("no seat claimed on the market")
	ErrUnknownMint     = errors.New("mint is neither the base nor the quote mint")
	ErrNoTokenAccounts = errors.New("token accounts are not set up")
)

const (
	defaultBaseDecimals  = 9
	defaultQuoteDecimals = 6

	// SessionFile is the session's file name inside the data dir.
	SessionFile = "session.json"
)

// Session is what the client remembers about the market it works with.
type Session struct {
	Market     solana.PublicKey `json:"market"`
	BaseMint   solana.PublicKey `json:"baseMint"`
	QuoteMint  solana.PublicKey `json:"quoteMint"`
	BaseVault  solana.PublicKey `json:"baseVault"`
	QuoteVault solana.PublicKey `json:"quoteVault"`

	BaseTokenAccount  solana.PublicKey `json:"baseTokenAccount"`
	QuoteTokenAccount solana.PublicKey `json:"quoteTokenAccount"`

	BaseDecimals  uint8 `json:"baseDecimals"`
	QuoteDecimals uint8 `json:"quoteDecimals"`

	Delegated   bool `json:"delegated"`
	SeatClaimed bool `json:"seatClaimed"`
}

// NewSession derives the market and vault addresses for a mint pair.
func NewSession(program, baseMint, quoteMint solana.PublicKey) (Session, error) {
	addrs, err := ledger.DeriveMarket(program, baseMint, quoteMint)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Market:        addrs.Market,
		BaseMint:      baseMint,
		QuoteMint:     quoteMint,
		BaseVault:     addrs.BaseVault,
		QuoteVault:    addrs.QuoteVault,
		BaseDecimals:  defaultBaseDecimals,
		QuoteDecimals: defaultQuoteDecimals,
	}, nil
}

// LoadSession reads a saved session. ErrNoSession is returned when the file
// does not exist.
func LoadSession(path string) (Session, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "read session")
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, errors.Wrapf(err, "decode session %s", path)
	}
	return s, nil
}

// Save writes the session atomically.
func (s Session) Save(path string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "write session")
	}
	return errors.Wrap(os.Rename(tmp, path), "replace session")
}

func (s Session) HasMarket() bool { return !s.Market.IsZero() }

// WithHeader takes the decimals recorded in a fetched market header.
func (s Session) WithHeader(h orderbook.MarketHeader) Session {
	s.BaseDecimals = h.BaseDecimals
	s.QuoteDecimals = h.QuoteDecimals
	return s
}

func (s Session) vaultFor(mint solana.PublicKey) (vault, tokenAccount solana.PublicKey, decimals uint8, err error) {
	switch {
	case mint.Equals(s.BaseMint):
		return s.BaseVault, s.BaseTokenAccount, s.BaseDecimals, nil
	case mint.Equals(s.QuoteMint):
		return s.QuoteVault, s.QuoteTokenAccount, s.QuoteDecimals, nil
	}
	return solana.PublicKey{}, solana.PublicKey{}, 0, errors.Wrapf(ErrUnknownMint, "mint %s", mint)
}

func (s Session) requireMarket() error {
	if !s.HasMarket() {
		return ErrNoMarket
	}
	return nil
}

func (s Session) requireSeat() error {
	if err := s.requireMarket(); err != nil {
		return err
	}
	if !s.SeatClaimed {
		return ErrNoSeat
	}
	return nil
}
