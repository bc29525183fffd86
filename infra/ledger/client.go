package ledger

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrAccountNotFound is returned by FetchAccount when the ledger has no
// account at the address.
var ErrAccountNotFound = errors.New("account not found")

// RPC is the subset of *rpc.Client the adapter uses.
type RPC interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

type Config struct {
	// Name labels logs and metrics, e.g. "base" or "rollup".
	Name          string
	Endpoint      string
	Commitment    rpc.CommitmentType
	SkipPreflight bool
	// Confirm waits for the confirmed status after sending.
	Confirm      bool
	PollInterval time.Duration
}

// Client submits transactions to and reads accounts from one ledger.
type Client struct {
	cfg    Config
	rpc    RPC
	signer solana.PrivateKey
	log    *zap.Logger
}

// Dial builds a client over the JSON-RPC endpoint in cfg.
func Dial(cfg Config, signer solana.PrivateKey, log *zap.Logger) *Client {
	return New(cfg, rpc.New(cfg.Endpoint), signer, log)
}

func New(cfg Config, r RPC, signer solana.PrivateKey, log *zap.Logger) *Client {
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 700 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		rpc:    r,
		signer: signer,
		log:    log.With(zap.String("ledger", cfg.Name)),
	}
}

// Payer is the fee payer and the only signer.
func (c *Client) Payer() solana.PublicKey { return c.signer.PublicKey() }

// Submit signs the instructions into one transaction and sends it.
func (c *Client) Submit(ctx context.Context, ixs []solana.Instruction) (solana.Signature, error) {
	if len(ixs) == 0 {
		return solana.Signature{}, errors.New("submit: no instructions")
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, c.cfg.Commitment)
	if err != nil {
		return solana.Signature{}, errors.Wrapf(err, "%s: get latest blockhash", c.cfg.Name)
	}

	payer := c.signer.PublicKey()
	tx, err := solana.NewTransaction(ixs, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "build transaction")
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if payer.Equals(key) {
			return &c.signer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "sign transaction")
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       c.cfg.SkipPreflight,
		PreflightCommitment: c.cfg.Commitment,
	})
	if err != nil {
		return solana.Signature{}, errors.Wrapf(err, "%s: send transaction", c.cfg.Name)
	}
	c.log.Debug("transaction sent",
		zap.Stringer("signature", sig),
		zap.Int("instructions", len(ixs)),
		zap.Bool("skip_preflight", c.cfg.SkipPreflight))

	if c.cfg.Confirm {
		if err := c.waitForConfirmation(ctx, sig); err != nil {
			return sig, err
		}
	}
	return sig, nil
}

func (c *Client) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "confirm %s", sig)
		case <-ticker.C:
			result, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				return errors.Errorf("transaction %s failed: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}

// FetchAccount returns the raw account data.
func (c *Client) FetchAccount(ctx context.Context, key solana.PublicKey) ([]byte, error) {
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, key, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.cfg.Commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, errors.Wrapf(ErrAccountNotFound, "%s: %s", c.cfg.Name, key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s: get account %s", c.cfg.Name, key)
	}
	return res.GetBinary(), nil
}

func (c *Client) CurrentSlot(ctx context.Context) (uint64, error) {
	slot, err := c.rpc.GetSlot(ctx, c.cfg.Commitment)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: get slot", c.cfg.Name)
	}
	return slot, nil
}
