package service

import (
	"context"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"manifest/domain/instruction"
	"manifest/domain/price"
	"manifest/domain/wire"
	"manifest/infra/ledger"
)

const (
	kindTransfer            = "Transfer"
	kindCreateTokenAccounts = "CreateTokenAccounts"

	// createIdempotent is the associated token program instruction that
	// succeeds when the account already exists.
	createIdempotent byte = 1
)

// CreateMarket creates the session's market on the base ledger.
func (s *MarketService) CreateMarket(ctx context.Context, sess Session) (Session, solana.Signature, error) {
	if err := sess.requireMarket(); err != nil {
		return sess, solana.Signature{}, err
	}
	ix := s.builder.CreateMarket(instruction.CreateMarketAccounts{
		Payer:          s.payer,
		Market:         sess.Market,
		System:         solana.SystemProgramID,
		BaseMint:       sess.BaseMint,
		QuoteMint:      sess.QuoteMint,
		BaseVault:      sess.BaseVault,
		QuoteVault:     sess.QuoteVault,
		TokenProgram:   solana.TokenProgramID,
		Token22Program: instruction.Token2022ProgramID,
	})
	sig, err := s.submit(ctx, s.base, instruction.CreateMarket.String(), sess.Market, ix)
	if err != nil {
		return sess, sig, err
	}
	sess.Delegated = false
	sess.SeatClaimed = false
	return sess, sig, nil
}

// DelegateMarket hands the market to the rollup. A delegated session is
// returned unchanged with a zero signature.
func (s *MarketService) DelegateMarket(ctx context.Context, sess Session) (Session, solana.Signature, error) {
	if err := sess.requireMarket(); err != nil {
		return sess, solana.Signature{}, err
	}
	if sess.Delegated {
		s.log.Info("market already delegated", zap.Stringer("market", sess.Market))
		return sess, solana.Signature{}, nil
	}

	addrs, err := ledger.DeriveDelegation(s.programs.Market, s.programs.Delegation, sess.Market)
	if err != nil {
		return sess, solana.Signature{}, err
	}
	ix := s.builder.DelegateMarket(instruction.DelegateMarketAccounts{
		Initializer:        s.payer,
		System:             solana.SystemProgramID,
		Market:             sess.Market,
		OwnerProgram:       s.programs.Market,
		DelegationBuffer:   addrs.Buffer,
		DelegationRecord:   addrs.Record,
		DelegationMetadata: addrs.Metadata,
		DelegationProgram:  s.programs.Delegation,
	})
	sig, err := s.submit(ctx, s.base, instruction.DelegateMarket.String(), sess.Market, ix)
	if err != nil {
		return sess, sig, err
	}
	sess.Delegated = true
	return sess, sig, nil
}

// CommitMarket commits the rollup state of a delegated market back to the
// base ledger.
func (s *MarketService) CommitMarket(ctx context.Context, sess Session) (solana.Signature, error) {
	if err := sess.requireMarket(); err != nil {
		return solana.Signature{}, err
	}
	if !sess.Delegated {
		return solana.Signature{}, ErrNotDelegated
	}
	ix := s.builder.CommitMarket(instruction.CommitMarketAccounts{
		Initializer:   s.payer,
		Market:        sess.Market,
		RollupProgram: s.programs.Rollup,
		RollupContext: s.programs.RollupContext,
	})
	return s.submit(ctx, s.rollup, instruction.CommitMarket.String(), sess.Market, ix)
}

// ClaimSeat claims a trader seat on the rollup. A session that already
// holds a seat is returned unchanged.
func (s *MarketService) ClaimSeat(ctx context.Context, sess Session) (Session, solana.Signature, error) {
	if err := sess.requireMarket(); err != nil {
		return sess, solana.Signature{}, err
	}
	if sess.SeatClaimed {
		s.log.Info("seat already claimed", zap.Stringer("market", sess.Market))
		return sess, solana.Signature{}, nil
	}
	ix := s.builder.ClaimSeat(instruction.ClaimSeatAccounts{
		Payer:  s.payer,
		Market: sess.Market,
		System: solana.SystemProgramID,
	})
	sig, err := s.submit(ctx, s.rollup, instruction.ClaimSeat.String(), sess.Market, ix)
	if err != nil {
		return sess, sig, err
	}
	sess.SeatClaimed = true
	return sess, sig, nil
}

// SetupTokenAccounts creates the payer's base and quote token accounts on
// the base ledger if they do not exist yet.
func (s *MarketService) SetupTokenAccounts(ctx context.Context, sess Session) (Session, solana.Signature, error) {
	baseATA, err := ledger.TokenAccount(s.payer, sess.BaseMint)
	if err != nil {
		return sess, solana.Signature{}, err
	}
	quoteATA, err := ledger.TokenAccount(s.payer, sess.QuoteMint)
	if err != nil {
		return sess, solana.Signature{}, err
	}

	ixs := make([]solana.Instruction, 0, 2)
	for _, mint := range []solana.PublicKey{sess.BaseMint, sess.QuoteMint} {
		ix, err := createTokenAccountIdempotent(s.payer, mint)
		if err != nil {
			return sess, solana.Signature{}, err
		}
		ixs = append(ixs, ix)
	}

	sig, err := s.submit(ctx, s.base, kindCreateTokenAccounts, sess.Market, ixs...)
	if err != nil {
		return sess, sig, err
	}
	sess.BaseTokenAccount = baseATA
	sess.QuoteTokenAccount = quoteATA
	return sess, sig, nil
}

func createTokenAccountIdempotent(payer, mint solana.PublicKey) (solana.Instruction, error) {
	built, err := associatedtokenaccount.NewCreateInstruction(payer, payer, mint).ValidateAndBuild()
	if err != nil {
		return nil, errors.Wrapf(err, "token account for mint %s", mint)
	}
	metas := solana.AccountMetaSlice(built.Accounts())
	return solana.NewInstruction(built.ProgramID(), metas, []byte{createIdempotent}), nil
}

// DepositResult carries both halves of a deposit.
type DepositResult struct {
	Transfer solana.Signature
	Deposit  solana.Signature
	Atoms    uint64
}

// Deposit moves amount of mint (in whole tokens) into the market vault on
// the base ledger and credits it to the trader's seat on the rollup.
func (s *MarketService) Deposit(ctx context.Context, sess Session, mint solana.PublicKey, amount decimal.Decimal) (DepositResult, error) {
	if err := sess.requireSeat(); err != nil {
		return DepositResult{}, err
	}
	vault, tokenAccount, decimals, err := sess.vaultFor(mint)
	if err != nil {
		return DepositResult{}, err
	}
	if tokenAccount.IsZero() {
		return DepositResult{}, ErrNoTokenAccounts
	}
	atoms, err := ToAtoms(amount, decimals)
	if err != nil {
		return DepositResult{}, err
	}

	transfer, err := token.NewTransferInstruction(atoms, tokenAccount, vault, s.payer, nil).ValidateAndBuild()
	if err != nil {
		return DepositResult{}, errors.Wrap(err, "build transfer")
	}
	deposit, err := s.builder.Deposit(instruction.DepositAccounts{
		Payer:        s.payer,
		Market:       sess.Market,
		TraderToken:  tokenAccount,
		Vault:        vault,
		TokenProgram: solana.TokenProgramID,
		Mint:         mint,
	}, instruction.NewDepositParams(atoms, nil))
	if err != nil {
		return DepositResult{}, err
	}

	res := DepositResult{Atoms: atoms}
	if res.Transfer, err = s.submit(ctx, s.base, kindTransfer, sess.Market, transfer); err != nil {
		return res, err
	}
	if res.Deposit, err = s.submit(ctx, s.rollup, instruction.Deposit.String(), sess.Market, deposit); err != nil {
		return res, err
	}
	return res, nil
}

// OrderRequest is an order in whole-token units.
type OrderRequest struct {
	IsBid bool
	// Price is quote tokens per base token.
	Price         decimal.Decimal
	Amount        decimal.Decimal
	Type          instruction.OrderType
	LastValidSlot uint32
}

// PlaceOrders places all orders in one BatchUpdate on the rollup.
func (s *MarketService) PlaceOrders(ctx context.Context, sess Session, orders []OrderRequest) (solana.Signature, error) {
	if err := sess.requireSeat(); err != nil {
		return solana.Signature{}, err
	}
	if len(orders) == 0 {
		return solana.Signature{}, wire.Rangef("place orders", "no orders given")
	}

	params := instruction.BatchUpdateParams{Entries: make([]instruction.BatchEntry, 0, len(orders))}
	for i, o := range orders {
		po, err := placeOrder(sess, o)
		if err != nil {
			return solana.Signature{}, errors.Wrapf(err, "order %d", i)
		}
		params.Entries = append(params.Entries, po)
	}
	return s.batchUpdate(ctx, sess, params)
}

func placeOrder(sess Session, o OrderRequest) (instruction.PlaceOrder, error) {
	atoms, err := ToAtoms(o.Amount, sess.BaseDecimals)
	if err != nil {
		return instruction.PlaceOrder{}, err
	}
	p, err := price.Normalize(AtomPrice(o.Price, sess.BaseDecimals, sess.QuoteDecimals))
	if err != nil {
		return instruction.PlaceOrder{}, err
	}
	return instruction.PlaceOrder{
		BaseAtoms:     atoms,
		Price:         p,
		IsBid:         o.IsBid,
		LastValidSlot: o.LastValidSlot,
		OrderType:     o.Type,
	}, nil
}

// CancelOrders cancels resting orders by sequence number in one BatchUpdate.
func (s *MarketService) CancelOrders(ctx context.Context, sess Session, sequences []uint64) (solana.Signature, error) {
	if err := sess.requireSeat(); err != nil {
		return solana.Signature{}, err
	}
	if len(sequences) == 0 {
		return solana.Signature{}, wire.Rangef("cancel orders", "no orders given")
	}
	params := instruction.BatchUpdateParams{Entries: make([]instruction.BatchEntry, 0, len(sequences))}
	for _, seq := range sequences {
		params.Entries = append(params.Entries, instruction.CancelOrder{SequenceNumber: seq})
	}
	return s.batchUpdate(ctx, sess, params)
}

func (s *MarketService) batchUpdate(ctx context.Context, sess Session, params instruction.BatchUpdateParams) (solana.Signature, error) {
	ix, err := s.builder.BatchUpdate(instruction.BatchUpdateAccounts{
		Payer:  s.payer,
		Market: sess.Market,
		System: solana.SystemProgramID,
	}, params)
	if err != nil {
		return solana.Signature{}, err
	}
	return s.submit(ctx, s.rollup, instruction.BatchUpdate.String(), sess.Market, ix)
}

// ToAtoms converts a whole-token amount to atoms. Amounts that are not
// positive, have more fractional digits than decimals, or overflow u64 are
// range errors.
func ToAtoms(amount decimal.Decimal, decimals uint8) (uint64, error) {
	const op = "convert to atoms"
	if !amount.IsPositive() {
		return 0, wire.Rangef(op, "amount must be positive, got %s", amount)
	}
	shifted := amount.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, wire.Rangef(op, "%s has more than %d decimal places", amount, decimals)
	}
	n := shifted.BigInt()
	if !n.IsUint64() {
		return 0, wire.Rangef(op, "%s overflows u64 atoms", amount)
	}
	return n.Uint64(), nil
}

// AtomPrice converts quote tokens per base token into quote atoms per base
// atom.
func AtomPrice(unit decimal.Decimal, baseDecimals, quoteDecimals uint8) decimal.Decimal {
	return unit.Shift(int32(quoteDecimals) - int32(baseDecimals))
}
