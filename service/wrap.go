package service

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"manifest/infra/ledger"
)

const (
	kindWrapSOL   = "WrapSOL"
	kindUnwrapSOL = "UnwrapSOL"

	solDecimals = 9
)

// WrapResult describes one wrap of native SOL.
type WrapResult struct {
	Account   solana.PublicKey
	Lamports  uint64
	Signature solana.Signature
}

// WrapSOL moves amount native SOL into the payer's wrapped SOL token
// account on the base ledger, creating the account if needed.
func (s *MarketService) WrapSOL(ctx context.Context, sess Session, amount decimal.Decimal) (WrapResult, error) {
	lamports, err := ToAtoms(amount, solDecimals)
	if err != nil {
		return WrapResult{}, err
	}
	ata, err := ledger.TokenAccount(s.payer, solana.SolMint)
	if err != nil {
		return WrapResult{}, err
	}

	create, err := createTokenAccountIdempotent(s.payer, solana.SolMint)
	if err != nil {
		return WrapResult{}, err
	}
	transfer, err := system.NewTransferInstruction(lamports, s.payer, ata).ValidateAndBuild()
	if err != nil {
		return WrapResult{}, errors.Wrap(err, "build lamport transfer")
	}
	syncNative, err := token.NewSyncNativeInstruction(ata).ValidateAndBuild()
	if err != nil {
		return WrapResult{}, errors.Wrap(err, "build sync native")
	}

	res := WrapResult{Account: ata, Lamports: lamports}
	res.Signature, err = s.submit(ctx, s.base, kindWrapSOL, sess.Market, create, transfer, syncNative)
	return res, err
}

// UnwrapSOL closes the payer's wrapped SOL token account, returning its
// whole balance to the payer as native SOL.
func (s *MarketService) UnwrapSOL(ctx context.Context, sess Session) (solana.PublicKey, solana.Signature, error) {
	ata, err := ledger.TokenAccount(s.payer, solana.SolMint)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, err
	}
	ix, err := token.NewCloseAccountInstruction(ata, s.payer, s.payer, nil).ValidateAndBuild()
	if err != nil {
		return ata, solana.Signature{}, errors.Wrap(err, "build close account")
	}
	sig, err := s.submit(ctx, s.base, kindUnwrapSOL, sess.Market, ix)
	return ata, sig, err
}
