package ledger

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var (
	seedMarket             = []byte("market")
	seedVault              = []byte("vault")
	seedBuffer             = []byte("buffer")
	seedDelegation         = []byte("delegation")
	seedDelegationMetadata = []byte("delegation-metadata")
)

// MarketAddresses are the program-derived accounts of one market.
type MarketAddresses struct {
	Market     solana.PublicKey
	Bump       uint8
	BaseVault  solana.PublicKey
	QuoteVault solana.PublicKey
}

// DeriveMarket derives the market for a mint pair and both of its vaults.
func DeriveMarket(program, baseMint, quoteMint solana.PublicKey) (MarketAddresses, error) {
	market, bump, err := solana.FindProgramAddress([][]byte{seedMarket, baseMint[:], quoteMint[:]}, program)
	if err != nil {
		return MarketAddresses{}, errors.Wrap(err, "derive market")
	}
	baseVault, err := VaultAddress(program, market, baseMint)
	if err != nil {
		return MarketAddresses{}, err
	}
	quoteVault, err := VaultAddress(program, market, quoteMint)
	if err != nil {
		return MarketAddresses{}, err
	}
	return MarketAddresses{Market: market, Bump: bump, BaseVault: baseVault, QuoteVault: quoteVault}, nil
}

// VaultAddress derives the token vault a market holds for mint.
func VaultAddress(program, market, mint solana.PublicKey) (solana.PublicKey, error) {
	vault, _, err := solana.FindProgramAddress([][]byte{seedVault, market[:], mint[:]}, program)
	if err != nil {
		return solana.PublicKey{}, errors.Wrapf(err, "derive vault for mint %s", mint)
	}
	return vault, nil
}

// DelegationAddresses are the accounts the delegation program needs to take
// custody of a market.
type DelegationAddresses struct {
	Buffer   solana.PublicKey
	Record   solana.PublicKey
	Metadata solana.PublicKey
}

// DeriveDelegation derives the buffer under the owning program and the
// record and metadata under the delegation program.
func DeriveDelegation(ownerProgram, delegationProgram, account solana.PublicKey) (DelegationAddresses, error) {
	var out DelegationAddresses
	var err error
	if out.Buffer, _, err = solana.FindProgramAddress([][]byte{seedBuffer, account[:]}, ownerProgram); err != nil {
		return out, errors.Wrap(err, "derive delegation buffer")
	}
	if out.Record, _, err = solana.FindProgramAddress([][]byte{seedDelegation, account[:]}, delegationProgram); err != nil {
		return out, errors.Wrap(err, "derive delegation record")
	}
	if out.Metadata, _, err = solana.FindProgramAddress([][]byte{seedDelegationMetadata, account[:]}, delegationProgram); err != nil {
		return out, errors.Wrap(err, "derive delegation metadata")
	}
	return out, nil
}

// TokenAccount derives the owner's associated token account for mint under
// the classic token program.
func TokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, errors.Wrapf(err, "derive token account for mint %s", mint)
	}
	return ata, nil
}
