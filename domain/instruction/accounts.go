package instruction

import (
	"github.com/gagliardetto/solana-go"
)

// Token2022ProgramID is the token-extensions program.
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

// Builder attaches account lists to encoded payloads for one program.
type Builder struct {
	ProgramID solana.PublicKey
}

func NewBuilder(programID solana.PublicKey) *Builder {
	return &Builder{ProgramID: programID}
}

func (b *Builder) instruction(accounts solana.AccountMetaSlice, data []byte) solana.Instruction {
	return solana.NewInstruction(b.ProgramID, accounts, data)
}

// ---- CreateMarket ----

type CreateMarketAccounts struct {
	Payer          solana.PublicKey
	Market         solana.PublicKey
	System         solana.PublicKey
	BaseMint       solana.PublicKey
	QuoteMint      solana.PublicKey
	BaseVault      solana.PublicKey
	QuoteVault     solana.PublicKey
	TokenProgram   solana.PublicKey
	Token22Program solana.PublicKey
}

func (b *Builder) CreateMarket(a CreateMarketAccounts) solana.Instruction {
	return b.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Payer, true, true),
		solana.NewAccountMeta(a.Market, true, false),
		solana.NewAccountMeta(a.System, false, false),
		solana.NewAccountMeta(a.BaseMint, false, false),
		solana.NewAccountMeta(a.QuoteMint, false, false),
		solana.NewAccountMeta(a.BaseVault, true, false),
		solana.NewAccountMeta(a.QuoteVault, true, false),
		solana.NewAccountMeta(a.TokenProgram, false, false),
		solana.NewAccountMeta(a.Token22Program, false, false),
	}, encodeEmpty(CreateMarket))
}

// ---- ClaimSeat ----

type ClaimSeatAccounts struct {
	Payer  solana.PublicKey
	Market solana.PublicKey
	System solana.PublicKey
}

func (b *Builder) ClaimSeat(a ClaimSeatAccounts) solana.Instruction {
	return b.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Payer, true, true),
		solana.NewAccountMeta(a.Market, true, false),
		solana.NewAccountMeta(a.System, false, false),
	}, encodeEmpty(ClaimSeat))
}

// ---- Deposit ----

type DepositAccounts struct {
	Payer        solana.PublicKey
	Market       solana.PublicKey
	TraderToken  solana.PublicKey
	Vault        solana.PublicKey
	TokenProgram solana.PublicKey
	Mint         solana.PublicKey
}

// Deposit records a deposit against the market state only; the token
// transfer into the vault is a separate instruction on the base ledger.
func (b *Builder) Deposit(a DepositAccounts, p DepositParams) (solana.Instruction, error) {
	data, err := EncodeDeposit(p)
	if err != nil {
		return nil, err
	}
	return b.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Payer, true, true),
		solana.NewAccountMeta(a.Market, true, false),
		solana.NewAccountMeta(a.TraderToken, false, false),
		solana.NewAccountMeta(a.Vault, false, false),
		solana.NewAccountMeta(a.TokenProgram, false, false),
		solana.NewAccountMeta(a.Mint, false, false),
	}, data), nil
}

// ---- BatchUpdate ----

type BatchUpdateAccounts struct {
	Payer  solana.PublicKey
	Market solana.PublicKey
	System solana.PublicKey
}

func (b *Builder) BatchUpdate(a BatchUpdateAccounts, p BatchUpdateParams) (solana.Instruction, error) {
	data, err := EncodeBatchUpdate(p)
	if err != nil {
		return nil, err
	}
	return b.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Payer, true, true),
		solana.NewAccountMeta(a.Market, true, false),
		solana.NewAccountMeta(a.System, false, false),
	}, data), nil
}

// ---- DelegateMarket ----

type DelegateMarketAccounts struct {
	Initializer        solana.PublicKey
	System             solana.PublicKey
	Market             solana.PublicKey
	OwnerProgram       solana.PublicKey
	DelegationBuffer   solana.PublicKey
	DelegationRecord   solana.PublicKey
	DelegationMetadata solana.PublicKey
	DelegationProgram  solana.PublicKey
}

func (b *Builder) DelegateMarket(a DelegateMarketAccounts) solana.Instruction {
	return b.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Initializer, true, true),
		solana.NewAccountMeta(a.System, false, false),
		solana.NewAccountMeta(a.Market, true, false),
		solana.NewAccountMeta(a.OwnerProgram, false, false),
		solana.NewAccountMeta(a.DelegationBuffer, true, false),
		solana.NewAccountMeta(a.DelegationRecord, true, false),
		solana.NewAccountMeta(a.DelegationMetadata, true, false),
		solana.NewAccountMeta(a.DelegationProgram, false, false),
	}, encodeEmpty(DelegateMarket))
}

// ---- CommitMarket ----

type CommitMarketAccounts struct {
	Initializer   solana.PublicKey
	Market        solana.PublicKey
	RollupProgram solana.PublicKey
	RollupContext solana.PublicKey
}

func (b *Builder) CommitMarket(a CommitMarketAccounts) solana.Instruction {
	return b.instruction(solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Initializer, true, true),
		solana.NewAccountMeta(a.Market, true, false),
		solana.NewAccountMeta(a.RollupProgram, false, false),
		solana.NewAccountMeta(a.RollupContext, true, false),
	}, encodeEmpty(CommitMarket))
}
