package service

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"manifest/infra/wal/entry"
)

// Ledger is one chain the service can send to and read from.
// *ledger.Client implements it.
type Ledger interface {
	Submit(ctx context.Context, ixs []solana.Instruction) (solana.Signature, error)
	FetchAccount(ctx context.Context, key solana.PublicKey) ([]byte, error)
	CurrentSlot(ctx context.Context) (uint64, error)
}

const (
	LedgerBase   = "base"
	LedgerRollup = "rollup"
)

type target struct {
	name   string
	record entry.RecordType
	ledger Ledger
}
