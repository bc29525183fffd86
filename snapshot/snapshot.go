package snapshot

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Snapshot is one fetched copy of a market account.
type Snapshot struct {
	Market solana.PublicKey
	Slot   uint64
	// Taken is when the account was fetched, in unix nanoseconds.
	Taken int64
	Data  []byte
}

func New(market solana.PublicKey, slot uint64, data []byte) Snapshot {
	return Snapshot{Market: market, Slot: slot, Taken: time.Now().UnixNano(), Data: data}
}
