package orderbook

import (
	"github.com/gagliardetto/solana-go"

	"manifest/domain/wire"
)

const (
	// HeaderSize is the fixed region at the start of a market account.
	HeaderSize = 256
	// NodeSize is one red-black tree block in the dynamic region.
	NodeSize = 80
	// OrderSize is the resting order payload inside a node.
	OrderSize = 64

	nodeOrderOffset = 16

	// NIL marks an absent child or an empty tree.
	NIL uint32 = 0xFFFFFFFF
)

// MarketHeader is the fixed 256-byte region of a market account.
type MarketHeader struct {
	Discriminant   uint64
	Version        uint8
	BaseDecimals   uint8
	QuoteDecimals  uint8
	BaseVaultBump  uint8
	QuoteVaultBump uint8

	BaseMint   solana.PublicKey
	QuoteMint  solana.PublicKey
	BaseVault  solana.PublicKey
	QuoteVault solana.PublicKey

	OrderSequence  uint64
	AllocatedBytes uint32

	BidsRoot     uint32
	BidsBest     uint32
	AsksRoot     uint32
	AsksBest     uint32
	SeatsRoot    uint32
	FreeListHead uint32

	QuoteVolume uint64
}

// ParseHeader reads the fixed region. Layout (little-endian):
//
//	[discriminant:8][version:1][base dec:1][quote dec:1][base bump:1][quote bump:1][pad:3]
//	[base mint:32][quote mint:32][base vault:32][quote vault:32]
//	[order seq:8][allocated:4][bids root:4][bids best:4][asks root:4][asks best:4]
//	[seats root:4][free list:4][pad:4][quote volume:8][pad:64]
func ParseHeader(data []byte) (MarketHeader, error) {
	const op = "parse market header"
	if len(data) < HeaderSize {
		return MarketHeader{}, wire.Layoutf(op, "need %d bytes, have %d", HeaderSize, len(data))
	}

	r := wire.NewReader(op, data[:HeaderSize])
	var h MarketHeader
	h.Discriminant = r.U64()
	h.Version = r.U8()
	h.BaseDecimals = r.U8()
	h.QuoteDecimals = r.U8()
	h.BaseVaultBump = r.U8()
	h.QuoteVaultBump = r.U8()
	r.Skip(3)

	h.BaseMint = r.Key()
	h.QuoteMint = r.Key()
	h.BaseVault = r.Key()
	h.QuoteVault = r.Key()

	h.OrderSequence = r.U64()
	h.AllocatedBytes = r.U32()
	h.BidsRoot = r.U32()
	h.BidsBest = r.U32()
	h.AsksRoot = r.U32()
	h.AsksBest = r.U32()
	h.SeatsRoot = r.U32()
	h.FreeListHead = r.U32()
	r.Skip(4)
	h.QuoteVolume = r.U64()

	if err := r.Err(); err != nil {
		return MarketHeader{}, err
	}
	if h.Discriminant == 0 {
		return MarketHeader{}, wire.Protocolf(op, "zero discriminant, account is not an initialized market")
	}
	return h, nil
}

// CheckDiscriminant rejects a header whose discriminant differs from want.
// A zero want accepts any value.
func (h MarketHeader) CheckDiscriminant(want uint64) error {
	if want != 0 && h.Discriminant != want {
		return wire.Protocolf("check market header", "discriminant %d, want %d", h.Discriminant, want)
	}
	return nil
}

// Empty reports whether neither side has resting orders.
func (h MarketHeader) Empty() bool {
	return h.BidsRoot == NIL && h.AsksRoot == NIL
}

// Dynamic returns the region tree offsets are relative to.
func Dynamic(data []byte) []byte {
	if len(data) <= HeaderSize {
		return nil
	}
	return data[HeaderSize:]
}
