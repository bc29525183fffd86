package orderbook

import (
	"math/big"

	"github.com/shopspring/decimal"

	"manifest/domain/instruction"
	"manifest/domain/price"
	"manifest/domain/wire"
)

// RestingOrder is the 64-byte order payload of a tree node.
type RestingOrder struct {
	// Offset is the node's byte offset in the dynamic region. The program
	// accepts it as an order index hint when cancelling.
	Offset uint32

	Price          price.Price
	BaseAtoms      uint64
	SequenceNumber uint64
	TraderIndex    uint32
	LastValidSlot  uint32
	IsBid          bool
	OrderType      instruction.OrderType
	ReverseSpread  uint16
}

// decodeOrder reads a payload laid out as:
//
//	[mantissa:8][exponent:8][base atoms:8][sequence:8][trader:4][last valid slot:4]
//	[is bid:1][order type:1][reverse spread:2][pad:20]
func decodeOrder(b []byte) (RestingOrder, error) {
	r := wire.NewReader("decode resting order", b)
	var o RestingOrder
	o.Price.Mantissa = r.U64()
	o.Price.Exponent = r.I64()
	o.BaseAtoms = r.U64()
	o.SequenceNumber = r.U64()
	o.TraderIndex = r.U32()
	o.LastValidSlot = r.U32()
	o.IsBid = r.Bool()
	o.OrderType = instruction.OrderType(r.U8())
	o.ReverseSpread = r.U16()
	return o, r.Err()
}

// Expired reports whether the order is past its last valid slot. A zero slot
// never expires.
func (o RestingOrder) Expired(currentSlot uint64) bool {
	return o.LastValidSlot != 0 && uint64(o.LastValidSlot) < currentSlot
}

// Live is the filter applied while walking a tree.
func (o RestingOrder) Live(currentSlot uint64) bool {
	return o.BaseAtoms > 0 && !o.Expired(currentSlot)
}

// UnitPrice converts quote atoms per base atom into quote units per base unit.
func (o RestingOrder) UnitPrice(baseDecimals, quoteDecimals uint8) decimal.Decimal {
	return o.Price.Decimal().Shift(int32(baseDecimals) - int32(quoteDecimals))
}

// UnitSize converts base atoms into base units.
func (o RestingOrder) UnitSize(baseDecimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(o.BaseAtoms), -int32(baseDecimals))
}
