package instruction

import (
	"math"
	"math/bits"

	"manifest/domain/price"
	"manifest/domain/wire"
)

// DepositScale is the factor the program expects deposit amounts to carry on
// the wire. It is a protocol convention, not a decimals conversion; its origin
// has not been confirmed against the program's unit handling.
const DepositScale uint64 = 100

// DepositParams are the Deposit instruction parameters.
type DepositParams struct {
	AmountAtoms     uint64
	Scale           uint64
	TraderIndexHint *uint32
}

// NewDepositParams applies DepositScale explicitly.
func NewDepositParams(amountAtoms uint64, hint *uint32) DepositParams {
	return DepositParams{AmountAtoms: amountAtoms, Scale: DepositScale, TraderIndexHint: hint}
}

// WireAmount is the amount written to the payload.
func (p DepositParams) WireAmount() (uint64, error) {
	if p.Scale == 0 {
		return 0, wire.Rangef("deposit", "scale must be non-zero")
	}
	hi, lo := bits.Mul64(p.AmountAtoms, p.Scale)
	if hi != 0 {
		return 0, wire.Rangef("deposit", "amount %d × %d overflows u64", p.AmountAtoms, p.Scale)
	}
	return lo, nil
}

// BatchEntry is either a CancelOrder or a PlaceOrder.
type BatchEntry interface {
	encodedLen() int
	batchEntry()
}

// CancelOrder cancels a resting order by its sequence number.
type CancelOrder struct {
	SequenceNumber uint64
	OrderIndexHint *uint32
}

// PlaceOrder places a new order. Price must already be normalized.
type PlaceOrder struct {
	BaseAtoms     uint64
	Price         price.Price
	IsBid         bool
	LastValidSlot uint32
	OrderType     OrderType
}

const placeOrderLen = 8 + 4 + 1 + 1 + 4 + 1

func (CancelOrder) batchEntry() {}
func (PlaceOrder) batchEntry()  {}

func (c CancelOrder) encodedLen() int { return 8 + wire.OptionU32Len(c.OrderIndexHint) }
func (PlaceOrder) encodedLen() int    { return placeOrderLen }

// wirePrice narrows the price to the u32 mantissa and i8 exponent of the
// order record.
func (o PlaceOrder) wirePrice() (uint32, int8, error) {
	const op = "place order"
	if o.Price.Mantissa == 0 {
		return 0, 0, wire.Rangef(op, "price mantissa is zero")
	}
	if o.Price.Mantissa >= price.MantissaLimit {
		return 0, 0, wire.Rangef(op, "price mantissa %d does not fit u32", o.Price.Mantissa)
	}
	if o.Price.Exponent < price.MinExponent || o.Price.Exponent > math.MaxInt8 {
		return 0, 0, wire.Rangef(op, "price exponent %d outside [%d, %d]", o.Price.Exponent, price.MinExponent, math.MaxInt8)
	}
	if !o.OrderType.Valid() {
		return 0, 0, wire.Rangef(op, "unknown order type %d", o.OrderType)
	}
	return uint32(o.Price.Mantissa), int8(o.Price.Exponent), nil
}

// BatchUpdateParams carries cancels and places in caller order. Cancels are
// always serialized before places.
type BatchUpdateParams struct {
	TraderIndexHint *uint32
	Entries         []BatchEntry
}

// Cancels returns the cancel entries in order.
func (p BatchUpdateParams) Cancels() []CancelOrder {
	var out []CancelOrder
	for _, e := range p.Entries {
		if c, ok := e.(CancelOrder); ok {
			out = append(out, c)
		}
	}
	return out
}

// Orders returns the place entries in order.
func (p BatchUpdateParams) Orders() []PlaceOrder {
	var out []PlaceOrder
	for _, e := range p.Entries {
		if o, ok := e.(PlaceOrder); ok {
			out = append(out, o)
		}
	}
	return out
}

// EncodedLen is the exact payload size including the discriminator.
func (p BatchUpdateParams) EncodedLen() int {
	n := 1 + wire.OptionU32Len(p.TraderIndexHint) + 4 + 4
	for _, e := range p.Entries {
		if e != nil {
			n += e.encodedLen()
		}
	}
	return n
}
