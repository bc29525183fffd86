// Package price converts decimal prices to and from the mantissa/exponent
// pair the order-book program stores on the wire.
package price

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"manifest/domain/wire"
)

const (
	// MantissaLimit is the exclusive upper bound of a normalized mantissa.
	MantissaLimit = math.MaxUint32
	// MinMantissa is the lower bound normalization aims for.
	MinMantissa = 100_000
	// MinExponent is the floor of the normalized exponent.
	MinExponent = -18
	// MaxExponent is the largest exponent the order wire format can carry (i8).
	MaxExponent = math.MaxInt8
)

var (
	mantissaLimit = decimal.NewFromInt(MantissaLimit)
	minMantissa   = decimal.NewFromInt(MinMantissa)
)

// Price is mantissa × 10^exponent.
type Price struct {
	Mantissa uint64
	Exponent int64
}

// Normalize converts a strictly positive decimal into mantissa/exponent form.
//
// The mantissa is shifted down while it is >= 2^32-1 and up while it is below
// 100000 and the exponent is above -18, then floored. Inputs small enough to
// hit the exponent floor keep a mantissa below 100000.
func Normalize(p decimal.Decimal) (Price, error) {
	const op = "normalize price"
	if !p.IsPositive() {
		return Price{}, wire.Rangef(op, "price must be positive, got %s", p)
	}

	m := p
	e := int64(0)
	for m.GreaterThanOrEqual(mantissaLimit) {
		m = m.Shift(-1)
		e++
	}
	for m.LessThan(minMantissa) && e > MinExponent {
		m = m.Shift(1)
		e--
	}

	mantissa := m.Floor()
	if mantissa.IsZero() {
		return Price{}, wire.Rangef(op, "price %s is below the smallest representable value", p)
	}
	if e > MaxExponent {
		return Price{}, wire.Rangef(op, "exponent %d exceeds %d", e, MaxExponent)
	}
	return Price{Mantissa: uint64(mantissa.IntPart()), Exponent: e}, nil
}

// Denormalize returns mantissa × 10^exponent exactly. Exponents beyond the
// int32 range are saturated.
func Denormalize(mantissa uint64, exponent int64) decimal.Decimal {
	if exponent > math.MaxInt32 {
		exponent = math.MaxInt32
	} else if exponent < math.MinInt32 {
		exponent = math.MinInt32
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(mantissa), int32(exponent))
}

func (p Price) Decimal() decimal.Decimal {
	return Denormalize(p.Mantissa, p.Exponent)
}

// Float64 is for rendering only.
func (p Price) Float64() float64 {
	return p.Decimal().InexactFloat64()
}

func (p Price) String() string {
	return fmt.Sprintf("%de%d", p.Mantissa, p.Exponent)
}

// Cmp compares two prices by value.
func (p Price) Cmp(o Price) int {
	return p.Decimal().Cmp(o.Decimal())
}
