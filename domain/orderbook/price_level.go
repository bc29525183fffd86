package orderbook

import "manifest/domain/price"

// PriceLevel aggregates the orders resting at a single price.
type PriceLevel struct {
	Price price.Price

	TotalAtoms uint64
	OrderCount int
}

// Levels folds orders that are already sorted by price into depth levels.
// Prices equal in value but encoded differently share a level.
func Levels(orders []RestingOrder) []PriceLevel {
	var out []PriceLevel
	for _, o := range orders {
		if n := len(out); n > 0 && out[n-1].Price.Cmp(o.Price) == 0 {
			out[n-1].TotalAtoms += o.BaseAtoms
			out[n-1].OrderCount++
			continue
		}
		out = append(out, PriceLevel{Price: o.Price, TotalAtoms: o.BaseAtoms, OrderCount: 1})
	}
	return out
}

// Depth returns the bid and ask levels of the book.
func (b *Book) Depth() (bids, asks []PriceLevel) {
	return Levels(b.Bids.Orders), Levels(b.Asks.Orders)
}
