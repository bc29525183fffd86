package orderbook

import (
	"sort"

	"manifest/domain/wire"
)

// SideView is one decoded side of the book.
type SideView struct {
	Orders       []RestingOrder
	TotalVisited int
	Faults       []error
}

// Book is a read-only view of a market account snapshot.
type Book struct {
	Header MarketHeader
	Slot   uint64
	Bids   SideView
	Asks   SideView
}

// Decode parses the header and walks both trees. Bids are sorted by price
// descending and asks ascending; equal prices keep tree order. Orders found
// on the wrong side are dropped and reported as faults.
func Decode(data []byte, currentSlot uint64, limit int) (*Book, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	region := Dynamic(data)
	book := &Book{
		Header: h,
		Slot:   currentSlot,
		Bids:   side(Traverse(region, h.BidsRoot, currentSlot, limit), true),
		Asks:   side(Traverse(region, h.AsksRoot, currentSlot, limit), false),
	}
	SortBids(book.Bids.Orders)
	SortAsks(book.Asks.Orders)
	return book, nil
}

func side(res Result, bids bool) SideView {
	v := SideView{TotalVisited: res.TotalVisited, Faults: res.Faults}
	for _, o := range res.Orders {
		if o.IsBid != bids {
			v.Faults = append(v.Faults, wire.Protocolf("decode book",
				"order %d at node %d has is_bid=%t on the wrong side", o.SequenceNumber, o.Offset, o.IsBid))
			continue
		}
		v.Orders = append(v.Orders, o)
	}
	return v
}

// SortBids orders by price descending, stable for equal prices.
func SortBids(orders []RestingOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Price.Cmp(orders[j].Price) > 0
	})
}

// SortAsks orders by price ascending, stable for equal prices.
func SortAsks(orders []RestingOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Price.Cmp(orders[j].Price) < 0
	})
}

// BestBid returns the highest bid, if any.
func (b *Book) BestBid() (RestingOrder, bool) {
	if len(b.Bids.Orders) == 0 {
		return RestingOrder{}, false
	}
	return b.Bids.Orders[0], true
}

// BestAsk returns the lowest ask, if any.
func (b *Book) BestAsk() (RestingOrder, bool) {
	if len(b.Asks.Orders) == 0 {
		return RestingOrder{}, false
	}
	return b.Asks.Orders[0], true
}

// Faults returns every fault from both sides.
func (b *Book) Faults() []error {
	out := make([]error, 0, len(b.Bids.Faults)+len(b.Asks.Faults))
	out = append(out, b.Bids.Faults...)
	return append(out, b.Asks.Faults...)
}
