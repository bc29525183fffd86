package kafka

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"manifest/domain/orderbook"
)

// BookEvent is the feed message for one decoded book read. Atom counts are
// carried as strings so they survive encodings that only know float64.
type BookEvent struct {
	Market        string       `json:"market"`
	Slot          uint64       `json:"slot,string"`
	OrderSequence uint64       `json:"order_sequence,string"`
	BaseDecimals  uint8        `json:"base_decimals"`
	QuoteDecimals uint8        `json:"quote_decimals"`
	Bids          []LevelEvent `json:"bids"`
	Asks          []LevelEvent `json:"asks"`
	Faults        int          `json:"faults"`
	Time          time.Time    `json:"time"`
	// Orders is set only by WithOrders.
	Orders *OrdersView `json:"orders,omitempty"`
}

// LevelEvent is one aggregated price level.
type LevelEvent struct {
	// Price is quote units per base unit.
	Price string `json:"price"`
	// Mantissa and exponent keep the on-chain encoding.
	Mantissa uint64 `json:"mantissa,string"`
	Exponent int64  `json:"exponent"`
	Size     string `json:"size"`
	Atoms    uint64 `json:"atoms,string"`
	Orders   int    `json:"orders"`
}

// NewBookEvent aggregates book into depth levels.
func NewBookEvent(market solana.PublicKey, book *orderbook.Book, now time.Time) BookEvent {
	h := book.Header
	bids, asks := book.Depth()
	return BookEvent{
		Market:        market.String(),
		Slot:          book.Slot,
		OrderSequence: h.OrderSequence,
		BaseDecimals:  h.BaseDecimals,
		QuoteDecimals: h.QuoteDecimals,
		Bids:          levels(bids, h.BaseDecimals, h.QuoteDecimals),
		Asks:          levels(asks, h.BaseDecimals, h.QuoteDecimals),
		Faults:        len(book.Faults()),
		Time:          now.UTC(),
	}
}

func levels(in []orderbook.PriceLevel, baseDec, quoteDec uint8) []LevelEvent {
	out := make([]LevelEvent, 0, len(in))
	for _, l := range in {
		unit := orderbook.RestingOrder{Price: l.Price, BaseAtoms: l.TotalAtoms}
		out = append(out, LevelEvent{
			Price:    unit.UnitPrice(baseDec, quoteDec).String(),
			Mantissa: l.Price.Mantissa,
			Exponent: l.Price.Exponent,
			Size:     unit.UnitSize(baseDec).String(),
			Atoms:    l.TotalAtoms,
			Orders:   l.OrderCount,
		})
	}
	return out
}

// OrdersView lists the decoded resting orders of each side, in book order,
// with the number of tree nodes the walk visited.
type OrdersView struct {
	BidsVisited int          `json:"bids_visited"`
	AsksVisited int          `json:"asks_visited"`
	Bids        []OrderEvent `json:"bids"`
	Asks        []OrderEvent `json:"asks"`
}

// OrderEvent is one resting order. Sequence is what a cancel names.
type OrderEvent struct {
	Sequence      uint64 `json:"sequence,string"`
	TraderIndex   uint32 `json:"trader_index"`
	Type          string `json:"type"`
	Price         string `json:"price"`
	Size          string `json:"size"`
	Atoms         uint64 `json:"atoms,string"`
	LastValidSlot uint32 `json:"last_valid_slot"`
	Node          uint32 `json:"node"`
}

// WithOrders attaches the per-order view of book.
func (e BookEvent) WithOrders(book *orderbook.Book) BookEvent {
	h := book.Header
	e.Orders = &OrdersView{
		BidsVisited: book.Bids.TotalVisited,
		AsksVisited: book.Asks.TotalVisited,
		Bids:        orders(book.Bids.Orders, h.BaseDecimals, h.QuoteDecimals),
		Asks:        orders(book.Asks.Orders, h.BaseDecimals, h.QuoteDecimals),
	}
	return e
}

func orders(in []orderbook.RestingOrder, baseDec, quoteDec uint8) []OrderEvent {
	out := make([]OrderEvent, 0, len(in))
	for _, o := range in {
		out = append(out, OrderEvent{
			Sequence:      o.SequenceNumber,
			TraderIndex:   o.TraderIndex,
			Type:          o.OrderType.String(),
			Price:         o.UnitPrice(baseDec, quoteDec).String(),
			Size:          o.UnitSize(baseDec).String(),
			Atoms:         o.BaseAtoms,
			LastValidSlot: o.LastValidSlot,
			Node:          o.Offset,
		})
	}
	return out
}
