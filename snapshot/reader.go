package snapshot

import "manifest/domain/orderbook"

// Book decodes the snapshot with its own slot as the expiry reference.
func (s Snapshot) Book(limit int) (*orderbook.Book, error) {
	return orderbook.Decode(s.Data, s.Slot, limit)
}
