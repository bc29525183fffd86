// Package snapshot persists raw market account data keyed by market and
// slot, so a book can be decoded again later without reaching a ledger.
//
// Snapshots are immutable once written. The store keeps any number per
// market; Prune trims the oldest.
package snapshot
