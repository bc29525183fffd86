// Package orderbook decodes market account snapshots: the fixed header and
// the red-black trees of resting bids and asks stored in the dynamic region.
//
// Decoding is pure computation over an immutable byte slice. Tree walks are
// iterative and bounded, so a corrupted or cyclic tree still terminates and
// yields whatever orders could be decoded.
package orderbook
