// Package service drives a market across the base ledger and the rollup.
//
// MarketService is the only write path. Every transaction it sends is
// journaled first, then submitted, then recorded in the outbox for the
// broadcaster. Session state is passed in and returned updated; the service
// itself holds no per-market state.
package service
