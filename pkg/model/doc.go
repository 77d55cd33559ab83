// Package model defines the shared wire and domain types used across the SDK:
// wallet RPC payloads (info, invoices, transactions), streak bookkeeping
// records, pending payment state, and resolver cache entries.
//
// Types in this package are plain data carriers with JSON tags; all
// persistence encodes them as whole JSON documents so that record writes stay
// atomic.
package model
