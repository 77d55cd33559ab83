// Package storage persists the SDK's local state: per-identity streak
// records, in-flight pending payments, and the destination resolver's
// positive cache and failure set.
//
// The Store interface keeps the engine and resolver testable without a real
// backend. BoltStore is the durable implementation (one JSON document per
// record, written atomically inside a bbolt transaction); MemoryStore backs
// tests and zero-configuration use.
package storage
