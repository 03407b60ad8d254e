// Package repositories implements SQLite persistence for receipts and the auth session.
//
// Key Implementations:
//   - [KVStore] : string key-value table backing [auth.Store] (tokens and the pending authorization)
//   - [ReceiptRepository] : saved receipts with soft deletes and time-range filtering
//
// Sequence numbers provide stable, human-readable ordering (receipt #7) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
