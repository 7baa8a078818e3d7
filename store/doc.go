// Package store is the device-local durable store backed by a single
// sqlite file: global catalog entries, business-scoped price/stock
// overrides, the sync queue, and a settings cache for offline fallback.
//
// # Concurrency
//
// All mutations serialize on one writer lock; reads run concurrently.
// Each device owns its store exclusively, so cross-node conflicts are
// resolved entirely by the external ledger, never here.
//
// # Queue state machine
//
// pending -> syncing -> completed | failed, with failed -> pending on
// operator retry. Completed is terminal. Retry counters never exceed
// their cap, and items for the same entity are totally ordered by
// creation time.
package store
