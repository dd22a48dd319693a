// Package cache defines the in-process store that backs the asset mirror.
// Entries are keyed by request path and are immutable once inserted: a read
// either returns the stored entry or nothing, and staleness is decided by the
// caller. The store performs no background sweeping and has no capacity
// bound; memory grows with the set of distinct paths fetched within one TTL
// window. Eviction is conditional (Evict only removes the exact entry the
// caller observed) so a stale read racing with a fresh insert cannot drop the
// newer payload.
package cache
