// Package store contains key/value Store implementations backing the context
// cache and session snapshots. The interface tolerates missing entries by
// returning (nil, nil) rather than an error so callers can treat absence and
// corruption identically: rebuild.
//
// Two backends ship with the engine: a process-local in-memory store for
// tests and prototypes, and a SQLite-backed store for durable single-node
// deployments. Swap in any other backend (Redis, object storage) by
// implementing the three-method interface.
package store
