// Package storage provides the concurrent in-memory hash table each server
// uses for its primary and secondary key sets.
//
// The hash table itself is treated as a black box — insert, lookup, remove,
// iterate, each internally thread-safe — with per-key locking layered on
// top as the one discipline the rest of the system depends on (a primary
// must hold a single key's lock across its synchronous forward to the
// secondary without blocking unrelated keys). That split is reflected in
// two types here: Store (the black box) and KeyLocker (the per-key lock
// table sitting above it).
package storage
