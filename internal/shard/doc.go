// Package shard implements Set, the replica set a KV server holds for one
// shard position: either its own primary set (the keys it owns) or its
// secondary set (the backup copy of its predecessor's primary set, per the
// ring relation secondary(i) = i+1 mod N).
//
// Set wraps a storage.Store with the per-key locking discipline the server
// package's PUT path depends on, plus operation counters readable through
// Snapshot.
package shard
