// Package cluster provides the shared vocabulary of the KV cluster: the
// key and value size limits, the placement functions that decide which
// server owns which shard, the wire message types exchanged between client,
// coordinator and server, and the small HTTP transport helpers every other
// package builds on.
//
// Nothing in this package holds mutable cluster state — that lives in
// internal/coordinator (the server_nodes table) and internal/server (a
// server's own primary/secondary sets). This package only defines the
// shapes those tables are made of and the functions pure enough to be
// called from anywhere: Owner, Secondary, PrimaryOf.
//
// Wire encoding: messages are typed request/response values with a known
// encoding, realized here as JSON bodies over plain HTTP, one listener per
// logical port (client, peer, coordinator-control) per server, matching the
// three ports every server node exposes. The status codes in OpResponse and
// ServerCtrlResponse are the authoritative result; HTTP status is only a
// transport-level hint and callers should not need to inspect it.
package cluster
