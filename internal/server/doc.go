// Package server implements S_i: a KV server holding one shard position's
// primary set (the keys it owns) and secondary set (the backup of its
// predecessor's primary set), exposed over three HTTP listeners — client,
// peer, and coordinator-control — plus a heartbeat goroutine that never
// blocks behind client I/O.
//
// The recovery state machine (state.go) governs how the client and peer
// handlers behave outside NORMAL: STREAMING_PRIMARY and STREAMING_SECONDARY
// stream a reconstructed key set to a replacement while still serving live
// traffic, and SWITCHING_PRIMARY quiesces a shard for the final handoff.
package server
