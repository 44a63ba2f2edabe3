// Package coordinator implements M: the single process that places shards
// across a fixed set of N servers, tracks their liveness via heartbeats,
// and drives the recovery state machine when one crashes.
//
// Four pieces cooperate:
//   - registry.go: the live server_nodes table (host, three ports,
//     last-heartbeat, status, ack flags, ignore_writes) plus the placement
//     functions from internal/cluster.
//   - detector.go: a ticker comparing now-last_heartbeat against a timeout,
//     reporting newly-failed servers to whoever is listening.
//   - recovery.go: the per-shard recovery state machine, one explicit
//     state value per shard position, driven by detector events and by
//     UPDATED_*/FAILED_* messages arriving from servers.
//   - launcher.go: spawns a replacement server process, locally or over
//     ssh depending on the configured host.
//
// The server table and recovery state are mutated from several goroutines
// (api.go's HTTP handlers, the detector's callback, and the recovery
// coordinator's own send goroutines); there is no single event loop.
// Registry and RecoveryCoordinator each guard their state with an internal
// mutex, so every method is safe for concurrent use.
package coordinator
