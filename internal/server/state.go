package server

import "sync"

// RecoveryState is this server's own role in the recovery protocol, a
// typed enum rather than a set of booleans so illegal combinations (e.g.
// "streaming and switching at once") cannot be represented.
type RecoveryState int

const (
	// StateNormal: serving as primary for own shard, secondary for the
	// predecessor's shard. The steady state.
	StateNormal RecoveryState = iota
	// StateStreamingPrimary: this server is S_b, streaming its secondary
	// set (= the failed shard's primary) to the replacement S_a', while
	// also acting as interim primary for those keys.
	StateStreamingPrimary
	// StateStreamingSecondary: this server is S_c, streaming its primary
	// set to the replacement as its new secondary.
	StateStreamingSecondary
	// StateSwitchingPrimary: this server is S_b, flushing in-flight PUTs
	// to S_a' and refusing new client writes for the shard being handed
	// off.
	StateSwitchingPrimary
)

func (s RecoveryState) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateStreamingPrimary:
		return "STREAMING_PRIMARY"
	case StateStreamingSecondary:
		return "STREAMING_SECONDARY"
	case StateSwitchingPrimary:
		return "SWITCHING_PRIMARY"
	default:
		return "UNKNOWN"
	}
}

// stateHolder guards the single recovery-state value every client and
// peer handler consults before deciding how to treat a request.
type stateHolder struct {
	mu    sync.RWMutex
	value RecoveryState
}

func (h *stateHolder) get() RecoveryState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value
}

func (h *stateHolder) set(s RecoveryState) {
	h.mu.Lock()
	h.value = s
	h.mu.Unlock()
}
