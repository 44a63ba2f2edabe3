package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/dreamware/kvcluster/internal/cluster"
)

// ServerNode is the coordinator's view of one KV server: where it lives,
// whether it's reachable, and the one-shot recovery bookkeeping the
// switch protocol needs.
type ServerNode struct {
	ID int

	Host          string
	ClientPort    int
	PeerPort      int
	CoordPort     int
	LastHeartbeat time.Time
	Status        cluster.ServerStatus

	// UpdatedPrimaryAck and UpdatedSecondaryAck are one-shot flags set when
	// the corresponding UPDATED_* message arrives for the shard this node
	// is currently recovering into. They're reset when a new recovery for
	// this shard position begins.
	UpdatedPrimaryAck   bool
	UpdatedSecondaryAck bool

	// IgnoreWrites quiesces locate routing for this node's shard while the
	// switch step is in flight.
	IgnoreWrites bool

	// InterimPrimary, when non-nil, names the shard position currently
	// serving this node's keys in its place (its secondary holder, acting
	// as primary during STREAMING_PRIMARY). Locate routes here instead of
	// to this node while it is set.
	InterimPrimary *int
}

// ClientEndpoint returns the address a client dials for GET/PUT.
func (n ServerNode) ClientEndpoint() cluster.Endpoint {
	return cluster.Endpoint{Host: n.Host, Port: n.ClientPort}
}

// PeerEndpoint returns the address a fellow server dials for replication.
func (n ServerNode) PeerEndpoint() cluster.Endpoint {
	return cluster.Endpoint{Host: n.Host, Port: n.PeerPort}
}

// CoordEndpoint returns the address M dials to send this node control
// commands.
func (n ServerNode) CoordEndpoint() cluster.Endpoint {
	return cluster.Endpoint{Host: n.Host, Port: n.CoordPort}
}

// Registry is the live server_nodes table plus the static placement rules
// derived from N. It is safe for concurrent use: every method takes the
// registry's internal RWMutex.
type Registry struct {
	mu      sync.RWMutex
	nodes   map[int]*ServerNode
	numNode int
}

// NewRegistry builds a registry for a fixed cluster of n servers, all
// initially ONLINE as of now.
func NewRegistry(entries []ServerNode, now time.Time) *Registry {
	r := &Registry{nodes: make(map[int]*ServerNode, len(entries)), numNode: len(entries)}
	for _, e := range entries {
		e.Status = cluster.ServerOnline
		e.LastHeartbeat = now
		n := e
		r.nodes[n.ID] = &n
	}
	return r
}

// N returns the fixed cluster size.
func (r *Registry) N() int {
	return r.numNode
}

// Node returns a copy of the node at shard position id, or false if id is
// out of range.
func (r *Registry) Node(id int) (ServerNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	if !ok {
		return ServerNode{}, false
	}
	return *n, true
}

// All returns a snapshot of every node, ordered by id.
func (r *Registry) All() []ServerNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServerNode, r.numNode)
	for i := 0; i < r.numNode; i++ {
		out[i] = *r.nodes[i]
	}
	return out
}

// OwnerOf returns the shard position that owns key.
func (r *Registry) OwnerOf(key string) int {
	return cluster.Owner(key, r.numNode)
}

// SecondaryOf returns the shard position holding shard i's backup.
func (r *Registry) SecondaryOf(i int) int {
	return cluster.Secondary(i, r.numNode)
}

// PrimaryOf returns the shard position whose secondary copy shard i holds.
func (r *Registry) PrimaryOf(i int) int {
	return cluster.PrimaryOf(i, r.numNode)
}

// Touch records a heartbeat from server id at time t.
func (r *Registry) Touch(id int, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.LastHeartbeat = t
	}
}

// SetStatus transitions node id to the given status.
func (r *Registry) SetStatus(id int, status cluster.ServerStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.Status = status
	}
}

// ReplaceNode swaps the endpoint of node id for a freshly spawned
// replacement, resetting its ack flags and marking it RECOVERING. interim
// names the shard position that serves id's keys until the switch
// completes (its secondary holder, acting as interim primary).
func (r *Registry) ReplaceNode(id int, host string, clientPort, peerPort, coordPort, interim int, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return
	}
	n.Host = host
	n.ClientPort = clientPort
	n.PeerPort = peerPort
	n.CoordPort = coordPort
	n.Status = cluster.ServerRecovering
	n.LastHeartbeat = now
	n.UpdatedPrimaryAck = false
	n.UpdatedSecondaryAck = false
	interimCopy := interim
	n.InterimPrimary = &interimCopy
}

// ClearInterimPrimary marks node id as serving its own shard again, once
// the switch step has completed.
func (r *Registry) ClearInterimPrimary(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.InterimPrimary = nil
		n.Status = cluster.ServerOnline
	}
}

// SetAck records that UPDATED_PRIMARY or UPDATED_SECONDARY arrived for
// node id.
func (r *Registry) SetAck(id int, primary bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return
	}
	if primary {
		n.UpdatedPrimaryAck = true
	} else {
		n.UpdatedSecondaryAck = true
	}
}

// SetIgnoreWrites toggles the quiesce flag used during the switch step.
func (r *Registry) SetIgnoreWrites(id int, ignore bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.IgnoreWrites = ignore
	}
}

// Locate answers the client-facing locate surface: the endpoint of the
// server currently authoritative for key. It never returns a FAILED
// server, and never returns a node with ignore_writes set — callers
// should retry shortly in that case.
func (r *Registry) Locate(key string) (cluster.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner := cluster.Owner(key, r.numNode)
	n, ok := r.nodes[owner]
	if !ok {
		return cluster.Endpoint{}, fmt.Errorf("coordinator: no node for shard %d", owner)
	}
	if n.IgnoreWrites {
		return cluster.Endpoint{}, fmt.Errorf("coordinator: shard %d is unavailable", owner)
	}
	if n.InterimPrimary != nil {
		interim, ok := r.nodes[*n.InterimPrimary]
		if !ok || interim.Status == cluster.ServerFailed || interim.IgnoreWrites {
			return cluster.Endpoint{}, fmt.Errorf("coordinator: shard %d is unavailable", owner)
		}
		return interim.ClientEndpoint(), nil
	}
	if n.Status == cluster.ServerFailed {
		return cluster.Endpoint{}, fmt.Errorf("coordinator: shard %d is unavailable", owner)
	}
	return n.ClientEndpoint(), nil
}
