package coordinator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dreamware/kvcluster/internal/cluster"
)

// ShardRecoveryState names where a shard position sits in the recovery
// protocol, from M's point of view. It mirrors the per-shard recovery
// state every server tracks for itself (internal/server), but the
// coordinator's version tracks the whole multi-party handoff rather than
// one server's local role in it.
type ShardRecoveryState int

const (
	// RecoveryNone: shard is ONLINE, nothing in flight.
	RecoveryNone ShardRecoveryState = iota
	// RecoverySpawning: replacement process being launched. HandleFailure
	// moves on to RecoveryStreaming as soon as the launch call returns; it
	// does not wait for the replacement's first heartbeat.
	RecoverySpawning
	// RecoveryStreaming: UPDATE_PRIMARY and UPDATE_SECONDARY both sent,
	// awaiting both UPDATED_* acks.
	RecoveryStreaming
	// RecoverySwitching: both streams acked; SWITCH_PRIMARY sent, awaiting
	// its reply.
	RecoverySwitching
	// RecoveryAborted: an UPDATE_*_FAILED reply was received; the shard is
	// left served indefinitely by its surviving replica.
	RecoveryAborted
)

func (s ShardRecoveryState) String() string {
	switch s {
	case RecoveryNone:
		return "NONE"
	case RecoverySpawning:
		return "SPAWNING"
	case RecoveryStreaming:
		return "STREAMING"
	case RecoverySwitching:
		return "SWITCHING"
	case RecoveryAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// ControlSender delivers a control command to a server's coordinator-ctrl
// port and returns its reply. It is satisfied by a *ControlClient in
// production and a fake in tests.
type ControlSender interface {
	Send(ctx context.Context, e cluster.Endpoint, cmd cluster.ServerCtrlRequest) (cluster.ServerCtrlResponse, error)
}

// RecoveryCoordinator drives the 10-step recovery protocol for individual
// shard positions. One instance owns the whole cluster; it tracks at most
// one in-flight recovery per shard position, per the cluster invariant
// that at most one server is in a non-NORMAL recovery state per shard.
type RecoveryCoordinator struct {
	registry *Registry
	launcher *Launcher
	control  ControlSender

	mu     sync.Mutex
	states map[int]ShardRecoveryState
}

// NewRecoveryCoordinator builds a coordinator bound to registry, using
// launcher to spawn replacements and control to talk to servers'
// coordinator-ctrl ports.
func NewRecoveryCoordinator(registry *Registry, launcher *Launcher, control ControlSender) *RecoveryCoordinator {
	return &RecoveryCoordinator{
		registry: registry,
		launcher: launcher,
		control:  control,
		states:   make(map[int]ShardRecoveryState),
	}
}

// State reports shard id's current recovery state.
func (rc *RecoveryCoordinator) State(id int) ShardRecoveryState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.states[id]
}

func (rc *RecoveryCoordinator) setState(id int, s ShardRecoveryState) {
	rc.mu.Lock()
	rc.states[id] = s
	rc.mu.Unlock()
}

// HandleFailure begins recovery for shard position a, the id the
// FailureDetector just reported missing. It is steps 1-4 of the protocol:
// mark FAILED, spawn a replacement, and send UPDATE_PRIMARY /
// UPDATE_SECONDARY to the two surviving neighbors.
func (rc *RecoveryCoordinator) HandleFailure(ctx context.Context, a int) {
	if rc.State(a) != RecoveryNone {
		return // already recovering or aborted; at most one in flight
	}

	rc.registry.SetStatus(a, cluster.ServerFailed)
	rc.setState(a, RecoverySpawning)

	b := rc.registry.SecondaryOf(a) // surviving secondary, holds A's primary set
	c := rc.registry.PrimaryOf(a)   // surviving primary, whose secondary A held

	failedNode, ok := rc.registry.Node(a)
	if !ok {
		return
	}

	if rc.launcher != nil {
		if err := rc.launcher.Launch(a, cluster.Endpoint{Host: failedNode.Host}, failedNode.ClientPort, failedNode.PeerPort, failedNode.CoordPort); err != nil {
			log.Printf("coordinator: failed to launch replacement for shard %d: %v", a, err)
			rc.setState(a, RecoveryAborted)
			return
		}
	}

	rc.registry.ReplaceNode(a, failedNode.Host, failedNode.ClientPort, failedNode.PeerPort, failedNode.CoordPort, b, time.Now())
	rc.setState(a, RecoveryStreaming)

	replacement, _ := rc.registry.Node(a)
	bNode, _ := rc.registry.Node(b)
	cNode, _ := rc.registry.Node(c)

	go rc.sendUpdate(ctx, b, bNode.CoordEndpoint(), cluster.ServerCtrlRequest{
		Cmd:  cluster.CmdUpdatePrimary,
		Host: replacement.Host,
		Port: replacement.PeerPort,
	})
	go rc.sendUpdate(ctx, c, cNode.CoordEndpoint(), cluster.ServerCtrlRequest{
		Cmd:  cluster.CmdUpdateSecondary,
		Host: replacement.Host,
		Port: replacement.PeerPort,
	})
}

func (rc *RecoveryCoordinator) sendUpdate(ctx context.Context, from int, e cluster.Endpoint, cmd cluster.ServerCtrlRequest) {
	if rc.control == nil {
		return
	}
	_, err := rc.control.Send(ctx, e, cmd)
	if err != nil {
		log.Printf("coordinator: control command %s to server %d failed: %v", cmd.Cmd, from, err)
	}
}

// HandleUpdatedPrimary processes step 5a: S_b finished streaming A's
// primary set into the replacement.
func (rc *RecoveryCoordinator) HandleUpdatedPrimary(ctx context.Context, a int) {
	rc.registry.SetAck(a, true)
	rc.maybeSwitch(ctx, a)
}

// HandleUpdatedSecondary processes step 5b: S_c finished streaming its
// primary set into the replacement's new secondary set.
func (rc *RecoveryCoordinator) HandleUpdatedSecondary(ctx context.Context, a int) {
	rc.registry.SetAck(a, false)
	rc.maybeSwitch(ctx, a)
}

// HandleUpdateFailed aborts recovery for shard a: per the decision to not
// auto-retry, the shard is left served indefinitely by its surviving
// replica.
func (rc *RecoveryCoordinator) HandleUpdateFailed(a int) {
	rc.setState(a, RecoveryAborted)
	log.Printf("coordinator: recovery for shard %d aborted; surviving replica continues serving", a)
}

// maybeSwitch checks whether both UPDATED_* acks have arrived for a and,
// if so, runs the switch: quiesce, SWITCH_PRIMARY, SET_SECONDARY, ONLINE.
func (rc *RecoveryCoordinator) maybeSwitch(ctx context.Context, a int) {
	if rc.State(a) != RecoveryStreaming {
		return
	}
	node, ok := rc.registry.Node(a)
	if !ok || !node.UpdatedPrimaryAck || !node.UpdatedSecondaryAck {
		return
	}

	rc.setState(a, RecoverySwitching)

	b := rc.registry.SecondaryOf(a)
	rc.registry.SetIgnoreWrites(a, true)
	rc.registry.SetIgnoreWrites(b, true)

	bNode, _ := rc.registry.Node(b)
	if rc.control != nil {
		resp, err := rc.control.Send(ctx, bNode.CoordEndpoint(), cluster.ServerCtrlRequest{Cmd: cluster.CmdSwitchPrimary})
		if err != nil || resp.Status != cluster.StatusCtrlSuccess {
			log.Printf("coordinator: SWITCH_PRIMARY for shard %d failed: %v", a, err)
			rc.setState(a, RecoveryAborted)
			rc.registry.SetIgnoreWrites(a, false)
			rc.registry.SetIgnoreWrites(b, false)
			return
		}
	}

	replacement, _ := rc.registry.Node(a)
	if rc.control != nil {
		_, _ = rc.control.Send(ctx, replacement.CoordEndpoint(), cluster.ServerCtrlRequest{
			Cmd:  cluster.CmdSetSecondary,
			Host: bNode.Host,
			Port: bNode.PeerPort,
		})
	}

	rc.registry.ClearInterimPrimary(a)
	rc.registry.SetIgnoreWrites(a, false)
	rc.registry.SetIgnoreWrites(b, false)
	rc.setState(a, RecoveryNone)
	log.Printf("coordinator: shard %d recovered, back ONLINE", a)
}
