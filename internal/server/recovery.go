package server

import (
	"context"
	"fmt"
	"log"

	"github.com/dreamware/kvcluster/internal/cluster"
)

// BeginStreamingPrimary plays this server's role as S_b: stream its
// secondary set (the failed shard's primary copy) to the replacement at
// target, reconstructing the replacement's primary set, then report
// success or failure to the coordinator. While streaming, this server
// also answers live client traffic for those keys and forwards writes to
// target so the stream and the live updates converge.
func (s *Server) BeginStreamingPrimary(ctx context.Context, target cluster.Endpoint) {
	s.mu.Lock()
	s.streamTarget = target
	s.mu.Unlock()
	s.state.set(StateStreamingPrimary)

	err := s.Secondary.ForEach(func(key string, value []byte) error {
		return s.forwardPut(ctx, target, key, value, "primary")
	})
	if err == nil {
		err = s.sendSentinel(ctx, target)
	}

	// S_b streams A's primary set; A = PrimaryOf(s.ID) is the shard under
	// recovery, not s.ID itself.
	recovered := cluster.PrimaryOf(s.ID, s.N)

	if err != nil {
		log.Printf("server %d: streaming primary set to %s failed: %v", s.ID, target, err)
		s.state.set(StateNormal)
		s.notifyCoordinator(ctx, cluster.MsgUpdatePrimaryFailed, recovered)
		return
	}

	s.state.set(StateNormal)
	s.notifyCoordinator(ctx, cluster.MsgUpdatedPrimary, recovered)
}

// BeginStreamingSecondary plays this server's role as S_c: stream its
// primary set to the replacement, which stores it as its new secondary.
func (s *Server) BeginStreamingSecondary(ctx context.Context, target cluster.Endpoint) {
	s.state.set(StateStreamingSecondary)

	err := s.Primary.ForEach(func(key string, value []byte) error {
		return s.forwardPut(ctx, target, key, value, "secondary")
	})
	if err == nil {
		err = s.sendSentinel(ctx, target)
	}

	// S_c streams its primary set into the replacement's secondary set; A =
	// Secondary(s.ID) is the shard under recovery, not s.ID itself.
	recovered := cluster.Secondary(s.ID, s.N)

	if err != nil {
		log.Printf("server %d: streaming secondary set to %s failed: %v", s.ID, target, err)
		s.state.set(StateNormal)
		s.notifyCoordinator(ctx, cluster.MsgUpdateSecondaryFailed, recovered)
		return
	}

	s.state.set(StateNormal)
	s.notifyCoordinator(ctx, cluster.MsgUpdatedSecondary, recovered)
}

// SwitchPrimary handles SWITCH_PRIMARY: this server (S_b) stops accepting
// client writes for the shard it has been acting as interim primary for
// and returns to NORMAL, holding the shard only as its secondary copy
// again. The replacement is authoritative from this point on.
func (s *Server) SwitchPrimary() cluster.Status {
	s.state.set(StateSwitchingPrimary)
	// In-flight PUTs for the shard already serialize through the relevant
	// key's lock (see putAsInterimPrimary), so there is nothing queued to
	// flush here beyond letting those calls finish naturally.
	s.state.set(StateNormal)
	return cluster.StatusCtrlSuccess
}

func (s *Server) sendSentinel(ctx context.Context, target cluster.Endpoint) error {
	url := fmt.Sprintf("http://%s/peer", target.String())
	req := cluster.OpRequest{Op: cluster.OpNoop}
	var resp cluster.OpResponse
	return cluster.PostJSON(ctx, s.peerClient, url, req, &resp)
}

// notifyCoordinator reports on shard id's recovery progress. id is the
// shard position under recovery, which is not necessarily s.ID: S_b and
// S_c report on behalf of the shard they're streaming into, not
// themselves.
func (s *Server) notifyCoordinator(ctx context.Context, kind cluster.MsgKind, id int) {
	url := fmt.Sprintf("http://%s/control", s.coordEndpoint.String())
	req := cluster.MServerCtrlRequest{Kind: kind, ServerID: id}
	if err := cluster.PostJSON(ctx, s.coordClient, url, req, nil); err != nil {
		log.Printf("server %d: failed to notify coordinator of %s for shard %d: %v", s.ID, kind, id, err)
	}
}
