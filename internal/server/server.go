package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/dreamware/kvcluster/internal/cluster"
	"github.com/dreamware/kvcluster/internal/shard"
)

// Server is one KV server: its own shard position's primary and secondary
// sets, the endpoints of its replica neighbors, and the single recovery
// state governing how client and peer traffic is admitted.
type Server struct {
	ID int
	N  int

	Primary   *shard.Set
	Secondary *shard.Set

	state stateHolder

	mu            sync.Mutex
	secondaryPeer cluster.Endpoint // normal replication target for Primary's PUTs
	streamTarget  cluster.Endpoint // replacement receiving a reconstructed set during STREAMING_*
	coordEndpoint cluster.Endpoint

	peerClient  *http.Client
	coordClient *http.Client
}

// New builds a server for shard position id in a cluster of n, replicating
// its primary set to secondaryPeer under normal operation.
func New(id, n int, coordEndpoint, secondaryPeer cluster.Endpoint, peerClient, coordClient *http.Client) *Server {
	return &Server{
		ID:            id,
		N:             n,
		Primary:       shard.NewSet(id, shard.RolePrimary),
		Secondary:     shard.NewSet((id-1+n)%n, shard.RoleSecondary),
		secondaryPeer: secondaryPeer,
		coordEndpoint: coordEndpoint,
		peerClient:    peerClient,
		coordClient:   coordClient,
	}
}

// State reports the current recovery state.
func (s *Server) State() RecoveryState {
	return s.state.get()
}

// SetSecondaryPeer updates the replication target for Primary's PUTs
// (SET_SECONDARY).
func (s *Server) SetSecondaryPeer(e cluster.Endpoint) {
	s.mu.Lock()
	s.secondaryPeer = e
	s.mu.Unlock()
}

// Get serves a client GET. owner(key)==self is the ordinary admission
// rule; during STREAMING_PRIMARY this server also answers for the failed
// shard's keys out of its secondary set, which is acting as interim
// primary.
func (s *Server) Get(key string) ([]byte, cluster.Status) {
	owner := cluster.Owner(key, s.N)

	if owner == s.ID {
		value, err := s.Primary.Get(key)
		return replyFromGet(value, err)
	}
	if s.state.get() == StateStreamingPrimary && owner == s.Secondary.ShardID {
		value, err := s.Secondary.Get(key)
		return replyFromGet(value, err)
	}
	return nil, cluster.StatusServerFailure
}

func replyFromGet(value []byte, err error) ([]byte, cluster.Status) {
	if err != nil {
		return nil, cluster.StatusKeyNotFound
	}
	return value, cluster.StatusSuccess
}

// Put serves a client PUT. It holds the key's lock across the local
// insert and the synchronous forward to the secondary replica; if the
// forward fails, the local write is rolled back (the previous value is
// restored, or the key removed if it was new) and SERVER_FAILURE is
// returned, so a client never observes a write the secondary doesn't also
// have.
func (s *Server) Put(ctx context.Context, key string, value []byte) cluster.Status {
	if err := cluster.ValidateValue(value); err != nil {
		return cluster.StatusServerFailure
	}

	owner := cluster.Owner(key, s.N)
	switch {
	case owner == s.ID:
		return s.putAsPrimary(ctx, key, value)
	case s.state.get() == StateStreamingPrimary && owner == s.Secondary.ShardID:
		return s.putAsInterimPrimary(ctx, key, value)
	case s.state.get() == StateSwitchingPrimary && owner == s.Secondary.ShardID:
		return cluster.StatusServerFailure
	default:
		return cluster.StatusServerFailure
	}
}

func (s *Server) putAsPrimary(ctx context.Context, key string, value []byte) cluster.Status {
	s.Primary.Lock(key)
	defer s.Primary.Unlock(key)

	prev, prevErr := s.Primary.Get(key)
	if err := s.Primary.Put(key, value); err != nil {
		return cluster.StatusOutOfSpace
	}

	s.mu.Lock()
	target := s.secondaryPeer
	s.mu.Unlock()

	if err := s.forwardPut(ctx, target, key, value, "secondary"); err != nil {
		log.Printf("server %d: forward of %q to secondary failed, rolling back: %v", s.ID, key, err)
		if prevErr == nil {
			_ = s.Primary.Put(key, prev)
		} else {
			_ = s.Primary.Delete(key)
		}
		return cluster.StatusServerFailure
	}
	return cluster.StatusSuccess
}

// putAsInterimPrimary handles a client PUT for the failed shard's keys
// while this server streams its secondary set to the replacement: the
// write lands in the (acting-as-primary) secondary set and is forwarded
// to the replacement so the live stream and the in-flight write converge.
func (s *Server) putAsInterimPrimary(ctx context.Context, key string, value []byte) cluster.Status {
	s.Secondary.Lock(key)
	defer s.Secondary.Unlock(key)

	prev, prevErr := s.Secondary.Get(key)
	if err := s.Secondary.Put(key, value); err != nil {
		return cluster.StatusOutOfSpace
	}

	s.mu.Lock()
	target := s.streamTarget
	s.mu.Unlock()

	if err := s.forwardPut(ctx, target, key, value, "primary"); err != nil {
		log.Printf("server %d: forward of %q to replacement %s failed, rolling back: %v", s.ID, key, target, err)
		if prevErr == nil {
			_ = s.Secondary.Put(key, prev)
		} else {
			_ = s.Secondary.Delete(key)
		}
		return cluster.StatusServerFailure
	}
	return cluster.StatusSuccess
}

func (s *Server) forwardPut(ctx context.Context, e cluster.Endpoint, key string, value []byte, target string) error {
	if e.Host == "" {
		return fmt.Errorf("server %d: no forwarding target configured", s.ID)
	}
	url := fmt.Sprintf("http://%s/peer", e.String())
	req := cluster.OpRequest{Op: cluster.OpPut, Key: key, Value: value, Target: target}
	var resp cluster.OpResponse
	if err := cluster.PostJSON(ctx, s.peerClient, url, req, &resp); err != nil {
		return err
	}
	if resp.Status != cluster.StatusSuccess {
		return fmt.Errorf("peer replied %s", resp.Status)
	}
	return nil
}

// PeerPut handles an inbound PUT from a neighbor: into Primary when
// target=="primary" (this server is receiving a reconstructed primary
// set as a replacement, or its live extension), into Secondary otherwise.
func (s *Server) PeerPut(key string, value []byte, target string) cluster.Status {
	var set *shard.Set
	if target == "primary" {
		set = s.Primary
	} else {
		set = s.Secondary
	}

	set.Lock(key)
	defer set.Unlock(key)

	if err := set.Put(key, value); err != nil {
		return cluster.StatusOutOfSpace
	}
	return cluster.StatusSuccess
}
