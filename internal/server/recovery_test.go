package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/kvcluster/internal/cluster"
)

// recordingPeer captures every OpRequest it receives, replying success to
// all of them, so a test can assert on what was streamed and in what
// target.
type recordingPeer struct {
	mu   sync.Mutex
	reqs []cluster.OpRequest
}

func (p *recordingPeer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cluster.OpRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		p.mu.Lock()
		p.reqs = append(p.reqs, req)
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cluster.OpResponse{Status: cluster.StatusSuccess})
	}
}

func (p *recordingPeer) ops() []cluster.OpKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]cluster.OpKind, len(p.reqs))
	for i, r := range p.reqs {
		out[i] = r.Op
	}
	return out
}

// controlRecorder captures MServerCtrlRequest messages sent to a fake
// coordinator control endpoint.
type controlRecorder struct {
	mu   sync.Mutex
	msgs []cluster.MServerCtrlRequest
}

func (c *controlRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg cluster.MServerCtrlRequest
		_ = json.NewDecoder(r.Body).Decode(&msg)
		c.mu.Lock()
		c.msgs = append(c.msgs, msg)
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cluster.ServerCtrlResponse{Status: cluster.StatusCtrlSuccess})
	}
}

func (c *controlRecorder) kinds() []cluster.MsgKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cluster.MsgKind, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Kind
	}
	return out
}

func TestBeginStreamingPrimaryStreamsThenNotifiesCoordinator(t *testing.T) {
	peer := &recordingPeer{}
	peerSrv := httptest.NewServer(peer.handler())
	defer peerSrv.Close()

	ctrl := &controlRecorder{}
	ctrlSrv := httptest.NewServer(ctrl.handler())
	defer ctrlSrv.Close()

	s := newTestServer(t, 1, 3, "")
	s.coordEndpoint = endpointFor(t, ctrlSrv.URL)
	require.NoError(t, s.Secondary.Put("k1", []byte("v1")))
	require.NoError(t, s.Secondary.Put("k2", []byte("v2")))

	s.BeginStreamingPrimary(context.Background(), endpointFor(t, peerSrv.URL))

	ops := peer.ops()
	require.Len(t, ops, 3) // 2 PUTs + trailing NOOP sentinel
	assert.Equal(t, cluster.OpNoop, ops[len(ops)-1])

	require.Eventually(t, func() bool {
		return len(ctrl.kinds()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, cluster.MsgUpdatedPrimary, ctrl.kinds()[0])
	assert.Equal(t, 0, ctrl.msgs[0].ServerID) // s.ID=1 streams on behalf of shard PrimaryOf(1,3)=0
	assert.Equal(t, StateNormal, s.State())
}

func TestBeginStreamingPrimaryReportsFailureOnForwardError(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	ctrl := &controlRecorder{}
	ctrlSrv := httptest.NewServer(ctrl.handler())
	defer ctrlSrv.Close()

	s := newTestServer(t, 1, 3, "")
	s.coordEndpoint = endpointFor(t, ctrlSrv.URL)
	require.NoError(t, s.Secondary.Put("k1", []byte("v1")))

	s.BeginStreamingPrimary(context.Background(), endpointFor(t, failing.URL))

	require.Eventually(t, func() bool {
		return len(ctrl.kinds()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, cluster.MsgUpdatePrimaryFailed, ctrl.kinds()[0])
	assert.Equal(t, 0, ctrl.msgs[0].ServerID)
	assert.Equal(t, StateNormal, s.State())
}

func TestBeginStreamingSecondaryStreamsPrimarySet(t *testing.T) {
	peer := &recordingPeer{}
	peerSrv := httptest.NewServer(peer.handler())
	defer peerSrv.Close()

	ctrl := &controlRecorder{}
	ctrlSrv := httptest.NewServer(ctrl.handler())
	defer ctrlSrv.Close()

	s := newTestServer(t, 2, 3, "")
	s.coordEndpoint = endpointFor(t, ctrlSrv.URL)
	require.NoError(t, s.Primary.Put("k1", []byte("v1")))

	s.BeginStreamingSecondary(context.Background(), endpointFor(t, peerSrv.URL))

	require.Eventually(t, func() bool {
		return len(ctrl.kinds()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, cluster.MsgUpdatedSecondary, ctrl.kinds()[0])
	assert.Equal(t, 0, ctrl.msgs[0].ServerID) // s.ID=2 streams on behalf of shard Secondary(2,3)=0
}
