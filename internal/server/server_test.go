package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/kvcluster/internal/cluster"
)

func endpointFor(t *testing.T, rawURL string) cluster.Endpoint {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return cluster.Endpoint{Host: u.Hostname(), Port: port}
}

func alwaysSuccessPeer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cluster.OpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cluster.OpResponse{Status: cluster.StatusSuccess})
	}))
}

func alwaysFailPeer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
}

func newTestServer(t *testing.T, id, n int, secondaryPeer string) *Server {
	var peerEndpoint cluster.Endpoint
	if secondaryPeer != "" {
		peerEndpoint = endpointFor(t, secondaryPeer)
	}
	return New(id, n, cluster.Endpoint{Host: "localhost", Port: 0}, peerEndpoint, http.DefaultClient, http.DefaultClient)
}

func TestServerPutAsPrimarySucceedsWhenForwardSucceeds(t *testing.T) {
	peer := alwaysSuccessPeer(t)
	defer peer.Close()

	owner := cluster.Owner("k1", 3)
	s := newTestServer(t, owner, 3, peer.URL)

	status := s.Put(context.Background(), "k1", []byte("v1"))
	assert.Equal(t, cluster.StatusSuccess, status)

	value, getStatus := s.Get("k1")
	assert.Equal(t, cluster.StatusSuccess, getStatus)
	assert.Equal(t, []byte("v1"), value)
}

func TestServerPutRollsBackWhenForwardFails(t *testing.T) {
	peer := alwaysFailPeer()
	defer peer.Close()

	owner := cluster.Owner("k1", 3)
	s := newTestServer(t, owner, 3, peer.URL)
	status := s.Put(context.Background(), "k1", []byte("v1"))
	assert.Equal(t, cluster.StatusServerFailure, status)

	_, getStatus := s.Get("k1")
	assert.Equal(t, cluster.StatusKeyNotFound, getStatus, "rolled-back key must not be visible")
}

func TestServerGetRejectsNonOwnerInNormalState(t *testing.T) {
	s := newTestServer(t, 0, 3, "")
	// Force a key NOT owned by shard 0 by trying several keys.
	var nonOwnedKey string
	for _, k := range []string{"a", "b", "c", "d", "e", "f"} {
		if cluster.Owner(k, 3) != 0 {
			nonOwnedKey = k
			break
		}
	}
	require.NotEmpty(t, nonOwnedKey)

	_, status := s.Get(nonOwnedKey)
	assert.Equal(t, cluster.StatusServerFailure, status)
}

func TestServerGetServesSecondaryDuringStreamingPrimary(t *testing.T) {
	s := newTestServer(t, 1, 3, "")
	// Secondary.ShardID = primary_of(1) = 0, and Owner("k1", 3) = 0.
	require.NoError(t, s.Secondary.Put("k1", []byte("backup-value")))
	s.state.set(StateStreamingPrimary)

	value, status := s.Get("k1")
	assert.Equal(t, cluster.StatusSuccess, status)
	assert.Equal(t, []byte("backup-value"), value)
}

func TestServerPeerPutWritesToPrimaryWhenTargeted(t *testing.T) {
	s := newTestServer(t, 0, 3, "")
	status := s.PeerPut("k1", []byte("v1"), "primary")
	assert.Equal(t, cluster.StatusSuccess, status)

	value, err := s.Primary.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)
}

func TestServerPeerPutWritesToSecondaryByDefault(t *testing.T) {
	s := newTestServer(t, 0, 3, "")
	status := s.PeerPut("k1", []byte("v1"), "secondary")
	assert.Equal(t, cluster.StatusSuccess, status)

	value, err := s.Secondary.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)
}

func TestServerSwitchPrimaryReturnsToNormal(t *testing.T) {
	s := newTestServer(t, 0, 3, "")
	s.state.set(StateStreamingPrimary)

	status := s.SwitchPrimary()
	assert.Equal(t, cluster.StatusCtrlSuccess, status)
	assert.Equal(t, StateNormal, s.State())
}

func TestServerPutOversizeValueReturnsServerFailure(t *testing.T) {
	s := newTestServer(t, 0, 3, "")
	big := make([]byte, cluster.MaxValueLen+1)
	status := s.Put(context.Background(), "k1", big)
	assert.Equal(t, cluster.StatusServerFailure, status)
}
