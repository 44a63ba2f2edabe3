package coordinator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/kvcluster/internal/cluster"
)

func TestControlClientSendDecodesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/control", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"CTRLREQ_SUCCESS"}`))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	client := NewControlClient(cluster.LongLivedClient(0))

	resp, err := client.Send(context.Background(), cluster.Endpoint{Host: u.Hostname(), Port: port}, cluster.ServerCtrlRequest{Cmd: cluster.CmdSwitchPrimary})
	require.NoError(t, err)
	assert.Equal(t, cluster.StatusCtrlSuccess, resp.Status)
}
