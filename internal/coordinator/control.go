package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/dreamware/kvcluster/internal/cluster"
)

// ControlClient is the coordinator's outbound side of the coordinator-ctrl
// link: one persistent *http.Client, used to deliver ServerCtrlRequest
// commands and read back their replies. It implements ControlSender.
type ControlClient struct {
	http *http.Client
	mu   sync.Mutex
}

// NewControlClient builds a control client around a long-lived HTTP
// client, matching the "outbound control connection" vocabulary.
func NewControlClient(httpClient *http.Client) *ControlClient {
	return &ControlClient{http: httpClient}
}

// Send posts cmd to e's coordinator-ctrl port and decodes the reply.
// Calls are serialized: a single writer per outbound socket.
func (c *ControlClient) Send(ctx context.Context, e cluster.Endpoint, cmd cluster.ServerCtrlRequest) (cluster.ServerCtrlResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var resp cluster.ServerCtrlResponse
	url := fmt.Sprintf("http://%s/control", e.String())
	err := cluster.PostJSON(ctx, c.http, url, cmd, &resp)
	return resp, err
}
