package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dreamware/kvcluster/internal/cluster"
)

// RunHeartbeats sends HEARTBEAT(self_id) to the coordinator once per
// interval until ctx is canceled. It runs in its own goroutine with its
// own HTTP client so it never stalls behind client or peer I/O.
func (s *Server) RunHeartbeats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sendHeartbeat(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) sendHeartbeat(ctx context.Context) {
	url := fmt.Sprintf("http://%s/control", s.coordEndpoint.String())
	req := cluster.MServerCtrlRequest{Kind: cluster.MsgHeartbeat, ServerID: s.ID}
	if err := cluster.PostJSON(ctx, s.coordClient, url, req, nil); err != nil {
		log.Printf("server %d: heartbeat failed: %v", s.ID, err)
	}
}
