package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreamware/kvcluster/internal/cluster"
	"github.com/dreamware/kvcluster/internal/httpmw"
)

// ClientRouter builds the gin engine for the client-facing port: NOOP,
// GET, PUT.
func (s *Server) ClientRouter() *gin.Engine {
	r := gin.New()
	r.Use(httpmw.Logger(), httpmw.Recovery())
	r.POST("/op", s.handleClientOp)
	return r
}

// PeerRouter builds the gin engine for the peer port: PUT (secondary-set
// write, or primary-set write during a recovery stream) and NOOP (the
// end-of-stream sentinel).
func (s *Server) PeerRouter() *gin.Engine {
	r := gin.New()
	r.Use(httpmw.Logger(), httpmw.Recovery())
	r.POST("/peer", s.handlePeerOp)
	return r
}

// CtrlRouter builds the gin engine for the coordinator-control port:
// SET_SECONDARY, UPDATE_PRIMARY, UPDATE_SECONDARY, SWITCH_PRIMARY,
// SHUTDOWN.
func (s *Server) CtrlRouter(shutdown func()) *gin.Engine {
	r := gin.New()
	r.Use(httpmw.Logger(), httpmw.Recovery())
	r.POST("/control", func(c *gin.Context) { s.handleControl(c, shutdown) })
	return r
}

func (s *Server) handleClientOp(c *gin.Context) {
	var req cluster.OpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, cluster.OpResponse{Status: cluster.StatusServerFailure})
		return
	}

	switch req.Op {
	case cluster.OpNoop:
		c.JSON(http.StatusOK, cluster.OpResponse{Status: cluster.StatusSuccess})
	case cluster.OpGet:
		value, status := s.Get(req.Key)
		c.JSON(http.StatusOK, cluster.OpResponse{Status: status, Value: value})
	case cluster.OpPut:
		if err := cluster.ValidateKey(req.Key); err != nil {
			c.JSON(http.StatusOK, cluster.OpResponse{Status: cluster.StatusServerFailure})
			return
		}
		status := s.Put(c.Request.Context(), req.Key, req.Value)
		c.JSON(http.StatusOK, cluster.OpResponse{Status: status})
	default:
		c.JSON(http.StatusBadRequest, cluster.OpResponse{Status: cluster.StatusServerFailure})
	}
}

func (s *Server) handlePeerOp(c *gin.Context) {
	var req cluster.OpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, cluster.OpResponse{Status: cluster.StatusServerFailure})
		return
	}

	switch req.Op {
	case cluster.OpNoop:
		// End-of-stream sentinel; nothing to do beyond acknowledging, the
		// streaming goroutine on the sender's side observes it as a
		// successful forward and finishes its loop.
		c.JSON(http.StatusOK, cluster.OpResponse{Status: cluster.StatusSuccess})
	case cluster.OpPut:
		status := s.PeerPut(req.Key, req.Value, req.Target)
		c.JSON(http.StatusOK, cluster.OpResponse{Status: status})
	default:
		c.JSON(http.StatusBadRequest, cluster.OpResponse{Status: cluster.StatusServerFailure})
	}
}

func (s *Server) handleControl(c *gin.Context, shutdown func()) {
	var req cluster.ServerCtrlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, cluster.ServerCtrlResponse{Status: cluster.StatusCtrlFailure})
		return
	}

	switch req.Cmd {
	case cluster.CmdSetSecondary:
		s.SetSecondaryPeer(cluster.Endpoint{Host: req.Host, Port: req.Port})
		c.JSON(http.StatusOK, cluster.ServerCtrlResponse{Status: cluster.StatusCtrlSuccess})
	case cluster.CmdUpdatePrimary:
		target := cluster.Endpoint{Host: req.Host, Port: req.Port}
		// Streaming outlives this request; it must not inherit a context
		// that gin cancels the moment this handler returns.
		go s.BeginStreamingPrimary(context.Background(), target)
		c.JSON(http.StatusOK, cluster.ServerCtrlResponse{Status: cluster.StatusCtrlSuccess})
	case cluster.CmdUpdateSecondary:
		target := cluster.Endpoint{Host: req.Host, Port: req.Port}
		go s.BeginStreamingSecondary(context.Background(), target)
		c.JSON(http.StatusOK, cluster.ServerCtrlResponse{Status: cluster.StatusCtrlSuccess})
	case cluster.CmdSwitchPrimary:
		c.JSON(http.StatusOK, cluster.ServerCtrlResponse{Status: s.SwitchPrimary()})
	case cluster.CmdShutdown:
		c.JSON(http.StatusOK, cluster.ServerCtrlResponse{Status: cluster.StatusCtrlSuccess})
		if shutdown != nil {
			go shutdown()
		}
	default:
		c.JSON(http.StatusBadRequest, cluster.ServerCtrlResponse{Status: cluster.StatusCtrlFailure})
	}
}
