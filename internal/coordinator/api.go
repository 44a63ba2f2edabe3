package coordinator

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dreamware/kvcluster/internal/cluster"
	"github.com/dreamware/kvcluster/internal/httpmw"
)

// Coordinator wires together the registry, failure detector and recovery
// coordinator behind the two HTTP surfaces M exposes: a client-facing
// locate endpoint and an inbound control endpoint servers push
// heartbeats and recovery-progress messages to.
type Coordinator struct {
	Registry *Registry
	Detector *FailureDetector
	Recovery *RecoveryCoordinator
}

// NewCoordinator wires a Coordinator from its three parts and hooks the
// detector's failure callback into the recovery coordinator.
func NewCoordinator(registry *Registry, detector *FailureDetector, recovery *RecoveryCoordinator) *Coordinator {
	c := &Coordinator{Registry: registry, Detector: detector, Recovery: recovery}
	detector.SetOnFailure(func(id int) {
		recovery.HandleFailure(context.Background(), id)
	})
	return c
}

// LocateRouter builds the gin engine for M's client-facing port: the
// single GET /locate endpoint clients use to find a key's owner.
func (co *Coordinator) LocateRouter() *gin.Engine {
	r := gin.New()
	r.Use(httpmw.Logger(), httpmw.Recovery())
	r.GET("/locate", co.handleLocate)
	return r
}

// ControlRouter builds the gin engine for M's own control-listen port:
// the inbound heartbeat and recovery-progress messages every server
// sends. This is distinct from the client-facing locate port.
func (co *Coordinator) ControlRouter() *gin.Engine {
	r := gin.New()
	r.Use(httpmw.Logger(), httpmw.Recovery())
	r.POST("/control", co.handleServerMessage)
	return r
}

func (co *Coordinator) handleLocate(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, cluster.LocateResponse{Status: cluster.StatusKeyNotFound})
		return
	}

	e, err := co.Registry.Locate(key)
	if err != nil {
		c.JSON(http.StatusOK, cluster.LocateResponse{Status: cluster.StatusServerFailure})
		return
	}

	c.JSON(http.StatusOK, cluster.LocateResponse{
		Status:     cluster.StatusSuccess,
		Host:       e.Host,
		ClientPort: e.Port,
	})
}

func (co *Coordinator) handleServerMessage(c *gin.Context) {
	var msg cluster.MServerCtrlRequest
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, cluster.ServerCtrlResponse{Status: cluster.StatusCtrlFailure})
		return
	}

	ctx := c.Request.Context()
	switch msg.Kind {
	case cluster.MsgHeartbeat:
		co.Registry.Touch(msg.ServerID, time.Now())
		co.Detector.ResetReport(msg.ServerID)
	case cluster.MsgUpdatedPrimary:
		co.Recovery.HandleUpdatedPrimary(ctx, msg.ServerID)
	case cluster.MsgUpdatedSecondary:
		co.Recovery.HandleUpdatedSecondary(ctx, msg.ServerID)
	case cluster.MsgUpdatePrimaryFailed, cluster.MsgUpdateSecondaryFailed:
		co.Recovery.HandleUpdateFailed(msg.ServerID)
	}

	c.JSON(http.StatusOK, cluster.ServerCtrlResponse{Status: cluster.StatusCtrlSuccess})
}
