// cmd/coordinator is the cluster coordinator process M: it loads the
// static server list, tracks liveness via incoming heartbeats, drives
// shard recovery when a server goes silent, and answers client LOCATE
// requests. Typing EOF on stdin (e.g. closing the terminal, or piping
// from a script that exits) triggers a graceful shutdown broadcast to
// every server before the coordinator itself exits.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dreamware/kvcluster/internal/cluster"
	"github.com/dreamware/kvcluster/internal/config"
	"github.com/dreamware/kvcluster/internal/coordinator"
)

func main() {
	clientPort := flag.Int("client-port", 0, "port clients use to reach this coordinator's LOCATE surface")
	peerPort := flag.Int("peer-port", 0, "port servers use to send heartbeats and recovery-progress messages")
	configPath := flag.String("config", "", "path to the cluster config file")
	serverPath := flag.String("server-path", "server", "path to the cmd/server binary used to spawn servers")
	detectorTimeout := flag.Duration("detector-timeout", 3*time.Second, "how long a server may go silent before it's declared failed")
	detectorTick := flag.Duration("detector-tick", time.Second, "how often the failure detector checks for stale heartbeats")
	logPath := flag.String("log", "", "optional path to write logs to instead of stderr")
	flag.Parse()

	if *clientPort == 0 || *peerPort == 0 || *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: coordinator -client-port P -peer-port P -config FILE [-server-path PATH] [-detector-timeout D] [-log FILE]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("coordinator: cannot open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	cfgFile, err := os.Open(*configPath)
	if err != nil {
		log.Fatalf("coordinator: cannot open config: %v", err)
	}
	clusterCfg, err := config.LoadClusterConfig(cfgFile)
	cfgFile.Close()
	if err != nil {
		log.Fatalf("coordinator: invalid config: %v", err)
	}

	nodes := make([]coordinator.ServerNode, clusterCfg.N)
	for i, entry := range clusterCfg.Servers {
		nodes[i] = coordinator.ServerNode{
			ID:         i,
			Host:       entry.Host,
			ClientPort: entry.ClientPort,
			PeerPort:   entry.PeerPort,
			CoordPort:  entry.CoordPort,
		}
	}

	registry := coordinator.NewRegistry(nodes, time.Now())

	gin.SetMode(gin.ReleaseMode)
	controlClient := coordinator.NewControlClient(cluster.LongLivedClient(5 * time.Second))
	launcher := &coordinator.Launcher{
		ServerPath:      *serverPath,
		CoordinatorHost: "localhost",
		CoordinatorPort: *peerPort,
		N:               clusterCfg.N,
	}
	recovery := coordinator.NewRecoveryCoordinator(registry, launcher, controlClient)
	detector := coordinator.NewFailureDetector(registry, *detectorTick, *detectorTimeout)
	co := coordinator.NewCoordinator(registry, detector, recovery)

	if err := bootstrapCluster(registry, launcher); err != nil {
		log.Fatalf("coordinator: failed to spawn cluster: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	detector.Start(ctx)

	go wireSecondaries(ctx, registry, controlClient)

	locateSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *clientPort),
		Handler:           co.LocateRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	controlSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *peerPort),
		Handler:           co.ControlRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 2)
	go func() {
		log.Printf("coordinator: locate surface listening on %s for %d servers", locateSrv.Addr, clusterCfg.N)
		serveErr <- locateSrv.ListenAndServe()
	}()
	go func() {
		log.Printf("coordinator: control surface listening on %s", controlSrv.Addr)
		serveErr <- controlSrv.ListenAndServe()
	}()

	eof := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			// stdin lines are ignored; only EOF (closed stdin) matters.
		}
		close(eof)
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("coordinator: listener failed: %v", err)
		}
	case <-eof:
		log.Println("coordinator: stdin closed, shutting down cluster")
		broadcastShutdown(registry, controlClient)
	}

	detector.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = locateSrv.Shutdown(shutdownCtx)
	_ = controlSrv.Shutdown(shutdownCtx)
	log.Println("coordinator: stopped")
}

// bootstrapCluster spawns the N servers named in the config, the same way
// the recovery launcher spawns a replacement.
func bootstrapCluster(registry *coordinator.Registry, launcher *coordinator.Launcher) error {
	for _, n := range registry.All() {
		e := cluster.Endpoint{Host: n.Host}
		if err := launcher.Launch(n.ID, e, n.ClientPort, n.PeerPort, n.CoordPort); err != nil {
			return fmt.Errorf("server %d: %w", n.ID, err)
		}
	}
	return nil
}

// wireSecondaries sends SET_SECONDARY to every server once, establishing
// its forwarding link to secondary(i). Freshly spawned servers may not
// have their control port bound yet, so each send is retried with a
// short backoff until it succeeds or ctx is canceled.
func wireSecondaries(ctx context.Context, registry *coordinator.Registry, control *coordinator.ControlClient) {
	var wg sync.WaitGroup
	for _, n := range registry.All() {
		n := n
		secondary, _ := registry.Node(registry.SecondaryOf(n.ID))
		wg.Add(1)
		go func() {
			defer wg.Done()
			cmd := cluster.ServerCtrlRequest{Cmd: cluster.CmdSetSecondary, Host: secondary.Host, Port: secondary.PeerPort}
			for {
				if _, err := control.Send(ctx, n.CoordEndpoint(), cmd); err == nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
			}
		}()
	}
	wg.Wait()
	log.Println("coordinator: all servers wired to their secondary partner")
}

func broadcastShutdown(registry *coordinator.Registry, control *coordinator.ControlClient) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, n := range registry.All() {
		if n.Status == cluster.ServerFailed {
			continue
		}
		if _, err := control.Send(ctx, n.CoordEndpoint(), cluster.ServerCtrlRequest{Cmd: cluster.CmdShutdown}); err != nil {
			log.Printf("coordinator: shutdown broadcast to server %d failed: %v", n.ID, err)
		}
	}
}
