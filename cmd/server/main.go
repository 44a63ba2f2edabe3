// cmd/server is one KV server process: it serves its primary and
// secondary key sets over a client port and a peer port, and answers
// coordinator control commands over a third port. It registers itself
// with the coordinator purely by heartbeating — there is no separate
// registration handshake, since placement is static and derived from
// -id and -n.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dreamware/kvcluster/internal/cluster"
	"github.com/dreamware/kvcluster/internal/server"
)

func main() {
	coordHost := flag.String("coordinator-host", "", "coordinator's hostname or IP")
	coordPort := flag.Int("coordinator-port", 0, "coordinator's control port")
	clientPort := flag.Int("client-port", 0, "port this server listens on for client GET/PUT")
	peerPort := flag.Int("peer-port", 0, "port this server listens on for peer replication")
	ctrlPort := flag.Int("ctrl-port", 0, "port this server listens on for coordinator control commands")
	id := flag.Int("id", -1, "this server's shard position in [0, n)")
	n := flag.Int("n", 0, "total number of servers in the cluster")
	logPath := flag.String("log", "", "optional path to write logs to instead of stderr")
	flag.Parse()

	if *coordHost == "" || *coordPort == 0 || *clientPort == 0 || *peerPort == 0 || *ctrlPort == 0 || *id < 0 || *n < 3 {
		fmt.Fprintln(os.Stderr, "usage: server -coordinator-host H -coordinator-port P -client-port P -peer-port P -ctrl-port P -id I -n N [-log FILE]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("server: cannot open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	gin.SetMode(gin.ReleaseMode)

	coordEndpoint := cluster.Endpoint{Host: *coordHost, Port: *coordPort}
	peerClient := cluster.LongLivedClient(5 * time.Second)
	coordClient := cluster.LongLivedClient(5 * time.Second)

	s := server.New(*id, *n, coordEndpoint, cluster.Endpoint{}, peerClient, coordClient)

	ctx, cancel := context.WithCancel(context.Background())
	go s.RunHeartbeats(ctx, time.Second)

	clientSrv := &http.Server{Addr: fmt.Sprintf(":%d", *clientPort), Handler: s.ClientRouter(), ReadHeaderTimeout: 5 * time.Second}
	peerSrv := &http.Server{Addr: fmt.Sprintf(":%d", *peerPort), Handler: s.PeerRouter(), ReadHeaderTimeout: 5 * time.Second}

	shutdownCh := make(chan struct{})
	ctrlSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *ctrlPort),
		Handler:           s.CtrlRouter(func() { close(shutdownCh) }),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("server %d: client port listening on %s", *id, clientSrv.Addr)
		if err := clientSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("client listener: %v", err)
		}
	}()
	go func() {
		log.Printf("server %d: peer port listening on %s", *id, peerSrv.Addr)
		if err := peerSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("peer listener: %v", err)
		}
	}()
	go func() {
		log.Printf("server %d: control port listening on %s", *id, ctrlSrv.Addr)
		if err := ctrlSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("control listener: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
	case <-shutdownCh:
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = clientSrv.Shutdown(shutdownCtx)
	_ = peerSrv.Shutdown(shutdownCtx)
	_ = ctrlSrv.Shutdown(shutdownCtx)
	log.Printf("server %d: stopped", *id)
}
