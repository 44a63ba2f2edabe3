package coordinator

import (
	"context"
	"log"
	"sync"
	"time"
)

// FailureDetector watches the registry's last-heartbeat timestamps and
// reports a server as failed once it has gone silent for longer than
// timeout. Unlike a polling health check, it never dials a server itself:
// servers push HEARTBEAT to the coordinator, and the detector only
// compares clocks. It follows the same ticker-driven Start/Stop shape as
// an active health monitor, but with the HTTP probe replaced by a passive
// timestamp comparison.
type FailureDetector struct {
	registry *Registry

	tick    time.Duration
	timeout time.Duration

	onFailure func(id int)

	mu       sync.Mutex
	reported map[int]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFailureDetector builds a detector that checks every tick and declares
// a server failed once now-last_heartbeat exceeds timeout.
func NewFailureDetector(registry *Registry, tick, timeout time.Duration) *FailureDetector {
	return &FailureDetector{
		registry: registry,
		tick:     tick,
		timeout:  timeout,
		reported: make(map[int]bool),
	}
}

// SetOnFailure installs the callback invoked the first time a server is
// observed to have missed its heartbeat deadline. It fires at most once
// per failure until the server is touched again via ResetReport.
func (d *FailureDetector) SetOnFailure(fn func(id int)) {
	d.onFailure = fn
}

// ResetReport clears the one-shot failure report for id, allowing the
// detector to report it again if it goes silent a second time (e.g. after
// a replacement is spawned and later also crashes).
func (d *FailureDetector) ResetReport(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.reported, id)
}

// Start runs the detection loop until ctx is canceled or Stop is called.
func (d *FailureDetector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				d.checkAll(time.Now())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the detection loop and waits for it to exit.
func (d *FailureDetector) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *FailureDetector) checkAll(now time.Time) {
	for _, n := range d.registry.All() {
		if now.Sub(n.LastHeartbeat) <= d.timeout {
			continue
		}

		d.mu.Lock()
		already := d.reported[n.ID]
		if !already {
			d.reported[n.ID] = true
		}
		d.mu.Unlock()

		if already {
			continue
		}

		log.Printf("coordinator: server %d missed heartbeat deadline (last seen %s ago)", n.ID, now.Sub(n.LastHeartbeat))
		if d.onFailure != nil {
			d.onFailure(n.ID)
		}
	}
}
