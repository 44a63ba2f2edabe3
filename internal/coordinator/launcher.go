package coordinator

import (
	"fmt"
	"os/exec"

	"github.com/dreamware/kvcluster/internal/cluster"
)

// Launcher starts a replacement server process for a shard position that
// has just been marked FAILED. The command line it runs is fixed at
// construction (the path to the cmd/server binary plus whatever flags the
// coordinator always passes); only the endpoint-specific flags are filled
// in per launch.
type Launcher struct {
	// ServerPath is the binary to invoke (local execution) or the remote
	// command name (ssh execution).
	ServerPath string

	// CoordinatorHost and CoordinatorPort tell the new server how to reach
	// M; they are the same for every launch.
	CoordinatorHost string
	CoordinatorPort int

	// N is the fixed cluster size, passed through to every server.
	N int
}

// Launch starts shard id's replacement at endpoint e, which is either a
// local host (spawned directly via os/exec) or a "user@host" remote
// account (spawned via ssh). It returns once the process has been
// started; it does not wait for the server to finish booting — the
// coordinator learns that from the replacement's first HEARTBEAT.
func (l *Launcher) Launch(id int, e cluster.Endpoint, clientPort, peerPort, coordPort int) error {
	args := []string{
		l.ServerPath,
		"-id", fmt.Sprintf("%d", id),
		"-n", fmt.Sprintf("%d", l.N),
		"-coordinator-host", l.CoordinatorHost,
		"-coordinator-port", fmt.Sprintf("%d", l.CoordinatorPort),
		"-client-port", fmt.Sprintf("%d", clientPort),
		"-peer-port", fmt.Sprintf("%d", peerPort),
		"-ctrl-port", fmt.Sprintf("%d", coordPort),
	}

	if e.IsRemote() {
		sshArgs := append([]string{e.Host}, args...)
		cmd := exec.Command("ssh", sshArgs...)
		return cmd.Start()
	}

	cmd := exec.Command(args[0], args[1:]...)
	return cmd.Start()
}
