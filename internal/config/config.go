// Package config parses the coordinator's static cluster configuration
// file: a server count followed by one line per server naming its host
// and three ports. No third-party config library appears anywhere in the
// example corpus for a format this small and line-oriented, so this uses
// stdlib bufio/strconv directly (see DESIGN.md).
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ServerEntry is one line of the cluster config: a server's host and its
// three ports (client, peer, coordinator-control).
type ServerEntry struct {
	Host       string
	ClientPort int
	PeerPort   int
	CoordPort  int
}

// ClusterConfig is the fully parsed config file: N servers, in the order
// they were listed.
type ClusterConfig struct {
	N       int
	Servers []ServerEntry
}

// LoadClusterConfig parses the coordinator config file format: first line
// an integer N, then N lines of "<host> <client-port> <peer-port>
// <coordinator-port>". N<3 is rejected, as is any malformed or short line.
func LoadClusterConfig(r io.Reader) (*ClusterConfig, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		return nil, fmt.Errorf("config: empty file, expected server count")
	}
	n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, fmt.Errorf("config: invalid server count %q: %w", scanner.Text(), err)
	}
	if n < 3 {
		return nil, fmt.Errorf("config: N must be >= 3, got %d", n)
	}

	servers := make([]ServerEntry, 0, n)
	for i := 0; i < n; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("config: expected %d server lines, got %d", n, i)
		}
		entry, err := parseServerLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("config: line %d: %w", i+2, err)
		}
		servers = append(servers, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &ClusterConfig{N: n, Servers: servers}, nil
}

func parseServerLine(line string) (ServerEntry, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return ServerEntry{}, fmt.Errorf("expected 4 fields (host client-port peer-port coord-port), got %d", len(fields))
	}

	ports := make([]int, 3)
	for i, raw := range fields[1:] {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return ServerEntry{}, fmt.Errorf("invalid port %q: %w", raw, err)
		}
		if p <= 0 || p > 65535 {
			return ServerEntry{}, fmt.Errorf("port %d out of range", p)
		}
		ports[i] = p
	}

	return ServerEntry{
		Host:       fields[0],
		ClientPort: ports[0],
		PeerPort:   ports[1],
		CoordPort:  ports[2],
	}, nil
}
