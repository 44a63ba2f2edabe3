package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClusterConfigValid(t *testing.T) {
	input := "3\n" +
		"localhost 9000 9100 9200\n" +
		"localhost 9001 9101 9201\n" +
		"worker@10.0.0.2 9002 9102 9202\n"

	cfg, err := LoadClusterConfig(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.N)
	require.Len(t, cfg.Servers, 3)
	assert.Equal(t, "localhost", cfg.Servers[0].Host)
	assert.Equal(t, 9200, cfg.Servers[0].CoordPort)
	assert.Equal(t, "worker@10.0.0.2", cfg.Servers[2].Host)
}

func TestLoadClusterConfigRejectsFewerThanThree(t *testing.T) {
	_, err := LoadClusterConfig(strings.NewReader("2\nlocalhost 1 2 3\nlocalhost 4 5 6\n"))
	assert.Error(t, err)
}

func TestLoadClusterConfigRejectsEmptyFile(t *testing.T) {
	_, err := LoadClusterConfig(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadClusterConfigRejectsTruncatedServerList(t *testing.T) {
	_, err := LoadClusterConfig(strings.NewReader("3\nlocalhost 1 2 3\n"))
	assert.Error(t, err)
}

func TestLoadClusterConfigRejectsMalformedLine(t *testing.T) {
	_, err := LoadClusterConfig(strings.NewReader("3\nlocalhost 1 2\nlocalhost 4 5 6\nlocalhost 7 8 9\n"))
	assert.Error(t, err)
}

func TestLoadClusterConfigRejectsZeroPort(t *testing.T) {
	_, err := LoadClusterConfig(strings.NewReader("3\nlocalhost 0 2 3\nlocalhost 4 5 6\nlocalhost 7 8 9\n"))
	assert.Error(t, err)
}

func TestLoadClusterConfigRejectsNonIntegerCount(t *testing.T) {
	_, err := LoadClusterConfig(strings.NewReader("three\nlocalhost 1 2 3\n"))
	assert.Error(t, err)
}
