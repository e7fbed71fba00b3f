package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.ListenAddr())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/var/lib/wireguard-relay/devices.json", cfg.Registry.Path)
	assert.Equal(t, "10.10.0.0/24", cfg.Network.SubnetCIDR)
	assert.Equal(t, []string{"10.10.0.1"}, cfg.Network.Reserved)
	assert.Equal(t, "wg0", cfg.WireGuard.Interface)
	assert.Equal(t, "exec", cfg.WireGuard.Backend)
	assert.Equal(t, "wg", cfg.WireGuard.BinaryPath)
	assert.Equal(t, 10*time.Second, cfg.WireGuard.CommandTimeout)
	assert.Equal(t, 51820, cfg.WireGuard.ListenPort)
	assert.Empty(t, cfg.WireGuard.Endpoint)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadWithPath(t *testing.T) {
	content := `
server:
  host: 127.0.0.1
  port: 9090
  shutdown_timeout: 5s
registry:
  path: /tmp/relay-test/devices.json
network:
  subnet_cidr: 10.20.0.0/24
  reserved:
    - 10.20.0.1
    - 10.20.0.254
wireguard:
  interface: wg1
  backend: kernel
  command_timeout: 3s
  listen_port: 51821
  endpoint: vpn.example.com:51821
log:
  level: debug
  format: text
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.ListenAddr())
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/tmp/relay-test/devices.json", cfg.Registry.Path)
	assert.Equal(t, "10.20.0.0/24", cfg.Network.SubnetCIDR)
	assert.Equal(t, []string{"10.20.0.1", "10.20.0.254"}, cfg.Network.Reserved)
	assert.Equal(t, "wg1", cfg.WireGuard.Interface)
	assert.Equal(t, "kernel", cfg.WireGuard.Backend)
	assert.Equal(t, 3*time.Second, cfg.WireGuard.CommandTimeout)
	assert.Equal(t, 51821, cfg.WireGuard.ListenPort)
	assert.Equal(t, "vpn.example.com:51821", cfg.WireGuard.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadWithPathMissingFile(t *testing.T) {
	_, err := LoadWithPath(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("RELAY_SERVER_PORT", "9191")
	t.Setenv("RELAY_NETWORK_SUBNET_CIDR", "10.99.0.0/16")
	t.Setenv("RELAY_NETWORK_RESERVED", "10.99.0.1,10.99.0.2")
	t.Setenv("RELAY_WIREGUARD_COMMAND_TIMEOUT", "3s")
	t.Setenv("RELAY_WIREGUARD_ENDPOINT", "relay.example.com:51820")
	t.Setenv("RELAY_LOG_LEVEL", "debug")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "10.99.0.0/16", cfg.Network.SubnetCIDR)
	assert.Equal(t, []string{"10.99.0.1", "10.99.0.2"}, cfg.Network.Reserved)
	assert.Equal(t, 3*time.Second, cfg.WireGuard.CommandTimeout)
	assert.Equal(t, "relay.example.com:51820", cfg.WireGuard.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"bad log level", func(cfg *Config) { cfg.Log.Level = "verbose" }},
		{"bad log format", func(cfg *Config) { cfg.Log.Format = "xml" }},
		{"bad backend", func(cfg *Config) { cfg.WireGuard.Backend = "userspace" }},
		{"port out of range", func(cfg *Config) { cfg.Server.Port = 70000 }},
		{"listen port out of range", func(cfg *Config) { cfg.WireGuard.ListenPort = 70000 }},
		{"shutdown timeout too small", func(cfg *Config) { cfg.Server.ShutdownTimeout = 500 * time.Millisecond }},
		{"command timeout too small", func(cfg *Config) { cfg.WireGuard.CommandTimeout = 100 * time.Millisecond }},
		{"bad subnet", func(cfg *Config) { cfg.Network.SubnetCIDR = "not-a-cidr" }},
		{"reserved not an address", func(cfg *Config) {
			cfg.Network.SubnetCIDR = "10.10.0.0/24"
			cfg.Network.Reserved = []string{"banana"}
		}},
		{"reserved outside subnet", func(cfg *Config) {
			cfg.Network.SubnetCIDR = "10.10.0.0/24"
			cfg.Network.Reserved = []string{"192.168.1.1"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "10.10.0.0/24", cfg.Network.SubnetCIDR)
	assert.Equal(t, "wg0", cfg.WireGuard.Interface)
	assert.Equal(t, "exec", cfg.WireGuard.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
}
