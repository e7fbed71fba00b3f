package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config defines the configuration for the relay service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Network   NetworkConfig   `mapstructure:"network"`
	WireGuard WireGuardConfig `mapstructure:"wireguard"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig defines the API server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ListenAddr returns the host:port the API server binds to.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// RegistryConfig defines where the device snapshot lives.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// NetworkConfig defines the address pool devices are leased from.
type NetworkConfig struct {
	SubnetCIDR string   `mapstructure:"subnet_cidr"`
	Reserved   []string `mapstructure:"reserved"`
}

// WireGuardConfig defines how the relay talks to its interface and what it
// advertises to registering clients.
type WireGuardConfig struct {
	Interface      string        `mapstructure:"interface"`
	Backend        string        `mapstructure:"backend"`
	BinaryPath     string        `mapstructure:"binary_path"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	ListenPort     int           `mapstructure:"listen_port"`
	Endpoint       string        `mapstructure:"endpoint"`
	PublicKey      string        `mapstructure:"public_key"`
}

// LogConfig defines the logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration for correctness and completeness
func (c *Config) Validate() error {
	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if c.Log.Level != "" && !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	// Validate log format
	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log.format: %s (must be json or text)", c.Log.Format)
	}

	// Validate server configuration
	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout > 0 && c.Server.ShutdownTimeout < time.Second {
		return fmt.Errorf("server.shutdown_timeout must be at least 1 second")
	}

	// Validate network configuration
	if c.Network.SubnetCIDR != "" {
		_, subnet, err := net.ParseCIDR(c.Network.SubnetCIDR)
		if err != nil {
			return fmt.Errorf("invalid network.subnet_cidr: %s", c.Network.SubnetCIDR)
		}
		for _, reserved := range c.Network.Reserved {
			addr := net.ParseIP(reserved)
			if addr == nil {
				return fmt.Errorf("invalid network.reserved address: %s", reserved)
			}
			if !subnet.Contains(addr) {
				return fmt.Errorf("network.reserved address %s is outside %s", reserved, c.Network.SubnetCIDR)
			}
		}
	}

	// Validate WireGuard configuration
	if c.WireGuard.Backend != "" && c.WireGuard.Backend != "exec" && c.WireGuard.Backend != "kernel" {
		return fmt.Errorf("invalid wireguard.backend: %s (must be exec or kernel)", c.WireGuard.Backend)
	}
	if c.WireGuard.CommandTimeout > 0 && c.WireGuard.CommandTimeout < time.Second {
		return fmt.Errorf("wireguard.command_timeout must be at least 1 second")
	}
	if c.WireGuard.ListenPort != 0 && (c.WireGuard.ListenPort < 1 || c.WireGuard.ListenPort > 65535) {
		return fmt.Errorf("invalid wireguard.listen_port: %d (must be 1-65535)", c.WireGuard.ListenPort)
	}

	// Set defaults for missing values
	c.setDefaults()

	return nil
}

// setDefaults sets default values for configuration fields that are not set
func (c *Config) setDefaults() {
	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	// Registry defaults
	if c.Registry.Path == "" {
		c.Registry.Path = "/var/lib/wireguard-relay/devices.json"
	}

	// Network defaults
	if c.Network.SubnetCIDR == "" {
		c.Network.SubnetCIDR = "10.10.0.0/24"
	}
	if len(c.Network.Reserved) == 0 {
		c.Network.Reserved = []string{"10.10.0.1"}
	}

	// WireGuard defaults
	if c.WireGuard.Interface == "" {
		c.WireGuard.Interface = "wg0"
	}
	if c.WireGuard.Backend == "" {
		c.WireGuard.Backend = "exec"
	}
	if c.WireGuard.BinaryPath == "" {
		c.WireGuard.BinaryPath = "wg"
	}
	if c.WireGuard.CommandTimeout <= 0 {
		c.WireGuard.CommandTimeout = 10 * time.Second
	}
	if c.WireGuard.ListenPort <= 0 {
		c.WireGuard.ListenPort = 51820
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}
