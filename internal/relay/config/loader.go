package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	envPrefix  = "RELAY"
)

// searchPaths are tried in order when no explicit config path is given.
var searchPaths = []string{
	"/etc/wireguard-relay",
	"$HOME/.wireguard-relay",
	".",
}

// defaults registers every key with viper. Registration matters even for
// empty values: AutomaticEnv only surfaces environment overrides for
// keys viper already knows about.
var defaults = map[string]any{
	"server.host":             "0.0.0.0",
	"server.port":             8080,
	"server.shutdown_timeout": "10s",

	"registry.path": "/var/lib/wireguard-relay/devices.json",

	"network.subnet_cidr": "10.10.0.0/24",
	"network.reserved":    []string{"10.10.0.1"},

	"wireguard.interface":       "wg0",
	"wireguard.backend":         "exec",
	"wireguard.binary_path":     "wg",
	"wireguard.command_timeout": "10s",
	"wireguard.listen_port":     51820,
	"wireguard.endpoint":        "",
	"wireguard.public_key":      "",

	"log.level":  "info",
	"log.format": "json",
}

// Loader reads the relay configuration from YAML and the environment.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader that searches the standard config paths.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load resolves the configuration. Precedence from weakest to strongest:
// defaults, config file, RELAY_* environment variables.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(configName)
	l.v.SetConfigType("yaml")
	for _, path := range searchPaths {
		l.v.AddConfigPath(path)
	}

	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	for key, value := range defaults {
		l.v.SetDefault(key, value)
	}

	// A missing file is fine, defaults and environment cover it. A file
	// that exists but cannot be parsed is not.
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadWithPath loads configuration from one explicit file. Unlike Load,
// a missing file is an error here because the operator asked for it by
// name.
func LoadWithPath(configPath string) (*Config, error) {
	loader := NewLoader()
	loader.v.SetConfigFile(configPath)
	return loader.Load()
}
