package wireguard

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/trevor-gituru/wireguard-relay-api/pkg/api"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/crypto"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// ConfigGenerator renders and manages device-side tunnel configurations
type ConfigGenerator struct {
	keys   *KeyManager
	logger *logger.Logger
}

// NewConfigGenerator creates a configuration generator
func NewConfigGenerator(log *logger.Logger) *ConfigGenerator {
	if log == nil {
		log = logger.NewDevelopment("wireguard")
	}

	return &ConfigGenerator{
		keys:   NewKeyManager(log),
		logger: log,
	}
}

// Keys exposes the key manager used for the device key
func (cg *ConfigGenerator) Keys() *KeyManager {
	return cg.keys
}

// GenerateConfig renders a wg-quick configuration from a registration.
// An empty allowedIPs falls back to the relay subnet the server advertised.
func (cg *ConfigGenerator) GenerateConfig(privateKey string, reg *api.RegisterResponse, allowedIPs string) (string, error) {
	if !crypto.IsValidWireGuardKey(privateKey) {
		return "", fmt.Errorf("invalid private key format")
	}
	if reg.RelayEndpoint == "" {
		return "", fmt.Errorf("registration carries no relay endpoint")
	}

	if allowedIPs == "" {
		allowedIPs = reg.RelaySubnet
	}
	if allowedIPs == "" {
		return "", fmt.Errorf("no allowed IPs: registration carries no relay subnet and none was given")
	}

	config := fmt.Sprintf(`[Interface]
PrivateKey = %s
Address = %s/32
MTU = 1420

[Peer]
PublicKey = %s
Endpoint = %s:%d
AllowedIPs = %s
PersistentKeepalive = 25
`,
		privateKey,
		reg.Address,
		reg.RelayPublicKey,
		reg.RelayEndpoint,
		reg.RelayPort,
		allowedIPs,
	)

	cg.logger.Debug("generated tunnel config",
		"endpoint", reg.RelayEndpoint, "port", reg.RelayPort, "allowed_ips", allowedIPs)
	return config, nil
}

// WriteConfigFile writes the configuration with key-safe permissions
func (cg *ConfigGenerator) WriteConfigFile(configContent, configPath string) error {
	configPath = expandHomeDir(configPath)

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cg.logger.Debug("wrote tunnel config file", "path", configPath)
	return nil
}

// ValidateConfig checks a rendered configuration before it is written
func (cg *ConfigGenerator) ValidateConfig(configContent string) error {
	hasInterface := false
	hasPeer := false
	privateKeyValid := false
	publicKeyValid := false
	endpointValid := false

	for _, line := range strings.Split(configContent, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "[Interface]"):
			hasInterface = true
		case strings.HasPrefix(line, "[Peer]"):
			hasPeer = true
		case strings.HasPrefix(line, "PrivateKey"):
			privateKeyValid = crypto.IsValidWireGuardKey(configValue(line))
		case strings.HasPrefix(line, "PublicKey"):
			publicKeyValid = crypto.IsValidWireGuardKey(configValue(line))
		case strings.HasPrefix(line, "Endpoint"):
			endpointValid = isValidEndpoint(configValue(line))
		}
	}

	switch {
	case !hasInterface || !hasPeer:
		return fmt.Errorf("configuration missing required sections")
	case !privateKeyValid:
		return fmt.Errorf("invalid private key format")
	case !publicKeyValid:
		return fmt.Errorf("invalid relay public key format")
	case !endpointValid:
		return fmt.Errorf("invalid endpoint format")
	}

	return nil
}

// ApplyConfig brings the tunnel up with wg-quick
func (cg *ConfigGenerator) ApplyConfig(configPath string) error {
	configPath = expandHomeDir(configPath)
	cg.logger.Info("bringing tunnel up", "config_path", configPath)

	cmd := exec.Command("wg-quick", "up", configPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to apply tunnel config: %w, output: %s", err, string(output))
	}

	cg.logger.Info("tunnel is up", "config_path", configPath)
	return nil
}

// RemoveConfig takes the tunnel down with wg-quick
func (cg *ConfigGenerator) RemoveConfig(configPath string) error {
	configPath = expandHomeDir(configPath)
	cg.logger.Info("taking tunnel down", "config_path", configPath)

	cmd := exec.Command("wg-quick", "down", configPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to remove tunnel config: %w, output: %s", err, string(output))
	}

	cg.logger.Info("tunnel is down", "config_path", configPath)
	return nil
}

// configValue returns the right-hand side of a "Key = value" line
func configValue(line string) string {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// isValidEndpoint accepts host:port where host may be a name or an IP
func isValidEndpoint(endpoint string) bool {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil || host == "" {
		return false
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return portNum > 0 && portNum < 65536
}
