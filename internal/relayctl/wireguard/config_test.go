package wireguard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/trevor-gituru/wireguard-relay-api/pkg/api"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/crypto"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

func testRegistration(t *testing.T) (*api.RegisterResponse, string) {
	t.Helper()

	deviceKeys, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	relayKeys, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	return &api.RegisterResponse{
		Serial:         "dev-001",
		Address:        "10.10.0.7",
		RelayPublicKey: relayKeys.PublicKey,
		RelayEndpoint:  "relay.example.com",
		RelayPort:      51820,
		RelaySubnet:    "10.10.0.0/24",
	}, deviceKeys.PrivateKey
}

func TestConfigGenerator_GenerateConfig(t *testing.T) {
	cg := NewConfigGenerator(logger.NewDevelopment("config_test"))
	reg, privateKey := testRegistration(t)

	config, err := cg.GenerateConfig(privateKey, reg, "")
	if err != nil {
		t.Fatalf("GenerateConfig: %v", err)
	}

	for _, want := range []string{
		"[Interface]",
		"[Peer]",
		"PrivateKey = " + privateKey,
		"Address = 10.10.0.7/32",
		"MTU = 1420",
		"PublicKey = " + reg.RelayPublicKey,
		"Endpoint = relay.example.com:51820",
		"AllowedIPs = 10.10.0.0/24",
		"PersistentKeepalive = 25",
	} {
		if !strings.Contains(config, want) {
			t.Errorf("generated config missing %q\n%s", want, config)
		}
	}

	if err := cg.ValidateConfig(config); err != nil {
		t.Errorf("expected generated config to validate, got: %v", err)
	}
}

func TestConfigGenerator_GenerateConfigAllowedIPsOverride(t *testing.T) {
	cg := NewConfigGenerator(logger.NewDevelopment("config_test"))
	reg, privateKey := testRegistration(t)

	config, err := cg.GenerateConfig(privateKey, reg, "0.0.0.0/0")
	if err != nil {
		t.Fatalf("GenerateConfig: %v", err)
	}
	if !strings.Contains(config, "AllowedIPs = 0.0.0.0/0") {
		t.Errorf("expected the override to win, got:\n%s", config)
	}
}

func TestConfigGenerator_GenerateConfigErrors(t *testing.T) {
	cg := NewConfigGenerator(logger.NewDevelopment("config_test"))
	reg, privateKey := testRegistration(t)

	if _, err := cg.GenerateConfig("bad-key", reg, ""); err == nil {
		t.Error("expected invalid private key to be rejected")
	}

	noEndpoint := *reg
	noEndpoint.RelayEndpoint = ""
	if _, err := cg.GenerateConfig(privateKey, &noEndpoint, ""); err == nil {
		t.Error("expected missing endpoint to be rejected")
	}

	noSubnet := *reg
	noSubnet.RelaySubnet = ""
	if _, err := cg.GenerateConfig(privateKey, &noSubnet, ""); err == nil {
		t.Error("expected missing allowed IPs to be rejected")
	}
}

func TestConfigGenerator_WriteConfigFile(t *testing.T) {
	cg := NewConfigGenerator(logger.NewDevelopment("config_test"))
	reg, privateKey := testRegistration(t)

	config, err := cg.GenerateConfig(privateKey, reg, "")
	if err != nil {
		t.Fatalf("GenerateConfig: %v", err)
	}

	configPath := filepath.Join(t.TempDir(), "wireguard", "wg0.conf")
	if err := cg.WriteConfigFile(config, configPath); err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}

	written, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(written) != config {
		t.Error("written config does not match generated config")
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != os.FileMode(0o600) {
		t.Errorf("config file has wrong permissions: got %v, want 0600", info.Mode().Perm())
	}
}

func TestConfigGenerator_ValidateConfig(t *testing.T) {
	cg := NewConfigGenerator(logger.NewDevelopment("config_test"))
	reg, privateKey := testRegistration(t)

	valid, err := cg.GenerateConfig(privateKey, reg, "")
	if err != nil {
		t.Fatalf("GenerateConfig: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr bool
	}{
		{"valid config", func(s string) string { return s }, false},
		{"missing peer section", func(s string) string {
			return strings.Replace(s, "[Peer]", "", 1)
		}, true},
		{"garbage private key", func(s string) string {
			return strings.Replace(s, "PrivateKey = "+privateKey, "PrivateKey = junk", 1)
		}, true},
		{"bad endpoint", func(s string) string {
			return strings.Replace(s, "Endpoint = relay.example.com:51820", "Endpoint = relay.example.com", 1)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cg.ValidateConfig(tt.mutate(valid))
			if tt.wantErr && err == nil {
				t.Error("expected validation to fail")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected validation to pass, got: %v", err)
			}
		})
	}
}

func TestIsValidEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"relay.example.com:51820", true},
		{"192.0.2.1:51820", true},
		{"[2001:db8::1]:51820", true},
		{"relay.example.com", false},
		{"relay.example.com:0", false},
		{"relay.example.com:notaport", false},
		{":51820", false},
	}

	for _, tt := range tests {
		if got := isValidEndpoint(tt.endpoint); got != tt.want {
			t.Errorf("isValidEndpoint(%q) = %v, want %v", tt.endpoint, got, tt.want)
		}
	}
}
