package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relayctl/wireguard"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a device with the relay",
	Long: `Register a device with the relay. The relay assigns the device an
address from its subnet and installs it as a WireGuard peer.

The device public key comes from --public-key, or from --generate-keys
which creates a keypair at --key-path when one does not already exist.

Examples:
  relayctl register --serial dev-001 --public-key 'hETgM...'
  relayctl register --serial dev-001 --generate-keys
  relayctl register --serial dev-001 --generate-keys --write-config /etc/wireguard/wg0.conf --up`,
	Run: func(cmd *cobra.Command, args []string) {
		serial, _ := cmd.Flags().GetString("serial")
		publicKey, _ := cmd.Flags().GetString("public-key")
		generateKeys, _ := cmd.Flags().GetBool("generate-keys")
		keyPath, _ := cmd.Flags().GetString("key-path")
		configPath, _ := cmd.Flags().GetString("write-config")
		allowedIPs, _ := cmd.Flags().GetString("allowed-ips")
		bringUp, _ := cmd.Flags().GetBool("up")

		if serial == "" {
			fmt.Println("Error: --serial is required")
			os.Exit(1)
		}
		if publicKey == "" && !generateKeys {
			fmt.Println("Error: provide --public-key or use --generate-keys")
			os.Exit(1)
		}
		if publicKey != "" && generateKeys {
			fmt.Println("Error: --public-key and --generate-keys are mutually exclusive")
			os.Exit(1)
		}
		if configPath != "" && !generateKeys {
			fmt.Println("Error: --write-config needs the private key, use --generate-keys")
			os.Exit(1)
		}
		if bringUp && configPath == "" {
			fmt.Println("Error: --up requires --write-config")
			os.Exit(1)
		}

		log := newLogger(cmd)
		generator := wireguard.NewConfigGenerator(log)

		var privateKey string
		if generateKeys {
			var err error
			privateKey, err = generator.Keys().LoadOrCreateKey(keyPath)
			if err != nil {
				fmt.Printf("Error preparing device key: %v\n", err)
				os.Exit(1)
			}
			publicKey, err = generator.Keys().GetPublicKey(privateKey)
			if err != nil {
				fmt.Printf("Error deriving public key: %v\n", err)
				os.Exit(1)
			}
		}

		apiClient := newAPIClient(cmd)
		reg, err := apiClient.Register(context.Background(), serial, publicKey)
		if err != nil {
			fmt.Printf("Error registering device: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Registered device %s\n", reg.Serial)
		fmt.Printf("  Address:        %s\n", reg.Address)
		if reg.RelayEndpoint != "" {
			fmt.Printf("  Relay endpoint: %s:%d\n", reg.RelayEndpoint, reg.RelayPort)
		}
		fmt.Printf("  Relay key:      %s\n", reg.RelayPublicKey)
		if reg.RelaySubnet != "" {
			fmt.Printf("  Relay subnet:   %s\n", reg.RelaySubnet)
		}

		if configPath == "" {
			return
		}

		configContent, err := generator.GenerateConfig(privateKey, reg, allowedIPs)
		if err != nil {
			fmt.Printf("Error generating WireGuard config: %v\n", err)
			os.Exit(1)
		}
		if err := generator.WriteConfigFile(configContent, configPath); err != nil {
			fmt.Printf("Error writing WireGuard config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote WireGuard config to %s\n", configPath)

		if bringUp {
			if err := generator.ApplyConfig(configPath); err != nil {
				fmt.Printf("Error bringing up tunnel: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Tunnel is up")
		}
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringP("serial", "s", "", "Device serial (required)")
	registerCmd.Flags().String("public-key", "", "Device WireGuard public key")
	registerCmd.Flags().Bool("generate-keys", false, "Generate a keypair at --key-path if absent")
	registerCmd.Flags().String("key-path", "~/.config/wireguard-relay/privatekey", "Private key location for --generate-keys")
	registerCmd.Flags().String("write-config", "", "Write a WireGuard config for the tunnel to this path")
	registerCmd.Flags().String("allowed-ips", "", "AllowedIPs for the generated config (defaults to the relay subnet)")
	registerCmd.Flags().Bool("up", false, "Apply the written config with wg-quick")
}
