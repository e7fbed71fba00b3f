package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relayctl/client"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relayctl/wireguard"
)

var deregisterCmd = &cobra.Command{
	Use:   "deregister <serial>",
	Short: "Remove a device from the relay",
	Long: `Remove a device from the relay. The relay deletes the registration
and removes the device's WireGuard peer, freeing its address for reuse.

Examples:
  relayctl deregister dev-001
  relayctl deregister dev-001 --down --config /etc/wireguard/wg0.conf`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		serial := args[0]
		bringDown, _ := cmd.Flags().GetBool("down")
		configPath, _ := cmd.Flags().GetString("config")

		if bringDown && configPath == "" {
			fmt.Println("Error: --down requires --config")
			os.Exit(1)
		}

		apiClient := newAPIClient(cmd)
		resp, err := apiClient.Deregister(context.Background(), serial)
		if err != nil {
			if errors.Is(err, client.ErrDeviceNotFound) {
				fmt.Printf("Device %s is not registered\n", serial)
				os.Exit(2)
			}
			fmt.Printf("Error deregistering device: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Deregistered device %s (address %s freed)\n", resp.Serial, resp.Address)
		if resp.Warning != "" {
			fmt.Printf("Warning: %s\n", resp.Warning)
		}

		if bringDown {
			generator := wireguard.NewConfigGenerator(newLogger(cmd))
			if err := generator.RemoveConfig(configPath); err != nil {
				fmt.Printf("Error bringing down tunnel: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Tunnel is down")
		}
	},
}

func init() {
	rootCmd.AddCommand(deregisterCmd)
	deregisterCmd.Flags().Bool("down", false, "Tear down the local tunnel with wg-quick")
	deregisterCmd.Flags().String("config", "", "WireGuard config path for --down")
}
