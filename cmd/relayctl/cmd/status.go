package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relay health",
	Long: `Show the relay's health: interface state, registered device count,
and remaining address pool capacity.

Exit codes:
  0 - relay is healthy
  1 - relay could not be reached
  2 - relay is degraded (WireGuard interface down)

Examples:
  relayctl status`,
	Run: func(cmd *cobra.Command, args []string) {
		apiClient := newAPIClient(cmd)
		health, err := apiClient.GetHealth(context.Background())
		if err != nil {
			fmt.Printf("Error querying relay health: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Status:        %s\n", health.Status)
		if health.Version != "" {
			fmt.Printf("Version:       %s\n", health.Version)
		}
		interfaceState := "down"
		if health.InterfaceUp {
			interfaceState = "up"
		}
		fmt.Printf("Interface:     %s (%s)\n", health.Interface, interfaceState)
		fmt.Printf("Devices:       %d\n", health.DeviceCount)
		fmt.Printf("Pool capacity: %d\n", health.PoolCapacity)
		if health.RelayPublicKey != "" {
			fmt.Printf("Relay key:     %s\n", health.RelayPublicKey)
		}

		if !health.InterfaceUp {
			os.Exit(2)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
