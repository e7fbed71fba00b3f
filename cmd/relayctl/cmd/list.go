package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered devices",
	Long: `List every device registered with the relay, ordered by address.

Examples:
  relayctl list
  relayctl list --api-url http://relay.internal:8080`,
	Run: func(cmd *cobra.Command, args []string) {
		apiClient := newAPIClient(cmd)
		resp, err := apiClient.ListDevices(context.Background())
		if err != nil {
			fmt.Printf("Error listing devices: %v\n", err)
			os.Exit(1)
		}

		if resp.Count == 0 {
			fmt.Println("No devices registered")
			return
		}

		fmt.Printf("%-24s %-16s %s\n", "SERIAL", "ADDRESS", "REGISTERED")
		for _, device := range resp.Devices {
			fmt.Printf("%-24s %-16s %s\n", device.Serial, device.Address, device.RegisteredAt.Format(time.RFC3339))
		}
		fmt.Printf("\n%d device(s)\n", resp.Count)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
