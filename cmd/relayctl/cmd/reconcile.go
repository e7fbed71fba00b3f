package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the relay's peer table with its registry",
	Long: `Reconcile the relay's WireGuard peer table with its registry. Missing
peers are added and peers with no registration are removed. The registry
is the source of truth in both directions.

Examples:
  relayctl reconcile`,
	Run: func(cmd *cobra.Command, args []string) {
		apiClient := newAPIClient(cmd)
		result, err := apiClient.Reconcile(context.Background())
		if err != nil {
			fmt.Printf("Error reconciling: %v\n", err)
			os.Exit(1)
		}

		if result.InSync {
			fmt.Println("Peer table already in sync")
			return
		}

		fmt.Printf("Reconciled: %d peer(s) added, %d peer(s) removed\n", result.PeersAdded, result.PeersRemoved)
		for _, serial := range result.AddedSerials {
			fmt.Printf("  added   %s\n", serial)
		}
		for _, key := range result.RemovedKeys {
			fmt.Printf("  removed %s\n", key)
		}
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
