package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relayctl/client"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Manage device registrations on a WireGuard relay",
	Long: `relayctl talks to the relay registration API to enroll and remove
devices, inspect the registry, and drive reconciliation between the
registry and the relay's WireGuard interface.

The relay address comes from --api-url or the RELAY_API_URL environment
variable.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("api-url", envOr("RELAY_API_URL", "http://localhost:8080"), "Base URL of the relay API")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Timeout for a single API request")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// newLogger builds the CLI logger from the persistent log-level flag. The
// default stays at warn so command output is not interleaved with log lines.
func newLogger(cmd *cobra.Command) *logger.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.New(logger.LoggerConfig{
		Level:     logger.LogLevel(level),
		Format:    logger.FormatText,
		Component: "relayctl",
	})
}

func newAPIClient(cmd *cobra.Command) *client.Client {
	apiURL, _ := cmd.Flags().GetString("api-url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return client.NewClient(apiURL, timeout, newLogger(cmd))
}
