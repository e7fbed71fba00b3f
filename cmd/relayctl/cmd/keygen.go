package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relayctl/wireguard"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a WireGuard keypair",
	Long: `Generate a WireGuard keypair for a device. Without --out both keys
are printed to stdout. With --out the keys are written to
<dir>/privatekey and <dir>/publickey with 0600 permissions and only the
public key is printed.

Examples:
  relayctl keygen
  relayctl keygen --out ~/.config/wireguard-relay`,
	Run: func(cmd *cobra.Command, args []string) {
		outDir, _ := cmd.Flags().GetString("out")

		keys := wireguard.NewKeyManager(newLogger(cmd))
		privateKey, publicKey, err := keys.GenerateKeyPair()
		if err != nil {
			fmt.Printf("Error generating keypair: %v\n", err)
			os.Exit(1)
		}

		if outDir == "" {
			fmt.Printf("Private key: %s\n", privateKey)
			fmt.Printf("Public key:  %s\n", publicKey)
			return
		}

		if err := keys.SavePrivateKey(privateKey, filepath.Join(outDir, "privatekey")); err != nil {
			fmt.Printf("Error writing private key: %v\n", err)
			os.Exit(1)
		}
		if err := keys.SavePublicKey(publicKey, filepath.Join(outDir, "publickey")); err != nil {
			fmt.Printf("Error writing public key: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Wrote keypair to %s\n", outDir)
		fmt.Printf("Public key: %s\n", publicKey)
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringP("out", "o", "", "Directory to write privatekey/publickey files")
}
