package main

import (
	"github.com/joho/godotenv"

	"github.com/trevor-gituru/wireguard-relay-api/cmd/relayctl/cmd"
)

func main() {
	// Load .env if present so RELAY_API_URL can come from a local file.
	_ = godotenv.Load()

	cmd.Execute()
}
