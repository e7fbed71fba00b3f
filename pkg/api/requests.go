package api

// RegisterRequest represents a request to register an edge device
type RegisterRequest struct {
	Serial    string `json:"serial"`     // Device serial, unique across the relay
	PublicKey string `json:"public_key"` // Device WireGuard public key
}
