package api

import "time"

// Response is the envelope every endpoint returns. Success responses
// carry Data; failures carry Error and omit Data.
type Response[T any] struct {
	Success bool       `json:"success"`
	Data    T          `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is the wire form of a failed request. Metadata carries
// structured hints such as the field that failed validation or the
// Retry-After horizon on exhaustion errors.
type ErrorInfo struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RegisterResponse represents the response for a successful device registration.
// It carries everything a client needs to finish its side of the tunnel.
type RegisterResponse struct {
	Serial         string    `json:"serial"`
	Address        string    `json:"address"`
	RelayPublicKey string    `json:"relay_public_key"`
	RelayEndpoint  string    `json:"relay_endpoint,omitempty"`
	RelayPort      int       `json:"relay_port,omitempty"`
	RelaySubnet    string    `json:"relay_subnet,omitempty"` // CIDR the device should route through the tunnel
	RegisteredAt   time.Time `json:"registered_at"`
}

// DeregisterResponse represents the response for a device deregistration
type DeregisterResponse struct {
	Serial  string `json:"serial"`
	Address string `json:"address"`
	Warning string `json:"warning,omitempty"` // Set when live peer removal failed but the record was deleted
}

// DeviceInfo represents device information for get and list operations
type DeviceInfo struct {
	Serial       string    `json:"serial"`
	PublicKey    string    `json:"public_key"`
	Address      string    `json:"address"`
	RegisteredAt time.Time `json:"registered_at"`
}

// DeviceListResponse represents the response for listing devices
type DeviceListResponse struct {
	Devices []DeviceInfo `json:"devices"`
	Count   int          `json:"count"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version,omitempty"`
	Interface      string `json:"interface"`
	InterfaceUp    bool   `json:"interface_up"`
	DeviceCount    int    `json:"device_count"`
	PoolCapacity   int    `json:"pool_capacity"`
	RelayPublicKey string `json:"relay_public_key,omitempty"`
}

// ReconcileResponse reports what a reconciliation pass changed
type ReconcileResponse struct {
	PeersAdded   int      `json:"peers_added"`
	PeersRemoved int      `json:"peers_removed"`
	InSync       bool     `json:"in_sync"`
	AddedSerials []string `json:"added_serials,omitempty"`
	RemovedKeys  []string `json:"removed_keys,omitempty"`
}
