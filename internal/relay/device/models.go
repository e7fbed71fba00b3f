package device

import (
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/registry"
)

// RegisterRequest carries the device-supplied identity for a registration
type RegisterRequest struct {
	Serial    string
	PublicKey string
}

// Validate checks the request before any state is touched
func (r *RegisterRequest) Validate() error {
	if err := ValidateSerial(r.Serial); err != nil {
		return err
	}
	return ValidatePublicKey(r.PublicKey)
}

// Registration is the successful outcome of a register call. It bundles the
// persisted record with the relay-side details a device needs to build its
// tunnel configuration.
type Registration struct {
	Device         *registry.Device
	RelayPublicKey string
	RelayEndpoint  string
	RelayPort      int
	RelaySubnet    string
}

// DeregisterResult reports what was removed. Warning is set when the record
// was deleted but the live peer could not be confirmed gone.
type DeregisterResult struct {
	Device  *registry.Device
	Warning string
}

// ReconcileResult summarizes one reconciliation pass
type ReconcileResult struct {
	PeersAdded   int
	PeersRemoved int
	AddedSerials []string
	RemovedKeys  []string
	InSync       bool
}

// InterfaceStatus reports live interface health and registry usage
type InterfaceStatus struct {
	InterfaceUp    bool
	DeviceCount    int
	PoolCapacity   int
	RelayPublicKey string
}

// Config carries the relay-side connection details handed back to devices.
// RelayPublicKey, when set, overrides the key queried from the interface.
type Config struct {
	RelayEndpoint  string
	RelayPort      int
	RelayPublicKey string
	RelaySubnet    string
}
