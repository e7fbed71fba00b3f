package wireguard

import (
	"context"
	"time"
)

// Controller applies peer-set changes to the live WireGuard interface.
// Implementations serialize their own mutations; the interface's peer table
// is not safe for concurrent external modification.
type Controller interface {
	// AddPeer admits a peer restricted to routing exactly one address.
	// Re-adding the same key with the same address succeeds without
	// creating a duplicate entry.
	AddPeer(ctx context.Context, publicKey, address string) error

	// RemovePeer drops the peer if present. A peer that is already absent
	// is success, the goal state is satisfied.
	RemovePeer(ctx context.Context, publicKey string) error

	// IsHealthy reports whether the interface is up and controllable
	IsHealthy(ctx context.Context) bool

	// ListPeers returns the live peer table
	ListPeers(ctx context.Context) ([]*PeerStatus, error)

	// InterfacePublicKey returns the relay's own public key
	InterfacePublicKey(ctx context.Context) (string, error)

	Close() error
}

// PeerStatus is one entry of the live peer table
type PeerStatus struct {
	PublicKey     string
	AllowedIPs    []string
	Endpoint      string
	LastHandshake time.Time
	TransferRx    int64
	TransferTx    int64
}

// Config selects and tunes a controller backend
type Config struct {
	// Interface is the WireGuard interface name, e.g. "wg0"
	Interface string

	// Backend is "exec" (wg command) or "kernel" (netlink via wgctrl)
	Backend string

	// BinaryPath overrides the wg tool location for the exec backend
	BinaryPath string

	// Timeout bounds a single control operation
	Timeout time.Duration
}

const (
	BackendExec   = "exec"
	BackendKernel = "kernel"

	// DefaultTimeout bounds wg invocations so a wedged tool surfaces as a
	// structured timeout failure instead of a hung request
	DefaultTimeout = 10 * time.Second
)
