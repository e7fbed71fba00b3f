package device

import (
	"context"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/registry"
)

// Service defines the business logic interface for device registration. This
// is the only surface the transport layer calls.
type Service interface {
	// Register persists the device under a leased address and admits its
	// peer on the live interface as one observable unit
	Register(ctx context.Context, req *RegisterRequest) (*Registration, error)

	// Deregister removes the live peer and deletes the record. A failed
	// peer removal degrades to a warning, it does not block deletion.
	Deregister(ctx context.Context, serial string) (*DeregisterResult, error)

	// Lookup operations
	Get(ctx context.Context, serial string) (*registry.Device, error)
	List(ctx context.Context) ([]*registry.Device, error)

	// Reconcile aligns the live peer table with the registry
	Reconcile(ctx context.Context) (*ReconcileResult, error)

	// Status reports interface health and pool usage
	Status(ctx context.Context) (*InterfaceStatus, error)
}

// Registry defines the persistence interface the coordinator depends on,
// implemented by the file-backed store.
type Registry interface {
	Insert(ctx context.Context, serial, publicKey string) (*registry.Device, error)
	Get(ctx context.Context, serial string) (*registry.Device, error)
	List(ctx context.Context) ([]*registry.Device, error)
	Remove(ctx context.Context, serial string) (*registry.Device, error)
	RollbackInsert(ctx context.Context, serial string) error
	Count(ctx context.Context) (int, error)
	Capacity() int
}
