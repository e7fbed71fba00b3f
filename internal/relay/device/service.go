package device

import (
	"context"
	"log/slog"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/events"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/registry"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/wireguard"
	apperrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// service implements the Service interface. It is the only component that
// touches both the registry and the live interface, and the only place the
// compensating rollback logic lives.
type service struct {
	registry   Registry
	controller wireguard.Controller
	bus        *events.DeviceEventBus
	logger     *logger.Logger

	relayEndpoint  string
	relayPort      int
	relayPublicKey string
	relaySubnet    string
}

// NewService creates the registration coordinator
func NewService(reg Registry, controller wireguard.Controller, bus *events.DeviceEventBus, cfg Config, log *logger.Logger) Service {
	return &service{
		registry:       reg,
		controller:     controller,
		bus:            bus,
		logger:         log.WithComponent("device.service"),
		relayEndpoint:  cfg.RelayEndpoint,
		relayPort:      cfg.RelayPort,
		relayPublicKey: cfg.RelayPublicKey,
		relaySubnet:    cfg.RelaySubnet,
	}
}

// Register runs the two-phase registration. The registry write comes first
// because it is cheap and reversible; the interface write is attempted only
// once an address is leased, and its failure rolls the record back so no
// address stays leased without a live peer.
func (s *service) Register(ctx context.Context, req *RegisterRequest) (*Registration, error) {
	ctx = logger.WithSerial(ctx, req.Serial)
	op := s.logger.StartOp(ctx, "RegisterDevice")

	if err := req.Validate(); err != nil {
		op.Fail(err, "validation failed")
		return nil, err
	}

	if !s.controller.IsHealthy(ctx) {
		err := apperrors.DomainErrInterfaceDown.WithMetadata("serial", req.Serial)
		s.publishRegistrationFailed(req.Serial, err)
		op.Fail(err, "interface precondition failed")
		return nil, err
	}

	record, err := s.registry.Insert(ctx, req.Serial, req.PublicKey)
	if err != nil {
		s.publishRegistrationFailed(req.Serial, err)
		op.Fail(err, "failed to persist device record")
		return nil, err
	}
	op.Progress("record persisted", slog.String("address", record.Address))

	if err := s.controller.AddPeer(ctx, req.PublicKey, record.Address); err != nil {
		s.logger.WarnContext(ctx, "peer admission failed, rolling back registration",
			"address", record.Address, "error", err)

		if rbErr := s.registry.RollbackInsert(ctx, req.Serial); rbErr != nil {
			// The record survives with no live peer behind it; the next
			// reconcile pass re-admits the peer or an operator removes it
			s.logger.ErrorCtx(ctx, "rollback failed, registry holds a record without a live peer", rbErr,
				slog.String("address", record.Address))
		}

		s.publishRegistrationFailed(req.Serial, err)
		op.Fail(err, "peer admission failed, registration rolled back")
		return nil, err
	}

	relayKey := s.relayPublicKey
	if relayKey == "" {
		relayKey, err = s.controller.InterfacePublicKey(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to read interface public key for response", "error", err)
			relayKey = ""
		}
	}

	if err := s.bus.PublishDeviceRegistered(record.Serial, record.Address, record.PublicKey); err != nil {
		s.logger.WarnContext(ctx, "failed to publish device registered event", "error", err)
	}

	op.Complete("device registered", slog.String("address", record.Address))
	return &Registration{
		Device:         record,
		RelayPublicKey: relayKey,
		RelayEndpoint:  s.relayEndpoint,
		RelayPort:      s.relayPort,
		RelaySubnet:    s.relaySubnet,
	}, nil
}

// Deregister removes the live peer first, then deletes the record. Peer
// removal is best effort: a stale registry record is worse than a stale peer
// entry, since the peer can be swept by the next reconcile pass while a
// lingering record would pin the address forever.
func (s *service) Deregister(ctx context.Context, serial string) (*DeregisterResult, error) {
	ctx = logger.WithSerial(ctx, serial)
	op := s.logger.StartOp(ctx, "DeregisterDevice")

	if err := ValidateSerial(serial); err != nil {
		op.Fail(err, "validation failed")
		return nil, err
	}

	record, err := s.registry.Get(ctx, serial)
	if err != nil {
		op.Fail(err, "device lookup failed")
		return nil, err
	}

	warning := ""
	if err := s.controller.RemovePeer(ctx, record.PublicKey); err != nil {
		warning = "peer removal failed, the interface may hold a stale peer until the next reconcile"
		s.logger.WarnContext(ctx, "peer removal failed during deregistration, proceeding with record deletion",
			"error", err)
	} else {
		op.Progress("peer removed from interface")
	}

	removed, err := s.registry.Remove(ctx, serial)
	if err != nil {
		op.Fail(err, "failed to delete device record")
		return nil, err
	}

	if err := s.bus.PublishDeviceDeregistered(removed.Serial, removed.Address, warning); err != nil {
		s.logger.WarnContext(ctx, "failed to publish device deregistered event", "error", err)
	}

	if warning != "" {
		op.Complete("device deregistered with degraded peer removal", slog.String("warning", warning))
	} else {
		op.Complete("device deregistered", slog.String("address", removed.Address))
	}
	return &DeregisterResult{Device: removed, Warning: warning}, nil
}

// Get retrieves a device record by serial
func (s *service) Get(ctx context.Context, serial string) (*registry.Device, error) {
	ctx = logger.WithSerial(ctx, serial)
	op := s.logger.StartOp(ctx, "GetDevice")

	if err := ValidateSerial(serial); err != nil {
		op.Fail(err, "validation failed")
		return nil, err
	}

	record, err := s.registry.Get(ctx, serial)
	if err != nil {
		op.Fail(err, "device lookup failed")
		return nil, err
	}

	op.Complete("device retrieved")
	return record, nil
}

// List returns all registered devices in insertion order
func (s *service) List(ctx context.Context) ([]*registry.Device, error) {
	op := s.logger.StartOp(ctx, "ListDevices")

	records, err := s.registry.List(ctx)
	if err != nil {
		op.Fail(err, "failed to list devices")
		return nil, err
	}

	op.Complete("devices listed", slog.Int("count", len(records)))
	return records, nil
}

// Reconcile drives the live peer table toward the registry: rogue peers are
// removed first, then missing peers are re-admitted. Individual peer errors
// are logged and skipped so one bad entry cannot wedge the whole pass.
func (s *service) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	op := s.logger.StartOp(ctx, "ReconcileInterface")

	if !s.controller.IsHealthy(ctx) {
		err := apperrors.DomainErrInterfaceDown
		op.Fail(err, "interface precondition failed")
		return nil, err
	}

	records, err := s.registry.List(ctx)
	if err != nil {
		op.Fail(err, "failed to list devices")
		return nil, err
	}

	peers, err := s.controller.ListPeers(ctx)
	if err != nil {
		op.Fail(err, "failed to list live peers")
		return nil, err
	}

	desired := make(map[string]*registry.Device, len(records))
	for _, record := range records {
		desired[record.PublicKey] = record
	}
	live := make(map[string]bool, len(peers))
	for _, peer := range peers {
		live[peer.PublicKey] = true
	}

	result := &ReconcileResult{}

	for _, peer := range peers {
		if _, ok := desired[peer.PublicKey]; ok {
			continue
		}
		op.Progress("removing rogue peer", slog.String("public_key", redactKey(peer.PublicKey)))
		if err := s.controller.RemovePeer(ctx, peer.PublicKey); err != nil {
			s.logger.ErrorCtx(ctx, "failed to remove rogue peer during reconcile", err,
				slog.String("public_key", redactKey(peer.PublicKey)))
			continue
		}
		result.PeersRemoved++
		result.RemovedKeys = append(result.RemovedKeys, redactKey(peer.PublicKey))
	}

	for _, record := range records {
		if live[record.PublicKey] {
			continue
		}
		op.Progress("admitting missing peer", slog.String("serial", record.Serial))
		if err := s.controller.AddPeer(ctx, record.PublicKey, record.Address); err != nil {
			s.logger.ErrorCtx(ctx, "failed to admit missing peer during reconcile", err,
				slog.String("serial", record.Serial))
			continue
		}
		result.PeersAdded++
		result.AddedSerials = append(result.AddedSerials, record.Serial)
	}

	result.InSync = result.PeersAdded == 0 && result.PeersRemoved == 0

	if err := s.bus.PublishInterfaceReconciled(result.PeersAdded, result.PeersRemoved); err != nil {
		s.logger.WarnContext(ctx, "failed to publish reconcile event", "error", err)
	}

	op.Complete("reconciliation finished",
		slog.Int("peers_added", result.PeersAdded),
		slog.Int("peers_removed", result.PeersRemoved))
	return result, nil
}

// Status reports interface health, registry usage and the relay public key
func (s *service) Status(ctx context.Context) (*InterfaceStatus, error) {
	count, err := s.registry.Count(ctx)
	if err != nil {
		return nil, err
	}

	status := &InterfaceStatus{
		InterfaceUp:  s.controller.IsHealthy(ctx),
		DeviceCount:  count,
		PoolCapacity: s.registry.Capacity(),
	}

	if s.relayPublicKey != "" {
		status.RelayPublicKey = s.relayPublicKey
	} else if status.InterfaceUp {
		if key, err := s.controller.InterfacePublicKey(ctx); err == nil {
			status.RelayPublicKey = key
		}
	}

	return status, nil
}

func (s *service) publishRegistrationFailed(serial string, cause error) {
	if err := s.bus.PublishRegistrationFailed(serial, apperrors.GetErrorCode(cause), cause.Error()); err != nil {
		s.logger.Warn("failed to publish registration failed event", "serial", serial, "error", err)
	}
}

// redactKey shortens a public key for log output
func redactKey(key string) string {
	if len(key) < 12 {
		return "..."
	}
	return key[:8] + "..."
}
