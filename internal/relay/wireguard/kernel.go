package wireguard

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	apperrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// KernelController drives the interface directly over netlink via wgctrl,
// avoiding the wg binary entirely. Netlink operations complete synchronously
// in the kernel, so no per-call timeout is layered on top.
type KernelController struct {
	iface  string
	logger *logger.Logger

	mu     sync.Mutex
	client *wgctrl.Client
}

var _ Controller = (*KernelController)(nil)

// NewKernelController opens a wgctrl client for the named interface
func NewKernelController(iface string, log *logger.Logger) (*KernelController, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, apperrors.NewWireGuardError(apperrors.ErrCodeWireGuardError, "failed to open wireguard control client", false, err)
	}

	return &KernelController{
		iface:  iface,
		logger: log.WithComponent("wireguard"),
		client: client,
	}, nil
}

// AddPeer admits publicKey restricted to address/32, replacing any previous
// allowed-ips the peer held.
func (c *KernelController) AddPeer(ctx context.Context, publicKey, address string) error {
	key, err := wgtypes.ParseKey(publicKey)
	if err != nil {
		return apperrors.NewWireGuardError(apperrors.ErrCodeValidation, "invalid WireGuard public key format", false, err)
	}

	ip := net.ParseIP(address)
	if ip == nil || ip.To4() == nil {
		return apperrors.NewWireGuardError(apperrors.ErrCodeValidation, "peer address is not a valid IPv4 address", false, nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := wgtypes.Config{
		Peers: []wgtypes.PeerConfig{{
			PublicKey:         key,
			ReplaceAllowedIPs: true,
			AllowedIPs: []net.IPNet{{
				IP:   ip.To4(),
				Mask: net.CIDRMask(32, 32),
			}},
		}},
	}

	if err := c.client.ConfigureDevice(c.iface, cfg); err != nil {
		return apperrors.NewWireGuardError(apperrors.ErrCodeWireGuardError, "failed to add peer", true, err).
			WithMetadata("interface", c.iface)
	}

	c.logger.DebugContext(ctx, "peer added", "interface", c.iface, "public_key", publicKey[:8]+"...", "address", address)
	return nil
}

// RemovePeer drops the peer; an absent peer is already the goal state
func (c *KernelController) RemovePeer(ctx context.Context, publicKey string) error {
	key, err := wgtypes.ParseKey(publicKey)
	if err != nil {
		return apperrors.NewWireGuardError(apperrors.ErrCodeValidation, "invalid WireGuard public key format", false, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	device, err := c.client.Device(c.iface)
	if err != nil {
		return deviceFailure(c.iface, err)
	}

	present := false
	for _, p := range device.Peers {
		if p.PublicKey == key {
			present = true
			break
		}
	}
	if !present {
		c.logger.DebugContext(ctx, "peer not present, nothing to remove", "interface", c.iface, "public_key", publicKey[:8]+"...")
		return nil
	}

	cfg := wgtypes.Config{
		Peers: []wgtypes.PeerConfig{{
			PublicKey: key,
			Remove:    true,
		}},
	}

	if err := c.client.ConfigureDevice(c.iface, cfg); err != nil {
		return apperrors.NewWireGuardError(apperrors.ErrCodeWireGuardError, "failed to remove peer", true, err).
			WithMetadata("interface", c.iface)
	}

	c.logger.DebugContext(ctx, "peer removed", "interface", c.iface, "public_key", publicKey[:8]+"...")
	return nil
}

// IsHealthy reports whether the interface exists and answers netlink queries
func (c *KernelController) IsHealthy(ctx context.Context) bool {
	if _, err := c.client.Device(c.iface); err != nil {
		c.logger.DebugContext(ctx, "interface health check failed", "interface", c.iface, "error", err)
		return false
	}
	return true
}

// ListPeers returns the live peer table
func (c *KernelController) ListPeers(ctx context.Context) ([]*PeerStatus, error) {
	device, err := c.client.Device(c.iface)
	if err != nil {
		return nil, deviceFailure(c.iface, err)
	}

	peers := make([]*PeerStatus, 0, len(device.Peers))
	for _, p := range device.Peers {
		status := &PeerStatus{
			PublicKey:     p.PublicKey.String(),
			LastHandshake: p.LastHandshakeTime,
			TransferRx:    p.ReceiveBytes,
			TransferTx:    p.TransmitBytes,
		}
		if p.Endpoint != nil {
			status.Endpoint = p.Endpoint.String()
		}
		for _, ipNet := range p.AllowedIPs {
			status.AllowedIPs = append(status.AllowedIPs, ipNet.String())
		}
		peers = append(peers, status)
	}
	return peers, nil
}

// InterfacePublicKey returns the relay's own public key
func (c *KernelController) InterfacePublicKey(ctx context.Context) (string, error) {
	device, err := c.client.Device(c.iface)
	if err != nil {
		return "", deviceFailure(c.iface, err)
	}
	return device.PublicKey.String(), nil
}

// Close releases the netlink client
func (c *KernelController) Close() error {
	return c.client.Close()
}

func deviceFailure(iface string, err error) error {
	if os.IsNotExist(err) {
		return apperrors.DomainErrInterfaceDown.WithMetadata("interface", iface)
	}
	return apperrors.NewWireGuardError(apperrors.ErrCodeWireGuardError, fmt.Sprintf("failed to query interface %s", iface), true, err)
}
