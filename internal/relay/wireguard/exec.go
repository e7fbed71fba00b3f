package wireguard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/crypto"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// commandResult holds the outcome of one wg invocation
type commandResult struct {
	stdout   string
	stderr   string
	exitCode int
}

// runnerFunc executes a command and captures its output. Tests inject a fake
// to exercise the controller without a live interface.
type runnerFunc func(ctx context.Context, name string, args ...string) (*commandResult, error)

// ExecController drives the interface by invoking the wg tool as a
// subprocess. Mutations are serialized behind mu; every invocation is bounded
// by the configured timeout.
type ExecController struct {
	iface   string
	binary  string
	timeout time.Duration
	logger  *logger.Logger

	mu  sync.Mutex
	run runnerFunc
}

var _ Controller = (*ExecController)(nil)

// NewExecController creates a controller for the named interface. An empty
// binary falls back to the wg tool on PATH.
func NewExecController(iface, binary string, timeout time.Duration, log *logger.Logger) *ExecController {
	if binary == "" {
		binary = "wg"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecController{
		iface:   iface,
		binary:  binary,
		timeout: timeout,
		logger:  log.WithComponent("wireguard"),
		run:     runCommand,
	}
}

// AddPeer admits publicKey restricted to address/32. wg set overwrites the
// allowed-ips of an existing peer, so repeating the same add is harmless.
func (c *ExecController) AddPeer(ctx context.Context, publicKey, address string) error {
	if !crypto.IsValidWireGuardKey(publicKey) {
		return apperrors.NewWireGuardError(apperrors.ErrCodeValidation, "invalid WireGuard public key format", false, nil)
	}
	if address == "" {
		return apperrors.NewWireGuardError(apperrors.ErrCodeValidation, "peer address cannot be empty", false, nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.wg(ctx, "set", c.iface, "peer", publicKey, "allowed-ips", address+"/32")
	if err != nil {
		return err
	}
	if result.exitCode != 0 {
		return commandFailure("add peer", result)
	}

	c.logger.DebugContext(ctx, "peer added", "interface", c.iface, "public_key", publicKey[:8]+"...", "address", address)
	return nil
}

// RemovePeer drops the peer. The peer table is checked first so removing an
// absent peer short-circuits to success.
func (c *ExecController) RemovePeer(ctx context.Context, publicKey string) error {
	if !crypto.IsValidWireGuardKey(publicKey) {
		return apperrors.NewWireGuardError(apperrors.ErrCodeValidation, "invalid WireGuard public key format", false, nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	peers, err := c.listPeers(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to check peer table before removal, removing blind", "interface", c.iface, "error", err)
	} else if !containsKey(peers, publicKey) {
		c.logger.DebugContext(ctx, "peer not present, nothing to remove", "interface", c.iface, "public_key", publicKey[:8]+"...")
		return nil
	}

	result, err := c.wg(ctx, "set", c.iface, "peer", publicKey, "remove")
	if err != nil {
		return err
	}
	if result.exitCode != 0 {
		return commandFailure("remove peer", result)
	}

	c.logger.DebugContext(ctx, "peer removed", "interface", c.iface, "public_key", publicKey[:8]+"...")
	return nil
}

// IsHealthy reports whether wg can talk to the interface
func (c *ExecController) IsHealthy(ctx context.Context) bool {
	result, err := c.wg(ctx, "show", c.iface)
	if err != nil {
		c.logger.DebugContext(ctx, "interface health check failed", "interface", c.iface, "error", err)
		return false
	}
	if result.exitCode != 0 {
		c.logger.DebugContext(ctx, "interface health check failed", "interface", c.iface, "exit_code", result.exitCode, "stderr", result.stderr)
		return false
	}
	return true
}

// ListPeers returns the live peer table parsed from wg show dump
func (c *ExecController) ListPeers(ctx context.Context) ([]*PeerStatus, error) {
	return c.listPeers(ctx)
}

func (c *ExecController) listPeers(ctx context.Context) ([]*PeerStatus, error) {
	result, err := c.wg(ctx, "show", c.iface, "dump")
	if err != nil {
		return nil, err
	}
	if result.exitCode != 0 {
		return nil, commandFailure("list peers", result)
	}
	return parsePeerDump(result.stdout), nil
}

// InterfacePublicKey returns the relay's own public key
func (c *ExecController) InterfacePublicKey(ctx context.Context) (string, error) {
	result, err := c.wg(ctx, "show", c.iface, "public-key")
	if err != nil {
		return "", err
	}
	if result.exitCode != 0 {
		return "", commandFailure("read interface public key", result)
	}
	return strings.TrimSpace(result.stdout), nil
}

// Close is a no-op, the exec backend holds no resources
func (c *ExecController) Close() error {
	return nil
}

// wg invokes the tool with the operation timeout applied on top of the
// caller's context.
func (c *ExecController) wg(ctx context.Context, args ...string) (*commandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.run(ctx, c.binary, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewWireGuardError(apperrors.ErrCodeTimeout, "wg invocation timed out", true, err).
				WithMetadata("interface", c.iface).
				WithMetadata("timeout", c.timeout.String())
		}
		return nil, apperrors.NewWireGuardError(apperrors.ErrCodeWireGuardError, "failed to invoke wg", true, err).
			WithMetadata("interface", c.iface)
	}
	return result, nil
}

// runCommand is the production runner. Nonzero exits are reported through
// commandResult, not as errors, so callers can attach stderr context.
func runCommand(ctx context.Context, name string, args ...string) (*commandResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &commandResult{
		stdout: stdout.String(),
		stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.exitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, err
	}
	return result, nil
}

// parsePeerDump parses wg show <iface> dump output. The first line describes
// the interface itself and carries four fields; peer lines carry eight.
func parsePeerDump(output string) []*PeerStatus {
	peers := []*PeerStatus{}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 8 {
			continue
		}

		peer := &PeerStatus{PublicKey: fields[0]}

		if fields[2] != "(none)" {
			peer.Endpoint = fields[2]
		}
		if fields[3] != "(none)" {
			peer.AllowedIPs = strings.Split(fields[3], ",")
		}
		if ts, err := strconv.ParseInt(fields[4], 10, 64); err == nil && ts > 0 {
			peer.LastHandshake = time.Unix(ts, 0)
		}
		if rx, err := strconv.ParseInt(fields[5], 10, 64); err == nil {
			peer.TransferRx = rx
		}
		if tx, err := strconv.ParseInt(fields[6], 10, 64); err == nil {
			peer.TransferTx = tx
		}

		peers = append(peers, peer)
	}

	return peers
}

func containsKey(peers []*PeerStatus, publicKey string) bool {
	for _, p := range peers {
		if p.PublicKey == publicKey {
			return true
		}
	}
	return false
}

func commandFailure(action string, result *commandResult) error {
	return apperrors.NewWireGuardError(apperrors.ErrCodeWireGuardError, fmt.Sprintf("%s command failed", action), true, nil).
		WithMetadata("exit_code", result.exitCode).
		WithMetadata("stderr", strings.TrimSpace(result.stderr))
}
