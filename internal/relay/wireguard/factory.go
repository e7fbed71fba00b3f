package wireguard

import (
	apperrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// NewController builds the backend selected by cfg. The exec backend is the
// default since every relay host with WireGuard installed carries the wg
// tool; the kernel backend skips the subprocess and speaks netlink directly.
func NewController(cfg Config, log *logger.Logger) (Controller, error) {
	if cfg.Interface == "" {
		return nil, apperrors.DomainErrInvalidConfig.WithMetadata("field", "wireguard.interface")
	}

	switch cfg.Backend {
	case BackendExec, "":
		return NewExecController(cfg.Interface, cfg.BinaryPath, cfg.Timeout, log), nil
	case BackendKernel:
		return NewKernelController(cfg.Interface, log)
	default:
		return nil, apperrors.DomainErrInvalidConfig.
			WithMetadata("field", "wireguard.backend").
			WithMetadata("value", cfg.Backend)
	}
}
