package api

import (
	"net/http"

	"github.com/trevor-gituru/wireguard-relay-api/pkg/api"
)

// healthHandler returns the service health status. The relay stays reachable
// while its interface is down, so a degraded status still answers 200.
func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := GetLogger(ctx)
		op := logger.StartOp(ctx, "healthHandler")

		status, err := s.devices.Status(ctx)
		if err != nil {
			op.Fail(err, "failed to get health status")
			WriteErrorResponse(w, r, err)
			return
		}

		response := api.HealthResponse{
			Status:         "healthy",
			Version:        s.config.Version,
			Interface:      s.config.Interface,
			InterfaceUp:    status.InterfaceUp,
			DeviceCount:    status.DeviceCount,
			PoolCapacity:   status.PoolCapacity,
			RelayPublicKey: status.RelayPublicKey,
		}
		if !status.InterfaceUp {
			response.Status = "degraded"
		}

		if err := WriteSuccess(w, response); err != nil {
			op.Fail(err, "failed to encode health response")
			return
		}
		op.Complete("health check successful", "status", response.Status)
	}
}
