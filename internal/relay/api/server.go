package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/device"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/registry"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// DeviceService defines the coordinator surface the API server depends on.
type DeviceService interface {
	Register(ctx context.Context, req *device.RegisterRequest) (*device.Registration, error)
	Deregister(ctx context.Context, serial string) (*device.DeregisterResult, error)
	Get(ctx context.Context, serial string) (*registry.Device, error)
	List(ctx context.Context) ([]*registry.Device, error)
	Reconcile(ctx context.Context) (*device.ReconcileResult, error)
	Status(ctx context.Context) (*device.InterfaceStatus, error)
}

// ServerConfig contains configuration for the API server.
type ServerConfig struct {
	Address     string
	CORSOrigins []string
	Version     string
	Interface   string
}

// Connection handling limits for the embedded http.Server. Registration
// exchanges are small, so slow readers get cut off early.
const (
	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = 60 * time.Second

	// startupGrace is how long Start waits for ListenAndServe to fail
	// fast, typically on a busy port, before reporting success.
	startupGrace = 100 * time.Millisecond
)

// Server represents the HTTP API server with proper lifecycle management.
type Server struct {
	server  *http.Server
	devices DeviceService
	logger  *logger.Logger
	config  ServerConfig
}

// NewServer creates a new API server instance.
func NewServer(config ServerConfig, devices DeviceService, log *logger.Logger) *Server {
	return &Server{
		devices: devices,
		logger:  log.WithComponent("api"),
		config:  config,
		server: &http.Server{
			Addr:         config.Address,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
	}
}

// Handler builds the routed handler with the full middleware chain. Exposed
// so the API can be mounted without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	return s.registerRoutes(mux)
}

// Start starts the HTTP server and begins serving requests.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.Handler()

	s.logger.InfoContext(ctx, "starting API server", "address", s.server.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("api server failed to start: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(startupGrace):
		s.logger.InfoContext(ctx, "API server started", "address", s.server.Addr)
		return nil
	}
}

// Stop gracefully shuts down the HTTP server. The caller bounds the drain
// through ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "shutting down API server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}

	s.logger.InfoContext(ctx, "API server shut down")
	return nil
}

// registerRoutes registers API routes with middleware. RequestID sits
// outermost so every layer below sees the request-scoped logger.
func (s *Server) registerRoutes(mux *http.ServeMux) http.Handler {
	mux.HandleFunc("/health", s.healthHandler())

	mux.HandleFunc("POST /api/v1/devices", s.registerDeviceHandler())
	mux.HandleFunc("GET /api/v1/devices", s.listDevicesHandler())
	mux.HandleFunc("GET /api/v1/devices/{serial}", s.getDeviceHandler())
	mux.HandleFunc("DELETE /api/v1/devices/{serial}", s.deregisterDeviceHandler())
	mux.HandleFunc("POST /api/v1/reconcile", s.reconcileHandler())

	return Chain(
		RequestID(s.logger),
		Recovery(),
		Logging(),
		CORS(s.config.CORSOrigins),
	)(mux)
}
