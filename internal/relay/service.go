package relay

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gookit/event"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/api"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/config"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/device"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/events"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/ip"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/registry"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/wireguard"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// Version is reported by the health endpoint and startup logs
const Version = "1.0.0"

// APIServer is the lifecycle surface of the HTTP front end
type APIServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Service owns the relay's components and their lifecycle. It wires the
// address allocator, the file-backed registry, the interface controller and
// the HTTP API together, and coordinates graceful shutdown on SIGINT/SIGTERM.
type Service struct {
	config *config.Config
	logger *logger.Logger

	store      *registry.FileStore
	controller wireguard.Controller
	bus        *events.DeviceEventBus
	devices    device.Service
	apiServer  APIServer

	ctx    context.Context
	cancel context.CancelFunc

	signalChan chan os.Signal
	shutdownWg sync.WaitGroup

	isRunning bool
	mu        sync.RWMutex

	// disableSignalHandling keeps tests free of process-wide signal state
	disableSignalHandling bool
}

// NewService creates the relay service and initializes all components in
// dependency order. The returned service holds the registry file lock until
// Stop is called.
func NewService(cfg *config.Config, log *logger.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		config:     cfg,
		logger:     log.WithComponent("service"),
		ctx:        ctx,
		cancel:     cancel,
		signalChan: make(chan os.Signal, 1),
	}

	if err := s.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return s, nil
}

// initializeComponents builds the component graph bottom-up. Each step only
// depends on the ones before it.
func (s *Service) initializeComponents() error {
	// 1. Address allocator from the configured subnet
	s.logger.Debug("initializing address allocator",
		"subnet", s.config.Network.SubnetCIDR,
		"reserved", s.config.Network.Reserved)
	allocator, err := ip.NewAllocator(s.config.Network.SubnetCIDR, s.config.Network.Reserved)
	if err != nil {
		return fmt.Errorf("failed to create address allocator: %w", err)
	}

	// 2. File-backed device registry (acquires the exclusive file lock)
	s.logger.Debug("initializing device registry", "path", s.config.Registry.Path)
	store, err := registry.NewFileStore(s.config.Registry.Path, allocator, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open device registry: %w", err)
	}
	s.store = store

	// 3. Interface controller for the configured backend
	s.logger.Debug("initializing interface controller",
		"interface", s.config.WireGuard.Interface,
		"backend", s.config.WireGuard.Backend)
	controller, err := wireguard.NewController(wireguard.Config{
		Interface:  s.config.WireGuard.Interface,
		Backend:    s.config.WireGuard.Backend,
		BinaryPath: s.config.WireGuard.BinaryPath,
		Timeout:    s.config.WireGuard.CommandTimeout,
	}, s.logger)
	if err != nil {
		// The registry lock must not outlive a failed construction
		if cerr := s.store.Close(); cerr != nil {
			s.logger.Warn("failed to close device registry after init failure", "error", cerr)
		}
		return fmt.Errorf("failed to create interface controller: %w", err)
	}
	s.controller = controller

	// 4. Event bus for registration lifecycle events
	s.logger.Debug("initializing event bus")
	s.bus = events.NewDeviceEventBus(s.logger.Unwrap())
	s.installEventLogging()

	// 5. Device service coordinating registry and interface
	s.logger.Debug("initializing device service")
	s.devices = device.NewService(s.store, s.controller, s.bus, device.Config{
		RelayEndpoint:  s.config.WireGuard.Endpoint,
		RelayPort:      s.config.WireGuard.ListenPort,
		RelayPublicKey: s.config.WireGuard.PublicKey,
		RelaySubnet:    s.config.Network.SubnetCIDR,
	}, s.logger)

	// 6. HTTP API server on top of the device service
	s.logger.Debug("initializing API server", "address", s.config.Server.ListenAddr())
	s.apiServer = api.NewServer(api.ServerConfig{
		Address: s.config.Server.ListenAddr(),
		// The API fronts a fleet-internal network, CORS stays permissive
		CORSOrigins: []string{"*"},
		Version:     Version,
		Interface:   s.config.WireGuard.Interface,
	}, s.devices, s.logger)

	s.logger.Debug("all components initialized")
	return nil
}

// installEventLogging subscribes observers that mirror device lifecycle
// events into the service log. Listeners only log, they never block a
// coordinator operation.
func (s *Service) installEventLogging() {
	log := s.logger.WithComponent("events")

	s.bus.SubscribeToDeviceRegistered(event.ListenerFunc(func(e event.Event) error {
		if p, err := events.ExtractPayload[events.DeviceRegisteredEvent](e); err == nil {
			log.Info("device registered", "serial", p.Serial, "address", p.Address)
		}
		return nil
	}))

	s.bus.SubscribeToDeviceDeregistered(event.ListenerFunc(func(e event.Event) error {
		if p, err := events.ExtractPayload[events.DeviceDeregisteredEvent](e); err == nil {
			if p.Warning != "" {
				log.Warn("device deregistered with warning",
					"serial", p.Serial, "address", p.Address, "warning", p.Warning)
			} else {
				log.Info("device deregistered", "serial", p.Serial, "address", p.Address)
			}
		}
		return nil
	}))

	s.bus.SubscribeToRegistrationFailed(event.ListenerFunc(func(e event.Event) error {
		if p, err := events.ExtractPayload[events.RegistrationFailedEvent](e); err == nil {
			log.Warn("registration failed", "serial", p.Serial, "code", p.Code, "reason", p.Reason)
		}
		return nil
	}))

	s.bus.SubscribeToInterfaceReconciled(event.ListenerFunc(func(e event.Event) error {
		if p, err := events.ExtractPayload[events.InterfaceReconciledEvent](e); err == nil {
			log.Info("interface reconciled",
				"peers_added", p.PeersAdded, "peers_removed", p.PeersRemoved)
		}
		return nil
	}))
}

// Start brings the service up: signal handling, a best-effort reconcile of
// the interface against the registry, then the API server.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("relay service is already running")
	}

	s.logger.Info("starting wireguard relay service",
		"version", Version,
		"listen_addr", s.config.Server.ListenAddr(),
		"interface", s.config.WireGuard.Interface)

	if !s.disableSignalHandling {
		s.setupSignalHandling()
	}

	s.reconcileAtStartup(ctx)

	if err := s.apiServer.Start(s.ctx); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	s.isRunning = true
	s.logger.Info("wireguard relay service started")
	return nil
}

// reconcileAtStartup replays the registry onto the live interface so a
// restart converges the peer table before the API accepts traffic. Failure
// is not fatal: the interface may come up later, and the reconcile endpoint
// stays available to operators.
func (s *Service) reconcileAtStartup(ctx context.Context) {
	result, err := s.devices.Reconcile(ctx)
	if err != nil {
		s.logger.Warn("startup reconcile skipped", "error", err)
		return
	}

	s.logger.Info("startup reconcile complete",
		"peers_added", result.PeersAdded,
		"peers_removed", result.PeersRemoved,
		"in_sync", result.InSync)
}

// setupSignalHandling registers for shutdown signals and starts the handler
func (s *Service) setupSignalHandling() {
	signal.Notify(s.signalChan, syscall.SIGINT, syscall.SIGTERM)

	s.shutdownWg.Add(1)
	go s.handleSignals()
}

// handleSignals blocks until a shutdown signal arrives, then drives a
// graceful stop bounded by the configured shutdown timeout.
func (s *Service) handleSignals() {
	defer s.shutdownWg.Done()

	select {
	case sig := <-s.signalChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error("error during graceful shutdown", "error", err)
		}

	case <-s.ctx.Done():
		s.logger.Debug("signal handler exiting, service context cancelled")
	}
}

// WaitForShutdown blocks until the signal handler has completed a shutdown.
// With signal handling disabled it returns immediately.
func (s *Service) WaitForShutdown() {
	s.shutdownWg.Wait()
}

// Stop shuts the components down in reverse dependency order. Errors are
// logged and the last one is returned; shutdown always runs to completion.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.logger.Info("stopping wireguard relay service")

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
	}

	var lastErr error

	// Unregister from signals. The handler goroutine exits through the
	// service context below, the channel is deliberately left open.
	if !s.disableSignalHandling {
		signal.Stop(s.signalChan)
	}

	// 1. Stop accepting HTTP traffic and drain in-flight requests
	if err := s.apiServer.Stop(ctx); err != nil {
		s.logger.Error("failed to stop API server", "error", err)
		lastErr = err
	}

	// 2. Close the event bus so subscribers stop receiving
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Error("failed to close event bus", "error", err)
			lastErr = err
		}
	}

	// 3. Release the interface controller
	if s.controller != nil {
		if err := s.controller.Close(); err != nil {
			s.logger.Error("failed to close interface controller", "error", err)
			lastErr = err
		}
	}

	// 4. Close the registry, releasing the file lock
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close device registry", "error", err)
			lastErr = err
		}
	}

	// 5. Cancel the service context to release any remaining goroutines
	s.cancel()

	s.isRunning = false

	if lastErr != nil {
		return fmt.Errorf("shutdown completed with errors: %w", lastErr)
	}

	s.logger.Info("wireguard relay service stopped")
	return nil
}

// Health reports whether the service is running and its registry reachable
func (s *Service) Health(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return fmt.Errorf("relay service is not running")
	}

	select {
	case <-s.ctx.Done():
		return fmt.Errorf("service context cancelled")
	default:
	}

	if _, err := s.store.Count(ctx); err != nil {
		return fmt.Errorf("device registry unavailable: %w", err)
	}
	return nil
}

// IsRunning reports whether Start has completed and Stop has not
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Context exposes the service context to components that outlive requests
func (s *Service) Context() context.Context {
	return s.ctx
}
