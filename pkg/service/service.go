package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castbridge/castbridge-go/pkg/castv2"
	"github.com/castbridge/castbridge-go/pkg/config"
	"github.com/castbridge/castbridge-go/pkg/discovery"
	castlog "github.com/castbridge/castbridge-go/pkg/log"
	"github.com/castbridge/castbridge-go/pkg/media"
	"github.com/castbridge/castbridge-go/pkg/multizone"
	"github.com/castbridge/castbridge-go/pkg/registry"
)

// Service errors.
var (
	ErrNoDialer     = errors.New("service: no client dialer configured")
	ErrGroupUnknown = errors.New("service: group device not yet discovered")
)

// defaultStopTimeout caps how long Stop waits for sessions to
// disconnect before giving up on stragglers.
const defaultStopTimeout = 5 * time.Second

// Config carries the collaborators and settings for a bridge service.
type Config struct {
	// Dialer creates device clients. Required.
	Dialer castv2.Dialer

	// Browser and Resolver feed the discovery listener. When nil, a
	// zeroconf mDNS browser is used for both.
	Browser  discovery.Browser
	Resolver discovery.Resolver

	// Bridge is the parsed castbridge configuration. Optional; nil
	// means auto-discovery with no base URLs and no event log.
	Bridge *config.Config

	// Logger is the diagnostic logger. Optional.
	Logger *slog.Logger

	// EventLog receives structured events in addition to the file log
	// enabled by Bridge.EventLogPath. Optional.
	EventLog castlog.Logger

	// StopTimeout overrides the session disconnect deadline on Stop.
	StopTimeout time.Duration
}

// Service is the running bridge: one discovery listener feeding one
// registry of device sessions, sharing one group status manager.
type Service struct {
	mu sync.Mutex

	logger      *slog.Logger
	eventLog    castlog.Logger
	fileLog     *castlog.FileLogger
	stopTimeout time.Duration

	listener *discovery.Listener
	registry *registry.Registry
	groups   *multizone.Manager

	filters []config.DeviceEntry

	// ctx is the lifecycle context; non-nil cancel means started.
	ctx    context.Context
	cancel context.CancelFunc
}

// New assembles a bridge service from its configuration. Nothing is
// dialed or browsed until Start.
func New(cfg Config) (*Service, error) {
	if cfg.Dialer == nil {
		return nil, ErrNoDialer
	}

	s := &Service{
		logger:      cfg.Logger,
		eventLog:    castlog.NoopLogger{},
		stopTimeout: cfg.StopTimeout,
	}
	if s.stopTimeout <= 0 {
		s.stopTimeout = defaultStopTimeout
	}

	sinks := []castlog.Logger{}
	if cfg.EventLog != nil {
		sinks = append(sinks, cfg.EventLog)
	}
	if cfg.Bridge != nil && cfg.Bridge.EventLogPath != "" {
		fileLog, err := castlog.NewFileLogger(cfg.Bridge.EventLogPath)
		if err != nil {
			return nil, fmt.Errorf("service: open event log: %w", err)
		}
		s.fileLog = fileLog
		sinks = append(sinks, fileLog)
	}
	switch len(sinks) {
	case 0:
	case 1:
		s.eventLog = sinks[0]
	default:
		s.eventLog = castlog.NewMultiLogger(sinks...)
	}

	s.groups = multizone.NewManager(s.dialGroup(cfg.Dialer))
	s.groups.SetLogger(cfg.Logger)

	s.registry = registry.New(cfg.Dialer, s.groups)
	s.registry.SetLogger(cfg.Logger)
	s.registry.SetEventLogger(s.eventLog)
	if cfg.Bridge != nil {
		s.registry.SetBaseURLs(cfg.Bridge.BaseURLs())
		s.filters = cfg.Bridge.Devices
	}

	browser := cfg.Browser
	resolver := cfg.Resolver
	if browser == nil || resolver == nil {
		mdns := discovery.NewMDNSBrowser(discovery.BrowserConfig{})
		if browser == nil {
			browser = mdns
		}
		if resolver == nil {
			resolver = mdns
		}
	}
	s.listener = discovery.NewListener(browser, resolver, s.handleDiscovery)
	s.listener.SetLogger(cfg.Logger)

	return s, nil
}

// dialGroup builds the factory the group manager uses to reach a group
// device. Groups announce themselves like any other device, so the
// registry's discovery memory supplies their address.
func (s *Service) dialGroup(dialer castv2.Dialer) multizone.ClientFactory {
	return func(groupUUID uuid.UUID) (castv2.Client, error) {
		svc, ok := s.registry.Seen(groupUUID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrGroupUnknown, groupUUID)
		}
		return dialer.Dial(svc.Host, svc.Port)
	}
}

// handleDiscovery forwards listener events into the registry under the
// service lifecycle context.
func (s *Service) handleDiscovery(serviceName string, svc discovery.CastService) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.registry.HandleDiscovery(ctx, serviceName, svc)
}

// OnDeviceAdded registers a hook invoked with every new device session.
func (s *Service) OnDeviceAdded(fn func(*media.CastDevice)) {
	s.registry.OnDeviceAdded(fn)
}

// Registry exposes the device registry for hosts and tooling.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Groups exposes the group status manager.
func (s *Service) Groups() *multizone.Manager {
	return s.groups
}

// Devices returns all tracked device sessions.
func (s *Service) Devices() []*media.CastDevice {
	return s.registry.Devices()
}

// Device returns one tracked session by UUID.
func (s *Service) Device(id uuid.UUID) (*media.CastDevice, bool) {
	return s.registry.Get(id)
}

// Start registers the configured device rules and begins discovery.
// Starting a running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.ctx = runCtx
	s.cancel = cancel
	filters := s.filters
	s.mu.Unlock()

	for _, entry := range filters {
		if err := s.registry.AddFilter(runCtx, entry); err != nil {
			s.Stop()
			return fmt.Errorf("service: register device rule: %w", err)
		}
	}

	if err := s.listener.Start(runCtx); err != nil {
		s.Stop()
		return fmt.Errorf("service: start discovery: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("bridge service started", "rules", len(filters))
	}
	return nil
}

// Stop halts discovery and disconnects every session and shared group
// client. Sessions disconnect concurrently; Stop returns once all are
// down or the stop timeout elapses. Stopping a stopped service is a
// no-op.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	s.listener.Stop()

	sessions := s.registry.Count()
	done := make(chan struct{})
	go func() {
		s.registry.CloseAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		if s.logger != nil {
			s.logger.Warn("session disconnects still pending at stop deadline",
				"sessions", sessions)
		}
	}

	s.groups.Close()

	if s.fileLog != nil {
		_ = s.fileLog.Close()
	}

	if s.logger != nil {
		s.logger.Info("bridge service stopped")
	}
}
