// Package registry tracks managed device sessions, one per device UUID.
//
// The registry is the single owner of the uuid -> session map: sessions
// are created here when a filtered discovery event is accepted, updated
// here on re-discovery, and removed here on shutdown. Filter rules and
// the replay of previously seen discoveries against newly added rules
// also live here, so a rule registered late still picks up devices that
// announced earlier.
package registry

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
)

// ErrNotReady signals that a device was accepted but its session could
// not be established yet. The host should retry setup later instead of
// treating this as a fatal configuration error.
var ErrNotReady = errors.New("registry: device not ready")

// Registry is the process-wide map from device UUID to managed session.
type Registry struct {
	mu sync.Mutex

	dialer castv2.Dialer
	groups media.GroupManager

	devices map[uuid.UUID]*media.CastDevice

	// seen remembers every identifiable descriptor ever discovered,
	// merged by UUID, so late filter rules can be replayed.
	seen map[uuid.UUID]discovery.CastService

	// filters holds the manual inclusion rules; empty means accept-all.
	filters []config.DeviceEntry

	baseURLs config.BaseURLs
	logger   *slog.Logger
	eventLog castlog.Logger

	onAdd func(*media.CastDevice)
}

// New creates an empty registry dialing device clients via dialer and
// subscribing sessions to groups via groups.
func New(dialer castv2.Dialer, groups media.GroupManager) *Registry {
	return &Registry{
		dialer:   dialer,
		groups:   groups,
		devices:  make(map[uuid.UUID]*media.CastDevice),
		seen:     make(map[uuid.UUID]discovery.CastService),
		eventLog: castlog.NoopLogger{},
	}
}

// SetLogger sets the diagnostic logger.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// SetEventLogger sets the structured event log sink.
func (r *Registry) SetEventLogger(logger castlog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if logger == nil {
		logger = castlog.NoopLogger{}
	}
	r.eventLog = logger
}

// SetBaseURLs sets the attribution inputs handed to new sessions.
func (r *Registry) SetBaseURLs(urls config.BaseURLs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseURLs = urls
}

// OnDeviceAdded registers a hook invoked with every newly created
// session, after it is tracked and connected.
func (r *Registry) OnDeviceAdded(fn func(*media.CastDevice)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAdd = fn
}

// HandleDiscovery processes one discovery event: remember the
// descriptor for replay, apply the filter rules, and create a session
// when the device is accepted and not yet tracked.
func (r *Registry) HandleDiscovery(ctx context.Context, serviceName string, svc discovery.CastService) {
	if !svc.HasUUID() {
		return
	}

	r.mu.Lock()
	if prior, ok := r.seen[svc.UUID]; ok {
		svc = svc.MergedWith(prior)
	}
	r.seen[svc.UUID] = svc
	accepted := r.acceptsLocked(svc)
	logger := r.logger
	eventLog := r.eventLog
	r.mu.Unlock()

	eventLog.Log(castlog.Event{
		Timestamp:   time.Now(),
		Category:    castlog.CategoryDiscovery,
		DeviceUUID:  svc.UUID.String(),
		ServiceName: serviceName,
		Message:     svc.String(),
	})

	if !accepted {
		if logger != nil {
			logger.Debug("discovered device matches no configured rule",
				"uuid", svc.UUID,
				"host", svc.Host)
		}
		return
	}

	if _, err := r.CreateDeviceIfNew(ctx, svc); err != nil && logger != nil {
		logger.Warn("failed to set up discovered device",
			"uuid", svc.UUID,
			"host", svc.Host,
			"error", err)
	}
}

// CreateDeviceIfNew inserts a session for a not-yet-tracked identifier.
//
// It fails closed, returning (nil, nil), when the descriptor carries no
// UUID or when the UUID is already tracked; re-discovery updates the
// existing session's descriptor with the merged service set instead.
// A dial or connect failure returns an error wrapping ErrNotReady.
func (r *Registry) CreateDeviceIfNew(ctx context.Context, svc discovery.CastService) (*media.CastDevice, error) {
	if !svc.HasUUID() {
		return nil, nil
	}

	r.mu.Lock()
	if existing, ok := r.devices[svc.UUID]; ok {
		r.mu.Unlock()
		existing.UpdateService(svc.MergedWith(existing.Service()))
		return nil, nil
	}
	dialer := r.dialer
	groups := r.groups
	baseURLs := r.baseURLs
	logger := r.logger
	eventLog := r.eventLog
	onAdd := r.onAdd
	r.mu.Unlock()

	client, err := dialer.Dial(svc.Host, svc.Port)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s:%d: %v", ErrNotReady, svc.Host, svc.Port, err)
	}

	device := media.NewCastDevice(svc, client, groups)
	device.SetBaseURLs(baseURLs)
	device.SetLogger(logger)
	device.SetEventLogger(eventLog)
	device.Attach()

	if err := client.Connect(ctx); err != nil {
		_ = client.Disconnect()
		return nil, fmt.Errorf("%w: connect %s:%d: %v", ErrNotReady, svc.Host, svc.Port, err)
	}

	r.mu.Lock()
	// A concurrent discovery of the same UUID may have won the race.
	if existing, ok := r.devices[svc.UUID]; ok {
		r.mu.Unlock()
		_ = client.Disconnect()
		existing.UpdateService(svc.MergedWith(existing.Service()))
		return nil, nil
	}
	r.devices[svc.UUID] = device
	r.mu.Unlock()

	if logger != nil {
		logger.Info("tracking new cast device",
			"uuid", svc.UUID,
			"name", svc.FriendlyName,
			"audioGroup", svc.IsAudioGroup())
	}
	eventLog.Log(castlog.Event{
		Timestamp:  time.Now(),
		Category:   castlog.CategoryConnection,
		DeviceUUID: svc.UUID.String(),
		Message:    "session established",
		Detail:     map[string]string{"host": svc.Host},
	})
	if onAdd != nil {
		onAdd(device)
	}
	return device, nil
}

// AddFilter registers a manual inclusion rule and replays previously
// seen discoveries against the updated rule set, so a device that
// announced before the rule existed is still promoted to a session.
func (r *Registry) AddFilter(ctx context.Context, entry config.DeviceEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.filters = append(r.filters, entry)
	replay := make([]discovery.CastService, 0, len(r.seen))
	for id, svc := range r.seen {
		if _, tracked := r.devices[id]; tracked {
			continue
		}
		if r.acceptsLocked(svc) {
			replay = append(replay, svc)
		}
	}
	logger := r.logger
	r.mu.Unlock()

	for _, svc := range replay {
		if _, err := r.CreateDeviceIfNew(ctx, svc); err != nil && logger != nil {
			logger.Warn("replayed device not ready",
				"uuid", svc.UUID,
				"error", err)
		}
	}
	return nil
}

// acceptsLocked applies the filter rules. Zero rules means
// auto-discovery: everything identifiable is accepted.
func (r *Registry) acceptsLocked(svc discovery.CastService) bool {
	if len(r.filters) == 0 {
		return true
	}
	for _, entry := range r.filters {
		if matches(entry, svc) {
			return true
		}
	}
	return false
}

// matches checks one rule against one descriptor.
func matches(entry config.DeviceEntry, svc discovery.CastService) bool {
	if entry.Host != "" {
		return entry.Host == svc.Host
	}
	if entry.UUID != "" {
		id, err := uuid.Parse(entry.UUID)
		if err != nil {
			return false
		}
		return id == svc.UUID
	}
	return false
}

// Get returns the tracked session for a UUID.
func (r *Registry) Get(id uuid.UUID) (*media.CastDevice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.devices[id]
	return device, ok
}

// Seen returns the merged descriptor last discovered for a UUID,
// whether or not the device is tracked.
func (r *Registry) Seen(id uuid.UUID) (discovery.CastService, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.seen[id]
	return svc, ok
}

// Devices returns all tracked sessions.
func (r *Registry) Devices() []*media.CastDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*media.CastDevice, 0, len(r.devices))
	for _, device := range r.devices {
		out = append(out, device)
	}
	return out
}

// Count returns the number of tracked sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Remove disconnects and stops tracking a session.
func (r *Registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	device, ok := r.devices[id]
	delete(r.devices, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return device.Disconnect()
}

// CloseAll disconnects every tracked session concurrently and clears
// the map. It returns once all disconnects finished.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	devices := make([]*media.CastDevice, 0, len(r.devices))
	for id, device := range r.devices {
		devices = append(devices, device)
		delete(r.devices, id)
	}
	logger := r.logger
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, device := range devices {
		wg.Add(1)
		go func(d *media.CastDevice) {
			defer wg.Done()
			if err := d.Disconnect(); err != nil && logger != nil {
				logger.Warn("session disconnect failed",
					"uuid", d.UUID(),
					"error", err)
			}
		}(device)
	}
	wg.Wait()
}
