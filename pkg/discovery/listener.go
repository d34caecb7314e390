package discovery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Browser watches the local network for cast service announcements.
// Implementations emit service instance names; resolving a name to
// structured identity fields is the Resolver's job.
type Browser interface {
	// Browse starts browsing and returns a channel of announced service
	// instance names. The channel is closed when ctx is cancelled or
	// Stop is called.
	Browse(ctx context.Context) (<-chan string, error)

	// Stop stops all active browsing.
	Stop()
}

// Resolver performs the directory lookup that turns a raw service
// instance name into identity fields.
type Resolver interface {
	// Lookup resolves a service instance name. Returns ErrNotFound when
	// the directory has no record for the name.
	Lookup(serviceName string) (CastTXT, string, int, error)
}

// ServiceCallback is invoked for every resolved discovery event with the
// announcing service name and the merged descriptor.
type ServiceCallback func(serviceName string, service CastService)

// serviceRecord is the per-UUID memory used to merge repeated
// discoveries of the same device across service names.
type serviceRecord struct {
	services     map[string]struct{}
	modelName    string
	friendlyName string
}

// Listener consumes browser announcements, de-duplicates them by device
// UUID and notifies a callback with merged descriptors.
//
// Start is idempotent: the underlying browser is started at most once
// per Listener. Stop is safe to call without a prior Start.
type Listener struct {
	mu sync.Mutex

	browser  Browser
	resolver Resolver
	callback ServiceCallback
	logger   *slog.Logger

	// cancel is the handle for the active browse; non-nil means started.
	cancel context.CancelFunc
	done   chan struct{}

	seen map[uuid.UUID]*serviceRecord
}

// NewListener creates a listener dispatching to callback.
func NewListener(browser Browser, resolver Resolver, callback ServiceCallback) *Listener {
	return &Listener{
		browser:  browser,
		resolver: resolver,
		callback: callback,
		seen:     make(map[uuid.UUID]*serviceRecord),
	}
}

// SetLogger sets the diagnostic logger.
func (l *Listener) SetLogger(logger *slog.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = logger
}

// Start begins listening for announcements. Invoking Start on a listener
// that is already running is a no-op.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		return nil
	}

	browseCtx, cancel := context.WithCancel(ctx)
	names, err := l.browser.Browse(browseCtx)
	if err != nil {
		cancel()
		l.mu.Unlock()
		return err
	}

	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go func() {
		defer close(done)
		for name := range names {
			l.handleAnnouncement(name)
		}
	}()

	return nil
}

// Stop halts listening. Safe to call on a listener that never started,
// and safe to call more than once.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	l.browser.Stop()
	<-done
}

// handleAnnouncement resolves one announcement and dispatches the merged
// descriptor. Announcements that cannot be resolved to a device UUID are
// dropped; partial discovery results are expected on noisy networks.
func (l *Listener) handleAnnouncement(serviceName string) {
	txt, host, port, err := l.resolver.Lookup(serviceName)
	if err != nil {
		l.debug("dropping unresolvable announcement", "service", serviceName, "error", err)
		return
	}

	l.mu.Lock()
	record, ok := l.seen[txt.UUID]
	if !ok {
		record = &serviceRecord{services: make(map[string]struct{})}
		l.seen[txt.UUID] = record
	}
	record.services[serviceName] = struct{}{}
	record.modelName = txt.ModelName
	record.friendlyName = txt.FriendlyName

	service := CastService{
		Host:         host,
		Port:         port,
		UUID:         txt.UUID,
		ModelName:    record.modelName,
		FriendlyName: record.friendlyName,
		Services:     make(map[string]struct{}, len(record.services)),
	}
	for name := range record.services {
		service.Services[name] = struct{}{}
	}
	callback := l.callback
	l.mu.Unlock()

	if callback != nil {
		callback(serviceName, service)
	}
}

func (l *Listener) debug(msg string, args ...any) {
	l.mu.Lock()
	logger := l.logger
	l.mu.Unlock()
	if logger != nil {
		logger.Debug(msg, args...)
	}
}
