package media

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castbridge/castbridge-go/pkg/castv2"
	"github.com/castbridge/castbridge-go/pkg/config"
	"github.com/castbridge/castbridge-go/pkg/discovery"
	castlog "github.com/castbridge/castbridge-go/pkg/log"
	"github.com/castbridge/castbridge-go/pkg/multizone"
)

// GroupManager is the slice of the multizone manager a session needs:
// subscribing to a group's status feed and reaching its shared
// controller.
type GroupManager interface {
	AddMultizoneStatusListener(groupUUID uuid.UUID, member multizone.Listener) error
	RemoveMultizoneStatusListener(groupUUID uuid.UUID, member multizone.Listener)
	GetMultizoneMediaController(groupUUID uuid.UUID) (castv2.MediaController, bool)
}

// Ensure the concrete manager satisfies the session's view of it.
var _ GroupManager = (*multizone.Manager)(nil)

// CastDevice is the live session for one managed device. It owns one
// castv2.Client for its lifetime and reflects the client's callbacks
// into observable state. It is safe for concurrent use.
type CastDevice struct {
	mu sync.RWMutex

	service discovery.CastService
	client  castv2.Client
	groups  GroupManager

	available bool

	castStatus  *castv2.CastStatus
	mediaStatus *castv2.MediaStatus

	// groupStatus is the latest status pushed from the group this
	// device mirrors; groupSource identifies which group pushed it.
	groupStatus *castv2.MediaStatus
	groupSource uuid.UUID

	// subscribedGroup is the group this session is registered with at
	// the multizone manager; uuid.Nil when not grouped.
	subscribedGroup uuid.UUID

	baseURLs config.BaseURLs
	logger   *slog.Logger
	eventLog castlog.Logger

	onStateChange func()
}

// NewCastDevice creates a session for a discovered device. The client
// must not be connected yet; the caller registers the session as status
// listener and connects afterwards (see Attach).
func NewCastDevice(service discovery.CastService, client castv2.Client, groups GroupManager) *CastDevice {
	return &CastDevice{
		service:  service,
		client:   client,
		groups:   groups,
		eventLog: castlog.NoopLogger{},
	}
}

// Attach registers the session as the client's status listener.
func (d *CastDevice) Attach() {
	d.client.RegisterStatusListener(d)
}

// SetLogger sets the diagnostic logger.
func (d *CastDevice) SetLogger(logger *slog.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger = logger
}

// SetEventLogger sets the structured event log sink.
func (d *CastDevice) SetEventLogger(logger castlog.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if logger == nil {
		logger = castlog.NoopLogger{}
	}
	d.eventLog = logger
}

// SetBaseURLs sets the attribution inputs for cast-failure diagnosis.
func (d *CastDevice) SetBaseURLs(urls config.BaseURLs) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baseURLs = urls
}

// OnStateChange registers a hook invoked after every observable state
// update, so the host platform can refresh its view.
func (d *CastDevice) OnStateChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onStateChange = fn
}

// UUID returns the device's unique identifier.
func (d *CastDevice) UUID() uuid.UUID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.service.UUID
}

// Name returns the display name, falling back to the host address when
// the device advertised no friendly name.
func (d *CastDevice) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.service.FriendlyName != "" {
		return d.service.FriendlyName
	}
	return d.service.Host
}

// Service returns the current descriptor.
func (d *CastDevice) Service() discovery.CastService {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.service
}

// UpdateService replaces the descriptor after a re-discovery. The
// registry calls this with the merged descriptor; the session never
// merges itself.
func (d *CastDevice) UpdateService(service discovery.CastService) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.service = service
}

// Available reports whether the control connection is established.
func (d *CastDevice) Available() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.available
}

// NewConnectionStatus reflects a socket transition reported by the
// client. The session performs no reconnection itself; the client owns
// retry and backoff.
func (d *CastDevice) NewConnectionStatus(status castv2.ConnectionStatus) {
	d.mu.Lock()
	wasAvailable := d.available
	switch status.Status {
	case castv2.ConnectionStatusConnected:
		d.available = true
	case castv2.ConnectionStatusDisconnected, castv2.ConnectionStatusLost, castv2.ConnectionStatusFailed:
		d.available = false
	}
	changed := wasAvailable != d.available
	logger := d.logger
	eventLog := d.eventLog
	id := d.service.UUID
	d.mu.Unlock()

	if changed {
		if logger != nil {
			logger.Info("connection status changed",
				"uuid", id,
				"status", status.Status,
				"available", status.Status == castv2.ConnectionStatusConnected)
		}
		eventLog.Log(castlog.Event{
			Timestamp:  time.Now(),
			Category:   castlog.CategoryConnection,
			DeviceUUID: id.String(),
			Message:    status.Status,
		})
		d.notifyStateChange()
	}
}

// NewCastStatus stores the receiver-level status and reconciles the
// group subscription: joining group G subscribes the session to G's
// status feed (leaving any prior group first); leaving all groups
// unsubscribes.
func (d *CastDevice) NewCastStatus(status castv2.CastStatus) {
	d.mu.Lock()
	d.castStatus = &status
	previous := d.subscribedGroup
	next := status.GroupUUID
	groups := d.groups
	if next == previous {
		d.mu.Unlock()
		d.notifyStateChange()
		return
	}
	logger := d.logger
	id := d.service.UUID
	d.mu.Unlock()

	if previous != uuid.Nil {
		groups.RemoveMultizoneStatusListener(previous, d)
	}
	subscribed := next
	if next != uuid.Nil {
		if err := groups.AddMultizoneStatusListener(next, d); err != nil {
			// Stays unsubscribed so the next cast status retries.
			subscribed = uuid.Nil
			if logger != nil {
				logger.Warn("failed to subscribe to group status",
					"uuid", id,
					"groupUUID", next,
					"error", err)
			}
		}
	}

	d.mu.Lock()
	d.subscribedGroup = subscribed
	d.mu.Unlock()
	d.notifyStateChange()
}

// NewMediaStatus stores the device's own media status. A status that
// went idle with reason ERROR is logged with base-URL attribution
// before being stored; playback failures never propagate as errors.
func (d *CastDevice) NewMediaStatus(status *castv2.MediaStatus) {
	if status != nil && status.PlayerIsIdle() && status.IdleReason == castv2.IdleReasonError {
		d.logCastFailure(status.ContentID)
	}

	d.mu.Lock()
	d.mediaStatus = status
	d.mu.Unlock()
	d.notifyStateChange()
}

// MultizoneNewMediaStatus stores a status pushed from a group feed.
func (d *CastDevice) MultizoneNewMediaStatus(groupUUID uuid.UUID, status *castv2.MediaStatus) {
	d.mu.Lock()
	d.groupStatus = status
	d.groupSource = groupUUID
	d.mu.Unlock()
	d.notifyStateChange()
}

// State resolves the user-visible playback state. An actionable own
// state wins; otherwise the group's state; otherwise own idle; an idle
// receiver reports off; anything else is unknown.
func (d *CastDevice) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if st := d.mediaStatus; st != nil {
		switch st.PlayerState {
		case castv2.PlayerStatePlaying:
			return StatePlaying
		case castv2.PlayerStateBuffering:
			return StateBuffering
		case castv2.PlayerStatePaused:
			return StatePaused
		}
	}
	if gs := d.groupStatus; gs != nil {
		if state := derivedState(gs); state != StateUnknown {
			return state
		}
	}
	if st := d.mediaStatus; st != nil && st.PlayerIsIdle() {
		return StateIdle
	}
	if d.client != nil && d.client.ReceiverIdle() {
		return StateOff
	}
	return StateUnknown
}

// effectiveStatus returns the status backing the user-visible view: the
// own status when it carries a usable player state, otherwise the group
// status.
func (d *CastDevice) effectiveStatus() *castv2.MediaStatus {
	if d.mediaStatus != nil && d.mediaStatus.PlayerState != castv2.PlayerStateUnknown {
		return d.mediaStatus
	}
	if d.groupStatus != nil {
		return d.groupStatus
	}
	return d.mediaStatus
}

// MediaTitle returns the title of the effective media session.
func (d *CastDevice) MediaTitle() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if st := d.effectiveStatus(); st != nil {
		return st.Title
	}
	return ""
}

// MediaContentID returns the content URL of the effective media session.
func (d *CastDevice) MediaContentID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if st := d.effectiveStatus(); st != nil {
		return st.ContentID
	}
	return ""
}

// MediaImageURL returns the artwork URL of the effective media session.
// Plain-http URLs are rewritten to scheme-relative form so a page
// served over https can still render them; https URLs pass through.
func (d *CastDevice) MediaImageURL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := d.effectiveStatus()
	if st == nil || len(st.Images) == 0 {
		return ""
	}
	return schemeRelative(st.Images[0].URL)
}

// schemeRelative strips the http scheme from a URL, leaving https and
// everything else untouched.
func schemeRelative(url string) string {
	if rest, ok := strings.CutPrefix(url, "http://"); ok {
		return "//" + rest
	}
	return url
}

// mediaController resolves where a control call should go, mirroring
// the state resolution: whenever State() would report the group's state
// rather than an actionable own state, controls target the group's
// shared controller. Own IDLE counts as non-actionable here, so a
// device showing the group's playback also pauses the group.
func (d *CastDevice) mediaController() castv2.MediaController {
	d.mu.RLock()
	ownActionable := false
	if st := d.mediaStatus; st != nil {
		switch st.PlayerState {
		case castv2.PlayerStatePlaying, castv2.PlayerStateBuffering, castv2.PlayerStatePaused:
			ownActionable = true
		}
	}
	groupUsable := derivedState(d.groupStatus) != StateUnknown
	groupSource := d.groupSource
	groups := d.groups
	client := d.client
	d.mu.RUnlock()

	if !ownActionable && groupUsable && groups != nil {
		if controller, ok := groups.GetMultizoneMediaController(groupSource); ok {
			return controller
		}
	}
	return client.MediaController()
}

// Play resumes playback on the effective controller.
func (d *CastDevice) Play() error { return d.mediaController().Play() }

// Pause pauses playback on the effective controller.
func (d *CastDevice) Pause() error { return d.mediaController().Pause() }

// Stop stops playback on the effective controller.
func (d *CastDevice) Stop() error { return d.mediaController().Stop() }

// Next skips to the next item on the effective controller.
func (d *CastDevice) Next() error { return d.mediaController().Next() }

// Previous skips to the previous item on the effective controller.
func (d *CastDevice) Previous() error { return d.mediaController().Previous() }

// Seek seeks the effective media session.
func (d *CastDevice) Seek(position time.Duration) error {
	return d.mediaController().Seek(position)
}

// PlayMedia starts casting new content. Initiating playback is a
// per-device action even while mirroring a group's status, so this is
// never forwarded to the group controller.
func (d *CastDevice) PlayMedia(contentID, contentType string, metadata map[string]any) error {
	d.mu.RLock()
	client := d.client
	d.mu.RUnlock()
	return client.MediaController().PlayMedia(contentID, contentType, metadata)
}

// Disconnect tears the session down: group subscription dropped, client
// disconnected, availability cleared. The session object itself stays
// valid; the registry removes it from tracking.
func (d *CastDevice) Disconnect() error {
	d.mu.Lock()
	group := d.subscribedGroup
	d.subscribedGroup = uuid.Nil
	d.available = false
	groups := d.groups
	client := d.client
	d.mu.Unlock()

	if group != uuid.Nil && groups != nil {
		groups.RemoveMultizoneStatusListener(group, d)
	}
	return client.Disconnect()
}

// logCastFailure emits the diagnostic warning for a media session that
// went idle with reason ERROR, attributing the failing URL to a
// configured base URL when their origins match.
func (d *CastDevice) logCastFailure(contentID string) {
	d.mu.RLock()
	urls := d.baseURLs
	logger := d.logger
	eventLog := d.eventLog
	id := d.service.UUID
	d.mu.RUnlock()

	msg := castFailureMessage(urls, contentID)
	if logger != nil {
		logger.Warn(msg, "uuid", id)
	}
	eventLog.Log(castlog.Event{
		Timestamp:  time.Now(),
		Category:   castlog.CategoryMedia,
		DeviceUUID: id.String(),
		Message:    msg,
		Detail:     map[string]string{"content_id": contentID},
	})
}

// castFailureMessage builds the warning text for a failed cast. The
// attributed forms name the configured URL so an operator can tell
// which base URL is unreachable from the device's network.
func castFailureMessage(urls config.BaseURLs, contentID string) string {
	if label, base, ok := urls.Attribute(contentID); ok {
		return fmt.Sprintf(
			"Failed to cast media %s from %s (%s). Please make sure the URL is reachable from the cast device",
			contentID, label, base)
	}
	return fmt.Sprintf(
		"Failed to cast media %s. Please make sure the format is supported by the device",
		contentID)
}

func (d *CastDevice) notifyStateChange() {
	d.mu.RLock()
	fn := d.onStateChange
	d.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Ensure the session satisfies the client and multizone contracts.
var (
	_ castv2.StatusListener = (*CastDevice)(nil)
	_ multizone.Listener    = (*CastDevice)(nil)
)
