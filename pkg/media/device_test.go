package media

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castbridge/castbridge-go/pkg/castv2"
	"github.com/castbridge/castbridge-go/pkg/config"
	"github.com/castbridge/castbridge-go/pkg/discovery"
	castlog "github.com/castbridge/castbridge-go/pkg/log"
	"github.com/castbridge/castbridge-go/pkg/multizone"
)

// fakeController records issued commands.
type fakeController struct {
	mu    sync.Mutex
	calls []string
}

func (c *fakeController) record(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	return nil
}

func (c *fakeController) commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeController) Play() error              { return c.record("play") }
func (c *fakeController) Pause() error             { return c.record("pause") }
func (c *fakeController) Stop() error              { return c.record("stop") }
func (c *fakeController) Next() error              { return c.record("next") }
func (c *fakeController) Previous() error          { return c.record("previous") }
func (c *fakeController) Seek(time.Duration) error { return c.record("seek") }
func (c *fakeController) PlayMedia(string, string, map[string]any) error {
	return c.record("play_media")
}

// fakeClient is a castv2.Client double bound to a fakeController.
type fakeClient struct {
	controller   *fakeController
	listener     castv2.StatusListener
	receiverIdle bool
	disconnected bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{controller: &fakeController{}}
}

func (c *fakeClient) Connect(context.Context) error { return nil }
func (c *fakeClient) Disconnect() error {
	c.disconnected = true
	return nil
}
func (c *fakeClient) RegisterStatusListener(l castv2.StatusListener) { c.listener = l }
func (c *fakeClient) MediaController() castv2.MediaController        { return c.controller }
func (c *fakeClient) ReceiverIdle() bool                             { return c.receiverIdle }

// fakeGroups is a GroupManager double tracking subscriptions and serving
// one shared controller per group.
type fakeGroups struct {
	mu          sync.Mutex
	members     map[uuid.UUID]map[multizone.Listener]struct{}
	controllers map[uuid.UUID]*fakeController
	addErr      error
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{
		members:     make(map[uuid.UUID]map[multizone.Listener]struct{}),
		controllers: make(map[uuid.UUID]*fakeController),
	}
}

func (g *fakeGroups) failAdds(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addErr = err
}

func (g *fakeGroups) AddMultizoneStatusListener(groupUUID uuid.UUID, member multizone.Listener) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.addErr != nil {
		return g.addErr
	}
	if g.members[groupUUID] == nil {
		g.members[groupUUID] = make(map[multizone.Listener]struct{})
		g.controllers[groupUUID] = &fakeController{}
	}
	g.members[groupUUID][member] = struct{}{}
	return nil
}

func (g *fakeGroups) RemoveMultizoneStatusListener(groupUUID uuid.UUID, member multizone.Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members[groupUUID], member)
}

func (g *fakeGroups) GetMultizoneMediaController(groupUUID uuid.UUID) (castv2.MediaController, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	controller, ok := g.controllers[groupUUID]
	if !ok {
		return nil, false
	}
	return controller, true
}

func (g *fakeGroups) controller(t *testing.T, groupUUID uuid.UUID) *fakeController {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	controller, ok := g.controllers[groupUUID]
	if !ok {
		t.Fatalf("no shared controller for group %s", groupUUID)
	}
	return controller
}

func (g *fakeGroups) memberCount(groupUUID uuid.UUID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members[groupUUID])
}

func newTestDevice(t *testing.T) (*CastDevice, *fakeClient, *fakeGroups) {
	t.Helper()
	svc := discovery.NewCastService(
		"living._googlecast._tcp.local.", "192.168.1.10", 8009,
		uuid.New(), "Chromecast", "Living Room")
	client := newFakeClient()
	groups := newFakeGroups()
	device := NewCastDevice(svc, client, groups)
	device.Attach()
	return device, client, groups
}

func status(playerState string) *castv2.MediaStatus {
	return &castv2.MediaStatus{PlayerState: playerState}
}

func TestAvailabilityFollowsConnection(t *testing.T) {
	device, _, _ := newTestDevice(t)
	assert.False(t, device.Available())

	device.NewConnectionStatus(castv2.ConnectionStatus{Status: castv2.ConnectionStatusConnected})
	assert.True(t, device.Available())

	// CONNECTING is transient and changes nothing.
	device.NewConnectionStatus(castv2.ConnectionStatus{Status: castv2.ConnectionStatusConnecting})
	assert.True(t, device.Available())

	device.NewConnectionStatus(castv2.ConnectionStatus{Status: castv2.ConnectionStatusLost})
	assert.False(t, device.Available())

	device.NewConnectionStatus(castv2.ConnectionStatus{Status: castv2.ConnectionStatusConnected})
	assert.True(t, device.Available())
}

func TestStateResolution(t *testing.T) {
	tests := []struct {
		name         string
		own          *castv2.MediaStatus
		group        *castv2.MediaStatus
		receiverIdle bool
		want         State
	}{
		{"nothing known", nil, nil, false, StateUnknown},
		{"own playing", status(castv2.PlayerStatePlaying), nil, false, StatePlaying},
		{"own buffering", status(castv2.PlayerStateBuffering), nil, false, StateBuffering},
		{"own paused beats group playing", status(castv2.PlayerStatePaused), status(castv2.PlayerStatePlaying), false, StatePaused},
		{"no own status follows group", nil, status(castv2.PlayerStatePlaying), false, StatePlaying},
		{"own unknown follows group", status(castv2.PlayerStateUnknown), status(castv2.PlayerStatePaused), false, StatePaused},
		{"own idle follows playing group", status(castv2.PlayerStateIdle), status(castv2.PlayerStatePlaying), false, StatePlaying},
		{"own idle without group", status(castv2.PlayerStateIdle), nil, false, StateIdle},
		{"group unknown falls back to own idle", status(castv2.PlayerStateIdle), status(castv2.PlayerStateUnknown), false, StateIdle},
		{"receiver idle means off", nil, nil, true, StateOff},
		{"own status beats receiver idle", status(castv2.PlayerStatePlaying), nil, true, StatePlaying},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			device, client, _ := newTestDevice(t)
			client.receiverIdle = tc.receiverIdle
			if tc.own != nil {
				device.NewMediaStatus(tc.own)
			}
			if tc.group != nil {
				device.MultizoneNewMediaStatus(uuid.New(), tc.group)
			}
			assert.Equal(t, tc.want, device.State())
		})
	}
}

func TestGroupSubscriptionFollowsCastStatus(t *testing.T) {
	device, _, groups := newTestDevice(t)
	g1, g2 := uuid.New(), uuid.New()

	device.NewCastStatus(castv2.CastStatus{GroupUUID: g1})
	assert.Equal(t, 1, groups.memberCount(g1))

	// Switching groups leaves the old one first.
	device.NewCastStatus(castv2.CastStatus{GroupUUID: g2})
	assert.Equal(t, 0, groups.memberCount(g1))
	assert.Equal(t, 1, groups.memberCount(g2))

	// Repeated status for the same group does not resubscribe.
	device.NewCastStatus(castv2.CastStatus{GroupUUID: g2})
	assert.Equal(t, 1, groups.memberCount(g2))

	// Leaving all groups unsubscribes.
	device.NewCastStatus(castv2.CastStatus{})
	assert.Equal(t, 0, groups.memberCount(g2))
}

func TestControlRouting(t *testing.T) {
	group := uuid.New()

	// joinGroup subscribes the device the way a real receiver would, via
	// its cast status, and then pushes a group media status.
	joinGroup := func(t *testing.T, device *CastDevice, groupStatus *castv2.MediaStatus) {
		t.Helper()
		device.NewCastStatus(castv2.CastStatus{GroupUUID: group})
		device.MultizoneNewMediaStatus(group, groupStatus)
	}

	t.Run("no own status routes to group", func(t *testing.T) {
		device, client, groups := newTestDevice(t)
		joinGroup(t, device, status(castv2.PlayerStatePlaying))

		require.NoError(t, device.Pause())
		assert.Equal(t, []string{"pause"}, groups.controller(t, group).commands())
		assert.Empty(t, client.controller.commands())
	})

	t.Run("own unknown routes to group", func(t *testing.T) {
		device, client, groups := newTestDevice(t)
		device.NewMediaStatus(status(castv2.PlayerStateUnknown))
		joinGroup(t, device, status(castv2.PlayerStatePlaying))

		require.NoError(t, device.Play())
		assert.Equal(t, []string{"play"}, groups.controller(t, group).commands())
		assert.Empty(t, client.controller.commands())
	})

	t.Run("own idle routes to playing group", func(t *testing.T) {
		device, client, groups := newTestDevice(t)
		device.NewMediaStatus(status(castv2.PlayerStateIdle))
		joinGroup(t, device, status(castv2.PlayerStatePlaying))

		// The user sees the group's playback, so the control must land
		// where the state came from.
		require.Equal(t, StatePlaying, device.State())
		require.NoError(t, device.Pause())
		assert.Equal(t, []string{"pause"}, groups.controller(t, group).commands())
		assert.Empty(t, client.controller.commands())
	})

	t.Run("own idle with unusable group routes to device", func(t *testing.T) {
		device, client, groups := newTestDevice(t)
		device.NewMediaStatus(status(castv2.PlayerStateIdle))
		joinGroup(t, device, status(castv2.PlayerStateUnknown))

		require.NoError(t, device.Stop())
		assert.Equal(t, []string{"stop"}, client.controller.commands())
		assert.Empty(t, groups.controller(t, group).commands())
	})

	t.Run("own paused routes to device", func(t *testing.T) {
		device, client, groups := newTestDevice(t)
		device.NewMediaStatus(status(castv2.PlayerStatePaused))
		joinGroup(t, device, status(castv2.PlayerStatePlaying))

		require.NoError(t, device.Play())
		require.NoError(t, device.Seek(30*time.Second))
		assert.Equal(t, []string{"play", "seek"}, client.controller.commands())
		assert.Empty(t, groups.controller(t, group).commands())
	})

	t.Run("no group status routes to device", func(t *testing.T) {
		device, client, _ := newTestDevice(t)
		require.NoError(t, device.Stop())
		assert.Equal(t, []string{"stop"}, client.controller.commands())
	})

	t.Run("play_media always stays on device", func(t *testing.T) {
		device, client, groups := newTestDevice(t)
		joinGroup(t, device, status(castv2.PlayerStatePlaying))

		require.NoError(t, device.PlayMedia("http://example.org/a.mp3", "audio/mp3", nil))
		assert.Equal(t, []string{"play_media"}, client.controller.commands())
		assert.Empty(t, groups.controller(t, group).commands())
	})
}

func TestGroupSubscribeFailureRetries(t *testing.T) {
	device, _, groups := newTestDevice(t)
	group := uuid.New()

	groups.failAdds(errors.New("group not yet discovered"))
	device.NewCastStatus(castv2.CastStatus{GroupUUID: group})
	assert.Equal(t, 0, groups.memberCount(group))

	// The failed subscribe is not remembered as a membership, so the
	// next identical cast status tries again.
	groups.failAdds(nil)
	device.NewCastStatus(castv2.CastStatus{GroupUUID: group})
	assert.Equal(t, 1, groups.memberCount(group))
}

func TestMediaViewUsesEffectiveStatus(t *testing.T) {
	group := uuid.New()
	device, _, _ := newTestDevice(t)

	device.MultizoneNewMediaStatus(group, &castv2.MediaStatus{
		PlayerState: castv2.PlayerStatePlaying,
		Title:       "Group Tune",
		ContentID:   "http://example.org/group.mp3",
	})
	assert.Equal(t, "Group Tune", device.MediaTitle())
	assert.Equal(t, "http://example.org/group.mp3", device.MediaContentID())

	device.NewMediaStatus(&castv2.MediaStatus{
		PlayerState: castv2.PlayerStatePlaying,
		Title:       "Own Tune",
		ContentID:   "http://example.org/own.mp3",
	})
	assert.Equal(t, "Own Tune", device.MediaTitle())
	assert.Equal(t, "http://example.org/own.mp3", device.MediaContentID())
}

func TestMediaImageURL(t *testing.T) {
	device, _, _ := newTestDevice(t)
	assert.Equal(t, "", device.MediaImageURL())

	device.NewMediaStatus(&castv2.MediaStatus{
		PlayerState: castv2.PlayerStatePlaying,
		Images:      []castv2.Image{{URL: "http://example.org/art.png"}},
	})
	assert.Equal(t, "//example.org/art.png", device.MediaImageURL())

	device.NewMediaStatus(&castv2.MediaStatus{
		PlayerState: castv2.PlayerStatePlaying,
		Images:      []castv2.Image{{URL: "https://example.org/art.png"}},
	})
	assert.Equal(t, "https://example.org/art.png", device.MediaImageURL())
}

func TestCastFailureMessage(t *testing.T) {
	urls := config.BaseURLs{
		Internal: "http://192.168.1.2:8123",
		External: "https://home.example.org",
		TTS:      "http://192.168.1.2:8200",
	}

	tests := []struct {
		name      string
		contentID string
		want      string
	}{
		{
			"internal",
			"http://192.168.1.2:8123/media/a.mp3",
			"Failed to cast media http://192.168.1.2:8123/media/a.mp3 from internal_url (http://192.168.1.2:8123). Please make sure the URL is reachable from the cast device",
		},
		{
			"external",
			"https://home.example.org/media/a.mp3",
			"Failed to cast media https://home.example.org/media/a.mp3 from external_url (https://home.example.org). Please make sure the URL is reachable from the cast device",
		},
		{
			"tts",
			"http://192.168.1.2:8200/tts.mp3",
			"Failed to cast media http://192.168.1.2:8200/tts.mp3 from tts.base_url (http://192.168.1.2:8200). Please make sure the URL is reachable from the cast device",
		},
		{
			"unattributed",
			"http://cdn.example.net/a.mp3",
			"Failed to cast media http://cdn.example.net/a.mp3. Please make sure the format is supported by the device",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, castFailureMessage(urls, tc.contentID))
		})
	}
}

func TestNewMediaStatusLogsCastFailure(t *testing.T) {
	device, _, _ := newTestDevice(t)
	events := &castlog.MemoryLogger{}
	device.SetEventLogger(events)
	device.SetBaseURLs(config.BaseURLs{Internal: "http://192.168.1.2:8123"})

	// Regular idle transitions are not failures.
	device.NewMediaStatus(&castv2.MediaStatus{
		PlayerState: castv2.PlayerStateIdle,
		IdleReason:  castv2.IdleReasonFinished,
	})
	assert.Empty(t, events.Events())

	device.NewMediaStatus(&castv2.MediaStatus{
		PlayerState: castv2.PlayerStateIdle,
		IdleReason:  castv2.IdleReasonError,
		ContentID:   "http://192.168.1.2:8123/media/a.mp3",
	})
	logged := events.Events()
	require.Len(t, logged, 1)
	assert.Equal(t, castlog.CategoryMedia, logged[0].Category)
	assert.True(t, strings.Contains(logged[0].Message, "from internal_url"), logged[0].Message)
}

func TestDisconnect(t *testing.T) {
	device, client, groups := newTestDevice(t)
	group := uuid.New()

	device.NewConnectionStatus(castv2.ConnectionStatus{Status: castv2.ConnectionStatusConnected})
	device.NewCastStatus(castv2.CastStatus{GroupUUID: group})
	require.Equal(t, 1, groups.memberCount(group))

	require.NoError(t, device.Disconnect())
	assert.True(t, client.disconnected)
	assert.False(t, device.Available())
	assert.Equal(t, 0, groups.memberCount(group))
}

func TestNameFallsBackToHost(t *testing.T) {
	svc := discovery.NewCastService("a._googlecast._tcp.local.", "192.168.1.77", 8009, uuid.New(), "Chromecast", "")
	device := NewCastDevice(svc, newFakeClient(), newFakeGroups())
	assert.Equal(t, "192.168.1.77", device.Name())
}
