package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castbridge/castbridge-go/pkg/castv2"
	"github.com/castbridge/castbridge-go/pkg/config"
	"github.com/castbridge/castbridge-go/pkg/discovery"
	"github.com/castbridge/castbridge-go/pkg/media"
	"github.com/castbridge/castbridge-go/pkg/multizone"
)

// stubController satisfies castv2.MediaController.
type stubController struct{}

func (stubController) Play() error                { return nil }
func (stubController) Pause() error               { return nil }
func (stubController) Stop() error                { return nil }
func (stubController) Next() error                { return nil }
func (stubController) Previous() error            { return nil }
func (stubController) Seek(time.Duration) error   { return nil }
func (stubController) PlayMedia(string, string, map[string]any) error {
	return nil
}

// stubClient is a castv2.Client double with an injectable connect error.
type stubClient struct {
	mu         sync.Mutex
	connectErr error
	connected  bool
}

func (c *stubClient) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *stubClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *stubClient) RegisterStatusListener(castv2.StatusListener) {}
func (c *stubClient) MediaController() castv2.MediaController      { return stubController{} }
func (c *stubClient) ReceiverIdle() bool                           { return false }

// countingDialer hands out stubClients and counts dials per host.
type countingDialer struct {
	mu      sync.Mutex
	dials   map[string]int
	dialErr error
	connect error
}

func newCountingDialer() *countingDialer {
	return &countingDialer{dials: make(map[string]int)}
}

func (d *countingDialer) Dial(host string, port int) (castv2.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials[host]++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	return &stubClient{connectErr: d.connect}, nil
}

func (d *countingDialer) dialCount(host string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[host]
}

func newTestRegistry() (*Registry, *countingDialer) {
	dialer := newCountingDialer()
	return New(dialer, multizone.NewManager(nil)), dialer
}

func service(host string, id uuid.UUID) discovery.CastService {
	return discovery.NewCastService(
		host+"._googlecast._tcp.local.", host, discovery.DefaultPort,
		id, "Chromecast", "Device "+host)
}

func TestCreateDeviceIfNew(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and tracks", func(t *testing.T) {
		reg, _ := newTestRegistry()
		id := uuid.New()

		device, err := reg.CreateDeviceIfNew(ctx, service("192.168.1.10", id))
		require.NoError(t, err)
		require.NotNil(t, device)
		assert.Equal(t, id, device.UUID())
		assert.Equal(t, 1, reg.Count())
	})

	t.Run("rejects missing uuid", func(t *testing.T) {
		reg, dialer := newTestRegistry()

		device, err := reg.CreateDeviceIfNew(ctx, discovery.CastService{Host: "192.168.1.10"})
		require.NoError(t, err)
		assert.Nil(t, device)
		assert.Equal(t, 0, reg.Count())
		assert.Equal(t, 0, dialer.dialCount("192.168.1.10"))
	})

	t.Run("duplicate uuid merges services", func(t *testing.T) {
		reg, dialer := newTestRegistry()
		id := uuid.New()

		first, err := reg.CreateDeviceIfNew(ctx, service("192.168.1.10", id))
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := reg.CreateDeviceIfNew(ctx, service("192.168.1.42", id))
		require.NoError(t, err)
		assert.Nil(t, second)
		assert.Equal(t, 1, reg.Count())
		assert.Equal(t, 1, dialer.dialCount("192.168.1.10"))
		assert.Equal(t, 0, dialer.dialCount("192.168.1.42"))

		// The tracked session carries the union of both discoveries and
		// the newer address.
		svc := first.Service()
		assert.Equal(t, "192.168.1.42", svc.Host)
		assert.Equal(t, []string{
			"192.168.1.10._googlecast._tcp.local.",
			"192.168.1.42._googlecast._tcp.local.",
		}, svc.ServiceNames())
	})

	t.Run("dial failure is not ready", func(t *testing.T) {
		reg, dialer := newTestRegistry()
		dialer.dialErr = errors.New("no route to host")

		_, err := reg.CreateDeviceIfNew(ctx, service("192.168.1.10", uuid.New()))
		assert.ErrorIs(t, err, ErrNotReady)
		assert.Equal(t, 0, reg.Count())
	})

	t.Run("connect failure is not ready", func(t *testing.T) {
		reg, dialer := newTestRegistry()
		dialer.connect = errors.New("connection refused")

		_, err := reg.CreateDeviceIfNew(ctx, service("192.168.1.10", uuid.New()))
		assert.ErrorIs(t, err, ErrNotReady)
		assert.Equal(t, 0, reg.Count())
	})
}

func TestHandleDiscoveryAcceptAll(t *testing.T) {
	reg, _ := newTestRegistry()
	id := uuid.New()

	reg.HandleDiscovery(context.Background(), "a", service("192.168.1.10", id))
	assert.Equal(t, 1, reg.Count())

	_, tracked := reg.Get(id)
	assert.True(t, tracked)
}

func TestHandleDiscoveryFilters(t *testing.T) {
	ctx := context.Background()
	wanted := uuid.New()
	other := uuid.New()

	t.Run("host rule", func(t *testing.T) {
		reg, _ := newTestRegistry()
		require.NoError(t, reg.AddFilter(ctx, config.DeviceEntry{Host: "192.168.1.10"}))

		reg.HandleDiscovery(ctx, "a", service("192.168.1.10", wanted))
		reg.HandleDiscovery(ctx, "b", service("192.168.1.20", other))

		assert.Equal(t, 1, reg.Count())
		_, tracked := reg.Get(wanted)
		assert.True(t, tracked)
	})

	t.Run("uuid rule", func(t *testing.T) {
		reg, _ := newTestRegistry()
		require.NoError(t, reg.AddFilter(ctx, config.DeviceEntry{UUID: wanted.String()}))

		reg.HandleDiscovery(ctx, "a", service("192.168.1.10", wanted))
		reg.HandleDiscovery(ctx, "b", service("192.168.1.20", other))

		assert.Equal(t, 1, reg.Count())
		_, tracked := reg.Get(wanted)
		assert.True(t, tracked)
	})

	t.Run("unmatched devices stay visible as seen", func(t *testing.T) {
		reg, _ := newTestRegistry()
		require.NoError(t, reg.AddFilter(ctx, config.DeviceEntry{Host: "192.168.1.10"}))

		reg.HandleDiscovery(ctx, "b", service("192.168.1.20", other))
		assert.Equal(t, 0, reg.Count())
		_, seen := reg.Seen(other)
		assert.True(t, seen)
	})
}

func TestAddFilterReplaysSeenDevices(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	id := uuid.New()

	// A restrictive rule is in place, so the discovery is remembered but
	// not promoted.
	require.NoError(t, reg.AddFilter(ctx, config.DeviceEntry{Host: "10.0.0.1"}))
	reg.HandleDiscovery(ctx, "a", service("192.168.1.10", id))
	require.Equal(t, 0, reg.Count())

	// Adding a rule matching the remembered device promotes it without a
	// fresh announcement.
	require.NoError(t, reg.AddFilter(ctx, config.DeviceEntry{UUID: id.String()}))
	assert.Equal(t, 1, reg.Count())

	device, tracked := reg.Get(id)
	require.True(t, tracked)
	assert.Equal(t, id, device.UUID())
}

func TestAddFilterValidates(t *testing.T) {
	reg, _ := newTestRegistry()
	err := reg.AddFilter(context.Background(), config.DeviceEntry{})
	assert.ErrorIs(t, err, config.ErrAmbiguousEntry)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()
	id := uuid.New()

	_, err := reg.CreateDeviceIfNew(ctx, service("192.168.1.10", id))
	require.NoError(t, err)

	require.NoError(t, reg.Remove(id))
	assert.Equal(t, 0, reg.Count())

	// Removing an untracked device is a no-op.
	require.NoError(t, reg.Remove(id))
}

func TestCloseAll(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry()

	_, err := reg.CreateDeviceIfNew(ctx, service("192.168.1.10", uuid.New()))
	require.NoError(t, err)
	_, err = reg.CreateDeviceIfNew(ctx, service("192.168.1.20", uuid.New()))
	require.NoError(t, err)
	require.Equal(t, 2, reg.Count())

	reg.CloseAll()
	assert.Equal(t, 0, reg.Count())
}

func TestOnDeviceAdded(t *testing.T) {
	reg, _ := newTestRegistry()
	var added []*media.CastDevice
	reg.OnDeviceAdded(func(d *media.CastDevice) { added = append(added, d) })

	id := uuid.New()
	_, err := reg.CreateDeviceIfNew(context.Background(), service("192.168.1.10", id))
	require.NoError(t, err)

	require.Len(t, added, 1)
	assert.Equal(t, id, added[0].UUID())
}
