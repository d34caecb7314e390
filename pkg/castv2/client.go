package castv2

import (
	"context"
	"errors"
	"time"
)

// Client errors.
var (
	ErrNotConnected = errors.New("castv2: not connected")
	ErrClientClosed = errors.New("castv2: client closed")
)

// StatusListener receives asynchronous status callbacks from a Client.
// Callbacks are delivered in transport order and must not block.
type StatusListener interface {
	// NewCastStatus is invoked when the receiver-level status changes.
	NewCastStatus(status CastStatus)

	// NewConnectionStatus is invoked on socket state transitions.
	NewConnectionStatus(status ConnectionStatus)

	// NewMediaStatus is invoked when the media session status changes.
	NewMediaStatus(status *MediaStatus)
}

// MediaController is the playback command surface of a connection.
// Commands are fire-and-forget at this layer; failures surface as errors
// and the resulting state arrives via NewMediaStatus.
type MediaController interface {
	Play() error
	Pause() error
	Stop() error
	Next() error
	Previous() error
	Seek(position time.Duration) error

	// PlayMedia starts casting new content on this connection's device.
	PlayMedia(contentID, contentType string, metadata map[string]any) error
}

// Client is a persistent control connection to one cast device.
// A Client is bound to a single device for its lifetime; reconnecting to
// a device after Disconnect means dialing a fresh Client.
type Client interface {
	// Connect establishes the control channel. Blocks until the socket
	// is up or ctx is done.
	Connect(ctx context.Context) error

	// Disconnect tears the control channel down. Safe to call on a
	// client that never connected.
	Disconnect() error

	// RegisterStatusListener registers the listener receiving status
	// callbacks. Must be called before Connect.
	RegisterStatusListener(listener StatusListener)

	// MediaController returns the controller for this device's own
	// media session.
	MediaController() MediaController

	// ReceiverIdle reports whether the device itself is idle (no
	// receiver application running), as opposed to the media session
	// being idle.
	ReceiverIdle() bool
}

// Dialer creates Clients. Injecting a Dialer keeps the protocol library
// replaceable and lets tests supply doubles.
type Dialer interface {
	Dial(host string, port int) (Client, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(host string, port int) (Client, error)

// Dial calls f.
func (f DialerFunc) Dial(host string, port int) (Client, error) {
	return f(host, port)
}
