package castv2

import "github.com/google/uuid"

// Player states reported by the receiver in MediaStatus.
const (
	PlayerStateIdle      = "IDLE"
	PlayerStateBuffering = "BUFFERING"
	PlayerStatePlaying   = "PLAYING"
	PlayerStatePaused    = "PAUSED"
	PlayerStateUnknown   = "UNKNOWN"
)

// Idle reasons reported by the receiver when PlayerState is IDLE.
const (
	IdleReasonCancelled   = "CANCELLED"
	IdleReasonInterrupted = "INTERRUPTED"
	IdleReasonFinished    = "FINISHED"
	IdleReasonError       = "ERROR"
)

// Connection status values delivered via ConnectionStatus.
const (
	ConnectionStatusConnecting   = "CONNECTING"
	ConnectionStatusConnected    = "CONNECTED"
	ConnectionStatusDisconnected = "DISCONNECTED"
	ConnectionStatusFailed       = "FAILED"
	ConnectionStatusLost         = "LOST"
)

// Image is an artwork reference carried in a media status.
type Image struct {
	URL    string
	Width  int
	Height int
}

// MediaStatus is the media session state reported by a receiver
// application, for either a device's own session or a group session.
type MediaStatus struct {
	PlayerState string
	IdleReason  string

	ContentID   string
	ContentType string
	StreamType  string

	Title       string
	SeriesTitle string
	Artist      string
	AlbumName   string
	Images      []Image

	// Duration and CurrentTime are in seconds.
	Duration    float64
	CurrentTime float64

	SupportsPause bool
	SupportsSeek  bool
}

// PlayerIsPlaying reports whether the session is actively rendering
// content. BUFFERING counts as playing, matching receiver semantics.
func (s *MediaStatus) PlayerIsPlaying() bool {
	return s.PlayerState == PlayerStatePlaying || s.PlayerState == PlayerStateBuffering
}

// PlayerIsPaused reports whether the session is paused.
func (s *MediaStatus) PlayerIsPaused() bool {
	return s.PlayerState == PlayerStatePaused
}

// PlayerIsIdle reports whether the session is idle.
func (s *MediaStatus) PlayerIsIdle() bool {
	return s.PlayerState == PlayerStateIdle
}

// CastStatus is the receiver-level state of a device: volume, the
// running application and, for devices that belong to a speaker group,
// the UUID of that group.
type CastStatus struct {
	Volume      float64
	Muted       bool
	AppID       string
	DisplayName string
	StatusText  string

	// GroupUUID is the audio group this device is currently a member
	// of, or uuid.Nil when the device is not grouped.
	GroupUUID uuid.UUID
}

// ConnectionStatus reports a transition of the underlying socket.
type ConnectionStatus struct {
	Status string

	// Address is the remote endpoint the transition refers to.
	Address string
}
