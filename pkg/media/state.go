package media

import "github.com/castbridge/castbridge-go/pkg/castv2"

// State is the resolved, user-visible playback state of a session.
type State string

// Resolved states.
const (
	StatePlaying   State = "playing"
	StateBuffering State = "buffering"
	StatePaused    State = "paused"
	StateIdle      State = "idle"
	StateOff       State = "off"
	StateUnknown   State = "unknown"
)

// derivedState maps a media status to a resolved state, or StateUnknown
// when the status carries no usable player state.
func derivedState(status *castv2.MediaStatus) State {
	if status == nil {
		return StateUnknown
	}
	switch status.PlayerState {
	case castv2.PlayerStatePlaying:
		return StatePlaying
	case castv2.PlayerStateBuffering:
		return StateBuffering
	case castv2.PlayerStatePaused:
		return StatePaused
	case castv2.PlayerStateIdle:
		return StateIdle
	}
	return StateUnknown
}
