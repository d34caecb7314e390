package log

import "time"

// Event is one castbridge log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"2,keyasint"`

	// DeviceUUID is the device the event refers to, if any.
	DeviceUUID string `cbor:"3,keyasint,omitempty"`

	// GroupUUID is the speaker group involved, if any.
	GroupUUID string `cbor:"4,keyasint,omitempty"`

	// ServiceName is the DNS-SD instance name for discovery events.
	ServiceName string `cbor:"5,keyasint,omitempty"`

	// Message is the human-readable summary.
	Message string `cbor:"6,keyasint,omitempty"`

	// Detail carries event-specific key/value context.
	Detail map[string]string `cbor:"7,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryDiscovery indicates a device discovery event.
	CategoryDiscovery Category = 0
	// CategoryConnection indicates a connection state transition.
	CategoryConnection Category = 1
	// CategoryMedia indicates a media status event.
	CategoryMedia Category = 2
	// CategoryControl indicates a dispatched control call.
	CategoryControl Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryDiscovery:
		return "DISCOVERY"
	case CategoryConnection:
		return "CONNECTION"
	case CategoryMedia:
		return "MEDIA"
	case CategoryControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}
