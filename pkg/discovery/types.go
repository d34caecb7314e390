package discovery

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Service type constants for mDNS.
const (
	// ServiceTypeCast is the DNS-SD service type cast devices advertise.
	ServiceTypeCast = "_googlecast._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default cast control port.
	DefaultPort = 8009
)

// TXT record keys used in cast service announcements.
const (
	TXTKeyUUID         = "id" // Device UUID
	TXTKeyModel        = "md" // Model name
	TXTKeyFriendlyName = "fn" // User-visible name
)

// AudioGroupModelName is the reserved model name advertised by virtual
// speaker-group devices.
const AudioGroupModelName = "Google Cast Group"

// Timing constants.
const (
	// LookupTimeout bounds a single directory lookup.
	LookupTimeout = 10 * time.Second
)

// Discovery errors.
var (
	ErrNotFound         = errors.New("service not found")
	ErrInvalidTXTRecord = errors.New("invalid TXT record format")
	ErrMissingUUID      = errors.New("announcement carries no device UUID")
)

// CastService is the immutable identity record for a discovered device.
// Two CastServices with the same UUID describe the same logical device
// even when the host changed between discoveries.
type CastService struct {
	Host string
	Port int

	// UUID identifies the device; uuid.Nil means the device could not
	// be identified and can never be promoted to a managed session.
	UUID uuid.UUID

	ModelName    string
	FriendlyName string

	// Services is the set of DNS-SD instance names currently
	// advertising this device.
	Services map[string]struct{}
}

// NewCastService builds a descriptor advertising under a single service
// instance name.
func NewCastService(serviceName, host string, port int, id uuid.UUID, model, friendly string) CastService {
	return CastService{
		Host:         host,
		Port:         port,
		UUID:         id,
		ModelName:    model,
		FriendlyName: friendly,
		Services:     map[string]struct{}{serviceName: {}},
	}
}

// HasUUID reports whether the device carries a usable identity.
func (s CastService) HasUUID() bool {
	return s.UUID != uuid.Nil
}

// IsAudioGroup reports whether this descriptor is a virtual speaker
// group rather than a physical device.
func (s CastService) IsAudioGroup() bool {
	return s.ModelName == AudioGroupModelName
}

// ServiceNames returns the advertising instance names, sorted.
func (s CastService) ServiceNames() []string {
	names := make([]string, 0, len(s.Services))
	for name := range s.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MergedWith returns a copy of other updated with this descriptor's
// address and display fields, keeping the union of both service-name
// sets. The receiver is the newer discovery; its host and port win.
func (s CastService) MergedWith(other CastService) CastService {
	merged := s
	merged.Services = make(map[string]struct{}, len(s.Services)+len(other.Services))
	for name := range other.Services {
		merged.Services[name] = struct{}{}
	}
	for name := range s.Services {
		merged.Services[name] = struct{}{}
	}
	if merged.ModelName == "" {
		merged.ModelName = other.ModelName
	}
	if merged.FriendlyName == "" {
		merged.FriendlyName = other.FriendlyName
	}
	return merged
}

// String returns a short human-readable summary.
func (s CastService) String() string {
	return fmt.Sprintf("%s (%s) at %s:%d", s.FriendlyName, s.ModelName, s.Host, s.Port)
}
