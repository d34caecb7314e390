// Package config loads castbridge configuration from YAML and provides
// the base-URL attribution used to diagnose cast failures.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Configuration errors.
var (
	ErrAmbiguousEntry = errors.New("config: device entry must set exactly one of host or uuid")
	ErrInvalidUUID    = errors.New("config: invalid device uuid")
)

// DeviceEntry is one manually configured inclusion rule. Exactly one of
// Host or UUID is set. No entries at all means auto-discovery mode:
// every identifiable device is accepted.
type DeviceEntry struct {
	Host string `yaml:"host,omitempty"`
	UUID string `yaml:"uuid,omitempty"`
}

// Validate checks that the entry names exactly one match criterion and
// that a UUID, when present, parses.
func (e DeviceEntry) Validate() error {
	if (e.Host == "") == (e.UUID == "") {
		return ErrAmbiguousEntry
	}
	if e.UUID != "" {
		if _, err := uuid.Parse(e.UUID); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidUUID, e.UUID)
		}
	}
	return nil
}

// TTSConfig holds the text-to-speech collaborator settings consumed by
// castbridge. Only the base URL matters here; synthesis itself happens
// elsewhere.
type TTSConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
}

// Config is the top-level castbridge configuration.
type Config struct {
	// Devices lists manual inclusion rules. Empty means accept-all.
	Devices []DeviceEntry `yaml:"devices,omitempty"`

	// InternalURL and ExternalURL are the host application's configured
	// base URLs for locally served media.
	InternalURL string `yaml:"internal_url,omitempty"`
	ExternalURL string `yaml:"external_url,omitempty"`

	TTS TTSConfig `yaml:"tts,omitempty"`

	// EventLogPath, when set, enables the CBOR event log.
	EventLogPath string `yaml:"event_log,omitempty"`
}

// Parse decodes a YAML document into a Config and validates the device
// entries.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	for i, entry := range cfg.Devices {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("devices[%d]: %w", i, err)
		}
	}
	return &cfg, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// BaseURLs returns the attribution inputs configured here.
func (c *Config) BaseURLs() BaseURLs {
	return BaseURLs{
		Internal: c.InternalURL,
		External: c.ExternalURL,
		TTS:      c.TTS.BaseURL,
	}
}

// Attribution labels reported for failing media URLs.
const (
	LabelInternalURL = "internal_url"
	LabelExternalURL = "external_url"
	LabelTTSBaseURL  = "tts.base_url"
)

// BaseURLs are the configured base URLs a failing media URL is checked
// against, in precedence order: internal, external, TTS.
type BaseURLs struct {
	Internal string
	External string
	TTS      string
}

// Attribute reports which configured base URL shares an origin with
// contentID. ok is false when none match, in which case the failure
// cannot be attributed to a configured URL.
func (b BaseURLs) Attribute(contentID string) (label, base string, ok bool) {
	switch {
	case sameOrigin(b.Internal, contentID):
		return LabelInternalURL, b.Internal, true
	case sameOrigin(b.External, contentID):
		return LabelExternalURL, b.External, true
	case sameOrigin(b.TTS, contentID):
		return LabelTTSBaseURL, b.TTS, true
	}
	return "", "", false
}

// sameOrigin reports whether base and target share scheme, hostname and
// port. An empty or unparseable base never matches.
func sameOrigin(base, target string) bool {
	if base == "" || target == "" {
		return false
	}
	bu, err := url.Parse(base)
	if err != nil || bu.Host == "" {
		return false
	}
	tu, err := url.Parse(target)
	if err != nil || tu.Host == "" {
		return false
	}
	return bu.Scheme == tu.Scheme && bu.Hostname() == tu.Hostname() && bu.Port() == tu.Port()
}
