package discovery

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CastTXT holds the identity fields decoded from a cast service's TXT
// records.
type CastTXT struct {
	UUID         uuid.UUID
	ModelName    string
	FriendlyName string
}

// DecodeCastTXT parses the key=value TXT strings of a cast announcement.
// Records without an "id" key (or with an unparseable one) yield
// ErrMissingUUID; the announcement is still structurally valid, it just
// cannot be tracked.
func DecodeCastTXT(txt []string) (CastTXT, error) {
	var out CastTXT
	for _, record := range txt {
		key, value, ok := strings.Cut(record, "=")
		if !ok {
			return CastTXT{}, fmt.Errorf("%w: %q", ErrInvalidTXTRecord, record)
		}
		switch key {
		case TXTKeyUUID:
			id, err := parseCastUUID(value)
			if err != nil {
				return CastTXT{}, fmt.Errorf("%w: id=%q", ErrMissingUUID, value)
			}
			out.UUID = id
		case TXTKeyModel:
			out.ModelName = value
		case TXTKeyFriendlyName:
			out.FriendlyName = value
		}
	}
	if out.UUID == uuid.Nil {
		return CastTXT{}, ErrMissingUUID
	}
	return out, nil
}

// parseCastUUID accepts both the dashless form devices advertise and the
// canonical dashed form.
func parseCastUUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, ErrMissingUUID
	}
	return uuid.Parse(value)
}
