package channel

import (
	"fmt"
	"strings"
)

// DestinationKind is the addressing class of a delivery destination.
type DestinationKind string

const (
	KindChannel DestinationKind = "channel"
	KindUser    DestinationKind = "user"
)

// Destination is a parsed delivery address such as "channel:123" or "user:42".
type Destination struct {
	Kind DestinationKind
	ID   string
}

// ParseDestination parses "<kind>:<id>". Only channel and user kinds are accepted.
func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	kind, id, ok := strings.Cut(raw, ":")
	if !ok {
		return Destination{}, fmt.Errorf("%w: %q has no kind prefix", ErrInvalidDestination, raw)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Destination{}, fmt.Errorf("%w: %q has an empty id", ErrInvalidDestination, raw)
	}

	switch DestinationKind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindChannel:
		return Destination{Kind: KindChannel, ID: id}, nil
	case KindUser:
		return Destination{Kind: KindUser, ID: id}, nil
	default:
		return Destination{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidDestination, kind)
	}
}

func (d Destination) String() string {
	if d.Kind == "" && d.ID == "" {
		return ""
	}
	return string(d.Kind) + ":" + d.ID
}

func (d Destination) IsChannel() bool { return d.Kind == KindChannel }

func (d Destination) IsZero() bool { return d.ID == "" }

// Rebind points the destination at a thread. A thread is itself a channel,
// so the result is always channel-class.
func (d Destination) Rebind(threadID string) Destination {
	return Destination{Kind: KindChannel, ID: threadID}
}
