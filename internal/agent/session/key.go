package session

import (
	"fmt"
	"strings"
)

const keyPrefix = "agent"

// Key addresses a conversation: agent:<agentId>:<channel>:<address>.
// Address may itself contain colons (for example "channel:thread-123").
type Key struct {
	AgentID string
	Channel string
	Address string
}

func NewKey(agentID, channel, address string) Key {
	return Key{AgentID: agentID, Channel: channel, Address: address}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, k.AgentID, k.Channel, k.Address)
}

// Rebind returns a copy of k addressed to address.
func (k Key) Rebind(address string) Key {
	k.Address = address
	return k
}

// ParseKey splits on the first three colons only.
func ParseKey(raw string) (Key, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) != 4 || parts[0] != keyPrefix {
		return Key{}, fmt.Errorf("invalid session key format: %s (expected agent:<agentId>:<channel>:<address>)", raw)
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return Key{}, fmt.Errorf("invalid session key format: %s (empty segment)", raw)
	}
	return Key{AgentID: parts[1], Channel: parts[2], Address: parts[3]}, nil
}
