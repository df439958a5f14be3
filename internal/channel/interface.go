package channel

import (
	"context"
)

// SendResult identifies the message a platform created for a send.
type SendResult struct {
	ChannelID string
	MessageID string
}

// ThreadSpec describes a thread anchored to an existing message.
type ThreadSpec struct {
	MessageID string
	Name      string
}

type ThreadInfo struct {
	ID       string
	ParentID string
	Name     string
}

// Messenger is an outbound adapter bound to one account of a chat platform.
type Messenger interface {
	// Type returns the platform this messenger talks to.
	Type() Type

	// AccountID returns the configured account this messenger authenticates as.
	AccountID() string

	// MaxMessageLen returns the largest text body one SendMessage accepts, in bytes.
	MaxMessageLen() int

	// SendMessage sends text to dest and reports the resulting message.
	SendMessage(ctx context.Context, dest Destination, text string) (*SendResult, error)
}

// ThreadCreator is implemented by messengers whose platform supports
// starting a thread from an existing message.
type ThreadCreator interface {
	CreateThread(ctx context.Context, channelID string, spec ThreadSpec) (*ThreadInfo, error)
}

// Closer is implemented by messengers holding long-lived connections.
type Closer interface {
	Close(ctx context.Context) error
}
