package channel

import (
	"errors"

	"github.com/bytedance/gg/gslice"
)

var (
	ErrUnsupportedOperation = errors.New("channel operation is not supported")
	ErrInvalidDestination   = errors.New("invalid destination")
	ErrMessengerNotFound    = errors.New("messenger not found")
)

type Type string

const (
	Discord Type = "discord"

	Telegram Type = "telegram"

	Lark Type = "lark"
)

var SupportedChannels = []Type{
	Discord,
	Telegram,
	Lark,
}

// IsSupported reports whether t names a known channel type.
func IsSupported(t Type) bool {
	return gslice.Contains(SupportedChannels, t)
}
