package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDestination(t *testing.T) {
	tests := []struct {
		raw     string
		want    Destination
		wantErr bool
	}{
		{raw: "channel:123", want: Destination{Kind: KindChannel, ID: "123"}},
		{raw: " user:42 ", want: Destination{Kind: KindUser, ID: "42"}},
		{raw: "Channel:thread-1", want: Destination{Kind: KindChannel, ID: "thread-1"}},
		{raw: "123", wantErr: true},
		{raw: "channel:", wantErr: true},
		{raw: "group:9", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDestination(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDestination))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDestinationRebind(t *testing.T) {
	parent := Destination{Kind: KindChannel, ID: "parent"}
	got := parent.Rebind("thread-123")
	assert.Equal(t, "channel:thread-123", got.String())
	assert.True(t, got.IsChannel())
	assert.Equal(t, "channel:parent", parent.String())
	assert.Equal(t, "", Destination{}.String())
}

type stubMessenger struct {
	typ     Type
	account string
	closed  bool
}

func (s *stubMessenger) Type() Type { return s.typ }
func (s *stubMessenger) AccountID() string { return s.account }
func (s *stubMessenger) MaxMessageLen() int { return 100 }
func (s *stubMessenger) Close(context.Context) error {
	s.closed = true
	return nil
}
func (s *stubMessenger) SendMessage(context.Context, Destination, string) (*SendResult, error) {
	return &SendResult{}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := &stubMessenger{typ: Discord, account: "a"}
	b := &stubMessenger{typ: Telegram, account: "default"}
	require.NoError(t, r.Register(b))
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(a))
	assert.Equal(t, 2, r.Len())

	got, err := r.Get(Discord, "a")
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = r.Get(Lark, "a")
	assert.True(t, errors.Is(err, ErrMessengerNotFound))

	list := r.List()
	require.Len(t, list, 2)
	assert.Same(t, a, list[0])

	r.Unregister(Telegram, "default")
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Close(context.Background()))
	assert.True(t, a.closed)
	assert.Equal(t, 0, r.Len())
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported(Discord))
	assert.False(t, IsSupported(Type("http")))
}
