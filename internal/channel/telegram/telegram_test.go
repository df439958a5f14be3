package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgifai/cronturn/internal/channel"
)

type fakeSender struct {
	calls []*bot.SendMessageParams
	fail  int
	err   error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.calls = append(f.calls, params)
	if len(f.calls) <= f.fail {
		if f.err != nil {
			return nil, f.err
		}
		return nil, fmt.Errorf("%w, Bad Request: can't parse entities", bot.ErrorBadRequest)
	}
	return &models.Message{ID: 77, Chat: models.Chat{ID: params.ChatID.(int64)}}, nil
}

func TestSendMessage(t *testing.T) {
	fs := &fakeSender{}
	tg := &Telegram{accountID: "default", bot: fs}

	res, err := tg.SendMessage(context.Background(), channel.Destination{Kind: channel.KindChannel, ID: "-1001"}, "**hi**")
	require.NoError(t, err)
	assert.Equal(t, "-1001", res.ChannelID)
	assert.Equal(t, "77", res.MessageID)
	require.Len(t, fs.calls, 1)
	assert.Equal(t, "hi", fs.calls[0].Text)
	require.Len(t, fs.calls[0].Entities, 1)
	assert.Equal(t, models.MessageEntityTypeBold, fs.calls[0].Entities[0].Type)
}

func TestSendMessageFallsBackToPlainText(t *testing.T) {
	fs := &fakeSender{fail: 1}
	tg := &Telegram{accountID: "default", bot: fs}

	_, err := tg.SendMessage(context.Background(), channel.Destination{Kind: channel.KindUser, ID: "42"}, "*x*")
	require.NoError(t, err)
	require.Len(t, fs.calls, 2)
	assert.Equal(t, "*x*", fs.calls[1].Text)
	assert.Empty(t, fs.calls[1].Entities)
}

func TestSendMessageNoResendOnTransportError(t *testing.T) {
	fs := &fakeSender{fail: 1, err: errors.New("context deadline exceeded")}
	tg := &Telegram{accountID: "default", bot: fs}

	_, err := tg.SendMessage(context.Background(), channel.Destination{Kind: channel.KindUser, ID: "42"}, "*x*")
	require.Error(t, err)
	assert.Len(t, fs.calls, 1)
}

func TestSendMessageRejectsNonNumericChat(t *testing.T) {
	tg := &Telegram{bot: &fakeSender{}}
	_, err := tg.SendMessage(context.Background(), channel.Destination{Kind: channel.KindChannel, ID: "general"}, "x")
	require.Error(t, err)
}

func TestRenderEntities(t *testing.T) {
	text, entities := renderEntities("# Title\n\nSee [docs](https://x.dev) and `code`.\n\n- one\n- two")
	assert.Equal(t, "Title\n\nSee docs and code.\n\n- one\n- two", text)

	types := make([]models.MessageEntityType, 0, len(entities))
	for _, e := range entities {
		types = append(types, e.Type)
	}
	assert.Equal(t, []models.MessageEntityType{
		models.MessageEntityTypeBold,
		models.MessageEntityTypeTextLink,
		models.MessageEntityTypeCode,
	}, types)
	assert.Equal(t, "https://x.dev", entities[1].URL)
	assert.Equal(t, 11, entities[1].Offset)
	assert.Equal(t, 4, entities[1].Length)
}

func TestRenderEntitiesUTF16Offsets(t *testing.T) {
	text, entities := renderEntities("😀 **b**")
	assert.Equal(t, "😀 b", text)
	require.Len(t, entities, 1)
	assert.Equal(t, 3, entities[0].Offset)
}

func TestParseConfig(t *testing.T) {
	_, err := ParseConfig(map[string]any{})
	require.Error(t, err)

	cfg, err := ParseConfig(map[string]any{"token": "t", "timeout": 5})
	require.NoError(t, err)
	assert.Equal(t, "t", cfg.Token)
	assert.EqualValues(t, 5e9, cfg.Timeout)
}
