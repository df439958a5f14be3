package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tgifai/cronturn/internal/channel"
	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/pkg/logs"
)

const maxMessageLen = 4096

var _ channel.Messenger = (*Telegram)(nil)

type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram delivers messages through the Bot API. Private chats share ids
// with their users, so channel and user destinations both resolve to a chat id.
type Telegram struct {
	accountID string
	bot       sender
}

func NewMessenger(accountID string, acc *config.AccountConfig) (channel.Messenger, error) {
	cfg, err := ParseConfig(acc.Config)
	if err != nil {
		return nil, fmt.Errorf("parse telegram config: %w", err)
	}

	b, err := bot.New(cfg.Token,
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(cfg.Timeout, &http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{accountID: accountID, bot: b}, nil
}

func (c *Telegram) Type() channel.Type {
	return channel.Telegram
}

func (c *Telegram) AccountID() string {
	return c.accountID
}

func (c *Telegram) MaxMessageLen() int {
	return maxMessageLen
}

func (c *Telegram) SendMessage(ctx context.Context, dest channel.Destination, content string) (*channel.SendResult, error) {
	chatID, err := strconv.ParseInt(dest.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID %q: %w", dest.ID, err)
	}

	text, entities := renderEntities(content)
	if text == "" {
		text = content
	}

	msg, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:   chatID,
		Text:     text,
		Entities: entities,
	})
	// only a rejected request is safe to resend; any other failure may have
	// delivered the first message
	if errors.Is(err, bot.ErrorBadRequest) {
		logs.CtxWarn(ctx, "[channel:telegram] entity send rejected, falling back to plain text: %v", err)
		msg, err = c.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   content,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("telegram send: %w", err)
	}

	res := &channel.SendResult{ChannelID: dest.ID}
	if msg != nil {
		res.ChannelID = strconv.FormatInt(msg.Chat.ID, 10)
		res.MessageID = strconv.Itoa(msg.ID)
	}
	return res, nil
}
