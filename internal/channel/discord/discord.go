package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tgifai/cronturn/internal/channel"
	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/pkg/utils"
)

const maxMessageLen = 2000

var (
	_ channel.Messenger     = (*Discord)(nil)
	_ channel.ThreadCreator = (*Discord)(nil)
)

// restAPI is the subset of *discordgo.Session used for outbound traffic.
type restAPI interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageThreadStart(channelID, messageID string, name string, archiveDuration int, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

type Discord struct {
	accountID string
	config    Config
	api       restAPI
}

func NewMessenger(accountID string, acc *config.AccountConfig) (channel.Messenger, error) {
	cfg, err := ParseConfig(acc.Config)
	if err != nil {
		return nil, fmt.Errorf("parse discord config: %w", err)
	}

	sess, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return newDiscord(accountID, *cfg, sess), nil
}

func newDiscord(accountID string, cfg Config, api restAPI) *Discord {
	return &Discord{accountID: accountID, config: cfg, api: api}
}

func (d *Discord) Type() channel.Type {
	return channel.Discord
}

func (d *Discord) AccountID() string {
	return d.accountID
}

func (d *Discord) MaxMessageLen() int {
	return maxMessageLen
}

func (d *Discord) SendMessage(ctx context.Context, dest channel.Destination, text string) (*channel.SendResult, error) {
	channelID := dest.ID
	if dest.Kind == channel.KindUser {
		dm, err := d.api.UserChannelCreate(dest.ID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("open dm channel: %w", err)
		}
		channelID = dm.ID
	}

	msg, err := d.api.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord send to %s: %w", dest, err)
	}
	if msg == nil {
		return nil, errors.New("discord send returned no message")
	}
	return &channel.SendResult{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

// CreateThread starts a public thread from messageID in channelID.
func (d *Discord) CreateThread(ctx context.Context, channelID string, spec channel.ThreadSpec) (*channel.ThreadInfo, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, errors.New("thread name cannot be empty")
	}
	name = utils.Truncate(name, maxThreadNameLen-3)

	th, err := d.api.MessageThreadStart(channelID, spec.MessageID, name, d.config.ArchiveMinutes, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord thread start: %w", err)
	}
	if th == nil {
		return &channel.ThreadInfo{ParentID: channelID, Name: name}, nil
	}
	logs.CtxDebug(ctx, "[channel:discord] thread %s created under %s", th.ID, channelID)
	return &channel.ThreadInfo{ID: th.ID, ParentID: channelID, Name: th.Name}, nil
}
