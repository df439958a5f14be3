package lark

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/tgifai/cronturn/internal/channel"
	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/pkg/utils"
)

const (
	// maxPostContentSize is the upper bound for a serialized post (30 KB).
	maxPostContentSize = 30 * 1024
	// maxMessageLen leaves headroom for the post JSON envelope.
	maxMessageLen = 16 * 1024

	truncatedMark = "… [truncated]"
)

var _ channel.Messenger = (*Lark)(nil)

type messageAPI interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

type Lark struct {
	accountID string
	messages  messageAPI
}

func NewMessenger(accountID string, acc *config.AccountConfig) (channel.Messenger, error) {
	cfg, err := ParseConfig(acc.Config)
	if err != nil {
		return nil, fmt.Errorf("parse lark config: %w", err)
	}

	var opts []lark.ClientOptionFunc
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}
	client := lark.NewClient(cfg.AppID, cfg.AppSecret, opts...)
	return &Lark{accountID: accountID, messages: client.Im.Message}, nil
}

func (l *Lark) Type() channel.Type {
	return channel.Lark
}

func (l *Lark) AccountID() string {
	return l.accountID
}

func (l *Lark) MaxMessageLen() int {
	return maxMessageLen
}

// SendMessage posts to a chat for channel destinations and to an open_id for
// user destinations.
func (l *Lark) SendMessage(ctx context.Context, dest channel.Destination, content string) (*channel.SendResult, error) {
	msgType, body, err := buildPostContent(content)
	if err != nil {
		return nil, fmt.Errorf("build lark post content: %w", err)
	}

	resp, err := l.messages.Create(ctx,
		larkim.NewCreateMessageReqBuilder().
			ReceiveIdType(receiveIDType(dest)).
			Body(larkim.NewCreateMessageReqBodyBuilder().
				MsgType(msgType).
				ReceiveId(dest.ID).
				Content(body).
				Build()).
			Build())
	if err != nil {
		return nil, fmt.Errorf("lark send message: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("lark send message failed: code=%d msg=%s", resp.Code, resp.Msg)
	}

	res := &channel.SendResult{ChannelID: dest.ID}
	if resp.Data != nil {
		if resp.Data.ChatId != nil {
			res.ChannelID = *resp.Data.ChatId
		}
		if resp.Data.MessageId != nil {
			res.MessageID = *resp.Data.MessageId
		}
	}
	return res, nil
}

func receiveIDType(dest channel.Destination) string {
	if dest.Kind == channel.KindUser {
		return larkim.ReceiveIdTypeOpenId
	}
	return larkim.ReceiveIdTypeChatId
}

func serializePost(paragraphs [][]postElement) (string, error) {
	return sonic.MarshalString(map[string]any{
		"zh_cn": map[string]any{"content": paragraphs},
	})
}

// buildPostContent renders md as a post. Oversized posts lose trailing
// paragraphs first, then degrade to truncated plain text.
func buildPostContent(md string) (msgType string, body string, err error) {
	paragraphs := markdownToPost(md)
	body, err = serializePost(paragraphs)
	if err != nil {
		return "", "", err
	}
	if len(body) <= maxPostContentSize {
		return larkim.MsgTypePost, body, nil
	}

	// largest prefix that still fits, found by bisection
	lo, hi := 0, len(paragraphs)-1
	best := ""
	for lo <= hi {
		mid := (lo + hi) / 2
		kept := append(paragraphs[:mid:mid], []postElement{{"tag": "text", "text": truncatedMark}})
		candidate, err := serializePost(kept)
		if err != nil {
			return "", "", err
		}
		if len(candidate) <= maxPostContentSize {
			best = candidate
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best != "" && lo > 1 {
		return larkim.MsgTypePost, best, nil
	}

	text := md
	if len(text) > maxPostContentSize-64 {
		text = utils.Truncate(text, maxPostContentSize-64)
	}
	body, err = sonic.MarshalString(map[string]string{"text": text})
	if err != nil {
		return "", "", err
	}
	return larkim.MsgTypeText, body, nil
}
