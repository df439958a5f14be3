package isolated

import (
	"context"
	"fmt"
	"strings"

	"github.com/tgifai/cronturn/internal/channel"
	"github.com/tgifai/cronturn/internal/pkg/logs"
)

// ThreadMessenger is a messenger able to start threads.
type ThreadMessenger interface {
	channel.Messenger
	channel.ThreadCreator
}

type ThreadParams struct {
	To             string
	AccountID      string
	ThreadName     string
	StarterMessage string
}

type ThreadResult struct {
	ThreadID         string
	StarterMessageID string
}

// CreateThreadAndSendStarter posts StarterMessage to the parent channel in
// To and opens a thread anchored on it. It is not idempotent: every call
// creates a new thread.
func CreateThreadAndSendStarter(ctx context.Context, m ThreadMessenger, p ThreadParams) (*ThreadResult, error) {
	dest, err := channel.ParseDestination(p.To)
	if err != nil || !dest.IsChannel() {
		return nil, fmt.Errorf("%w: thread creation requires a channel target (channel:<id>), got %q", ErrInvalidTarget, p.To)
	}
	if strings.TrimSpace(p.ThreadName) == "" {
		return nil, fmt.Errorf("%w: thread name is required", ErrThreadCreation)
	}

	starter, err := m.SendMessage(ctx, dest, p.StarterMessage)
	if err != nil {
		return nil, fmt.Errorf("%w: send starter message: %w", ErrThreadCreation, err)
	}
	if starter == nil || starter.MessageID == "" {
		return nil, fmt.Errorf("%w: starter message has no id", ErrThreadCreation)
	}
	parentID := starter.ChannelID
	if parentID == "" {
		parentID = dest.ID
	}

	info, err := m.CreateThread(ctx, parentID, channel.ThreadSpec{
		MessageID: starter.MessageID,
		Name:      p.ThreadName,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThreadCreation, err)
	}
	if info == nil || strings.TrimSpace(info.ID) == "" {
		return nil, fmt.Errorf("%w: missing thread id", ErrThreadCreation)
	}

	logs.CtxInfo(ctx, "[isolated] created thread %s (%q) on %s/%s from message %s",
		info.ID, p.ThreadName, p.AccountID, parentID, starter.MessageID)
	return &ThreadResult{
		ThreadID:         info.ID,
		StarterMessageID: starter.MessageID,
	}, nil
}
