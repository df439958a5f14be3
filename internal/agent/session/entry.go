package session

import (
	"time"

	"github.com/google/uuid"
)

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Entry is the persisted state of one session key. Version is the
// compare-and-swap stamp checked by Store.Commit.
type Entry struct {
	SessionID  string    `json:"sessionId"`
	SystemSent bool      `json:"systemSent"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Version    uint64    `json:"version"`

	Channel      string `json:"channel,omitempty"`
	To           string `json:"to,omitempty"`
	AccountID    string `json:"accountId,omitempty"`
	LastModel    string `json:"lastModel,omitempty"`
	LastProvider string `json:"lastProvider,omitempty"`
	Usage        Usage  `json:"usage"`
}

func newEntry(now time.Time) *Entry {
	return &Entry{
		SessionID: uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}
