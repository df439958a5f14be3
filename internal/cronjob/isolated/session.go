package isolated

import (
	"context"
	"fmt"
	"time"

	"github.com/tgifai/cronturn/internal/agent/session"
	"github.com/tgifai/cronturn/internal/consts"
)

type SessionParams struct {
	AgentID    string
	SessionKey string
	Now        time.Time

	// StorePath overrides the agent's default session store file.
	StorePath string
}

type CronSession struct {
	StorePath string
	Store     *session.Store
	Entry     *session.Entry
	IsNew     bool
}

// ResolveCronSession loads the agent's session store and returns the entry
// for SessionKey, creating and persisting it on first use.
func ResolveCronSession(ctx context.Context, p SessionParams) (*CronSession, error) {
	if p.SessionKey == "" {
		return nil, fmt.Errorf("session key is required")
	}
	path := p.StorePath
	if path == "" {
		path = consts.SessionStorePath(p.AgentID)
	}
	if p.Now.IsZero() {
		p.Now = time.Now()
	}

	store, err := session.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	entry, isNew, err := store.Resolve(ctx, p.SessionKey, p.Now)
	if err != nil {
		return nil, fmt.Errorf("resolve session %s: %w", p.SessionKey, err)
	}
	return &CronSession{
		StorePath: store.Path(),
		Store:     store,
		Entry:     entry,
		IsNew:     isNew,
	}, nil
}
