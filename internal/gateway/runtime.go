package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/gg/gmap"

	"github.com/tgifai/cronturn/internal/agent"
	"github.com/tgifai/cronturn/internal/agent/hook"
	"github.com/tgifai/cronturn/internal/agent/session"
	"github.com/tgifai/cronturn/internal/channel"
	"github.com/tgifai/cronturn/internal/channel/discord"
	"github.com/tgifai/cronturn/internal/channel/lark"
	"github.com/tgifai/cronturn/internal/channel/telegram"
	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/consts"
	"github.com/tgifai/cronturn/internal/cronjob"
	"github.com/tgifai/cronturn/internal/cronjob/isolated"
	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/provider"
	"github.com/tgifai/cronturn/internal/provider/anthropic"
	"github.com/tgifai/cronturn/internal/provider/gemini"
	"github.com/tgifai/cronturn/internal/provider/ollama"
	"github.com/tgifai/cronturn/internal/provider/openai"
	"github.com/tgifai/cronturn/internal/provider/qwen"
)

const sessionPruneInterval = 10 * time.Minute

// Runtime is everything a cron fire needs: registered providers and
// messengers, the agent executor, the isolated runner and the scheduler.
type Runtime struct {
	Executor  *agent.Executor
	Runner    *isolated.Runner
	Scheduler *cronjob.Scheduler
}

// NewRuntime registers the configured providers and messengers and wires
// the scheduler to the isolated runner. The scheduler is not started.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	if err := initProviders(ctx, cfg.Providers); err != nil {
		return nil, fmt.Errorf("init providers: %w", err)
	}
	if err := initMessengers(ctx, cfg.Channels); err != nil {
		return nil, fmt.Errorf("init channels: %w", err)
	}

	guards, err := buildGuards(cfg.Hooks)
	if err != nil {
		return nil, fmt.Errorf("init hooks: %w", err)
	}

	rt := &Runtime{}
	rt.Executor = agent.NewExecutor(agent.WithGuards(guards))
	rt.Runner = isolated.NewRunner(rt.Executor)
	rt.Scheduler = cronjob.Init(cfg.Cronjob, rt.Runner.RunJob)
	return rt, nil
}

// StartSessionPruning drops idle cron sessions of every configured agent.
func (rt *Runtime) StartSessionPruning(ctx context.Context, cfg *config.Config) {
	ttl := time.Duration(cfg.Cronjob.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		return
	}

	for _, agentID := range agentIDs(cfg) {
		store, err := session.NewStore(consts.SessionStorePath(agentID))
		if err != nil {
			logs.CtxWarn(ctx, "[gateway] open session store of agent #%s: %v", agentID, err)
			continue
		}
		transcripts, err := rt.Executor.Transcripts(agentID)
		if err != nil {
			logs.CtxWarn(ctx, "[gateway] open transcripts of agent #%s: %v", agentID, err)
			continue
		}
		session.StartPruneLoop(ctx, store, transcripts, ttl, sessionPruneInterval)
		logs.CtxInfo(ctx, "[gateway] pruning sessions of agent #%s idle for more than %s", agentID, ttl)
	}
}

// Close releases provider clients and messenger connections.
func (rt *Runtime) Close(ctx context.Context) {
	for _, p := range provider.List() {
		provider.Unregister(p.ID())
	}
	for _, m := range channel.List() {
		if c, ok := m.(channel.Closer); ok {
			if err := c.Close(ctx); err != nil {
				logs.CtxWarn(ctx, "[gateway] close %s/%s error: %v", m.Type(), m.AccountID(), err)
			}
		}
		channel.Unregister(m.Type(), m.AccountID())
	}
}

func agentIDs(cfg *config.Config) []string {
	ids := gmap.ToSlice(cfg.Agents, func(k string, _ config.AgentConfig) string { return k })
	if len(ids) == 0 {
		ids = []string{consts.DefaultAgentID}
	}
	sort.Strings(ids)
	return ids
}

func buildGuards(cfg config.HooksConfig) (hook.Chain, error) {
	chain, err := hook.FromConfig(cfg.Guards)
	if err != nil {
		return nil, err
	}
	return append(chain, hook.UpworkGuard()), nil
}

func initProviders(ctx context.Context, providers map[string]config.ProviderConfig) error {
	for id, pc := range providers {
		pc.ID = id
		p, err := newProvider(ctx, pc)
		if err != nil {
			logs.CtxError(ctx, "[%s] create provider #%s error: %v", strings.ToUpper(pc.Type), pc.ID, err)
			return fmt.Errorf("create provider %s: %w", pc.ID, err)
		}

		if err = provider.Register(p); err != nil {
			logs.CtxError(ctx, "[%s] register provider #%s error: %v", strings.ToUpper(pc.Type), pc.ID, err)
			return fmt.Errorf("register provider %s: %w", pc.ID, err)
		}

		logs.CtxInfo(ctx, "[%s] register provider #%s success", strings.ToUpper(string(p.Type())), pc.ID)
	}
	return nil
}

func newProvider(ctx context.Context, pc config.ProviderConfig) (provider.Provider, error) {
	cfg, err := provider.ParseConfig(pc)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case provider.OpenAI:
		return openai.New(ctx, *cfg)
	case provider.Anthropic:
		return anthropic.New(ctx, *cfg)
	case provider.Gemini:
		return gemini.New(ctx, *cfg)
	case provider.Ollama:
		return ollama.New(ctx, *cfg)
	case provider.Qwen:
		return qwen.New(ctx, *cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

func initMessengers(ctx context.Context, channels map[string]config.ChannelConfig) error {
	for chType, cc := range channels {
		if !cc.Enabled {
			logs.CtxInfo(ctx, "[gateway] channel %s is disabled, skipping", chType)
			continue
		}

		for accountID, acc := range cc.Accounts {
			if !acc.Enabled {
				continue
			}
			acc.ID = accountID

			m, err := newMessenger(channel.Type(chType), accountID, &acc)
			if err != nil {
				logs.CtxError(ctx, "[gateway] create messenger %s/%s error: %v", chType, accountID, err)
				return fmt.Errorf("create messenger %s/%s: %w", chType, accountID, err)
			}
			if err = channel.Register(m); err != nil {
				return fmt.Errorf("register messenger %s/%s: %w", chType, accountID, err)
			}

			logs.CtxInfo(ctx, "[gateway] register messenger %s/%s success", chType, accountID)
		}
	}
	return nil
}

func newMessenger(t channel.Type, accountID string, acc *config.AccountConfig) (channel.Messenger, error) {
	switch channel.Type(strings.ToLower(strings.TrimSpace(string(t)))) {
	case channel.Discord:
		return discord.NewMessenger(accountID, acc)
	case channel.Telegram:
		return telegram.NewMessenger(accountID, acc)
	case channel.Lark:
		return lark.NewMessenger(accountID, acc)
	default:
		return nil, fmt.Errorf("unsupported channel type: %s", t)
	}
}
