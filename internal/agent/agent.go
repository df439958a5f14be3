package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/cronturn/internal/agent/hook"
	"github.com/tgifai/cronturn/internal/agent/session"
	"github.com/tgifai/cronturn/internal/agent/tool"
	"github.com/tgifai/cronturn/internal/agent/tool/webx"
	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/consts"
	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/pkg/prometheus"
	"github.com/tgifai/cronturn/internal/provider"
)

var (
	ErrNoModels      = errors.New("no model configured")
	errEmptyResponse = errors.New("empty model response")
)

type Payload struct {
	Text string `json:"text"`
}

type Meta struct {
	Model    string        `json:"model"`
	Provider string        `json:"provider"`
	Usage    session.Usage `json:"usage"`
}

// TurnRequest describes one agent turn. Entry is the session entry the turn
// runs against; Execute marks it SystemSent once the prompt is primed, and
// the caller persists it.
type TurnRequest struct {
	AgentID    string
	SessionKey string
	Entry      *session.Entry
	Message    string

	// Model is a provider_id:model_name spec tried before the agent's
	// configured models.
	Model string

	// Channel and To describe where the output is headed; they are shown
	// to the model as runtime information only.
	Channel string
	To      string
}

type TurnResult struct {
	Payloads []Payload
	Meta     Meta
}

type ProviderLookup func(id string) (provider.Provider, error)

type Executor struct {
	conf      func() (*config.Config, error)
	providers ProviderLookup
	tools     *tool.Registry
	guards    hook.Chain
	now       func() time.Time

	transcriptDir func(agentID string) string
	transcripts   map[string]*session.Transcripts
	mu            sync.Mutex
}

type Option func(*Executor)

func WithConfig(cfg *config.Config) Option {
	return func(e *Executor) {
		e.conf = func() (*config.Config, error) { return cfg, nil }
	}
}

func WithProviders(lookup ProviderLookup) Option {
	return func(e *Executor) { e.providers = lookup }
}

func WithTools(tools *tool.Registry) Option {
	return func(e *Executor) { e.tools = tools }
}

func WithGuards(chain hook.Chain) Option {
	return func(e *Executor) { e.guards = chain }
}

// WithTranscriptDir overrides where an agent's transcripts live.
func WithTranscriptDir(fn func(agentID string) string) Option {
	return func(e *Executor) { e.transcriptDir = fn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		conf:      config.Get,
		providers: provider.Get,
		tools:     defaultTools(),
		now:       time.Now,
		transcriptDir: func(agentID string) string {
			return filepath.Join(consts.AgentDir(agentID), consts.SessionsDirName)
		},
		transcripts: make(map[string]*session.Transcripts),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultTools() *tool.Registry {
	reg := tool.NewRegistry(webx.NewFetchTool(), webx.NewRequestTool())
	if search := webx.NewSearchTool(nil); search.Available() {
		_ = reg.Register(search)
	}
	return reg
}

// Transcripts returns the transcript store of agentID, creating it on first use.
func (e *Executor) Transcripts(agentID string) (*session.Transcripts, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.transcripts[agentID]; ok {
		return t, nil
	}
	t, err := session.NewTranscripts(e.transcriptDir(agentID))
	if err != nil {
		return nil, err
	}
	e.transcripts[agentID] = t
	return t, nil
}

// Execute runs one turn, trying the override model, then the agent's
// primary and fallback models, until one produces a reply.
func (e *Executor) Execute(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.Entry == nil {
		return nil, fmt.Errorf("session entry is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message is required")
	}

	cfg, err := e.conf()
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	agCfg, ok := cfg.Agent(req.AgentID)
	if !ok {
		logs.CtxDebug(ctx, "[agent:%s] not configured, using defaults", req.AgentID)
	}
	if agCfg.ID == "" {
		agCfg.ID = req.AgentID
	}
	if agCfg.ID == "" {
		agCfg.ID = consts.DefaultAgentID
	}

	specs := modelCandidates(req.Model, agCfg.Models)
	if len(specs) == 0 {
		return nil, fmt.Errorf("agent %s: %w", agCfg.ID, ErrNoModels)
	}

	transcripts, err := e.Transcripts(agCfg.ID)
	if err != nil {
		return nil, fmt.Errorf("open transcripts: %w", err)
	}
	history, err := transcripts.Load(ctx, req.Entry.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	var fresh []*schema.Message
	if !req.Entry.SystemSent {
		fresh = append(fresh, &schema.Message{Role: schema.System, Content: e.buildSystemPrompt(agCfg, req)})
	} else if len(history) == 0 || history[0].Role != schema.System {
		// compaction dropped the primed prompt
		history = append([]*schema.Message{{Role: schema.System, Content: e.buildSystemPrompt(agCfg, req)}}, history...)
	}
	fresh = append(fresh, &schema.Message{Role: schema.User, Content: req.Message})

	var errs []error
	for _, spec := range specs {
		ms, perr := provider.ParseModelSpec(spec)
		if perr != nil {
			errs = append(errs, perr)
			continue
		}
		prov, perr := e.providers(ms.ProviderID)
		if perr != nil {
			errs = append(errs, perr)
			continue
		}

		out, usage, rerr := e.runLoop(ctx, prov, ms, agCfg, req, slices.Concat(history, fresh))
		prometheus.IncModelAttempt(ms.ProviderID, rerr == nil)
		if rerr != nil {
			logs.CtxWarn(ctx, "[agent:%s] model %s failed: %v", agCfg.ID, ms, rerr)
			errs = append(errs, fmt.Errorf("%s: %w", ms, rerr))
			continue
		}

		if err := transcripts.Append(ctx, req.Entry.SessionID, append(fresh, out...)...); err != nil {
			logs.CtxWarn(ctx, "[agent:%s] failed to append transcript %s: %v", agCfg.ID, req.Entry.SessionID, err)
		}
		req.Entry.SystemSent = true

		res := &TurnResult{
			Meta: Meta{Model: ms.ModelName, Provider: ms.ProviderID, Usage: usage},
		}
		if final := out[len(out)-1]; strings.TrimSpace(final.Content) != "" {
			res.Payloads = append(res.Payloads, Payload{Text: final.Content})
		}
		return res, nil
	}
	return nil, errors.Join(errs...)
}

// modelCandidates lists specs in try order without duplicates.
func modelCandidates(override string, models config.ModelsConfig) []string {
	all := append([]string{override, models.Primary}, models.Fallback...)
	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, spec := range all {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if _, dup := seen[spec]; dup {
			continue
		}
		seen[spec] = struct{}{}
		out = append(out, spec)
	}
	return out
}
