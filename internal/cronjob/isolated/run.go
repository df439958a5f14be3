// Package isolated runs a cron job as a self-contained agent turn: it
// resolves the delivery target, optionally opens a thread for the run,
// binds the session to that thread, executes the turn and delivers the
// reply.
package isolated

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tgifai/cronturn/internal/agent"
	"github.com/tgifai/cronturn/internal/agent/session"
	"github.com/tgifai/cronturn/internal/channel"
	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/consts"
	"github.com/tgifai/cronturn/internal/cronjob"
	"github.com/tgifai/cronturn/internal/outbound"
	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/pkg/prometheus"
	"github.com/tgifai/cronturn/internal/pkg/utils"
)

const (
	cronChannel = "cron"
	mainChannel = "main"
)

type TurnExecutor interface {
	Execute(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, target outbound.Target, payloads []agent.Payload) (*outbound.Result, error)
}

type RunParams struct {
	Job cronjob.Job

	// Message overrides the payload prompt when set.
	Message string

	// SessionKey is the caller's key, "cron:<jobId>" for scheduled fires.
	SessionKey string
}

type RunResult struct {
	Status     Status
	AgentID    string
	SessionKey string
	SessionID  string
	Target     *DeliveryTarget
	Thread     *ThreadResult
	Payloads   []agent.Payload
	Meta       agent.Meta
	Delivered  int
}

type Runner struct {
	conf       func() (*config.Config, error)
	messengers outbound.MessengerLookup
	executor   TurnExecutor
	deliverer  Deliverer
	storePath  func(agentID string) string
	now        func() time.Time
	locks      *keyedMutex
}

type Option func(*Runner)

func WithConfig(cfg *config.Config) Option {
	return func(r *Runner) {
		r.conf = func() (*config.Config, error) { return cfg, nil }
	}
}

func WithMessengers(lookup outbound.MessengerLookup) Option {
	return func(r *Runner) { r.messengers = lookup }
}

func WithDeliverer(d Deliverer) Option {
	return func(r *Runner) { r.deliverer = d }
}

func WithStorePath(fn func(agentID string) string) Option {
	return func(r *Runner) { r.storePath = fn }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(executor TurnExecutor, opts ...Option) *Runner {
	r := &Runner{
		conf:       config.Get,
		messengers: channel.Get,
		executor:   executor,
		storePath:  consts.SessionStorePath,
		now:        time.Now,
		locks:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.deliverer == nil {
		r.deliverer = outbound.NewDeliverer(r.messengers)
	}
	return r
}

// RunJob adapts Run to the scheduler.
func (r *Runner) RunJob(ctx context.Context, job cronjob.Job) (string, error) {
	res, err := r.Run(ctx, RunParams{Job: job, SessionKey: job.SessionKey()})
	if res == nil {
		return cronjob.StatusError, err
	}
	return string(res.Status), err
}

// Run executes one isolated turn. The result is never nil; err is set for
// every status other than completed and skipped.
func (r *Runner) Run(ctx context.Context, p RunParams) (res *RunResult, err error) {
	start := r.now()
	res = &RunResult{}
	defer func() {
		prometheus.ObserveIsolatedRun(string(res.Status), r.now().Sub(start))
	}()

	job := p.Job
	pl := job.Payload
	message := p.Message
	if strings.TrimSpace(message) == "" {
		message = pl.Prompt()
	}
	if strings.TrimSpace(message) == "" || (pl.Kind != cronjob.PayloadAgentTurn && pl.Kind != cronjob.PayloadSystemEvent) {
		logs.CtxWarn(ctx, "[isolated] job %s has nothing to run (kind=%q), skipping", job.ID, pl.Kind)
		res.Status = StatusSkipped
		return res, nil
	}
	logs.CtxDebug(ctx, "[isolated] job %s firing: %s", job.ID, utils.Truncate80(message))

	cfg, err := r.conf()
	if err != nil {
		res.Status = StatusAbortedConfig
		return res, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	res.AgentID = resolveAgentID(job, cfg)

	// 1. delivery target
	mainSession := job.SessionTarget == cronjob.SessionMain || pl.Kind == cronjob.PayloadSystemEvent
	if !mainSession && (pl.Deliver || pl.Channel != "") {
		target, terr := ResolveDeliveryTarget(job, cfg)
		if terr != nil {
			res.Status = StatusAbortedConfig
			return res, terr
		}
		res.Target = target
	}
	key := baseSessionKey(res.AgentID, p.SessionKey, job, res.Target, mainSession)

	unlock, err := r.locks.Lock(ctx, key.String())
	if err != nil {
		res.Status = StatusAbortedExecution
		return res, fmt.Errorf("%w: wait for session %s: %w", ErrExecution, key, err)
	}
	defer unlock()

	// 2. thread
	if name := strings.TrimSpace(pl.ThreadName); name != "" && !mainSession {
		key, err = r.materializeThread(ctx, res, key, name, message)
		if err != nil {
			res.Status = StatusAbortedConfig
			return res, err
		}
	}
	res.SessionKey = key.String()
	ctx = logs.WithSession(ctx, res.SessionKey)

	// 3. session
	now := r.now()
	sess, err := ResolveCronSession(ctx, SessionParams{
		AgentID:    res.AgentID,
		SessionKey: res.SessionKey,
		Now:        now,
		StorePath:  r.storePath(res.AgentID),
	})
	if err != nil {
		res.Status = StatusAbortedExecution
		return res, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	res.SessionID = sess.Entry.SessionID

	// 4. turn
	entry := sess.Entry.Clone()
	req := agent.TurnRequest{
		AgentID:    res.AgentID,
		SessionKey: res.SessionKey,
		Entry:      entry,
		Message:    message,
		Model:      pl.Model,
	}
	if res.Target != nil {
		req.Channel = string(res.Target.Channel)
		req.To = res.Target.To.String()
	}
	turn, err := r.executor.Execute(ctx, req)
	if err != nil {
		res.Status = StatusAbortedExecution
		return res, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	res.Payloads = turn.Payloads
	res.Meta = turn.Meta

	// 5. delivery
	var deliveryErr error
	if pl.Deliver && res.Target != nil && !mainSession {
		out, derr := r.deliverer.Deliver(ctx, outbound.Target{
			Channel:   res.Target.Channel,
			AccountID: res.Target.AccountID,
			To:        res.Target.To,
		}, turn.Payloads)
		if out != nil {
			res.Delivered = len(out.Messages)
		}
		if derr != nil {
			deliveryErr = fmt.Errorf("%w: %w", ErrDelivery, derr)
		}
	}

	// 6. persist; the turn consumed the session even if delivery failed
	entry.LastModel = turn.Meta.Model
	entry.LastProvider = turn.Meta.Provider
	entry.Usage = entry.Usage.Add(turn.Meta.Usage)
	if res.Target != nil {
		entry.Channel = string(res.Target.Channel)
		entry.To = res.Target.To.String()
		entry.AccountID = res.Target.AccountID
	}
	if _, err := sess.Store.Commit(ctx, res.SessionKey, entry, r.now()); err != nil {
		res.Status = StatusAbortedExecution
		return res, errors.Join(fmt.Errorf("%w: persist session %s: %w", ErrExecution, res.SessionKey, err), deliveryErr)
	}

	if deliveryErr != nil {
		if !pl.BestEffortDeliver {
			res.Status = StatusFailedDelivery
			return res, deliveryErr
		}
		logs.CtxWarn(ctx, "[isolated] job %s best-effort delivery failed: %v", job.ID, deliveryErr)
	}

	res.Status = StatusCompleted
	logs.CtxInfo(ctx, "[isolated] job %s completed (session=%s, model=%s:%s, delivered=%d)",
		job.ID, res.SessionKey, turn.Meta.Provider, turn.Meta.Model, res.Delivered)
	return res, nil
}

// materializeThread opens the run's thread and returns the session key
// rebound to it. res.Target is rewritten to the thread on success.
func (r *Runner) materializeThread(ctx context.Context, res *RunResult, key session.Key, name, starter string) (session.Key, error) {
	if res.Target == nil {
		logs.CtxWarn(ctx, "[isolated] threadName %q ignored: run has no delivery target", name)
		return key, nil
	}
	m, err := r.messengers(res.Target.Channel, res.Target.AccountID)
	if err != nil {
		return key, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	tm, ok := m.(ThreadMessenger)
	if !ok {
		logs.CtxWarn(ctx, "[isolated] threadName %q ignored: %s does not support threads", name, res.Target.Channel)
		return key, nil
	}

	thread, err := CreateThreadAndSendStarter(ctx, tm, ThreadParams{
		To:             res.Target.To.String(),
		AccountID:      res.Target.AccountID,
		ThreadName:     name,
		StarterMessage: starter,
	})
	prometheus.IncThreadCreated(string(res.Target.Channel), err == nil)
	if err != nil {
		return key, err
	}

	res.Thread = thread
	res.Target.To = res.Target.To.Rebind(thread.ThreadID)
	return key.Rebind(res.Target.To.String()), nil
}

func resolveAgentID(job cronjob.Job, cfg *config.Config) string {
	if id := strings.TrimSpace(job.AgentID); id != "" {
		return id
	}
	if cfg != nil && cfg.Cronjob.DefaultAgent != "" {
		return cfg.Cronjob.DefaultAgent
	}
	return consts.DefaultAgentID
}

// baseSessionKey is the key a run starts from, before any thread rebind.
func baseSessionKey(agentID, callerKey string, job cronjob.Job, target *DeliveryTarget, mainSession bool) session.Key {
	if mainSession {
		return session.NewKey(agentID, mainChannel, mainChannel)
	}
	if target != nil {
		return session.NewKey(agentID, string(target.Channel), target.To.String())
	}
	if k, err := session.ParseKey(callerKey); err == nil {
		return k
	}
	address := strings.TrimPrefix(callerKey, cronChannel+":")
	if address == "" {
		address = job.ID
	}
	return session.NewKey(agentID, cronChannel, address)
}
