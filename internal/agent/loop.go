package agent

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/cronturn/internal/agent/hook"
	"github.com/tgifai/cronturn/internal/agent/session"
	"github.com/tgifai/cronturn/internal/agent/tool"
	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/provider"
)

const defaultMaxIterations = 25

// runLoop drives the model until it answers without tool calls. It returns
// the messages produced during the turn, ending with the final reply.
func (e *Executor) runLoop(ctx context.Context, p provider.Provider, ms *provider.ModelSpec, agCfg config.AgentConfig, req TurnRequest, msgs []*schema.Message) ([]*schema.Message, session.Usage, error) {
	maxIterations := defaultMaxIterations
	if agCfg.Config.MaxIterations > 0 {
		maxIterations = agCfg.Config.MaxIterations
	}

	logs.CtxDebug(ctx, "[agent:%s] sending to provider %s, messages count: %d, max_iterations: %d",
		agCfg.ID, ms, len(msgs), maxIterations)

	var (
		usage    session.Usage
		produced []*schema.Message
		final    *schema.Message
	)
	opts := e.modelOptions(agCfg)
	if e.tools != nil && e.tools.Len() > 0 {
		opts = append(opts,
			model.WithTools(e.tools.ToolInfos()),
			model.WithToolChoice(schema.ToolChoiceAllowed),
		)
	}

	for iter := 0; iter < maxIterations; iter++ {
		resp, err := p.Generate(ctx, ms.ModelName, msgs, opts...)
		if err != nil {
			return nil, usage, err
		}
		if resp == nil {
			return nil, usage, errEmptyResponse
		}
		usage = usage.Add(usageOf(resp))

		if len(resp.ToolCalls) == 0 {
			final = resp
			break
		}

		msgs = append(msgs, resp)
		produced = append(produced, resp)
		for i := range resp.ToolCalls {
			res := e.callTool(ctx, agCfg.ID, req.SessionKey, &resp.ToolCalls[i])
			msgs = append(msgs, res)
			produced = append(produced, res)
		}
	}

	if final == nil {
		logs.CtxWarn(ctx, "[agent:%s] iteration limit (%d) reached, requesting summary", agCfg.ID, maxIterations)
		final = e.runSummary(ctx, p, ms, msgs, &usage)
	}
	if final.Role == "" {
		final.Role = schema.Assistant
	}
	return append(produced, final), usage, nil
}

func (e *Executor) callTool(ctx context.Context, agentID, sessionKey string, call *schema.ToolCall) *schema.Message {
	resMsg := &schema.Message{
		Role:       schema.Tool,
		ToolName:   call.Function.Name,
		ToolCallID: call.ID,
	}

	args, err := tool.ParseArgs(call)
	if err != nil {
		resMsg.Content = "ERROR: " + err.Error()
		return resMsg
	}

	ev := hook.ToolCallEvent{ToolName: call.Function.Name, Params: args}
	if veto := e.guards.Check(ev, hook.HookContext{AgentID: agentID, SessionKey: sessionKey}); veto != nil {
		logs.CtxInfo(ctx, "[agent:%s] tool %s blocked: %s", agentID, call.Function.Name, veto.Reason)
		resMsg.Content = "BLOCKED: " + veto.Reason
		return resMsg
	}

	if e.tools == nil {
		resMsg.Content = "ERROR: no tools available"
		return resMsg
	}
	res, err := e.tools.Execute(ctx, call.Function.Name, args)
	if err != nil {
		logs.CtxWarn(ctx, "[agent:%s] tool %s failed: %v", agentID, call.Function.Name, err)
		resMsg.Content = "ERROR: " + err.Error()
		return resMsg
	}
	jsonStr, err := sonic.MarshalString(res)
	if err != nil || jsonStr == "" {
		jsonStr = "{}"
	}
	resMsg.Content = jsonStr
	return resMsg
}

func (e *Executor) modelOptions(agCfg config.AgentConfig) []model.Option {
	var opts []model.Option
	if agCfg.Config.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(agCfg.Config.MaxTokens))
	}
	if agCfg.Config.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(agCfg.Config.Temperature)))
	}
	return opts
}

// runSummary makes one final call without tools when the iteration limit
// is exceeded.
func (e *Executor) runSummary(ctx context.Context, p provider.Provider, ms *provider.ModelSpec, msgs []*schema.Message, usage *session.Usage) *schema.Message {
	msgs = append(msgs, &schema.Message{
		Role:    schema.User,
		Content: "You have reached the maximum iteration limit. Please summarize what you have accomplished so far and what still remains to be done.",
	})

	resp, err := p.Generate(ctx, ms.ModelName, msgs)
	if err != nil || resp == nil {
		logs.CtxWarn(ctx, "[agent] summary generation with %s failed: %v", ms, err)
		return &schema.Message{
			Role:    schema.Assistant,
			Content: "Task reached the maximum iteration limit. Partial work may have been applied. Please review and continue if needed.",
		}
	}
	*usage = usage.Add(usageOf(resp))
	return resp
}

func usageOf(msg *schema.Message) session.Usage {
	if msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return session.Usage{}
	}
	u := msg.ResponseMeta.Usage
	return session.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
