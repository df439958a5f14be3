// Package hook implements before-tool-call guards. A guard inspects a
// pending tool call and may veto it; vetoed calls are never executed and
// the veto reason is returned to the model as the tool result.
package hook

import (
	"fmt"
	"strings"

	"github.com/bytedance/gg/gconv"
	"github.com/wasilibs/go-re2"

	"github.com/tgifai/cronturn/internal/config"
)

type ToolCallEvent struct {
	ToolName string
	Params   map[string]any
}

type HookContext struct {
	AgentID    string
	SessionKey string
}

type Veto struct {
	Block  bool
	Reason string
}

// Guard returns nil to allow the call.
type Guard func(ev ToolCallEvent, hc HookContext) *Veto

// Chain evaluates guards in order; the first blocking veto wins.
type Chain []Guard

func (c Chain) Check(ev ToolCallEvent, hc HookContext) *Veto {
	for _, g := range c {
		if v := g(ev, hc); v != nil && v.Block {
			return v
		}
	}
	return nil
}

// ParamGuard vetoes calls of tool whose string param matches pattern. An
// empty agentID applies the guard to every agent.
func ParamGuard(agentID, tool, param, pattern, reason string) (Guard, error) {
	re, err := re2.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile guard pattern %q: %w", pattern, err)
	}
	if reason == "" {
		reason = fmt.Sprintf("%s call blocked by guard on %s", tool, param)
	}

	return func(ev ToolCallEvent, hc HookContext) *Veto {
		if agentID != "" && hc.AgentID != agentID {
			return nil
		}
		if ev.ToolName != tool {
			return nil
		}
		val := strings.TrimSpace(gconv.To[string](ev.Params[param]))
		if val == "" || !re.MatchString(val) {
			return nil
		}
		return &Veto{Block: true, Reason: reason}
	}, nil
}

// UpworkGuard steers the upwork-coach agent to upwork-cli instead of
// scraping upwork.com.
func UpworkGuard() Guard {
	g, _ := ParamGuard("upwork-coach", "web_fetch", "url", `(?i)upwork\.com`,
		"For fetching jobs from upwork, use upwork-cli instead.")
	return g
}

// FromConfig builds a chain from configured guards, in declaration order.
func FromConfig(cfgs []config.GuardConfig) (Chain, error) {
	chain := make(Chain, 0, len(cfgs))
	for i, gc := range cfgs {
		param := gc.Param
		if param == "" {
			param = "url"
		}
		g, err := ParamGuard(gc.Agent, gc.Tool, param, gc.Pattern, gc.Reason)
		if err != nil {
			return nil, fmt.Errorf("hooks.guards[%d]: %w", i, err)
		}
		chain = append(chain, g)
	}
	return chain, nil
}
