package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgifai/cronturn/internal/config"
)

func fetchEvent(url string) ToolCallEvent {
	return ToolCallEvent{ToolName: "web_fetch", Params: map[string]any{"url": url}}
}

func TestUpworkGuard(t *testing.T) {
	g := UpworkGuard()
	coach := HookContext{AgentID: "upwork-coach"}

	v := g(fetchEvent("https://www.UPWORK.com/jobs/123"), coach)
	require.NotNil(t, v)
	assert.True(t, v.Block)
	assert.Contains(t, v.Reason, "upwork-cli")

	assert.Nil(t, g(fetchEvent("https://example.com"), coach))
	assert.Nil(t, g(fetchEvent("https://upwork.com"), HookContext{AgentID: "main"}))
	assert.Nil(t, g(ToolCallEvent{ToolName: "web_search", Params: map[string]any{"url": "https://upwork.com"}}, coach))
	assert.Nil(t, g(ToolCallEvent{ToolName: "web_fetch"}, coach))
}

func TestChainFirstVetoWins(t *testing.T) {
	allow := func(ToolCallEvent, HookContext) *Veto { return nil }
	soft := func(ToolCallEvent, HookContext) *Veto { return &Veto{Block: false, Reason: "ignored"} }
	first := func(ToolCallEvent, HookContext) *Veto { return &Veto{Block: true, Reason: "first"} }
	second := func(ToolCallEvent, HookContext) *Veto { return &Veto{Block: true, Reason: "second"} }

	v := Chain{allow, soft, first, second}.Check(fetchEvent("x"), HookContext{})
	require.NotNil(t, v)
	assert.Equal(t, "first", v.Reason)

	assert.Nil(t, Chain{allow, soft}.Check(fetchEvent("x"), HookContext{}))
	assert.Nil(t, Chain(nil).Check(fetchEvent("x"), HookContext{}))
}

func TestFromConfig(t *testing.T) {
	chain, err := FromConfig([]config.GuardConfig{
		{Tool: "web_fetch", Pattern: `internal\.corp`, Reason: "no intranet"},
	})
	require.NoError(t, err)
	require.Len(t, chain, 1)

	v := chain.Check(fetchEvent("https://wiki.internal.corp/x"), HookContext{AgentID: "any"})
	require.NotNil(t, v)
	assert.Equal(t, "no intranet", v.Reason)

	_, err = FromConfig([]config.GuardConfig{{Tool: "web_fetch", Pattern: "("}})
	assert.Error(t, err)
}
