package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgifai/cronturn/internal/agent/hook"
	"github.com/tgifai/cronturn/internal/channel"
	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/consts"
	"github.com/tgifai/cronturn/internal/provider"
)

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := newProvider(ctx, config.ProviderConfig{ID: "local", Type: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "local", p.ID())
	assert.Equal(t, provider.Ollama, p.Type())

	_, err = newProvider(ctx, config.ProviderConfig{ID: "x", Type: "bogus"})
	assert.Error(t, err)

	_, err = newProvider(ctx, config.ProviderConfig{ID: "oa", Type: "openai"})
	assert.ErrorContains(t, err, "api_key")
}

func TestInitProviders_Registers(t *testing.T) {
	t.Cleanup(func() { provider.Unregister("gw-local") })

	err := initProviders(context.Background(), map[string]config.ProviderConfig{
		"gw-local": {Type: "ollama"},
	})
	require.NoError(t, err)

	p, err := provider.Get("gw-local")
	require.NoError(t, err)
	assert.Equal(t, provider.Ollama, p.Type())
}

func TestNewMessenger(t *testing.T) {
	m, err := newMessenger(channel.Telegram, "bot", &config.AccountConfig{
		Config: map[string]any{"token": "123:abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, channel.Telegram, m.Type())
	assert.Equal(t, "bot", m.AccountID())

	_, err = newMessenger(channel.Telegram, "bot", &config.AccountConfig{})
	assert.Error(t, err)

	_, err = newMessenger("slack", "bot", &config.AccountConfig{})
	assert.ErrorContains(t, err, "unsupported channel type")
}

func TestInitMessengers_SkipsDisabled(t *testing.T) {
	t.Cleanup(func() { channel.Unregister(channel.Telegram, "gw-on") })

	err := initMessengers(context.Background(), map[string]config.ChannelConfig{
		"telegram": {
			Enabled: true,
			Accounts: map[string]config.AccountConfig{
				"gw-on":  {Enabled: true, Config: map[string]any{"token": "123:abc"}},
				"gw-off": {Enabled: false},
			},
		},
		"lark": {Enabled: false, Accounts: map[string]config.AccountConfig{"gw-lark": {Enabled: true}}},
	})
	require.NoError(t, err)

	_, err = channel.Get(channel.Telegram, "gw-on")
	assert.NoError(t, err)
	_, err = channel.Get(channel.Telegram, "gw-off")
	assert.ErrorIs(t, err, channel.ErrMessengerNotFound)
	_, err = channel.Get(channel.Lark, "gw-lark")
	assert.ErrorIs(t, err, channel.ErrMessengerNotFound)
}

func TestBuildGuards(t *testing.T) {
	chain, err := buildGuards(config.HooksConfig{Guards: []config.GuardConfig{
		{Tool: "web_fetch", Param: "url", Pattern: `(?i)example\.org`, Reason: "no example.org"},
	}})
	require.NoError(t, err)
	require.Len(t, chain, 2)

	veto := chain.Check(hook.ToolCallEvent{
		ToolName: "web_fetch",
		Params:   map[string]any{"url": "https://example.org/a"},
	}, hook.HookContext{AgentID: "any"})
	require.NotNil(t, veto)
	assert.Equal(t, "no example.org", veto.Reason)

	veto = chain.Check(hook.ToolCallEvent{
		ToolName: "web_fetch",
		Params:   map[string]any{"url": "https://www.upwork.com/jobs"},
	}, hook.HookContext{AgentID: "upwork-coach"})
	require.NotNil(t, veto)

	_, err = buildGuards(config.HooksConfig{Guards: []config.GuardConfig{{Tool: "web_fetch", Pattern: "("}}})
	assert.Error(t, err)
}

func TestAgentIDs(t *testing.T) {
	assert.Equal(t, []string{consts.DefaultAgentID}, agentIDs(&config.Config{}))
	assert.Equal(t, []string{"alpha", "zeta"}, agentIDs(&config.Config{Agents: map[string]config.AgentConfig{
		"zeta": {}, "alpha": {},
	}}))
}
