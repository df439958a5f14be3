package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
cronjob:
  max_concurrent_runs: 2
agents:
  main:
    models:
      primary: "openai:gpt-4o-mini"
      fallback: ["anthropic:claude-sonnet"]
channels:
  Discord:
    enabled: true
    default_account: bot
    default_to: "channel:parent"
    accounts:
      " bot ":
        enabled: true
        config:
          token: "abc"
providers:
  openai:
    type: openai
    api_key: sk
hooks:
  guards:
    - agent: upwork-coach
      tool: web_fetch
      pattern: "upwork\\.com"
`

func TestLoadConfigFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := loadConfigFile(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Cronjob.Enabled)
	assert.True(t, *cfg.Cronjob.Enabled)
	assert.Equal(t, 2, cfg.Cronjob.MaxConcurrentRuns)
	assert.Equal(t, 300, cfg.Cronjob.JobTimeoutSec)
	assert.Equal(t, "main", cfg.Cronjob.DefaultAgent)
	assert.NotEmpty(t, cfg.Cronjob.Store)

	ch, ok := cfg.Channels["discord"]
	require.True(t, ok, "channel type should be lower-cased")
	assert.Equal(t, "discord", ch.Type)
	acc, ok := ch.Accounts["bot"]
	require.True(t, ok, "account id should be trimmed")
	assert.Equal(t, "bot", acc.ID)

	assert.Equal(t, "openai", cfg.Providers["openai"].ID)
	assert.Equal(t, "url", cfg.Hooks.Guards[0].Param)

	ag, ok := cfg.Agent("")
	require.True(t, ok)
	assert.Equal(t, "main", ag.ID)
	assert.Equal(t, "openai:gpt-4o-mini", ag.Models.Primary)
}

func TestValidateRejectsUnknownDefaultAccount(t *testing.T) {
	cfg := &Config{Channels: map[string]ChannelConfig{
		"discord": {Enabled: true, DefaultAccount: "missing", Accounts: map[string]AccountConfig{"a": {Enabled: true}}},
	}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestValidateRejectsIncompleteGuard(t *testing.T) {
	cfg := &Config{Hooks: HooksConfig{Guards: []GuardConfig{{Tool: "web_fetch"}}}}
	require.Error(t, cfg.Validate())
}

func TestCloneAndHash(t *testing.T) {
	cfg := &Config{Agents: map[string]AgentConfig{"main": {ID: "main", Name: "Main"}}}
	require.NoError(t, cfg.Validate())

	cloned, err := cfg.Clone()
	require.NoError(t, err)
	assert.Equal(t, cfg.Hash(), cloned.Hash())

	cloned.Agents["main"] = AgentConfig{ID: "main", Name: "Changed"}
	assert.Equal(t, "Main", cfg.Agents["main"].Name)
	assert.NotEqual(t, cfg.Hash(), cloned.Hash())
}

func TestAgentMissing(t *testing.T) {
	cfg := &Config{}
	ag, ok := cfg.Agent("ghost")
	assert.False(t, ok)
	assert.Equal(t, "ghost", ag.ID)
}

func TestInstanceManagerLoadGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	ins := &InstanceManager{}
	_, err := ins.Get()
	require.Error(t, err)

	loaded, err := ins.Load(path)
	require.NoError(t, err)
	got, err := ins.Get()
	require.NoError(t, err)
	assert.Equal(t, loaded.Hash(), got.Hash())

	h, err := ins.Hash()
	require.NoError(t, err)
	assert.Equal(t, got.Hash(), h)
}
