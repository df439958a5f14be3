package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bytedance/sonic"
)

type (
	Config struct {
		Gateway   GatewayConfig             `yaml:"gateway"`
		Logging   LoggingConfig             `yaml:"logging"`
		Cronjob   CronjobConfig             `yaml:"cronjob"`
		Agents    map[string]AgentConfig    `yaml:"agents"`
		Channels  map[string]ChannelConfig  `yaml:"channels"` // keyed by channel type
		Providers map[string]ProviderConfig `yaml:"providers"`
		Hooks     HooksConfig               `yaml:"hooks"`
	}

	GatewayConfig struct {
		Bind           string `yaml:"bind"`
		MetricsBind    string `yaml:"metrics_bind"`
		RequestTimeout int    `yaml:"request_timeout"`
	}

	LoggingConfig struct {
		Level      string `yaml:"level"`  // debug, info, warn, error
		Format     string `yaml:"format"` // json, text
		Output     string `yaml:"output"` // stdout, file, both
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"` // MB
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"` // days
	}

	CronjobConfig struct {
		Enabled           *bool  `yaml:"enabled"`
		Store             string `yaml:"store"`
		MaxConcurrentRuns int    `yaml:"max_concurrent_runs"`
		JobTimeoutSec     int    `yaml:"job_timeout_sec"`
		DefaultAgent      string `yaml:"default_agent"`
		SessionTTLHours   int    `yaml:"session_ttl_hours"` // 0 keeps sessions forever
	}

	AgentConfig struct {
		ID           string             `yaml:"-"`
		Name         string             `yaml:"name"`
		Workspace    string             `yaml:"workspace"`
		SystemPrompt string             `yaml:"system_prompt"`
		Models       ModelsConfig       `yaml:"models"`
		Config       AgentRuntimeConfig `yaml:"config"`
	}

	ModelsConfig struct {
		Primary  string   `yaml:"primary"`
		Fallback []string `yaml:"fallback"`
	}

	AgentRuntimeConfig struct {
		MaxIterations int     `yaml:"max_iterations"`
		MaxTokens     int     `yaml:"max_tokens"`
		Temperature   float64 `yaml:"temperature"`
	}

	// ChannelConfig describes one messaging platform. Accounts hold the
	// per-bot credentials; DefaultTo is the fallback delivery address.
	ChannelConfig struct {
		Type           string                   `yaml:"-"`
		Enabled        bool                     `yaml:"enabled"`
		DefaultAccount string                   `yaml:"default_account"`
		DefaultTo      string                   `yaml:"default_to"`
		Accounts       map[string]AccountConfig `yaml:"accounts"`
	}

	AccountConfig struct {
		ID        string         `yaml:"-"`
		Enabled   bool           `yaml:"enabled"`
		DefaultTo string         `yaml:"default_to"`
		Config    map[string]any `yaml:"config"`
	}

	ProviderConfig struct {
		ID      string         `yaml:"-"`
		Type    string         `yaml:"type"` // openai, anthropic, gemini, ollama, qwen
		BaseURL string         `yaml:"base_url"`
		APIKey  string         `yaml:"api_key"`
		Config  map[string]any `yaml:"config"`
	}

	HooksConfig struct {
		Guards []GuardConfig `yaml:"guards"`
	}

	// GuardConfig vetoes a tool call when Param of a Tool call made by Agent
	// matches Pattern. Empty Agent matches every agent.
	GuardConfig struct {
		Agent   string `yaml:"agent"`
		Tool    string `yaml:"tool"`
		Param   string `yaml:"param"`
		Pattern string `yaml:"pattern"`
		Reason  string `yaml:"reason"`
	}
)

// Clone .
func (c *Config) Clone() (*Config, error) {
	if c == nil {
		return nil, fmt.Errorf("config is nil")
	}

	raw, err := sonic.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var cloned Config
	if err := sonic.Unmarshal(raw, &cloned); err != nil {
		return nil, fmt.Errorf("unmarshal config clone: %w", err)
	}

	return &cloned, nil
}

// Hash .
func (c *Config) Hash() string {
	json := sonic.Config{SortMapKeys: true, UseNumber: true}.Froze()
	raw, _ := json.Marshal(c)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Agent returns the agent config by id, falling back to the cron default agent.
func (c *Config) Agent(agentID string) (AgentConfig, bool) {
	if agentID == "" {
		agentID = c.Cronjob.DefaultAgent
	}
	ag, ok := c.Agents[agentID]
	if !ok {
		return AgentConfig{ID: agentID}, false
	}
	return ag, true
}
