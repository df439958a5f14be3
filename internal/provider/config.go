package provider

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/gg/gconv"

	"github.com/tgifai/cronturn/internal/config"
)

type Config struct {
	ID           string
	Type         Type
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	Timeout      time.Duration
}

type defaults struct {
	baseURL  string
	model    string
	needsKey bool
}

var typeDefaults = map[Type]defaults{
	OpenAI:    {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini", needsKey: true},
	Anthropic: {baseURL: "https://api.anthropic.com", model: "claude-3-5-sonnet-20241022", needsKey: true},
	Gemini:    {model: "gemini-2.5-flash", needsKey: true},
	Ollama:    {baseURL: "http://localhost:11434", model: "llama3.1"},
	Qwen:      {baseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", model: "qwen-plus", needsKey: true},
}

func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.New("provider ID cannot be empty")
	}
	d, ok := typeDefaults[c.Type]
	if !ok {
		return fmt.Errorf("unsupported provider type %q", c.Type)
	}
	if d.needsKey && c.APIKey == "" {
		return fmt.Errorf("%s api_key is required", c.Type)
	}
	if c.BaseURL == "" {
		c.BaseURL = d.baseURL
	}
	if c.DefaultModel == "" {
		c.DefaultModel = d.model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return nil
}

// ParseConfig merges the top-level provider fields with its free-form
// config map. The type defaults to the provider id.
func ParseConfig(pc config.ProviderConfig) (*Config, error) {
	m := pc.Config
	cfg := &Config{
		ID:           pc.ID,
		Type:         Type(strings.ToLower(strings.TrimSpace(pc.Type))),
		APIKey:       pc.APIKey,
		BaseURL:      strings.TrimRight(pc.BaseURL, "/"),
		DefaultModel: gconv.To[string](m["default_model"]),
		MaxTokens:    gconv.To[int](m["max_tokens"]),
	}
	if cfg.Type == "" {
		cfg.Type = Type(pc.ID)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = gconv.To[string](m["api_key"])
	}
	if sec := gconv.To[int](m["timeout"]); sec > 0 {
		cfg.Timeout = time.Duration(sec) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", cfg.Type, err)
	}
	return cfg, nil
}
