package lark

import (
	"errors"

	"github.com/bytedance/gg/gconv"
)

type Config struct {
	AppID     string // Lark App ID (required)
	AppSecret string // Lark App Secret (required)
	BaseURL   string // open platform endpoint; empty means feishu.cn
}

func (c *Config) Validate() error {
	if c.AppID == "" {
		return errors.New("lark app_id cannot be empty")
	}
	if c.AppSecret == "" {
		return errors.New("lark app_secret cannot be empty")
	}
	return nil
}

func ParseConfig(configMap map[string]any) (*Config, error) {
	cfg := &Config{
		AppID:     gconv.To[string](configMap["app_id"]),
		AppSecret: gconv.To[string](configMap["app_secret"]),
		BaseURL:   gconv.To[string](configMap["base_url"]),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
