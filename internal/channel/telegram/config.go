package telegram

import (
	"errors"
	"time"

	"github.com/bytedance/gg/gconv"
)

type Config struct {
	Token   string
	Timeout time.Duration // per-request HTTP timeout
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("telegram bot token cannot be empty")
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

func ParseConfig(configMap map[string]any) (*Config, error) {
	cfg := &Config{
		Token: gconv.To[string](configMap["token"]),
	}
	if sec := gconv.To[int](configMap["timeout"]); sec > 0 {
		cfg.Timeout = time.Duration(sec) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
