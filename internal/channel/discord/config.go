package discord

import (
	"errors"

	"github.com/bytedance/gg/gconv"
)

const (
	defaultArchiveMinutes = 1440
	maxThreadNameLen      = 100
)

type Config struct {
	Token          string // bot token, without the "Bot " prefix
	ArchiveMinutes int    // thread auto-archive duration: 60, 1440, 4320 or 10080
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("discord token cannot be empty")
	}
	switch c.ArchiveMinutes {
	case 60, 1440, 4320, 10080:
	case 0:
		c.ArchiveMinutes = defaultArchiveMinutes
	default:
		return errors.New("discord archive_minutes must be one of 60, 1440, 4320, 10080")
	}
	return nil
}

func ParseConfig(configMap map[string]any) (*Config, error) {
	cfg := &Config{
		Token:          gconv.To[string](configMap["token"]),
		ArchiveMinutes: gconv.To[int](configMap["archive_minutes"]),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
