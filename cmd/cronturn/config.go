package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/consts"
	"github.com/tgifai/cronturn/internal/pkg/logs"
)

func configPath(cmd *cli.Command) string {
	if p := cmd.String("config"); p != "" {
		return p
	}
	return consts.DefaultConfigPath()
}

// loadConfig reads the config file and applies its logging section.
func loadConfig(cmd *cli.Command) (*config.Config, string, error) {
	cfgPath := configPath(cmd)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return nil, cfgPath, fmt.Errorf("config file %s not found", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("loading config error: %w", err)
	}

	if err = initLogger(cfg.Logging); err != nil {
		return nil, cfgPath, fmt.Errorf("init logger error: %w", err)
	}
	return cfg, cfgPath, nil
}

func initLogger(cfg config.LoggingConfig) error {
	return logs.Init(logs.Options{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		File:       cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	})
}
