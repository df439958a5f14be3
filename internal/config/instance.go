package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tgifai/cronturn/internal/consts"
)

var defaultManager = &InstanceManager{}

type InstanceManager struct {
	path string
	// loaded indicates whether Load has been called successfully.
	loaded bool
	cfg    *Config
	// hash tracks the current in-memory config snapshot hash.
	hash string

	mu sync.RWMutex
}

func (ins *InstanceManager) Get() (*Config, error) {
	if ins == nil {
		return nil, fmt.Errorf("instance manager is nil")
	}

	ins.mu.RLock()
	defer ins.mu.RUnlock()

	if !ins.loaded || ins.cfg == nil {
		return nil, fmt.Errorf("config is not loaded")
	}

	return ins.cfg.Clone()
}

func (ins *InstanceManager) Load(path string) (*Config, error) {
	if ins == nil {
		return nil, fmt.Errorf("instance manager is nil")
	}

	ins.mu.Lock()
	defer ins.mu.Unlock()

	path = strings.TrimSpace(path)
	if path == "" {
		if strings.TrimSpace(ins.path) != "" {
			path = ins.path
		} else {
			path = consts.DefaultConfigPath()
		}
	}

	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}

	ins.path = path
	ins.cfg = cfg
	cfgHash := cfg.Hash()
	ins.hash = cfgHash
	ins.loaded = true
	return cfg.Clone()
}

func (ins *InstanceManager) Hash() (string, error) {
	if ins == nil {
		return "", fmt.Errorf("instance manager is nil")
	}

	ins.mu.RLock()
	defer ins.mu.RUnlock()

	if !ins.loaded || ins.cfg == nil {
		return "", fmt.Errorf("config is not loaded")
	}

	return ins.hash, nil
}

func loadConfigFile(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func Load(path string) (*Config, error) {
	return defaultManager.Load(path)
}

func Get() (*Config, error) {
	return defaultManager.Get()
}

func Hash() (string, error) {
	return defaultManager.Hash()
}
