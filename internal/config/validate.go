package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tgifai/cronturn/internal/consts"
)

// Validate normalizes ids and fills defaults in place.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	if c.Cronjob.Enabled == nil {
		enabled := true
		c.Cronjob.Enabled = &enabled
	}
	if c.Cronjob.MaxConcurrentRuns <= 0 {
		c.Cronjob.MaxConcurrentRuns = 1
	}
	if c.Cronjob.JobTimeoutSec <= 0 {
		c.Cronjob.JobTimeoutSec = 300
	}
	c.Cronjob.Store = strings.TrimSpace(c.Cronjob.Store)
	if c.Cronjob.Store == "" {
		c.Cronjob.Store = filepath.Join(consts.HomeDir(), "cron", "jobs.json")
	}
	c.Cronjob.DefaultAgent = strings.TrimSpace(c.Cronjob.DefaultAgent)
	if c.Cronjob.DefaultAgent == "" {
		c.Cronjob.DefaultAgent = consts.DefaultAgentID
	}

	normalizedProviders := make(map[string]ProviderConfig, len(c.Providers))
	for key, one := range c.Providers {
		providerID := strings.TrimSpace(key)
		if providerID == "" {
			return errors.New("provider id cannot be empty")
		}
		one.ID = providerID
		normalizedProviders[providerID] = one
	}
	c.Providers = normalizedProviders

	normalizedAgents := make(map[string]AgentConfig, len(c.Agents))
	for key, one := range c.Agents {
		agentID := strings.TrimSpace(key)
		if agentID == "" {
			return errors.New("agent id cannot be empty")
		}
		one.ID = agentID
		if one.Workspace == "" {
			one.Workspace = consts.AgentDir(agentID)
		}
		normalizedAgents[agentID] = one
	}
	c.Agents = normalizedAgents

	normalizedChannels := make(map[string]ChannelConfig, len(c.Channels))
	for key, one := range c.Channels {
		channelType := strings.ToLower(strings.TrimSpace(key))
		if channelType == "" {
			return errors.New("channel type cannot be empty")
		}
		one.Type = channelType
		if err := one.Validate(); err != nil {
			return fmt.Errorf("channels[%s] validation failed: %w", channelType, err)
		}
		normalizedChannels[channelType] = one
	}
	c.Channels = normalizedChannels

	for i, g := range c.Hooks.Guards {
		if strings.TrimSpace(g.Tool) == "" || strings.TrimSpace(g.Pattern) == "" {
			return fmt.Errorf("hooks.guards[%d]: tool and pattern are required", i)
		}
		if strings.TrimSpace(g.Param) == "" {
			c.Hooks.Guards[i].Param = "url"
		}
	}
	return nil
}

func (c *ChannelConfig) Validate() error {
	if c == nil {
		return errors.New("channel config cannot be nil")
	}

	c.DefaultAccount = strings.TrimSpace(c.DefaultAccount)
	c.DefaultTo = strings.TrimSpace(c.DefaultTo)

	normalized := make(map[string]AccountConfig, len(c.Accounts))
	for key, one := range c.Accounts {
		accountID := strings.TrimSpace(key)
		if accountID == "" {
			return errors.New("account id cannot be empty")
		}
		one.ID = accountID
		one.DefaultTo = strings.TrimSpace(one.DefaultTo)
		normalized[accountID] = one
	}
	c.Accounts = normalized

	if c.DefaultAccount != "" {
		if _, ok := c.Accounts[c.DefaultAccount]; !ok {
			return fmt.Errorf("default_account %q is not configured", c.DefaultAccount)
		}
	}
	return nil
}
