package isolated

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/gg/gmap"

	"github.com/tgifai/cronturn/internal/channel"
	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/cronjob"
)

type TargetMode string

const (
	// ModeExplicit means the job named both the channel and the address.
	ModeExplicit TargetMode = "explicit"
	// ModeDerived means at least one of them came from configuration.
	ModeDerived TargetMode = "derived"
)

const defaultAccountID = "default"

// DeliveryTarget is where a run's output goes.
type DeliveryTarget struct {
	Channel   channel.Type
	To        channel.Destination
	AccountID string
	Mode      TargetMode
}

// ResolveDeliveryTarget derives the delivery target of job from its payload
// and the channel configuration. It has no side effects.
func ResolveDeliveryTarget(job cronjob.Job, cfg *config.Config) (*DeliveryTarget, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", ErrConfiguration)
	}
	pl := job.Payload
	mode := ModeExplicit

	chType := channel.Type(strings.ToLower(strings.TrimSpace(pl.Channel)))
	if chType == "" {
		derived, err := onlyEnabledChannel(cfg)
		if err != nil {
			return nil, err
		}
		chType = derived
		mode = ModeDerived
	}
	if !channel.IsSupported(chType) {
		return nil, fmt.Errorf("%w: unsupported channel %q", ErrConfiguration, chType)
	}
	chCfg, ok := cfg.Channels[string(chType)]
	if !ok || !chCfg.Enabled {
		return nil, fmt.Errorf("%w: channel %s is not enabled", ErrConfiguration, chType)
	}

	account, err := resolveAccount(chCfg, strings.TrimSpace(pl.AccountID))
	if err != nil {
		return nil, err
	}

	rawTo := strings.TrimSpace(pl.To)
	if rawTo == "" {
		mode = ModeDerived
		rawTo = account.DefaultTo
		if rawTo == "" {
			rawTo = chCfg.DefaultTo
		}
	}
	if rawTo == "" {
		return nil, fmt.Errorf("%w: no delivery address for %s/%s", ErrConfiguration, chType, account.ID)
	}
	to, err := channel.ParseDestination(rawTo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return &DeliveryTarget{
		Channel:   chType,
		To:        to,
		AccountID: account.ID,
		Mode:      mode,
	}, nil
}

func onlyEnabledChannel(cfg *config.Config) (channel.Type, error) {
	var enabled []string
	for name, ch := range cfg.Channels {
		if ch.Enabled {
			enabled = append(enabled, name)
		}
	}
	switch len(enabled) {
	case 0:
		return "", fmt.Errorf("%w: no channel is enabled", ErrConfiguration)
	case 1:
		return channel.Type(enabled[0]), nil
	default:
		sort.Strings(enabled)
		return "", fmt.Errorf("%w: channel is ambiguous, enabled: %s", ErrConfiguration, strings.Join(enabled, ", "))
	}
}

func resolveAccount(ch config.ChannelConfig, explicit string) (config.AccountConfig, error) {
	if explicit != "" {
		acc, ok := ch.Accounts[explicit]
		if !ok || !acc.Enabled {
			return config.AccountConfig{}, fmt.Errorf("%w: account %s/%s is not enabled", ErrConfiguration, ch.Type, explicit)
		}
		return withID(acc, explicit), nil
	}

	for _, id := range []string{ch.DefaultAccount, defaultAccountID} {
		if id == "" {
			continue
		}
		if acc, ok := ch.Accounts[id]; ok && acc.Enabled {
			return withID(acc, id), nil
		}
	}

	ids := gmap.ToSlice(ch.Accounts, func(k string, _ config.AccountConfig) string { return k })
	sort.Strings(ids)
	for _, id := range ids {
		if acc := ch.Accounts[id]; acc.Enabled {
			return withID(acc, id), nil
		}
	}
	return config.AccountConfig{}, fmt.Errorf("%w: channel %s has no enabled account", ErrConfiguration, ch.Type)
}

func withID(acc config.AccountConfig, id string) config.AccountConfig {
	if acc.ID == "" {
		acc.ID = id
	}
	return acc
}
