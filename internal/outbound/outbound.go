// Package outbound sends agent payloads to a chat destination through the
// registered messenger of the target channel account.
package outbound

import (
	"context"
	"fmt"
	"strings"

	"github.com/tgifai/cronturn/internal/agent"
	"github.com/tgifai/cronturn/internal/channel"
	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/pkg/prometheus"
	"github.com/tgifai/cronturn/internal/pkg/utils"
)

type MessengerLookup func(t channel.Type, accountID string) (channel.Messenger, error)

type Target struct {
	Channel   channel.Type
	AccountID string
	To        channel.Destination
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s -> %s", t.Channel, t.AccountID, t.To)
}

type Result struct {
	Messages []channel.SendResult
}

type Deliverer struct {
	lookup MessengerLookup
}

// NewDeliverer returns a Deliverer resolving messengers through lookup, or
// through the global channel registry when lookup is nil.
func NewDeliverer(lookup MessengerLookup) *Deliverer {
	if lookup == nil {
		lookup = channel.Get
	}
	return &Deliverer{lookup: lookup}
}

// Deliver sends payloads in order, splitting each one to the messenger's
// size limit. Blank payloads are skipped. It stops at the first failed send
// and returns what was sent so far.
func (d *Deliverer) Deliver(ctx context.Context, target Target, payloads []agent.Payload) (*Result, error) {
	if target.To.IsZero() {
		return nil, fmt.Errorf("%w: empty destination", channel.ErrInvalidDestination)
	}
	m, err := d.lookup(target.Channel, target.AccountID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i, p := range payloads {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		for _, chunk := range utils.SplitByLimit(p.Text, m.MaxMessageLen()) {
			sent, err := m.SendMessage(ctx, target.To, chunk)
			prometheus.IncDelivery(string(target.Channel), err == nil)
			if err != nil {
				return res, fmt.Errorf("send payload %d to %s: %w", i, target, err)
			}
			if sent != nil {
				res.Messages = append(res.Messages, *sent)
			}
		}
	}

	logs.CtxInfo(ctx, "[outbound] delivered %d message(s) to %s", len(res.Messages), target)
	return res, nil
}
