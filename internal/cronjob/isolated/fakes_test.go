package isolated

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tgifai/cronturn/internal/agent"
	"github.com/tgifai/cronturn/internal/channel"
	"github.com/tgifai/cronturn/internal/config"
)

type sentMessage struct {
	dest channel.Destination
	text string
}

type threadCall struct {
	channelID string
	spec      channel.ThreadSpec
}

// plainMessenger is a messenger without thread support.
type plainMessenger struct {
	typ     channel.Type
	sendErr error

	mu     sync.Mutex
	sent   []sentMessage
	nextID int
}

func (m *plainMessenger) Type() channel.Type { return m.typ }
func (m *plainMessenger) AccountID() string  { return "default" }
func (m *plainMessenger) MaxMessageLen() int { return 2000 }

func (m *plainMessenger) SendMessage(_ context.Context, dest channel.Destination, text string) (*channel.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{dest: dest, text: text})
	return &channel.SendResult{ChannelID: dest.ID, MessageID: "msg-" + strconv.Itoa(m.nextID)}, nil
}

func (m *plainMessenger) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type threadingMessenger struct {
	*plainMessenger

	threadID  string
	threadErr error

	threadMu sync.Mutex
	threads  []threadCall
	created  int
}

func newDiscord() *threadingMessenger {
	return &threadingMessenger{plainMessenger: &plainMessenger{typ: channel.Discord}, threadID: "thread-123"}
}

func (m *threadingMessenger) CreateThread(_ context.Context, channelID string, spec channel.ThreadSpec) (*channel.ThreadInfo, error) {
	m.threadMu.Lock()
	defer m.threadMu.Unlock()
	m.threads = append(m.threads, threadCall{channelID: channelID, spec: spec})
	if m.threadErr != nil {
		return nil, m.threadErr
	}
	m.created++
	id := m.threadID
	if id != "" && m.created > 1 {
		id += "-" + strconv.Itoa(m.created)
	}
	return &channel.ThreadInfo{ID: id, ParentID: channelID, Name: spec.Name}, nil
}

func (m *threadingMessenger) threadCalls() []threadCall {
	m.threadMu.Lock()
	defer m.threadMu.Unlock()
	return append([]threadCall(nil), m.threads...)
}

func lookupOf(ms ...channel.Messenger) func(channel.Type, string) (channel.Messenger, error) {
	return func(t channel.Type, accountID string) (channel.Messenger, error) {
		for _, m := range ms {
			if m.Type() == t && m.AccountID() == accountID {
				return m, nil
			}
		}
		return nil, channel.ErrMessengerNotFound
	}
}

type fakeExecutor struct {
	err     error
	reply   string
	delay   time.Duration
	mu      sync.Mutex
	reqs    []agent.TurnRequest
	primed  []bool
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (e *fakeExecutor) Execute(_ context.Context, req agent.TurnRequest) (*agent.TurnResult, error) {
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		seen := e.maxSeen.Load()
		if n <= seen || e.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}

	e.mu.Lock()
	e.reqs = append(e.reqs, req)
	e.primed = append(e.primed, req.Entry.SystemSent)
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	req.Entry.SystemSent = true
	reply := e.reply
	if reply == "" {
		reply = "Hello"
	}
	return &agent.TurnResult{
		Payloads: []agent.Payload{{Text: reply}},
		Meta:     agent.Meta{Model: "gpt-4o", Provider: "openai"},
	}, nil
}

func (e *fakeExecutor) requests() []agent.TurnRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]agent.TurnRequest(nil), e.reqs...)
}

var errBoom = errors.New("boom")

func baseConfig() *config.Config {
	return &config.Config{
		Cronjob: config.CronjobConfig{DefaultAgent: "main"},
		Channels: map[string]config.ChannelConfig{
			"discord": {
				Type:    "discord",
				Enabled: true,
				Accounts: map[string]config.AccountConfig{
					"default": {ID: "default", Enabled: true},
				},
			},
		},
	}
}
