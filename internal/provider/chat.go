package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ModelFactory builds the backend chat model for one model name.
type ModelFactory func(ctx context.Context, modelName string) (model.BaseChatModel, error)

// ChatProvider adapts an eino chat model family to Provider. Chat models are
// built lazily and cached per model name.
type ChatProvider struct {
	config  Config
	factory ModelFactory
	prepare func([]*schema.Message)

	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

type ChatOption func(*ChatProvider)

// WithPrepare runs fn over the input messages before every call.
func WithPrepare(fn func([]*schema.Message)) ChatOption {
	return func(p *ChatProvider) { p.prepare = fn }
}

func NewChatProvider(cfg Config, factory ModelFactory, opts ...ChatOption) *ChatProvider {
	p := &ChatProvider{
		config:  cfg,
		factory: factory,
		models:  make(map[string]model.BaseChatModel, 4),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ChatProvider) ID() string {
	return p.config.ID
}

func (p *ChatProvider) Type() Type {
	return p.config.Type
}

func (p *ChatProvider) Config() Config {
	return p.config
}

func (p *ChatProvider) Close() error {
	return nil
}

func (p *ChatProvider) Generate(ctx context.Context, modelName string, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if modelName == "" {
		modelName = p.config.DefaultModel
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	chatModel, err := p.getOrCreateModel(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat model for %s: %w", modelName, err)
	}
	if p.prepare != nil {
		p.prepare(input)
	}

	resp, err := chatModel.Generate(ctx, input, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s API call failed: %w", p.config.Type, err)
	}
	return resp, nil
}

func (p *ChatProvider) getOrCreateModel(ctx context.Context, modelName string) (model.BaseChatModel, error) {
	p.mu.RLock()
	if m, exists := p.models[modelName]; exists {
		p.mu.RUnlock()
		return m, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if m, exists := p.models[modelName]; exists {
		return m, nil
	}
	m, err := p.factory(ctx, modelName)
	if err != nil {
		return nil, err
	}
	p.models[modelName] = m
	return m, nil
}
