package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type Provider interface {
	// ID returns the configured provider instance identifier used as the
	// registry key and as the left half of a model spec.
	ID() string

	// Type returns the backend family of this provider instance.
	Type() Type

	// Generate performs a single non-streaming chat completion. An empty
	// modelName selects the provider's default model.
	Generate(ctx context.Context, modelName string, input []*schema.Message, opts ...model.Option) (*schema.Message, error)

	// Close releases provider-owned resources.
	Close() error
}

// ModelLister is implemented by providers that can enumerate remote models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
