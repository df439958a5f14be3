package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollamamodel "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	ollamaapi "github.com/eino-contrib/ollama/api"

	"github.com/tgifai/cronturn/internal/provider"
)

var (
	_ provider.Provider    = (*Provider)(nil)
	_ provider.ModelLister = (*Provider)(nil)
)

type Provider struct {
	*provider.ChatProvider
	api *ollamaapi.Client
}

func New(_ context.Context, cfg provider.Config) (*Provider, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	p := &Provider{api: ollamaapi.NewClient(baseURL, &http.Client{Timeout: cfg.Timeout})}
	p.ChatProvider = provider.NewChatProvider(cfg, func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		m, err := ollamamodel.NewChatModel(ctx, &ollamamodel.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Model:   modelName,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	return p, nil
}

func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Config().Timeout)
	defer cancel()

	lr, err := p.api.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ollama models failed: %w", err)
	}
	result := make([]provider.ModelInfo, 0, len(lr.Models))
	for _, item := range lr.Models {
		id := strings.TrimSpace(item.Model)
		if id == "" {
			id = strings.TrimSpace(item.Name)
		}
		if id == "" {
			continue
		}
		result = append(result, provider.ModelInfo{ID: id, Name: id, Provider: provider.Ollama})
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no models returned from ollama API")
	}
	return result, nil
}
