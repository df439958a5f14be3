package gemini

import (
	"context"
	"fmt"
	"strings"

	gmodel "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/tgifai/cronturn/internal/provider"
)

var (
	_ provider.Provider    = (*Provider)(nil)
	_ provider.ModelLister = (*Provider)(nil)
)

type Provider struct {
	*provider.ChatProvider
	client *genai.Client
}

func New(ctx context.Context, cfg provider.Config) (*Provider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("new gemini client failed: %w", err)
	}

	p := &Provider{client: client}
	p.ChatProvider = provider.NewChatProvider(cfg, func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		m, err := gmodel.NewChatModel(ctx, &gmodel.Config{
			Client: client,
			Model:  modelName,
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

	result := make([]provider.ModelInfo, 0, 16)
	for item, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list gemini models failed: %w", err)
		}
		if item == nil || item.Name == "" {
			continue
		}
		id := strings.TrimPrefix(item.Name, "models/")
		name := item.DisplayName
		if name == "" {
			name = id
		}
		result = append(result, provider.ModelInfo{ID: id, Name: name, Provider: provider.Gemini})
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no models returned from gemini API")
	}
	return result, nil
}
