package qwen

import (
	"context"
	"net/http"

	qwenmodel "github.com/cloudwego/eino-ext/components/model/qwen"
	"github.com/cloudwego/eino/components/model"

	"github.com/tgifai/cronturn/internal/provider"
)

var (
	_ provider.Provider    = (*Provider)(nil)
	_ provider.ModelLister = (*Provider)(nil)
)

// Provider talks to DashScope through its OpenAI-compatible endpoint.
type Provider struct {
	*provider.ChatProvider
	httpCli *http.Client
}

func New(_ context.Context, cfg provider.Config) (*Provider, error) {
	p := &Provider{httpCli: &http.Client{Timeout: cfg.Timeout}}
	p.ChatProvider = provider.NewChatProvider(cfg, func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		m, err := qwenmodel.NewChatModel(ctx, &qwenmodel.ChatModelConfig{
			APIKey:  cfg.APIKey,
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
	return provider.ListCompatModels(ctx, p.httpCli, p.Config())
}
