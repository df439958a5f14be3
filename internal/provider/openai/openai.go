package openai

import (
	"context"
	"net/http"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/tgifai/cronturn/internal/provider"
)

var (
	_ provider.Provider    = (*Provider)(nil)
	_ provider.ModelLister = (*Provider)(nil)
)

type Provider struct {
	*provider.ChatProvider
	httpCli *http.Client
}

func New(_ context.Context, cfg provider.Config) (*Provider, error) {
	p := &Provider{httpCli: &http.Client{Timeout: cfg.Timeout}}
	p.ChatProvider = provider.NewChatProvider(cfg, func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   modelName,
			Timeout: cfg.Timeout,
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
