package anthropic

import (
	"context"
	"net/http"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/cronturn/internal/provider"
)

var _ provider.Provider = (*Provider)(nil)

type Provider struct {
	*provider.ChatProvider
}

func New(_ context.Context, cfg provider.Config) (*Provider, error) {
	baseURL := cfg.BaseURL
	factory := func(ctx context.Context, modelName string) (model.BaseChatModel, error) {
		m, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    &baseURL,
			Model:      modelName,
			MaxTokens:  cfg.MaxTokens,
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return &Provider{ChatProvider: provider.NewChatProvider(cfg, factory, provider.WithPrepare(fillEmptyContent))}, nil
}

// fillEmptyContent gives every content-less message a placeholder body; the
// claude client indexes into the content slice and panics when it is empty.
func fillEmptyContent(msgs []*schema.Message) {
	for _, m := range msgs {
		if m.Content != "" || len(m.ToolCalls) > 0 ||
			len(m.UserInputMultiContent) > 0 ||
			len(m.AssistantGenMultiContent) > 0 ||
			len(m.MultiContent) > 0 {
			continue
		}
		if m.Role == schema.Tool {
			m.Content = "{}"
		} else {
			m.Content = "..."
		}
	}
}
