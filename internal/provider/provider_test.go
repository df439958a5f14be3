package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgifai/cronturn/internal/config"
)

func TestParseModelSpec(t *testing.T) {
	ms, err := ParseModelSpec("openai:gpt-4o:latest")
	require.NoError(t, err)
	assert.Equal(t, "openai", ms.ProviderID)
	assert.Equal(t, "gpt-4o:latest", ms.ModelName)
	assert.Equal(t, "openai:gpt-4o:latest", ms.String())

	for _, bad := range []string{"", "openai", ":gpt", "openai:"} {
		_, err := ParseModelSpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(config.ProviderConfig{ID: "openai", APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, OpenAI, cfg.Type)
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Timeout)

	cfg, err = ParseConfig(config.ProviderConfig{
		ID:     "local",
		Type:   "Ollama",
		Config: map[string]any{"default_model": "qwen2.5", "timeout": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, Ollama, cfg.Type)
	assert.Equal(t, "qwen2.5", cfg.DefaultModel)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	_, err = ParseConfig(config.ProviderConfig{ID: "anthropic"})
	assert.Error(t, err, "missing api key")

	_, err = ParseConfig(config.ProviderConfig{ID: "x", Type: "ark", APIKey: "k"})
	assert.Error(t, err)
}

type echoModel struct {
	name  string
	calls int
}

func (m *echoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls++
	return schema.AssistantMessage(m.name+":"+input[len(input)-1].Content, nil), nil
}

func (m *echoModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestChatProviderCachesModels(t *testing.T) {
	built := map[string]*echoModel{}
	var prepared int
	p := NewChatProvider(Config{ID: "p", Type: OpenAI, DefaultModel: "base", Timeout: time.Second},
		func(_ context.Context, name string) (model.BaseChatModel, error) {
			m := &echoModel{name: name}
			built[name] = m
			return m, nil
		},
		WithPrepare(func([]*schema.Message) { prepared++ }),
	)

	resp, err := p.Generate(context.Background(), "", []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "base:hi", resp.Content)

	_, err = p.Generate(context.Background(), "base", []*schema.Message{schema.UserMessage("again")})
	require.NoError(t, err)
	assert.Len(t, built, 1)
	assert.Equal(t, 2, built["base"].calls)
	assert.Equal(t, 2, prepared)
}

func TestChatProviderFactoryError(t *testing.T) {
	p := NewChatProvider(Config{ID: "p", Type: Qwen, Timeout: time.Second},
		func(context.Context, string) (model.BaseChatModel, error) { return nil, errors.New("bad key") })
	_, err := p.Generate(context.Background(), "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestListCompatModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":""},{"id":"gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	models, err := ListCompatModels(context.Background(), srv.Client(),
		Config{Type: OpenAI, BaseURL: srv.URL + "/v1", APIKey: "sk", Timeout: time.Second})
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-4o-mini", models[1].ID)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.True(t, errors.Is(err, ErrProviderNotFound))

	require.NoError(t, r.Register(NewChatProvider(Config{ID: "b"}, nil)))
	require.NoError(t, r.Register(NewChatProvider(Config{ID: "a"}, nil)))
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID())

	r.Unregister("a")
	_, err = r.Get("a")
	assert.Error(t, err)
}
