package webx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/gg/gconv"
	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/cronturn/internal/pkg/logs"
)

const (
	SearchToolName = "web_search"

	defaultSearchCount = 5
	maxSearchCount     = 10

	braveEndpoint = "https://api.search.brave.com/res/v1/web/search"
	braveTimeout  = 10 * time.Second
)

// SearchProvider is a web search backend.
type SearchProvider interface {
	Search(ctx context.Context, query string, count int) ([]SearchHit, error)
}

type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

type SearchResult struct {
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits"`
}

// SearchTool lets the agent search the web. Without a provider it is
// backed by Brave Search using BRAVE_API_KEY.
type SearchTool struct {
	provider SearchProvider
}

func NewSearchTool(provider SearchProvider) *SearchTool {
	if provider == nil {
		if key := strings.TrimSpace(os.Getenv("BRAVE_API_KEY")); key != "" {
			provider = NewBraveProvider(key)
		}
	}
	return &SearchTool{provider: provider}
}

// Available reports whether a search backend is configured.
func (t *SearchTool) Available() bool { return t.provider != nil }

func (t *SearchTool) Name() string { return SearchToolName }

func (t *SearchTool) Description() string {
	return "Search the web. Returns titles, URLs, and snippets for the top results."
}

func (t *SearchTool) ToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The search query",
				Required: true,
			},
			"count": {
				Type: schema.Integer,
				Desc: "Number of results to return (1-10, default 5)",
			},
		}),
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	if t.provider == nil {
		return nil, fmt.Errorf("web search is unavailable: BRAVE_API_KEY is not set")
	}

	query := strings.TrimSpace(gconv.To[string](args["query"]))
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	count := gconv.To[int](args["count"])
	if count <= 0 {
		count = defaultSearchCount
	}
	count = min(count, maxSearchCount)

	hits, err := t.provider.Search(ctx, query, count)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(hits) > count {
		hits = hits[:count]
	}

	logs.CtxInfo(ctx, "[tool:web_search] %q -> %d results", query, len(hits))
	return SearchResult{Query: query, Hits: hits}, nil
}

type BraveProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewBraveProvider(apiKey string) *BraveProvider {
	return &BraveProvider{
		apiKey:   apiKey,
		endpoint: braveEndpoint,
		client: &http.Client{
			Timeout:   braveTimeout,
			Transport: newDecodingTransport(&http.Transport{ForceAttemptHTTP2: true}),
		},
	}
}

func (p *BraveProvider) Search(ctx context.Context, query string, count int) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("brave search HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed braveResponse
	if err := sonic.ConfigDefault.NewDecoder(io.LimitReader(resp.Body, fetchMaxBody)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	hits := make([]SearchHit, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		hits = append(hits, SearchHit{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return hits, nil
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}
