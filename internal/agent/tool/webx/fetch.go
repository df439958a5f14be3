package webx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/bytedance/gg/gconv"
	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/pkg/utils"
)

const (
	FetchToolName = "web_fetch"

	fetchTimeout   = 30 * time.Second
	fetchMaxChars  = 50000
	fetchMaxRedirs = 5
	fetchMaxBody   = 5 << 20
	fetchUserAgent = "Mozilla/5.0 (compatible; cronturn/1.0; +https://github.com/tgifai/cronturn)"
)

type FetchTool struct {
	client       *http.Client
	allowPrivate bool
}

type options struct {
	allowPrivate bool
}

type Option func(*options)

// WithPrivateHosts lets the tool reach loopback and private addresses.
func WithPrivateHosts() Option {
	return func(o *options) { o.allowPrivate = true }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewFetchTool(opts ...Option) *FetchTool {
	t := &FetchTool{allowPrivate: applyOptions(opts).allowPrivate}
	t.client = &http.Client{
		Timeout:       fetchTimeout,
		Transport:     newDecodingTransport(&http.Transport{ForceAttemptHTTP2: true}),
		CheckRedirect: redirectPolicy(t.allowPrivate),
	}
	return t
}

func (t *FetchTool) Name() string { return FetchToolName }

func (t *FetchTool) Description() string {
	return "Fetch a URL and return its main content as markdown. HTML pages are reduced with readability; JSON is pretty-printed."
}

func (t *FetchTool) ToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"url": {
				Type:     schema.String,
				Desc:     "The URL to fetch (http or https)",
				Required: true,
			},
			"max_chars": {
				Type: schema.Integer,
				Desc: "Maximum characters to return (default and max 50000)",
			},
		}),
	}
}

type FetchResult struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Status    int    `json:"status"`
	Length    int    `json:"length"`
	Truncated bool   `json:"truncated"`
	Content   string `json:"content"`
}

func (t *FetchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	rawURL := strings.TrimSpace(gconv.To[string](args["url"]))
	if _, err := checkURL(rawURL, t.allowPrivate); err != nil {
		return nil, err
	}
	maxChars := fetchMaxChars
	if v := gconv.To[int](args["max_chars"]); v > 0 {
		maxChars = min(v, fetchMaxChars)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/markdown, text/html, application/json, */*")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	title, content := renderBody(resp.Header.Get("Content-Type"), body, resp.Request.URL)
	res := FetchResult{
		URL:     resp.Request.URL.String(),
		Title:   title,
		Status:  resp.StatusCode,
		Content: content,
	}
	if len(res.Content) > maxChars {
		res.Content = utils.Truncate(res.Content, maxChars)
		res.Truncated = true
	}
	res.Length = len(res.Content)

	logs.CtxInfo(ctx, "[tool:web_fetch] %s status=%d (%d chars, truncated=%v)", rawURL, res.Status, res.Length, res.Truncated)
	return res, nil
}

func renderBody(ctype string, body []byte, pageURL *url.URL) (title, content string) {
	ctype = strings.ToLower(ctype)
	switch {
	case strings.Contains(ctype, "text/markdown"):
		return "", string(body)
	case strings.Contains(ctype, "application/json"):
		var js any
		if err := sonic.Unmarshal(body, &js); err == nil {
			if pretty, err := sonic.ConfigStd.MarshalIndent(js, "", "  "); err == nil {
				return "", string(pretty)
			}
		}
		return "", string(body)
	case strings.Contains(ctype, "text/html") || looksLikeHTML(body):
		return extractReadable(body, pageURL)
	default:
		return "", string(body)
	}
}

// extractReadable reduces an HTML page to its main article as markdown.
func extractReadable(body []byte, pageURL *url.URL) (title, md string) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		md, _ = htmltomarkdown.ConvertString(string(body))
		return "", md
	}
	title = article.Title()

	var buf bytes.Buffer
	if err := article.RenderHTML(&buf); err != nil {
		buf.Reset()
		_ = article.RenderText(&buf)
		return title, buf.String()
	}
	md, err = htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return title, buf.String()
	}
	if title != "" {
		md = "# " + title + "\n\n" + md
	}
	return title, md
}

func looksLikeHTML(body []byte) bool {
	prefix := strings.ToLower(strings.TrimSpace(string(body[:min(256, len(body))])))
	return strings.HasPrefix(prefix, "<!doctype") || strings.HasPrefix(prefix, "<html")
}
