package webx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/gg/gconv"
	"github.com/bytedance/gg/gslice"
	"github.com/cloudwego/eino/schema"

	"github.com/tgifai/cronturn/internal/pkg/logs"
	"github.com/tgifai/cronturn/internal/pkg/utils"
)

const (
	RequestToolName = "http_request"

	requestTimeout    = 30 * time.Second
	requestMaxTimeout = 120 * time.Second
	requestMaxChars   = 50000
	requestUserAgent  = "cronturn-http/1.0"
)

var requestMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// RequestTool lets the agent call external HTTP APIs.
type RequestTool struct {
	client       *http.Client
	allowPrivate bool
}

func NewRequestTool(opts ...Option) *RequestTool {
	t := &RequestTool{allowPrivate: applyOptions(opts).allowPrivate}
	t.client = &http.Client{
		Transport:     newDecodingTransport(&http.Transport{ForceAttemptHTTP2: true}),
		CheckRedirect: redirectPolicy(t.allowPrivate),
	}
	return t
}

func (t *RequestTool) Name() string { return RequestToolName }

func (t *RequestTool) Description() string {
	return "Make an HTTP request to an external API. Supports GET, POST, PUT, PATCH, DELETE methods."
}

func (t *RequestTool) ToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"url": {
				Type:     schema.String,
				Desc:     "The target URL (must be http or https)",
				Required: true,
			},
			"method": {
				Type: schema.String,
				Desc: "HTTP method: GET, POST, PUT, PATCH, DELETE (default GET)",
			},
			"headers": {
				Type: schema.Object,
				Desc: "Custom request headers as key-value pairs",
			},
			"body": {
				Type: schema.String,
				Desc: "Request body (typically a JSON string)",
			},
			"timeout": {
				Type: schema.Integer,
				Desc: "Timeout in seconds (default 30, max 120)",
			},
		}),
	}
}

type RequestResult struct {
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	Length    int               `json:"length"`
	Truncated bool              `json:"truncated"`
}

func (t *RequestTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	rawURL := strings.TrimSpace(gconv.To[string](args["url"]))
	if _, err := checkURL(rawURL, t.allowPrivate); err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(gconv.To[string](args["method"])))
	if method == "" {
		method = http.MethodGet
	}
	if !gslice.Contains(requestMethods, method) {
		return nil, fmt.Errorf("unsupported method %q; allowed: %s", method, strings.Join(requestMethods, ", "))
	}

	timeout := requestTimeout
	if sec := gconv.To[int](args["timeout"]); sec > 0 {
		timeout = min(time.Duration(sec)*time.Second, requestMaxTimeout)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body := gconv.To[string](args["body"])
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", requestUserAgent)
	if hdrs, ok := args["headers"].(map[string]any); ok {
		for k, v := range hdrs {
			req.Header.Set(k, gconv.To[string](v))
		}
	}
	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	res := RequestResult{
		Status:  resp.StatusCode,
		Headers: make(map[string]string, len(resp.Header)),
		Body:    string(respBody),
	}
	for k := range resp.Header {
		res.Headers[k] = resp.Header.Get(k)
	}
	if len(res.Body) > requestMaxChars {
		res.Body = utils.Truncate(res.Body, requestMaxChars)
		res.Truncated = true
	}
	res.Length = len(res.Body)

	logs.CtxInfo(ctx, "[tool:http_request] %s %s status=%d (%d chars, truncated=%v)",
		method, rawURL, res.Status, res.Length, res.Truncated)
	return res, nil
}

// checkURL accepts absolute http(s) URLs that do not point at private hosts.
func checkURL(rawURL string, allowPrivate bool) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("url is required")
	}
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("only http and https URLs are allowed")
	}
	if !allowPrivate && utils.IsPrivateHost(parsed.Hostname()) {
		return nil, fmt.Errorf("access to private/internal addresses is not allowed")
	}
	return parsed, nil
}

func redirectPolicy(allowPrivate bool) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= fetchMaxRedirs {
			return fmt.Errorf("too many redirects (max %d)", fetchMaxRedirs)
		}
		if !allowPrivate && utils.IsPrivateHost(req.URL.Hostname()) {
			return fmt.Errorf("redirect to private address blocked")
		}
		return nil
	}
}
