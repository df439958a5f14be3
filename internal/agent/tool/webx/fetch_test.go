package webx

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html><html><head><title>Weekly Report</title></head><body>
<nav><a href="/">Home</a></nav>
<article><h1>Weekly Report</h1>
<p>The scheduler fired every job on time this week and all deliveries landed in their threads without a single retry.</p>
<p>Session stores stayed consistent across concurrent runs, and transcripts were compacted twice as they crossed the size limit.</p>
<p>Next week we will look at trimming the fallback chain for the reporting agent and measuring the effect on latency.</p>
</article></body></html>`

func TestFetchTool_Info(t *testing.T) {
	tool := NewFetchTool()
	assert.Equal(t, FetchToolName, tool.Name())
	info := tool.ToolInfo()
	assert.Equal(t, "web_fetch", info.Name)
}

func TestFetchTool_Validation(t *testing.T) {
	tool := NewFetchTool()
	ctx := context.Background()

	_, err := tool.Execute(ctx, map[string]any{})
	assert.Error(t, err)

	_, err = tool.Execute(ctx, map[string]any{"url": "ftp://example.com/file"})
	assert.Error(t, err)

	_, err = tool.Execute(ctx, map[string]any{"url": "http://127.0.0.1:8080/admin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private")
}

func TestFetchTool_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	out, err := NewFetchTool(WithPrivateHosts()).Execute(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)
	res := out.(FetchResult)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Content, "scheduler fired every job")
	assert.NotContains(t, res.Content, "<p>")
}

func TestFetchTool_JSONPrettyAndTruncate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jobs":["a","b","c"]}`))
	}))
	defer srv.Close()

	tool := NewFetchTool(WithPrivateHosts())
	out, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)
	res := out.(FetchResult)
	assert.Contains(t, res.Content, "\n  \"jobs\"")
	assert.False(t, res.Truncated)

	out, err = tool.Execute(context.Background(), map[string]any{"url": srv.URL, "max_chars": 5})
	require.NoError(t, err)
	res = out.(FetchResult)
	assert.True(t, res.Truncated)
	assert.True(t, strings.HasSuffix(res.Content, "..."))
}

func TestFetchTool_MaxCharsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("z", fetchMaxChars*2)))
	}))
	defer srv.Close()

	tool := NewFetchTool(WithPrivateHosts())
	out, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL, "max_chars": fetchMaxChars * 100})
	require.NoError(t, err)
	res := out.(FetchResult)
	assert.True(t, res.Truncated)
	assert.LessOrEqual(t, res.Length, fetchMaxChars+3)
}

func TestDecodingTransport(t *testing.T) {
	const body = "plain text body"
	encoders := map[string]func([]byte) []byte{
		"gzip": func(b []byte) []byte {
			var buf bytes.Buffer
			w := kgzip.NewWriter(&buf)
			_, _ = w.Write(b)
			_ = w.Close()
			return buf.Bytes()
		},
		"br": func(b []byte) []byte {
			var buf bytes.Buffer
			w := brotli.NewWriter(&buf)
			_, _ = w.Write(b)
			_ = w.Close()
			return buf.Bytes()
		},
		"zstd": func(b []byte) []byte {
			enc, _ := zstd.NewWriter(nil)
			defer enc.Close()
			return enc.EncodeAll(b, nil)
		},
	}

	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.Header.Get("Accept-Encoding"), name)
				w.Header().Set("Content-Type", "text/plain")
				w.Header().Set("Content-Encoding", name)
				_, _ = w.Write(encode([]byte(body)))
			}))
			defer srv.Close()

			out, err := NewFetchTool(WithPrivateHosts()).Execute(context.Background(), map[string]any{"url": srv.URL})
			require.NoError(t, err)
			assert.Equal(t, body, out.(FetchResult).Content)
		})
	}
}
