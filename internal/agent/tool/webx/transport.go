package webx

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	kflate "github.com/klauspost/compress/flate"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const acceptEncoding = "gzip, deflate, br, zstd"

type decoderFunc func(io.Reader) (io.ReadCloser, error)

var decoders = map[string]decoderFunc{
	"gzip": func(r io.Reader) (io.ReadCloser, error) {
		return kgzip.NewReader(r)
	},
	"deflate": func(r io.Reader) (io.ReadCloser, error) {
		return kflate.NewReader(r), nil
	},
	"br": func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(brotli.NewReader(r)), nil
	},
	"zstd": func(r io.Reader) (io.ReadCloser, error) {
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	},
}

// decodingTransport advertises every encoding in decoders and unwraps the
// response body. The wrapped transport has its own compression disabled.
type decodingTransport struct {
	base http.RoundTripper
}

func newDecodingTransport(base *http.Transport) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	base.DisableCompression = true
	return &decodingTransport{base: base}
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	decode, ok := decoders[strings.ToLower(resp.Header.Get("Content-Encoding"))]
	if !ok {
		return resp, nil
	}
	rc, err := decode(resp.Body)
	if err != nil {
		// undecodable: hand back the raw body
		return resp, nil
	}

	resp.Body = &decodedBody{ReadCloser: rc, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	return resp, nil
}

type decodedBody struct {
	io.ReadCloser
	raw io.Closer
}

func (b *decodedBody) Close() error {
	_ = b.ReadCloser.Close()
	return b.raw.Close()
}
