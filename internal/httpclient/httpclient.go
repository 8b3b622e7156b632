package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout: DefaultTimeout,
		Transport: &brotliTransport{inner: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		}},
	}
}

// Default returns the shared tuned HTTP client used by the provider client
// and the EPG resolver.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and the same
// brotli-aware transport as Default.
func WithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultClient.Transport,
	}
}

// brotliTransport advertises gzip+br and decodes both. Setting
// Accept-Encoding by hand disables net/http's transparent gzip, so the gzip
// leg has to be handled here too. Several Xtream fronts sit behind CDNs
// that prefer br and serve multi-megabyte stream lists.
type brotliTransport struct {
	inner http.RoundTripper
}

func (t *brotliTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "gzip, br")
	}
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		decodeBody(resp, &decodedBody{r: brotli.NewReader(resp.Body), underlying: resp.Body})
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		decodeBody(resp, &decodedBody{r: zr, underlying: resp.Body})
	}
	return resp, nil
}

func decodeBody(resp *http.Response, body io.ReadCloser) {
	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
}

type decodedBody struct {
	r          io.Reader
	underlying io.ReadCloser
}

func (b *decodedBody) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *decodedBody) Close() error { return b.underlying.Close() }
