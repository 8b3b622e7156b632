package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestBrotliDecoding(t *testing.T) {
	const payload = `[{"stream_id":1,"name":"BBC One"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		bw.Write([]byte(payload))
		bw.Close()
	}))
	defer srv.Close()

	resp, err := Default().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != payload {
		t.Errorf("body = %q, want %q", body, payload)
	}
	if resp.Header.Get("Content-Encoding") != "" {
		t.Error("Content-Encoding should be stripped after decoding")
	}
}

func TestAcceptEncodingHeaderSent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Accept-Encoding")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := Default().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if got != "gzip, br" {
		t.Errorf("Accept-Encoding = %q", got)
	}
}

func TestWithTimeout(t *testing.T) {
	c := WithTimeout(5 * time.Second)
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s", c.Timeout)
	}
	if c.Transport != Default().Transport {
		t.Error("WithTimeout should share the default transport")
	}
}
