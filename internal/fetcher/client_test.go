package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/nao1215/politecrawler/internal/model"
)

// newTestClient returns a client with millisecond backoff so retry tests
// finish quickly.
func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{WithBackoff(time.Millisecond, 5*time.Millisecond), WithUserAgent("TestBot/1.0")}
	c, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

// TestFetchSuccess covers a plain 200 response.
func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer server.Close()

	res := newTestClient(t).Fetch(context.Background(), server.URL+"/", Options{MaxRetries: 2})
	if !res.OK() {
		t.Fatalf("expected success, got kind=%v err=%v", res.Kind, res.Err)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
	if !strings.Contains(string(res.Body), "<title>ok</title>") {
		t.Errorf("unexpected body %q", res.Body)
	}
	if !res.IsHTML() {
		t.Error("expected html content type")
	}
	if gotUA.Load() != "TestBot/1.0" {
		t.Errorf("user agent = %v", gotUA.Load())
	}
}

// TestFetchRetryTermination verifies a server that always times out is
// hit exactly MaxRetries+1 times.
func TestFetchRetryTermination(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-r.Context().Done()
	}))
	defer server.Close()

	const maxRetries = 3
	res := newTestClient(t).Fetch(context.Background(), server.URL, Options{
		Timeout:    30 * time.Millisecond,
		MaxRetries: maxRetries,
	})

	if res.Kind != model.FailureTransient {
		t.Fatalf("kind = %v, want transient (err=%v)", res.Kind, res.Err)
	}
	if !errors.Is(res.Err, ErrTransient) {
		t.Errorf("expected ErrTransient, got %v", res.Err)
	}
	if got := hits.Load(); got != maxRetries+1 {
		t.Errorf("server hit %d times, want %d", got, maxRetries+1)
	}
	if res.Attempts != maxRetries+1 {
		t.Errorf("attempts = %d, want %d", res.Attempts, maxRetries+1)
	}
}

// TestFetchStatusClassification checks which statuses are retried.
func TestFetchStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		wantKind model.FailureKind
		wantHits int32
	}{
		{name: "404 is terminal", status: http.StatusNotFound, wantKind: model.FailureTerminal, wantHits: 1},
		{name: "403 is terminal", status: http.StatusForbidden, wantKind: model.FailureTerminal, wantHits: 1},
		{name: "429 is retried", status: http.StatusTooManyRequests, wantKind: model.FailureTransient, wantHits: 3},
		{name: "500 is retried", status: http.StatusInternalServerError, wantKind: model.FailureTransient, wantHits: 3},
		{name: "503 is retried", status: http.StatusServiceUnavailable, wantKind: model.FailureTransient, wantHits: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			res := newTestClient(t).Fetch(context.Background(), server.URL, Options{MaxRetries: 2})
			if res.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", res.Kind, tt.wantKind)
			}
			if hits.Load() != tt.wantHits {
				t.Errorf("hits = %d, want %d", hits.Load(), tt.wantHits)
			}
			if res.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.status)
			}
		})
	}
}

// TestFetchRecoversAfterTransient verifies a retry can succeed.
func TestFetchRecoversAfterTransient(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("finally"))
	}))
	defer server.Close()

	res := newTestClient(t).Fetch(context.Background(), server.URL, Options{MaxRetries: 5})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if res.Attempts != 3 || res.Retries() != 2 {
		t.Errorf("attempts = %d retries = %d", res.Attempts, res.Retries())
	}
	if string(res.Body) != "finally" {
		t.Errorf("body = %q", res.Body)
	}
}

// TestFetchInvalidURL verifies malformed targets fail without a request.
func TestFetchInvalidURL(t *testing.T) {
	t.Parallel()

	for _, target := range []string{"", "ftp://example.se/", "::not-a-url", "http://"} {
		res := newTestClient(t).Fetch(context.Background(), target, Options{})
		if res.Kind != model.FailureTerminal || !errors.Is(res.Err, ErrTerminal) {
			t.Errorf("Fetch(%q) kind=%v err=%v, want terminal", target, res.Kind, res.Err)
		}
		if res.Attempts != 0 {
			t.Errorf("Fetch(%q) attempts = %d, want 0", target, res.Attempts)
		}
	}
}

// TestFetchCanceled verifies caller cancellation stops retries.
func TestFetchCanceled(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := newTestClient(t).Fetch(ctx, server.URL, Options{Timeout: time.Second, MaxRetries: 5})
	if res.Kind != model.FailureCanceled {
		t.Errorf("kind = %v, want canceled (err=%v)", res.Kind, res.Err)
	}
}

// TestFetchBodyLimit verifies oversized bodies are terminal.
func TestFetchBodyLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 2048))
	}))
	defer server.Close()

	res := newTestClient(t, WithMaxBodySize(1024)).Fetch(context.Background(), server.URL, Options{MaxRetries: 3})
	if res.Kind != model.FailureTerminal {
		t.Errorf("kind = %v, want terminal", res.Kind)
	}
	if !errors.Is(res.Err, ErrBodyTooLarge) {
		t.Errorf("expected ErrBodyTooLarge, got %v", res.Err)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
}

// TestFetchDecoding verifies compressed bodies are decoded.
func TestFetchDecoding(t *testing.T) {
	t.Parallel()

	const text = "<html><body>compressed content</body></html>"

	tests := []struct {
		name     string
		encoding string
		encode   func([]byte) []byte
	}{
		{"gzip", "gzip", func(b []byte) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, _ = zw.Write(b)
			_ = zw.Close()
			return buf.Bytes()
		}},
		{"br", "br", func(b []byte) []byte {
			var buf bytes.Buffer
			bw := brotli.NewWriter(&buf)
			_, _ = bw.Write(b)
			_ = bw.Close()
			return buf.Bytes()
		}},
		{"deflate zlib", "deflate", func(b []byte) []byte {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			_, _ = zw.Write(b)
			_ = zw.Close()
			return buf.Bytes()
		}},
		{"deflate raw", "deflate", func(b []byte) []byte {
			var buf bytes.Buffer
			fw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
			_, _ = fw.Write(b)
			_ = fw.Close()
			return buf.Bytes()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload := tt.encode([]byte(text))
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write(payload)
			}))
			defer server.Close()

			res := newTestClient(t).Fetch(context.Background(), server.URL, Options{})
			if !res.OK() {
				t.Fatalf("fetch failed: kind=%s err=%v", res.Kind, res.Err)
			}
			if string(res.Body) != text {
				t.Errorf("body = %q, want %q", res.Body, text)
			}
		})
	}
}

// TestFetchCustomHeaders verifies per-call headers are sent.
func TestFetchCustomHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "yes" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	res := newTestClient(t).Fetch(context.Background(), server.URL, Options{Headers: map[string]string{"X-Test": "yes"}})
	if !res.OK() {
		t.Errorf("expected header to be sent, got status %d", res.StatusCode)
	}
}

// TestNewWithProxy verifies proxy address validation.
func TestNewWithProxy(t *testing.T) {
	t.Parallel()

	if _, err := New(WithProxy("127.0.0.1:9050")); err != nil {
		t.Errorf("valid proxy rejected: %v", err)
	}
	for _, addr := range []string{"127.0.0.1", ":9050", "host:0", "host:70000", "host:abc"} {
		if _, err := New(WithProxy(addr)); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("New(WithProxy(%q)) error = %v, want ErrInvalidProxyAddress", addr, err)
		}
	}
}
