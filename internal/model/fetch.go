package model

import (
	"net/http"
	"strings"
	"time"
)

// FailureKind classifies how a fetch ended.
type FailureKind int

const (
	// FailureNone means the fetch produced a usable response.
	FailureNone FailureKind = iota

	// FailureTransient means the fetch failed with a retryable error
	// (timeout, connection reset, 5xx, 429) and the retry budget ran out.
	FailureTransient

	// FailureTerminal means the fetch failed in a way retrying cannot fix
	// (4xx other than 429, invalid URL, oversized body).
	FailureTerminal

	// FailureCanceled means the caller's context was canceled.
	FailureCanceled
)

// String returns a lowercase name of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailureTerminal:
		return "terminal"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// FetchResult is the outcome of one fetch, including every retry.
type FetchResult struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// FinalURL is the URL after redirects.
	FinalURL string `json:"final_url,omitempty"`

	// StatusCode is the HTTP status of the last response, 0 when no
	// response was received.
	StatusCode int `json:"status_code"`

	// Header holds the response headers of the last response.
	Header http.Header `json:"-"`

	// ContentType is the Content-Type of the last response.
	ContentType string `json:"content_type,omitempty"`

	// Body is the decoded response body.
	Body []byte `json:"-"`

	// Latency is the wall time of the last attempt.
	Latency time.Duration `json:"latency"`

	// Attempts is the number of requests sent. It never exceeds the
	// retry budget plus one.
	Attempts int `json:"attempts"`

	// Kind classifies the outcome.
	Kind FailureKind `json:"kind"`

	// Err holds the final error, nil on success.
	Err error `json:"-"`
}

// Retries returns the number of attempts after the first.
func (r *FetchResult) Retries() int {
	if r.Attempts <= 1 {
		return 0
	}
	return r.Attempts - 1
}

// OK reports whether the fetch succeeded with a 2xx response.
func (r *FetchResult) OK() bool {
	return r.Err == nil && r.Kind == FailureNone && r.StatusCode >= 200 && r.StatusCode < 300
}

// IsHTML reports whether the response declares an HTML content type.
// An empty Content-Type is treated as HTML.
func (r *FetchResult) IsHTML() bool {
	ct := strings.ToLower(r.ContentType)
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// BodySize returns len(Body) as int64.
func (r *FetchResult) BodySize() int64 {
	return int64(len(r.Body))
}
