package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/politecrawler/internal/model"
)

// Default client settings.
const (
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 5 * 1024 * 1024 // 5MB
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 30 * time.Second
	defaultUserAgent   = "PoliteCrawler/1.0"
)

// Options controls a single Fetch call.
type Options struct {
	// Timeout bounds each attempt including the body read.
	// Zero uses the client's default.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// transient failures. Negative values are treated as zero.
	MaxRetries int

	// CrawlDelay is the minimum spacing between requests to the host.
	// The limiter's own delay applies when it is larger.
	CrawlDelay time.Duration

	// Headers are extra request headers.
	Headers map[string]string

	// RateLimit overrides the limiter's token bucket for the host.
	// The zero value keeps the limiter's default.
	RateLimit RateLimit
}

// Client fetches URLs with retries and per-host politeness.
// A Client is safe for concurrent use.
type Client struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxBodySize int64
	baseDelay   time.Duration
	maxDelay    time.Duration
	proxy       string
	limiter     *HostLimiter
	logger      *slog.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxBodySize sets the maximum decoded body size.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		c.maxBodySize = size
	}
}

// WithBackoff sets the first retry delay and the cap of the exponential
// backoff.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = maxDelay
	}
}

// WithProxy routes all connections through a SOCKS5 proxy at "host:port".
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxy = address
	}
}

// WithHostLimiter sets the per-host politeness limiter.
func WithHostLimiter(l *HostLimiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithHTTPClient replaces the underlying HTTP client. WithProxy is
// ignored when this option is used.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client. It fails only when the proxy address is invalid.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		userAgent:   defaultUserAgent,
		timeout:     defaultTimeout,
		maxBodySize: defaultMaxBodySize,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		logger:      slog.Default(),
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewHostLimiter(0, RateLimit{})
	}
	if c.client == nil {
		hc, err := newHTTPClient(c.proxy)
		if err != nil {
			return nil, err
		}
		c.client = hc
	}
	return c, nil
}

// Limiter returns the host limiter used by the client.
func (c *Client) Limiter() *HostLimiter {
	return c.limiter
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// Fetch downloads target. It never returns nil; inspect Kind and Err on
// the result. Transient failures are retried up to opts.MaxRetries times
// with exponential backoff, honoring Retry-After on 429 and 503.
func (c *Client) Fetch(ctx context.Context, target string, opts Options) *model.FetchResult {
	res := &model.FetchResult{URL: target}

	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		res.Kind = model.FailureTerminal
		res.Err = fmt.Errorf("%w: invalid url %q", ErrTerminal, target)
		return res
	}

	retries := max(opts.MaxRetries, 0)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	var retryAfter time.Duration
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt, c.baseDelay, c.maxDelay, retryAfter)
			c.logger.Debug("retrying fetch",
				"url", target,
				"attempt", attempt+1,
				"wait", wait,
				"error", lastErr,
			)
			if err := c.sleep(ctx, wait); err != nil {
				return canceled(res, err)
			}
		}
		if err := c.limiter.WaitRate(ctx, u.Host, opts.CrawlDelay, opts.RateLimit); err != nil {
			return canceled(res, err)
		}

		res.Attempts++
		retryAfter, lastErr = c.attempt(ctx, u, timeout, opts.Headers, res)
		switch res.Kind {
		case model.FailureNone, model.FailureTerminal, model.FailureCanceled:
			return res
		}
	}

	res.Kind = model.FailureTransient
	res.Err = fmt.Errorf("%w: %s after %d attempts: %v", ErrTransient, target, res.Attempts, lastErr)
	return res
}

// attempt sends one request and records the outcome on res. It returns the
// server's Retry-After hint and the attempt error.
func (c *Client) attempt(ctx context.Context, u *url.URL, timeout time.Duration, headers map[string]string, res *model.FetchResult) (time.Duration, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res.StatusCode, res.Header, res.ContentType, res.Body = 0, nil, "", nil

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		res.Kind = model.FailureTerminal
		res.Err = fmt.Errorf("%w: build request: %v", ErrTerminal, err)
		return 0, res.Err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "sv,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := c.now()
	resp, err := c.client.Do(req)
	if err != nil {
		res.Latency = c.now().Sub(start)
		return 0, c.fail(ctx, res, err)
	}

	res.StatusCode = resp.StatusCode
	res.Header = resp.Header.Clone()
	res.ContentType = resp.Header.Get("Content-Type")
	if resp.Request != nil && resp.Request.URL != nil {
		res.FinalURL = resp.Request.URL.String()
	}

	kind := classifyStatus(resp.StatusCode)
	if kind != model.FailureNone {
		drain(resp)
		res.Latency = c.now().Sub(start)
		res.Kind = kind
		statusErr := fmt.Errorf("status %d", resp.StatusCode)
		if kind == model.FailureTerminal {
			res.Err = fmt.Errorf("%w: %s: %v", ErrTerminal, u, statusErr)
			return 0, res.Err
		}
		res.Err = statusErr
		var hint time.Duration
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			hint = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		}
		return hint, statusErr
	}

	body, err := readBody(resp, c.maxBodySize)
	_ = resp.Body.Close() //nolint:errcheck // body fully consumed or abandoned
	res.Latency = c.now().Sub(start)
	if err != nil {
		return 0, c.fail(ctx, res, err)
	}

	res.Body = body
	res.Kind = model.FailureNone
	res.Err = nil
	return 0, nil
}

// fail classifies err and records it on res.
func (c *Client) fail(parent context.Context, res *model.FetchResult, err error) error {
	res.Kind = classifyError(parent, err)
	switch res.Kind {
	case model.FailureTerminal:
		res.Err = fmt.Errorf("%w: %v", ErrTerminal, err)
	case model.FailureCanceled:
		res.Err = parent.Err()
	default:
		res.Err = err
	}
	return err
}

// canceled marks res as canceled by the caller.
func canceled(res *model.FetchResult, err error) *model.FetchResult {
	res.Kind = model.FailureCanceled
	res.Err = err
	return res
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
