package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "politecrawler"

	// DefaultUserAgent identifies the crawler in HTTP requests and is the
	// agent name matched against robots.txt groups.
	DefaultUserAgent = "PoliteCrawler/1.0 (+https://github.com/nao1215/politecrawler)"

	// DefaultMaxDepth is the maximum link distance from a seed URL.
	DefaultMaxDepth = 5

	// DefaultMaxPagesPerDomain caps how many URLs a single domain may admit
	// into the frontier during one session.
	DefaultMaxPagesPerDomain = 1000

	// DefaultWorkers is the number of concurrent fetches.
	DefaultWorkers = 8

	// DefaultRequestTimeout bounds a single HTTP attempt.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt
	// for transient failures.
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the first backoff interval. Each retry
	// doubles it up to DefaultRetryMaxDelay.
	DefaultRetryBaseDelay = 500 * time.Millisecond

	// DefaultRetryMaxDelay caps the exponential backoff.
	DefaultRetryMaxDelay = 30 * time.Second

	// DefaultCrawlDelay is the minimum delay between two requests to the
	// same host when robots.txt does not ask for more.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultRobotsTTL is how long a fetched robots.txt stays cached.
	DefaultRobotsTTL = 24 * time.Hour

	// DefaultRobotsFailureTTL is how long an unreachable robots.txt result
	// stays cached before it is fetched again.
	DefaultRobotsFailureTTL = 10 * time.Minute

	// DefaultRobotsFailurePolicy is applied when robots.txt cannot be
	// retrieved.
	DefaultRobotsFailurePolicy = RobotsPolicyAllow

	// DefaultFailureThreshold is the number of consecutive failures after
	// which a domain is suspended.
	DefaultFailureThreshold = 5

	// DefaultSuspendCooldown is how long a suspended domain waits before it
	// is automatically resumed. Zero means only a manual reset resumes it.
	DefaultSuspendCooldown = 15 * time.Minute

	// DefaultRecrawlInterval is the minimum age of a page before it is
	// fetched again.
	DefaultRecrawlInterval = 7 * 24 * time.Hour

	// DefaultRecrawlCheckInterval is how often the core asks the scheduler
	// for pages due for a recrawl.
	DefaultRecrawlCheckInterval = 1 * time.Hour

	// DefaultMaxConsecutive caps back-to-back dequeues from one domain
	// while other domains are waiting.
	DefaultMaxConsecutive = 5

	// DefaultStopTimeout is how long Stop waits for in-flight fetches.
	DefaultStopTimeout = 30 * time.Second

	// DefaultMaxBodySize limits the size of a decoded response body.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultPaginationBoost is added to the priority of pagination links
	// so listings are walked before deep article links.
	DefaultPaginationBoost = 0.5
)

// Robots failure policies.
const (
	// RobotsPolicyAllow crawls a host whose robots.txt is unreachable.
	RobotsPolicyAllow = "allow"

	// RobotsPolicyDeny skips a host whose robots.txt is unreachable until
	// the failure entry expires.
	RobotsPolicyDeny = "deny"
)

// Config holds all configuration options of the crawler.
// It is populated from defaults, the YAML configuration file and CLI flags,
// in that order, and passed to crawler.New.
type Config struct {
	// UserAgent is sent with every request and matched against robots.txt.
	UserAgent string

	// MaxDepth is the maximum link distance from a seed URL. It must be
	// positive: links found on a seed are at depth 1.
	MaxDepth int

	// MaxPagesPerDomain caps URLs admitted per domain. Zero disables the cap.
	MaxPagesPerDomain int

	// Workers is the number of concurrent fetches.
	Workers int

	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration

	// MaxRetries is the retry budget for transient failures.
	MaxRetries int

	// RetryBaseDelay is the first backoff interval.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the exponential backoff.
	RetryMaxDelay time.Duration

	// CrawlDelay is the minimum delay between two requests to one host.
	CrawlDelay time.Duration

	// RateLimitRequests and RateLimitWindow allow at most that many
	// requests to one host per window, on top of CrawlDelay. Zero
	// requests disables the limit.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// RobotsTTL is how long a fetched robots.txt is cached.
	RobotsTTL time.Duration

	// RobotsFailureTTL is how long an unreachable robots.txt is cached.
	RobotsFailureTTL time.Duration

	// RobotsFailurePolicy is RobotsPolicyAllow or RobotsPolicyDeny.
	RobotsFailurePolicy string

	// FailureThreshold is the consecutive failure count that suspends a
	// domain.
	FailureThreshold int

	// SuspendCooldown is the automatic resume delay of a suspended domain.
	// Zero disables automatic resume.
	SuspendCooldown time.Duration

	// RecrawlInterval is the minimum age of a page before a recrawl.
	RecrawlInterval time.Duration

	// RecrawlCheckInterval is how often due pages are rescheduled.
	// Zero disables recrawling within a session.
	RecrawlCheckInterval time.Duration

	// MaxConsecutive caps back-to-back dequeues from one domain.
	MaxConsecutive int

	// StopTimeout is how long Stop waits for in-flight fetches.
	StopTimeout time.Duration

	// MaxBodySize limits the decoded response body in bytes.
	MaxBodySize int64

	// PaginationBoost is added to the priority of pagination links.
	PaginationBoost float64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// RedisAddress, when set, stores content hashes in Redis instead of
	// the SQLite database.
	RedisAddress string

	// DBDir is the directory of the SQLite page store.
	// Defaults to the XDG data directory.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit path to the configuration file.
	ConfigFilePath string

	// Domains holds per-domain settings from the configuration file.
	Domains *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		UserAgent:            DefaultUserAgent,
		MaxDepth:             DefaultMaxDepth,
		MaxPagesPerDomain:    DefaultMaxPagesPerDomain,
		Workers:              DefaultWorkers,
		RequestTimeout:       DefaultRequestTimeout,
		MaxRetries:           DefaultMaxRetries,
		RetryBaseDelay:       DefaultRetryBaseDelay,
		RetryMaxDelay:        DefaultRetryMaxDelay,
		CrawlDelay:           DefaultCrawlDelay,
		RobotsTTL:            DefaultRobotsTTL,
		RobotsFailureTTL:     DefaultRobotsFailureTTL,
		RobotsFailurePolicy:  DefaultRobotsFailurePolicy,
		FailureThreshold:     DefaultFailureThreshold,
		SuspendCooldown:      DefaultSuspendCooldown,
		RecrawlInterval:      DefaultRecrawlInterval,
		RecrawlCheckInterval: DefaultRecrawlCheckInterval,
		MaxConsecutive:       DefaultMaxConsecutive,
		StopTimeout:          DefaultStopTimeout,
		MaxBodySize:          DefaultMaxBodySize,
		PaginationBoost:      DefaultPaginationBoost,
		DBDir:                XDGDataDir(),
		Domains:              &File{Domains: make(map[string]DomainConfig)},
	}
}

// XDGDataDir returns the XDG data directory for the crawler.
// On Linux: ~/.local/share/politecrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the crawler.
// On Linux: ~/.config/politecrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return ErrEmptyUserAgent
	}
	if c.MaxDepth <= 0 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPagesPerDomain < 0 {
		return ErrInvalidMaxPages
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if c.RetryBaseDelay < 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return ErrInvalidBackoff
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if !validRateLimit(c.RateLimitRequests, c.RateLimitWindow) {
		return ErrInvalidRateLimit
	}
	if c.RobotsTTL <= 0 || c.RobotsFailureTTL < 0 {
		return ErrInvalidRobotsTTL
	}
	if c.RobotsFailurePolicy != RobotsPolicyAllow && c.RobotsFailurePolicy != RobotsPolicyDeny {
		return ErrInvalidRobotsPolicy
	}
	if c.FailureThreshold <= 0 {
		return ErrInvalidFailureThreshold
	}
	if c.SuspendCooldown < 0 {
		return ErrInvalidCooldown
	}
	if c.RecrawlInterval <= 0 || c.RecrawlCheckInterval < 0 {
		return ErrInvalidRecrawlInterval
	}
	if c.MaxConsecutive <= 0 {
		return ErrInvalidFairness
	}
	if c.StopTimeout < 0 {
		return ErrInvalidStopTimeout
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Domains != nil {
		for name, dc := range c.Domains.Domains {
			if dc.Priority < 0 || dc.CrawlDelay < 0 || !validRateLimit(dc.RateLimitRequests, dc.RateLimitWindow) {
				return &DomainError{Domain: name, Err: ErrInvalidDomainConfig}
			}
		}
	}
	return nil
}

// validRateLimit reports whether requests per window is a usable limit.
// Zero requests means no limit.
func validRateLimit(requests int, window time.Duration) bool {
	if requests < 0 || window < 0 {
		return false
	}
	return requests == 0 || window > 0
}
