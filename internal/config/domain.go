package config

import "time"

// DomainConfig holds settings for a single registered domain.
type DomainConfig struct {
	// Priority weights the domain in the frontier's round-robin.
	// Zero means the default weight of 1.
	Priority int `yaml:"priority,omitempty"`

	// Enabled turns the domain off when explicitly set to false.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Seeds are the start URLs of the domain.
	Seeds []string `yaml:"seeds,omitempty"`

	// CrawlDelay overrides the global crawl delay for this domain.
	// robots.txt may still ask for a longer delay.
	CrawlDelay time.Duration `yaml:"crawlDelay,omitempty"`

	// RateLimitRequests and RateLimitWindow override the global request
	// budget per host of this domain.
	RateLimitRequests int           `yaml:"rateLimitRequests,omitempty"`
	RateLimitWindow   time.Duration `yaml:"rateLimitWindow,omitempty"`

	// Depth overrides the global maximum depth. Zero means the global value.
	Depth int `yaml:"depth,omitempty"`

	// Headers are extra HTTP headers sent to this domain.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// IsEnabled reports whether the domain should be crawled.
// A missing Enabled field means enabled.
func (dc DomainConfig) IsEnabled() bool {
	return dc.Enabled == nil || *dc.Enabled
}

// Settings are global crawler settings that may be set in the
// configuration file. Zero values keep the current setting.
type Settings struct {
	UserAgent           string        `yaml:"userAgent,omitempty"`
	MaxDepth            int           `yaml:"maxDepth,omitempty"`
	MaxPagesPerDomain   int           `yaml:"maxPagesPerDomain,omitempty"`
	Workers             int           `yaml:"workers,omitempty"`
	RequestTimeout      time.Duration `yaml:"requestTimeout,omitempty"`
	MaxRetries          int           `yaml:"maxRetries,omitempty"`
	CrawlDelay          time.Duration `yaml:"crawlDelay,omitempty"`
	RateLimitRequests   int           `yaml:"rateLimitRequests,omitempty"`
	RateLimitWindow     time.Duration `yaml:"rateLimitWindow,omitempty"`
	RobotsFailurePolicy string        `yaml:"robotsFailurePolicy,omitempty"`
	FailureThreshold    int           `yaml:"failureThreshold,omitempty"`
	SuspendCooldown     time.Duration `yaml:"suspendCooldown,omitempty"`
	RecrawlInterval     time.Duration `yaml:"recrawlInterval,omitempty"`
	MaxConsecutive      int           `yaml:"maxConsecutive,omitempty"`
	ProxyAddress        string        `yaml:"proxy,omitempty"`
	RedisAddress        string        `yaml:"redis,omitempty"`
}

// File represents the structure of the .politecrawler.yaml configuration
// file.
type File struct {
	// Crawler holds global settings.
	Crawler Settings `yaml:"crawler,omitempty"`

	// Defaults contains domain configuration applied to every domain
	// unless overridden in the domain-specific configuration.
	Defaults DomainConfig `yaml:"defaults,omitempty"`

	// Domains maps registered domain names (e.g. "example.se") to their
	// configuration.
	Domains map[string]DomainConfig `yaml:"domains,omitempty"`
}

// GetDomainConfig returns the configuration for a domain.
// It merges the domain-specific configuration with defaults.
func (cf *File) GetDomainConfig(domain string) DomainConfig {
	result := cf.Defaults

	dc, ok := cf.Domains[domain]
	if !ok {
		return result
	}
	if dc.Priority != 0 {
		result.Priority = dc.Priority
	}
	if dc.Enabled != nil {
		result.Enabled = dc.Enabled
	}
	if len(dc.Seeds) > 0 {
		result.Seeds = dc.Seeds
	}
	if dc.CrawlDelay != 0 {
		result.CrawlDelay = dc.CrawlDelay
	}
	if dc.RateLimitRequests != 0 {
		result.RateLimitRequests = dc.RateLimitRequests
	}
	if dc.RateLimitWindow != 0 {
		result.RateLimitWindow = dc.RateLimitWindow
	}
	if dc.Depth != 0 {
		result.Depth = dc.Depth
	}
	if len(dc.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(dc.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range dc.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if len(dc.IgnorePatterns) > 0 {
		result.IgnorePatterns = dc.IgnorePatterns
	}
	if len(dc.FollowPatterns) > 0 {
		result.FollowPatterns = dc.FollowPatterns
	}
	return result
}

// Apply copies the non-zero global settings of the file into c.
func (cf *File) Apply(c *Config) {
	s := cf.Crawler
	if s.UserAgent != "" {
		c.UserAgent = s.UserAgent
	}
	if s.MaxDepth != 0 {
		c.MaxDepth = s.MaxDepth
	}
	if s.MaxPagesPerDomain != 0 {
		c.MaxPagesPerDomain = s.MaxPagesPerDomain
	}
	if s.Workers != 0 {
		c.Workers = s.Workers
	}
	if s.RequestTimeout != 0 {
		c.RequestTimeout = s.RequestTimeout
	}
	if s.MaxRetries != 0 {
		c.MaxRetries = s.MaxRetries
	}
	if s.CrawlDelay != 0 {
		c.CrawlDelay = s.CrawlDelay
	}
	if s.RateLimitRequests != 0 {
		c.RateLimitRequests = s.RateLimitRequests
	}
	if s.RateLimitWindow != 0 {
		c.RateLimitWindow = s.RateLimitWindow
	}
	if s.RobotsFailurePolicy != "" {
		c.RobotsFailurePolicy = s.RobotsFailurePolicy
	}
	if s.FailureThreshold != 0 {
		c.FailureThreshold = s.FailureThreshold
	}
	if s.SuspendCooldown != 0 {
		c.SuspendCooldown = s.SuspendCooldown
	}
	if s.RecrawlInterval != 0 {
		c.RecrawlInterval = s.RecrawlInterval
	}
	if s.MaxConsecutive != 0 {
		c.MaxConsecutive = s.MaxConsecutive
	}
	if s.ProxyAddress != "" {
		c.ProxyAddress = s.ProxyAddress
	}
	if s.RedisAddress != "" {
		c.RedisAddress = s.RedisAddress
	}
	c.Domains = cf
}
