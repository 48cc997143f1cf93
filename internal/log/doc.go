// Package log provides secure logging built on top of the standard slog
// package.
//
// The SecureHandler masks credentials before they reach the log output:
//   - HTTP headers such as Authorization, Cookie and Set-Cookie
//   - values that look like bearer, basic or JWT tokens
//   - userinfo and credential query parameters inside logged URLs
//
// Crawled URLs are logged frequently, and seed lists or redirects may carry
// credentials, so URL redaction is applied to every string attribute that
// contains "://".
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("fetched", "url", "https://user:pw@example.se/?token=x")
//	// url=https://example.se/?token=***REDACTED***
//	slog.SetDefault(logger)
package log
