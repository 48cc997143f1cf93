package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/nao1215/politecrawler/internal/model"
)

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(code int) model.FailureKind {
	switch {
	case code >= 200 && code < 300:
		return model.FailureNone
	case code == http.StatusTooManyRequests:
		return model.FailureTransient
	case code >= 500:
		return model.FailureTransient
	default:
		return model.FailureTerminal
	}
}

// classifyError maps a transport error to a failure kind. parent is the
// caller's context; its cancellation is reported as FailureCanceled even
// though the attempt context wraps it.
func classifyError(parent context.Context, err error) model.FailureKind {
	if parent.Err() != nil {
		return model.FailureCanceled
	}
	if errors.Is(err, ErrBodyTooLarge) {
		return model.FailureTerminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FailureTransient
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return model.FailureTransient
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return model.FailureTerminal
		}
		return model.FailureTransient
	}

	var verifyErr *tls.CertificateVerificationError
	var certErr x509.CertificateInvalidError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &verifyErr) || errors.As(err, &certErr) ||
		errors.As(err, &unknownAuth) || errors.As(err, &hostErr) {
		return model.FailureTerminal
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return model.FailureTransient
	}
	return model.FailureTerminal
}

// parseRetryAfter reads a Retry-After header given either in seconds or as
// an HTTP date. It returns zero when the header is absent or invalid.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns the wait before retry number n (1-based): base*2^(n-1),
// capped at maxDelay. A server-supplied retryAfter raises the wait but is
// capped the same way.
func backoff(n int, base, maxDelay, retryAfter time.Duration) time.Duration {
	d := base
	for i := 1; i < n && d < maxDelay; i++ {
		d *= 2
	}
	if retryAfter > d {
		d = retryAfter
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}
