package urlproc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalURL is a URL in normalized form. The zero value is not a valid
// URL; obtain one from Normalize or Resolve.
type CanonicalURL struct {
	scheme string
	host   string // hostname plus non-default port
	path   string // escaped path, never empty
	query  string // encoded, sorted query without the leading "?"
}

// DedupKey is the hex encoded SHA-256 digest of a canonical URL string.
// Two URLs share a key exactly when they normalize to the same string.
type DedupKey string

// Normalize parses raw and returns its canonical form.
// It returns an error wrapping ErrInvalidURL when raw is empty, cannot be
// parsed, or lacks a scheme or host.
func Normalize(raw string) (CanonicalURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CanonicalURL{}, fmt.Errorf("%w: empty string", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return CanonicalURL{}, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	return fromURL(u)
}

// fromURL builds the canonical form of an already parsed URL.
func fromURL(u *url.URL) (CanonicalURL, error) {
	if u.Scheme == "" {
		return CanonicalURL{}, fmt.Errorf("%w: %q has no scheme", ErrInvalidURL, u.String())
	}
	if u.Opaque != "" {
		return CanonicalURL{}, fmt.Errorf("%w: %q is not hierarchical", ErrInvalidURL, u.String())
	}

	scheme := strings.ToLower(u.Scheme)

	hostname := strings.ToLower(u.Hostname())
	hostname = strings.TrimSuffix(hostname, ".")
	hostname = strings.TrimPrefix(hostname, "www.")
	if hostname == "" {
		return CanonicalURL{}, fmt.Errorf("%w: %q has no host", ErrInvalidURL, u.String())
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		// IPv6 literal
		host = "[" + hostname + "]"
	}
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host = net.JoinHostPort(hostname, port)
	}

	return CanonicalURL{
		scheme: scheme,
		host:   host,
		path:   cleanPath(u.EscapedPath()),
		query:  sortQuery(u.RawQuery),
	}, nil
}

// isDefaultPort reports whether port is the implicit port of scheme.
func isDefaultPort(scheme, port string) bool {
	switch scheme {
	case "http":
		return port == "80"
	case "https":
		return port == "443"
	default:
		return false
	}
}

// cleanPath resolves dot segments and strips the trailing slash.
// The root path is kept as "/".
func cleanPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// sortQuery orders parameters by key and, within a key, by value. The
// segments are compared and kept in their raw form, so malformed escapes
// and ";" survive and distinct queries never collapse. Empty segments are
// dropped.
func sortQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	segments := strings.Split(rawQuery, "&")
	kept := segments[:0]
	for _, seg := range segments {
		if seg != "" {
			kept = append(kept, seg)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		ki, vi, _ := strings.Cut(kept[i], "=")
		kj, vj, _ := strings.Cut(kept[j], "=")
		if ki != kj {
			return ki < kj
		}
		return vi < vj
	})
	return strings.Join(kept, "&")
}

// String returns the canonical string form.
func (c CanonicalURL) String() string {
	if c.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString(c.scheme)
	b.WriteString("://")
	b.WriteString(c.host)
	b.WriteString(c.path)
	if c.query != "" {
		b.WriteByte('?')
		b.WriteString(c.query)
	}
	return b.String()
}

// IsZero reports whether c is the zero value.
func (c CanonicalURL) IsZero() bool {
	return c.scheme == "" && c.host == ""
}

// Scheme returns the lowercased scheme.
func (c CanonicalURL) Scheme() string { return c.scheme }

// Host returns the host including a non-default port.
func (c CanonicalURL) Host() string { return c.host }

// Hostname returns the host without any port.
func (c CanonicalURL) Hostname() string {
	if h, _, err := net.SplitHostPort(c.host); err == nil {
		return h
	}
	return strings.Trim(c.host, "[]")
}

// Path returns the escaped path. It is never empty.
func (c CanonicalURL) Path() string { return c.path }

// RequestURI returns the path and query as sent on the request line.
func (c CanonicalURL) RequestURI() string {
	if c.query == "" {
		return c.path
	}
	return c.path + "?" + c.query
}

// URL returns a freshly parsed *url.URL for c.
func (c CanonicalURL) URL() *url.URL {
	u, err := url.Parse(c.String())
	if err != nil {
		return &url.URL{Scheme: c.scheme, Host: c.host, Path: c.path, RawQuery: c.query}
	}
	return u
}

// DedupKey returns the deduplication key of c.
func (c CanonicalURL) DedupKey() DedupKey {
	sum := sha256.Sum256([]byte(c.String()))
	return DedupKey(hex.EncodeToString(sum[:]))
}

// Domain returns the registrable domain of c. See DomainOf.
func (c CanonicalURL) Domain() string {
	return DomainOf(c.Hostname())
}

// DedupKeyOf normalizes raw and returns its deduplication key.
func DedupKeyOf(raw string) (DedupKey, error) {
	c, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	return c.DedupKey(), nil
}

// Resolve resolves href against base and normalizes the result.
// Links that never lead to another document are rejected with
// ErrUnsupportedReference.
func Resolve(base *url.URL, href string) (CanonicalURL, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return CanonicalURL{}, fmt.Errorf("%w: %q", ErrUnsupportedReference, href)
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return CanonicalURL{}, fmt.Errorf("%w: %q", ErrUnsupportedReference, href)
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return CanonicalURL{}, fmt.Errorf("%w: %q: %v", ErrInvalidURL, href, err)
	}
	if base == nil {
		return fromURL(ref)
	}
	return fromURL(base.ResolveReference(ref))
}

// DomainOf returns the registrable domain (eTLD+1) of host, using the
// public suffix list. Hosts without a registrable domain, such as IP
// addresses or "localhost", are returned lowercased and unchanged.
func DomainOf(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.Trim(host, "[]"), ".")
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
