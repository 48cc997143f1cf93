package extract

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Document is a parsed HTML page. It is never modified after Parse returns.
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

// Parse decodes body to UTF-8 using the charset from contentType or the
// document's own meta tags, and parses it. base is the URL the body was
// fetched from; a <base href> element in the page overrides it for link
// resolution.
func Parse(body []byte, contentType string, base *url.URL) (*Document, error) {
	if base == nil {
		return nil, ErrNoBaseURL
	}

	var r io.Reader = bytes.NewReader(body)
	if decoded, err := charset.NewReader(r, contentType); err == nil {
		r = decoded
	} else {
		r = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	resolvedBase := *base
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			resolvedBase = *base.ResolveReference(ref)
		}
	}

	return &Document{doc: doc, base: &resolvedBase}, nil
}

// Base returns a copy of the URL relative links are resolved against.
func (d *Document) Base() *url.URL {
	u := *d.base
	return &u
}

// meta returns the content of the first <meta> whose name or property
// matches one of keys, in the order of keys. Matching ignores case.
func (d *Document) meta(keys ...string) string {
	metas := d.doc.Find("meta[content]")
	for _, key := range keys {
		var found string
		metas.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			name := s.AttrOr("name", s.AttrOr("property", ""))
			if !strings.EqualFold(strings.TrimSpace(name), key) {
				return true
			}
			found = collapse(s.AttrOr("content", ""))
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// collapse trims s and replaces every run of whitespace with one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
