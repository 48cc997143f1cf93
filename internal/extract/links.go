package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/politecrawler/internal/urlproc"
)

// Link is an outbound link found on a page.
type Link struct {
	// URL is the resolved, canonical target.
	URL urlproc.CanonicalURL

	// Text is the anchor text with whitespace collapsed. For anchors that
	// only wrap an image, the image alt text is used.
	Text string

	// Rel is the lowercased rel attribute.
	Rel string

	// Pagination reports whether the link navigates a paginated listing.
	Pagination bool
}

// Links returns the crawlable links of the page in document order.
// Hrefs are resolved against the document base and normalized; links that
// are not http(s), point at binary resources or repeat an earlier target
// are dropped. <link rel="next|prev"> elements in the head are included as
// pagination links.
func Links(d *Document) []Link {
	links, _ := collectLinks(d)
	return links
}

// collectLinks returns the links of the page and the number of hrefs that
// were malformed.
func collectLinks(d *Document) ([]Link, int) {
	var links []Link
	invalid := 0
	index := make(map[urlproc.DedupKey]int)

	add := func(s *goquery.Selection, text string) {
		href, _ := s.Attr("href")
		target, err := urlproc.Resolve(d.base, href)
		if errors.Is(err, urlproc.ErrInvalidURL) {
			invalid++
		}
		if err != nil || !target.Crawlable() {
			return
		}
		link := Link{
			URL:  target,
			Text: text,
			Rel:  strings.ToLower(collapse(s.AttrOr("rel", ""))),
		}
		link.Pagination = IsPagination(link)

		key := target.DedupKey()
		if i, dup := index[key]; dup {
			if link.Pagination {
				links[i].Pagination = true
			}
			return
		}
		index[key] = len(links)
		links = append(links, link)
	}

	d.doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		text := collapse(s.Text())
		if text == "" {
			text = collapse(s.Find("img[alt]").First().AttrOr("alt", ""))
		}
		add(s, text)
	})
	d.doc.Find("link[href][rel]").Each(func(_ int, s *goquery.Selection) {
		if hasRel(strings.ToLower(s.AttrOr("rel", "")), "next", "prev", "previous") {
			add(s, "")
		}
	})

	return links, invalid
}

// hasRel reports whether the space separated rel value contains one of
// values.
func hasRel(rel string, values ...string) bool {
	for _, token := range strings.Fields(rel) {
		for _, v := range values {
			if token == v {
				return true
			}
		}
	}
	return false
}
