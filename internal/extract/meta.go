package extract

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
)

// MaxDescriptionLength is the maximum number of runes in a description
// before the ellipsis.
const MaxDescriptionLength = 300

// ellipsis is appended to shortened descriptions.
const ellipsis = "..."

// Title returns the page title: <title>, then og:title, then the first
// non-empty <h1>.
func Title(d *Document) string {
	if t := collapse(d.doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := d.meta("og:title"); t != "" {
		return t
	}
	return firstText(d.doc.Find("h1"))
}

// Description returns the meta description, then og:description, then the
// first non-empty paragraph, shortened to MaxDescriptionLength runes.
func Description(d *Document) string {
	desc := d.meta("description", "og:description")
	if desc == "" {
		desc = firstText(d.doc.Find("p"))
	}
	return truncate(desc, MaxDescriptionLength)
}

// Keywords returns the comma separated meta keywords, trimmed and
// deduplicated without regard to case. The first spelling wins.
func Keywords(d *Document) []string {
	raw := d.meta("keywords")
	if raw == "" {
		return nil
	}

	fold := cases.Fold()
	seen := make(map[string]struct{})
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		kw := collapse(part)
		if kw == "" {
			continue
		}
		key := fold.String(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keywords = append(keywords, kw)
	}
	return keywords
}

// firstText returns the collapsed text of the first element in s that has
// any.
func firstText(s *goquery.Selection) string {
	var text string
	s.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		text = collapse(el.Text())
		return text == ""
	})
	return text
}

// truncate shortens s to at most limit runes, cutting at the last word
// boundary and appending an ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := limit
	for i := limit; i > limit/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + ellipsis
}
