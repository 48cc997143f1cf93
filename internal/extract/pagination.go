package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// paginationWords are anchor texts that navigate a listing.
var paginationWords = map[string]bool{
	"next":            true,
	"next page":       true,
	"previous":        true,
	"previous page":   true,
	"prev":            true,
	"older":           true,
	"older posts":     true,
	"older entries":   true,
	"newer":           true,
	"newer posts":     true,
	"newer entries":   true,
	"more":            true,
	"load more":       true,
	"nästa":           true,
	"nästa sida":      true,
	"föregående":      true,
	"föregående sida": true,
	"äldre":           true,
	"nyare":           true,
	"visa fler":       true,
	"»":               true,
	"«":               true,
	"›":               true,
	"‹":               true,
	">":               true,
	"<":               true,
	">>":              true,
	"<<":              true,
}

// arrows are stripped from anchor text before the vocabulary lookup, so
// "Next »" and "« Föregående" match.
const arrows = "»«›‹<>→←"

// pageNumber matches "page 3", "sida 3" and "3".
var pageNumber = regexp.MustCompile(`^(?:page|sida|p\.?)?\s*\d{1,3}$`)

// paginationPath matches /page/3 and /sida/3 path segments.
var paginationPath = regexp.MustCompile(`/(?:page|sida)/\d+(?:/|$)`)

// paginationParams are query parameters that carry a page or an offset.
var paginationParams = []string{"page", "p", "pg", "paged", "offset", "start", "sida"}

// IsPagination reports whether link navigates a paginated listing. A link
// qualifies by rel="next" or rel="prev", by its anchor text, or by a page
// number in its URL.
func IsPagination(link Link) bool {
	if hasRel(link.Rel, "next", "prev", "previous") {
		return true
	}
	if paginationText(link.Text) {
		return true
	}
	return paginationURL(link)
}

// paginationText checks the anchor text vocabulary.
func paginationText(text string) bool {
	text = strings.ToLower(collapse(text))
	if text == "" {
		return false
	}
	if paginationWords[text] || pageNumber.MatchString(text) {
		return true
	}
	stripped := collapse(strings.Trim(text, arrows+" "))
	return stripped != text && stripped != "" && paginationWords[stripped]
}

// paginationURL checks the path and query of the link target.
func paginationURL(link Link) bool {
	if link.URL.IsZero() {
		return false
	}
	if paginationPath.MatchString(strings.ToLower(link.URL.Path())) {
		return true
	}
	query := link.URL.URL().Query()
	for _, name := range paginationParams {
		for _, v := range query[name] {
			if _, err := strconv.Atoi(v); err == nil {
				return true
			}
		}
	}
	return false
}
