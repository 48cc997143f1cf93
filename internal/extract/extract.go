package extract

// Content is everything the crawler keeps from one page.
type Content struct {
	Title       string
	Description string
	Keywords    []string
	Text        string
	Links       []Link

	// InvalidLinks counts hrefs that could not be parsed as URLs.
	InvalidLinks int
}

// Extract runs the extraction pipeline on d.
func Extract(d *Document) Content {
	links, invalid := collectLinks(d)
	return Content{
		Title:        Title(d),
		Description:  Description(d),
		Keywords:     Keywords(d),
		Text:         Text(d),
		Links:        links,
		InvalidLinks: invalid,
	}
}

// LinkURLs returns the canonical strings of all links, and separately those
// of pagination links.
func (c Content) LinkURLs() (all, pagination []string) {
	for _, l := range c.Links {
		s := l.URL.String()
		all = append(all, s)
		if l.Pagination {
			pagination = append(pagination, s)
		}
	}
	return all, pagination
}
