package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// skippedElements hold no readable page text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
	"nav":      true,
	"footer":   true,
	"svg":      true,
	"iframe":   true,
}

// Text returns the readable text of the page with whitespace collapsed.
// Navigation, footers, scripts and styles are left out.
func Text(d *Document) string {
	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range d.doc.Nodes {
		walk(n)
	}

	return collapse(b.String())
}
