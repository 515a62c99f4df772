package scrape

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/smallbiznis/vendorhub/internal/pricingmode"
)

// Parse extracts the title, meta description and visible text of an HTML
// document.
func Parse(r io.Reader) (pricingmode.ScrapedContent, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return pricingmode.ScrapedContent{}, err
	}

	var (
		title       string
		description string
		text        []string
	)

	var walk func(n *html.Node, hidden bool)
	walk = func(n *html.Node, hidden bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Title:
				if title == "" {
					title = collapse(nodeText(n))
				}
				return
			case atom.Meta:
				if description == "" && isDescriptionMeta(n) {
					description = collapse(attr(n, "content"))
				}
				return
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg, atom.Iframe:
				return
			case atom.Head:
				hidden = true
			}
			if _, ok := attrLookup(n, "hidden"); ok {
				return
			}
			if strings.EqualFold(attr(n, "aria-hidden"), "true") {
				return
			}
		case html.TextNode:
			if !hidden {
				if s := collapse(n.Data); s != "" {
					text = append(text, s)
				}
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, hidden)
		}
	}
	walk(doc, false)

	return pricingmode.ScrapedContent{
		Title:       title,
		Description: description,
		Content:     strings.Join(text, " "),
	}, nil
}

func isDescriptionMeta(n *html.Node) bool {
	name := strings.ToLower(strings.TrimSpace(attr(n, "name")))
	property := strings.ToLower(strings.TrimSpace(attr(n, "property")))
	return name == "description" || property == "og:description"
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
		}
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	v, _ := attrLookup(n, key)
	return v
}

func attrLookup(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
