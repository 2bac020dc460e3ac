// Package surface provides the front ends a launcher run hands control to.
//
// A surface has two operations: Navigate to the worker URL once it is ready,
// and Render a self-contained HTML page (the splash, or the diagnostic when
// the worker never came up). Surfaces without an HTML engine reduce the page
// to text with ParsePage.
package surface

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is the readable content of a rendered HTML page.
type Page struct {
	Title      string
	Heading    string
	Paragraphs []string
	Diag       string // contents of the #diag block, if any
}

// IsDiagnostic reports whether the page carries a diagnostic block.
func (p Page) IsDiagnostic() bool {
	return p.Diag != ""
}

// ParsePage extracts the title, first heading, paragraphs and diagnostic
// block from src. Scripts and styles are ignored.
func ParsePage(src string) Page {
	var page Page
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return page
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.Title:
				page.Title = collapse(textOf(n))
				return
			case atom.H1, atom.H2:
				if page.Heading == "" {
					page.Heading = collapse(textOf(n))
				}
				return
			case atom.P:
				if attr(n, "hidden") {
					return
				}
				if t := collapse(textOf(n)); t != "" {
					page.Paragraphs = append(page.Paragraphs, t)
				}
				return
			case atom.Pre:
				if id, _ := attrValue(n, "id"); id == "diag" {
					page.Diag = strings.TrimRight(textOf(n), "\n")
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return page
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func attr(n *html.Node, key string) bool {
	_, ok := attrValue(n, key)
	return ok
}

func attrValue(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
