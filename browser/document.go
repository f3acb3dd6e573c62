package browser

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// Document is a parsed, static HTML document that locators can be
// evaluated against without a browser.
type Document struct {
	root *html.Node
	doc  *goquery.Document
}

// ParseDocument parses an HTML document.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root, doc: goquery.NewDocumentFromNode(root)}, nil
}

// Locate returns the elements matching loc in document order.
func (d *Document) Locate(loc Locator) ([]Element, error) {
	var nodes []*html.Node
	switch loc.Kind {
	case XPath:
		expr, err := xpath.Compile(loc.Expr)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath locator %q: %w", loc.Expr, err)
		}
		for _, n := range htmlquery.QuerySelectorAll(d.root, expr) {
			if n.Type == html.ElementNode {
				nodes = append(nodes, n)
			}
		}
	case CSS:
		sel, err := cascadia.Compile(loc.Expr)
		if err != nil {
			return nil, fmt.Errorf("invalid css locator %q: %w", loc.Expr, err)
		}
		nodes = d.doc.FindMatcher(sel).Nodes
	default:
		return nil, fmt.Errorf("unknown locator kind %d", loc.Kind)
	}

	elems := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, staticElement{sel: d.doc.FindNodes(n)})
	}
	return elems, nil
}

// staticElement adapts a single goquery node to Element.
type staticElement struct {
	sel *goquery.Selection
}

func (e staticElement) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

// TextContent concatenates every descendant text node, as the DOM does.
func (e staticElement) TextContent() (string, error) {
	return e.sel.Text(), nil
}
