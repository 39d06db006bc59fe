package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	rowSelector  = cascadia.MustCompile("tr")
	cellSelector = cascadia.MustCompile("td, th")
)

// SelectorError reports a selector that failed to compile.
type SelectorError struct {
	Selector string
	Err      error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q: %v", e.Selector, e.Err)
}

func (e *SelectorError) Unwrap() error { return e.Err }

// Selector is a compiled CSS selector.
type Selector struct {
	source  string
	matcher cascadia.Selector
}

// Compile parses a CSS selector.
func Compile(selector string) (*Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, &SelectorError{Selector: selector, Err: err}
	}
	return &Selector{source: selector, matcher: m}, nil
}

// String returns the selector source.
func (s *Selector) String() string { return s.source }

// Document is a parsed HTML document.
type Document struct {
	doc   *goquery.Document
	nodes int
}

// Parse builds a document from raw HTML. The HTML5 parser recovers from
// malformed markup, so errors are limited to reader failures.
func Parse(raw string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc, nodes: countNodes(doc.Nodes[0]) - 1}, nil
}

// NodeCount returns the number of nodes below the document root, text and
// comment nodes included.
func (d *Document) NodeCount() int { return d.nodes }

// Select returns every node matching s, in document order.
func (d *Document) Select(s *Selector) []Node {
	return wrap(d.doc.FindMatcher(s.matcher))
}

// First returns the first node matching s.
func (d *Document) First(s *Selector) (Node, bool) {
	return first(d.doc.Selection, s)
}

// Node is one element of a document.
type Node struct {
	sel *goquery.Selection
}

// Select returns the descendants of n matching s.
func (n Node) Select(s *Selector) []Node {
	return wrap(n.sel.FindMatcher(s.matcher))
}

// First returns the first descendant of n matching s.
func (n Node) First(s *Selector) (Node, bool) {
	return first(n.sel, s)
}

// Text returns the combined text of n and its descendants, trimmed.
func (n Node) Text() string {
	return strings.TrimSpace(n.sel.Text())
}

// Tag returns the lower-case element name.
func (n Node) Tag() string {
	return goquery.NodeName(n.sel)
}

// Rows returns the tr descendants of n.
func (n Node) Rows() []Node {
	return wrap(n.sel.FindMatcher(rowSelector))
}

// Cells returns the td and th descendants of n in document order.
func (n Node) Cells() []Node {
	return wrap(n.sel.FindMatcher(cellSelector))
}

// IsHeaderRow reports whether n has cells and all of them are th.
func (n Node) IsHeaderRow() bool {
	cells := n.Cells()
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if c.Tag() != "th" {
			return false
		}
	}
	return true
}

func first(sel *goquery.Selection, s *Selector) (Node, bool) {
	matches := sel.FindMatcher(s.matcher)
	if matches.Length() == 0 {
		return Node{}, false
	}
	return Node{sel: matches.First()}, true
}

func wrap(sel *goquery.Selection) []Node {
	nodes := make([]Node, sel.Length())
	for i := range nodes {
		nodes[i] = Node{sel: sel.Eq(i)}
	}
	return nodes
}

func countNodes(n *html.Node) int {
	count := 1
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		count += countNodes(c)
	}
	return count
}
