package htmlutil

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Node is the query surface extraction code is written against, it keeps
// parsers independent of the html library underneath.
type Node interface {
	// FindAll returns the descendants matching a css selector in document order.
	FindAll(selector string) []Node
	// First returns the first descendant matching selector.
	First(selector string) (Node, bool)
	// Attr returns an attribute value and whether the attribute is present.
	Attr(name string) (string, bool)
	// Text returns the concatenated text content.
	Text() string
	// Tag returns the lowercase element name, "" for the document root.
	Tag() string
	// Next returns the following element sibling.
	Next() (Node, bool)
	// Closest returns the nearest ancestor (or self) matching selector.
	Closest(selector string) (Node, bool)
}

type node struct {
	sel *goquery.Selection
}

// Parse reads an html document.
func Parse(r io.Reader) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return node{sel: doc.Selection}, nil
}

func ParseBytes(body []byte) (Node, error) {
	return Parse(bytes.NewBuffer(body))
}

func ParseString(body string) (Node, error) {
	return Parse(strings.NewReader(body))
}

func (n node) FindAll(selector string) []Node {
	found := n.sel.Find(selector)
	out := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, node{sel: s})
	})
	return out
}

func (n node) First(selector string) (Node, bool) {
	found := n.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return node{sel: found}, true
}

func (n node) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n node) Text() string {
	var text strings.Builder
	for _, el := range n.sel.Nodes {
		text.WriteString(GetText(el))
	}
	return text.String()
}

func (n node) Tag() string {
	if len(n.sel.Nodes) == 0 {
		return ""
	}
	name := goquery.NodeName(n.sel)
	if strings.HasPrefix(name, "#") {
		return ""
	}
	return strings.ToLower(name)
}

func (n node) Next() (Node, bool) {
	next := n.sel.Next()
	if next.Length() == 0 {
		return nil, false
	}
	return node{sel: next}, true
}

func (n node) Closest(selector string) (Node, bool) {
	found := n.sel.Closest(selector)
	if found.Length() == 0 {
		return nil, false
	}
	return node{sel: found.First()}, true
}
