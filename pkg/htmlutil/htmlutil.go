package htmlutil

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// GetText concatenates every text node under node, whitespace untouched.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// NormalizeSpace collapses whitespace runs (including non-breaking spaces)
// into a single space and trims the ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AbsUrl resolves href against base. It reports false when either side
// cannot be parsed or the result is not an absolute http(s) url.
func AbsUrl(base, href string) (string, bool) {
	baseUrl, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	resolved := baseUrl.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host == "" {
		return "", false
	}
	return resolved.String(), true
}

type Anchor struct {
	Name string
	Href string
	// Url is Href resolved against the page url, nil when it cannot be resolved.
	Url *url.URL
}

// GetAnchors collects every a[href] under root with its normalized text.
func GetAnchors(base string, root Node) []Anchor {
	anchors := []Anchor{}
	for _, a := range root.FindAll("a[href]") {
		href, _ := a.Attr("href")
		anchor := Anchor{
			Name: NormalizeSpace(a.Text()),
			Href: href,
		}
		if resolved, ok := AbsUrl(base, href); ok {
			anchor.Url, _ = url.Parse(resolved)
		}
		anchors = append(anchors, anchor)
	}
	return anchors
}
