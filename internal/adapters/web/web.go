// Package web implements the research tools: DuckDuckGo search and a page
// fetcher that picks a retrieval strategy by URL.
package web

import (
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

// Observation prefixes handed back to the model when a tool fails.
const (
	searchFailure   = "Failed to search the web"
	scrapeFailure   = "Failed to scrape the website"
	leetcodeFailure = "Failed to fetch LeetCode profile"
)

// ToolError is a tool failure whose message is the model-facing observation.
// It matches entities.ErrToolFailure with errors.Is.
type ToolError struct {
	Prefix string
	Err    error
}

// Error returns the observation text shown to the model.
func (e *ToolError) Error() string {
	return e.Prefix + ": " + e.Err.Error()
}

// Unwrap exposes ErrToolFailure and the cause.
func (e *ToolError) Unwrap() []error {
	return []error{entities.ErrToolFailure, e.Err}
}

func toolError(prefix string, err error) error {
	return &ToolError{Prefix: prefix, Err: err}
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// textContent returns the node's text with runs of whitespace collapsed.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
