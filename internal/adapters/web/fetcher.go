package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Fetch defaults. DefaultMaxChars is also the upper bound on returned text.
const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxChars     = 8000
	maxPageBody         = 5 << 20
)

// Strategy retrieves readable text for one kind of URL.
type Strategy interface {
	Fetch(ctx context.Context, u *url.URL) (string, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, u *url.URL) (string, error)

// Fetch calls f(ctx, u).
func (f StrategyFunc) Fetch(ctx context.Context, u *url.URL) (string, error) {
	return f(ctx, u)
}

type route struct {
	name    string
	match   func(*url.URL) bool
	failure string
	fetch   Strategy
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Timeout          time.Duration
	MaxChars         int
	LeetCodeEndpoint string
}

// Fetcher implements ports.PageFetcher. The first route whose pattern matches
// the URL handles it; the generic HTML scraper is always last.
type Fetcher struct {
	routes []route
	logger *zap.Logger
}

// NewFetcher builds the default strategy table: LeetCode profiles through
// GraphQL, everything else through HTML scraping.
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.MaxChars <= 0 || cfg.MaxChars > DefaultMaxChars {
		cfg.MaxChars = DefaultMaxChars
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &http.Client{Timeout: cfg.Timeout}
	return &Fetcher{
		routes: []route{
			{
				name:    "leetcode",
				match:   isLeetCodeProfile,
				failure: leetcodeFailure,
				fetch:   NewLeetCodeStrategy(client, cfg.LeetCodeEndpoint),
			},
			{
				name:    "html",
				match:   func(*url.URL) bool { return true },
				failure: scrapeFailure,
				fetch:   NewHTMLStrategy(client, cfg.MaxChars),
			},
		},
		logger: logger,
	}
}

// Fetch returns the page text. Failures are *ToolError values carrying the
// strategy's observation prefix.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := parseTarget(rawURL)
	if err != nil {
		return "", toolError(scrapeFailure, err)
	}

	for _, r := range f.routes {
		if !r.match(u) {
			continue
		}
		f.logger.Debug("fetching page", zap.String("url", u.String()), zap.String("strategy", r.name))
		text, err := r.fetch.Fetch(ctx, u)
		if err != nil {
			return "", toolError(r.failure, err)
		}
		return text, nil
	}
	return "", toolError(scrapeFailure, fmt.Errorf("no strategy for %s", u))
}

// parseTarget accepts bare hosts such as "example.com/page" as https URLs.
func parseTarget(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("URL is empty")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL %q has no host", rawURL)
	}
	return u, nil
}

// HTMLStrategy downloads a page and reduces it to plain text.
type HTMLStrategy struct {
	client   *http.Client
	maxChars int
}

// NewHTMLStrategy creates an HTML strategy that keeps at most maxChars runes.
func NewHTMLStrategy(client *http.Client, maxChars int) *HTMLStrategy {
	return &HTMLStrategy{client: client, maxChars: maxChars}
}

// Fetch downloads u and returns its readable text. Non-2xx responses fail.
func (s *HTMLStrategy) Fetch(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	setBrowserHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), u)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBody))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	return truncateRunes(pageText(doc), s.maxChars), nil
}

// pageText joins every text node outside script and style, then keeps one
// phrase per line: lines are trimmed, split on double spaces, and blanks dropped.
func pageText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var phrases []string
	for _, line := range strings.Split(sb.String(), "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				phrases = append(phrases, phrase)
			}
		}
	}
	return strings.Join(phrases, "\n")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
