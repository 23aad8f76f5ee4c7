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

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

const (
	defaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"
	maxSearchResults     = 5
	searchCacheTTL       = 10 * time.Minute
	maxSearchBody        = 1 << 20
)

// DuckDuckGo implements ports.SearchProvider against the DuckDuckGo HTML endpoint.
type DuckDuckGo struct {
	client  *http.Client
	baseURL string
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewDuckDuckGo creates a searcher. An empty baseURL uses the public endpoint.
func NewDuckDuckGo(baseURL string, timeout time.Duration, logger *zap.Logger) *DuckDuckGo {
	if baseURL == "" {
		baseURL = defaultDuckDuckGoURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuckDuckGo{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		cache:   cache.New(searchCacheTTL, 2*searchCacheTTL),
		logger:  logger,
	}
}

// Search returns up to five results for the query. Non-empty result sets
// are cached for ten minutes.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]entities.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is empty")
	}

	key := strings.ToLower(query)
	if cached, ok := d.cache.Get(key); ok {
		d.logger.Debug("search cache hit", zap.String("query", query))
		return cached.([]entities.SearchResult), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	results, err := parseDuckDuckGoResults(string(body), maxSearchResults)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("web search completed", zap.String("query", query), zap.Int("results", len(results)))
	if len(results) > 0 {
		d.cache.SetDefault(key, results)
	}
	return results, nil
}

// parseDuckDuckGoResults walks the page in document order. Each result__a
// link starts a result; the following result__snippet fills its snippet.
func parseDuckDuckGoResults(page string, limit int) ([]entities.SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var results []entities.SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				link := unwrapRedirect(attr(n, "href"))
				if title := textContent(n); link != "" && title != "" && !isAd(link) {
					results = append(results, entities.SearchResult{Title: title, URL: link})
				}
				return
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = textContent(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// unwrapRedirect turns //duckduckgo.com/l/?uddg=<target>&rut=... into the target.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && u.Path == "/l/" {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

func isAd(link string) bool {
	return strings.Contains(link, "duckduckgo.com/y.js")
}
