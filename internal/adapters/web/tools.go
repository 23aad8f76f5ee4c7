package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
	"github.com/0xcro3dile/ira-go/internal/pkg/schema"
)

// Tool names exposed to the research loop.
const (
	SearchToolName = "web_search"
	FetchToolName  = "fetch_page"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=The search query"`
}

type fetchArgs struct {
	URL string `json:"url" jsonschema:"required,description=The full URL of the page to read"`
}

var (
	searchParams = schema.MustFor[searchArgs]()
	fetchParams  = schema.MustFor[fetchArgs]()
)

// SearchTool exposes a SearchProvider as web_search.
type SearchTool struct {
	provider ports.SearchProvider
}

// NewSearchTool creates the web_search tool.
func NewSearchTool(provider ports.SearchProvider) *SearchTool {
	return &SearchTool{provider: provider}
}

// Definition describes web_search to the model.
func (t *SearchTool) Definition() entities.ToolDefinition {
	return entities.ToolDefinition{
		Name:        SearchToolName,
		Description: "Search the web with DuckDuckGo. Returns the top results with titles, URLs and snippets.",
		Parameters:  searchParams,
	}
}

// Call runs a search and formats the results as numbered text.
func (t *SearchTool) Call(ctx context.Context, args map[string]any) (string, error) {
	var in searchArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", toolError(searchFailure, err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", toolError(searchFailure, errors.New("missing query"))
	}

	results, err := t.provider.Search(ctx, in.Query)
	if err != nil {
		return "", toolError(searchFailure, err)
	}
	return formatResults(in.Query, results), nil
}

func formatResults(query string, results []entities.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
	}
	return sb.String()
}

// FetchTool exposes a PageFetcher as fetch_page.
type FetchTool struct {
	fetcher ports.PageFetcher
}

// NewFetchTool creates the fetch_page tool.
func NewFetchTool(fetcher ports.PageFetcher) *FetchTool {
	return &FetchTool{fetcher: fetcher}
}

// Definition describes fetch_page to the model.
func (t *FetchTool) Definition() entities.ToolDefinition {
	return entities.ToolDefinition{
		Name:        FetchToolName,
		Description: "Read the text content of a web page. Use it whenever the user gives a specific link.",
		Parameters:  fetchParams,
	}
}

// Call fetches the requested page.
func (t *FetchTool) Call(ctx context.Context, args map[string]any) (string, error) {
	var in fetchArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", toolError(scrapeFailure, err)
	}

	text, err := t.fetcher.Fetch(ctx, in.URL)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			return "", err
		}
		return "", toolError(scrapeFailure, err)
	}
	return text, nil
}

// Tools returns the research tool set backed by the given search and fetch implementations.
func Tools(search ports.SearchProvider, fetcher ports.PageFetcher) []ports.Tool {
	return []ports.Tool{NewSearchTool(search), NewFetchTool(fetcher)}
}

func decodeArgs(args map[string]any, v any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
