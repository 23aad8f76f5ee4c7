package web

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

type stubSearch struct {
	results []entities.SearchResult
	err     error
	query   string
}

func (s *stubSearch) Search(ctx context.Context, query string) ([]entities.SearchResult, error) {
	s.query = query
	return s.results, s.err
}

type stubFetcher struct {
	text string
	err  error
}

func (f stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.text, f.err
}

func TestSearchTool_FormatsResults(t *testing.T) {
	search := &stubSearch{results: []entities.SearchResult{
		{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"},
		{Title: "Tour", URL: "https://go.dev/tour"},
	}}
	tool := NewSearchTool(search)

	out, err := tool.Call(context.Background(), map[string]any{"query": "golang"})
	require.NoError(t, err)
	assert.Equal(t, "golang", search.query)
	assert.Equal(t, "1. Go\n   https://go.dev\n   The Go language\n\n2. Tour\n   https://go.dev/tour\n", out)

	search.results = nil
	out, err = tool.Call(context.Background(), map[string]any{"query": "zzqx"})
	require.NoError(t, err)
	assert.Equal(t, `No results found for "zzqx".`, out)
}

func TestSearchTool_Failures(t *testing.T) {
	tool := NewSearchTool(&stubSearch{err: errors.New("connection reset")})

	_, err := tool.Call(context.Background(), map[string]any{"query": "golang"})
	assert.ErrorIs(t, err, entities.ErrToolFailure)
	assert.EqualError(t, err, "Failed to search the web: connection reset")

	_, err = tool.Call(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, entities.ErrToolFailure)

	_, err = tool.Call(context.Background(), map[string]any{"query": 42})
	assert.ErrorIs(t, err, entities.ErrToolFailure)
}

func TestFetchTool(t *testing.T) {
	out, err := NewFetchTool(stubFetcher{text: "page text"}).Call(context.Background(), map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "page text", out)

	_, err = NewFetchTool(stubFetcher{err: errors.New("timeout")}).Call(context.Background(), map[string]any{"url": "https://example.com"})
	assert.EqualError(t, err, "Failed to scrape the website: timeout")
	assert.ErrorIs(t, err, entities.ErrToolFailure)

	leet := toolError(leetcodeFailure, errors.New("down"))
	_, err = NewFetchTool(stubFetcher{err: leet}).Call(context.Background(), map[string]any{"url": "https://leetcode.com/u/x"})
	assert.EqualError(t, err, "Failed to fetch LeetCode profile: down")
}

func TestTools_Definitions(t *testing.T) {
	tools := Tools(&stubSearch{}, stubFetcher{})
	require.Len(t, tools, 2)

	search := tools[0].Definition()
	assert.Equal(t, SearchToolName, search.Name)
	assert.Equal(t, "object", search.Parameters["type"])
	assert.Equal(t, []any{"query"}, search.Parameters["required"])

	fetch := tools[1].Definition()
	assert.Equal(t, FetchToolName, fetch.Name)
	assert.Contains(t, fetch.Parameters["properties"], "url")
}
