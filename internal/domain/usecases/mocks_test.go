package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	embedFn func(text string) ([]float32, error)
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

// mockVectorStore implements ports.VectorStore for testing
type mockVectorStore struct {
	chunks   []entities.Chunk
	storeFn  func(chunks []entities.Chunk) error
	countErr error
	deleted  []string
}

func (m *mockVectorStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	if m.storeFn != nil {
		return m.storeFn(chunks)
	}
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, emb []float32, topK int) ([]entities.QueryResult, error) {
	var results []entities.QueryResult
	for i, c := range m.chunks {
		if i >= topK {
			break
		}
		results = append(results, entities.QueryResult{Chunk: c, Score: 0.9, SourceDoc: c.Source})
	}
	return results, nil
}

func (m *mockVectorStore) Delete(ctx context.Context, docID string) error {
	m.deleted = append(m.deleted, docID)
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	return nil
}

func (m *mockVectorStore) Clear(ctx context.Context) error {
	m.chunks = nil
	return nil
}

func (m *mockVectorStore) Count(ctx context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.chunks), nil
}

// scriptedLLM implements ports.LLMService, replaying responses in order and
// recording every request.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []*entities.GenerateResponse
	errs      []error
	requests  []*entities.GenerateRequest
}

func (m *scriptedLLM) Generate(ctx context.Context, req *entities.GenerateRequest) (*entities.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.requests)
	snapshot := *req
	snapshot.Messages = append([]entities.Message(nil), req.Messages...)
	m.requests = append(m.requests, &snapshot)

	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	if len(m.responses) > 0 {
		return m.responses[len(m.responses)-1], nil
	}
	return &entities.GenerateResponse{Text: "mocked answer"}, nil
}

func (m *scriptedLLM) Model() string { return "scripted" }

func textReply(text string) *entities.GenerateResponse {
	return &entities.GenerateResponse{Text: text}
}

func toolReply(name string, args map[string]any) *entities.GenerateResponse {
	return &entities.GenerateResponse{ToolCalls: []entities.ToolCall{{ID: "call-" + name, Name: name, Args: args}}}
}

// stubSelector implements ports.ModelSelector
type stubSelector struct {
	llm   ports.LLMService
	err   error
	calls int
}

func (s *stubSelector) Select(choice entities.ModelChoice, creds entities.Credentials) (ports.LLMService, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.llm, nil
}

// stubTool implements ports.Tool
type stubTool struct {
	name  string
	out   string
	err   error
	calls []map[string]any
}

func (t *stubTool) Definition() entities.ToolDefinition {
	return entities.ToolDefinition{
		Name:        t.name,
		Description: "stub " + t.name,
		Parameters:  map[string]any{"type": "object"},
	}
}

func (t *stubTool) Call(ctx context.Context, args map[string]any) (string, error) {
	t.calls = append(t.calls, args)
	return t.out, t.err
}

// recordingMetrics implements ports.Metrics
type recordingMetrics struct {
	routes      []entities.Route
	toolCalls   map[string]int
	toolFailed  map[string]int
	invocations []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{toolCalls: map[string]int{}, toolFailed: map[string]int{}}
}

func (m *recordingMetrics) ObserveRoute(route entities.Route) {
	m.routes = append(m.routes, route)
}

func (m *recordingMetrics) ObserveToolCall(tool string, failed bool) {
	m.toolCalls[tool]++
	if failed {
		m.toolFailed[tool]++
	}
}

func (m *recordingMetrics) ObserveInvocation(route entities.Route, outcome string, elapsed time.Duration) {
	m.invocations = append(m.invocations, outcome)
}

// staticRetriever implements ports.DocumentRetriever
type staticRetriever struct {
	results []entities.QueryResult
	err     error
	queries []string
}

func (r *staticRetriever) Retrieve(ctx context.Context, query string) ([]entities.QueryResult, error) {
	r.queries = append(r.queries, query)
	return r.results, r.err
}

var errBoom = errors.New("boom")

func conversation(turns ...string) *entities.ConversationState {
	state := &entities.ConversationState{}
	for i, t := range turns {
		if i%2 == 0 {
			state.Messages = append(state.Messages, entities.UserMessage(t))
		} else {
			state.Messages = append(state.Messages, entities.AssistantMessage(t))
		}
	}
	return state
}
