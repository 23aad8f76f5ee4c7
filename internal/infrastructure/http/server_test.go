package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ira-go/internal/adapters/loader"
	"github.com/0xcro3dile/ira-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/usecases"
	"github.com/0xcro3dile/ira-go/internal/infrastructure/metrics"
)

// fakeInvoker answers with the question echoed, or fails with err.
type fakeInvoker struct {
	err       error
	lastState *entities.ConversationState
}

func (f *fakeInvoker) Invoke(ctx context.Context, state *entities.ConversationState) (*entities.ConversationState, error) {
	f.lastState = state
	if f.err != nil {
		return nil, f.err
	}
	out := state.Clone()
	last, _ := state.LatestUserTurn()
	out.Messages = append(out.Messages, entities.AssistantMessage("answer: "+last.Content))
	return out, nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (constEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type testServer struct {
	*httptest.Server
	invoker *fakeInvoker
	dataDir string
	store   *vectordb.InMemoryStore
}

func newTestServer(t *testing.T, cfg usecases.SessionConfig) *testServer {
	t.Helper()
	invoker := &fakeInvoker{}
	store := vectordb.NewInMemoryStore()
	dataDir := t.TempDir()

	srv := NewServer(":0", Dependencies{
		Sessions:       usecases.NewSessionManager(invoker, cfg, nil),
		Ingest:         usecases.NewIngestUseCase(constEmbedder{}, store, loader.NewMultiLoader(nil), 100, 10, nil),
		Store:          store,
		Metrics:        metrics.New(),
		DataDir:        dataDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, invoker: invoker, dataDir: dataDir, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (ts *testServer) upload(t *testing.T, sessionID, filename string, content []byte) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("session_id", sessionID))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	fw.Write(content)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/documents", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestChat_CreatesSessionAndKeepsHistory(t *testing.T) {
	ts := newTestServer(t, usecases.SessionConfig{})

	resp, out := ts.do(t, http.MethodPost, "/api/chat", map[string]string{"question": "What is Go?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "answer: What is Go?", out["answer"])
	sessionID := out["session_id"].(string)
	require.NotEmpty(t, sessionID)

	resp, _ = ts.do(t, http.MethodPost, "/api/chat", map[string]string{"session_id": sessionID, "question": "And Rust?", "model": "GPT-4o"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, ts.invoker.lastState.Messages, 3)
	assert.Equal(t, entities.ModelGPT4o, ts.invoker.lastState.ModelChoice)

	resp, out = ts.do(t, http.MethodGet, "/api/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["messages"], 4)
	assert.EqualValues(t, 2, out["questions"])
}

func TestChat_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("%w: no Google API key", entities.ErrConfiguration), http.StatusBadRequest, "configuration"},
		{fmt.Errorf("%w: bad label", entities.ErrRouting), http.StatusBadGateway, "routing"},
		{fmt.Errorf("%w: quota", entities.ErrProvider), http.StatusBadGateway, "provider"},
		{fmt.Errorf("%w: classifying question: %w", entities.ErrRouting, fmt.Errorf("%w: 401", entities.ErrProvider)), http.StatusBadGateway, "provider"},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			ts := newTestServer(t, usecases.SessionConfig{})
			ts.invoker.err = tc.err

			resp, out := ts.do(t, http.MethodPost, "/api/chat", map[string]string{"question": "hi"})
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.kind, out["kind"])
		})
	}
}

func TestChat_Validation(t *testing.T) {
	ts := newTestServer(t, usecases.SessionConfig{})

	resp, out := ts.do(t, http.MethodPost, "/api/chat", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", out["kind"])

	resp, _ = ts.do(t, http.MethodPost, "/api/chat", map[string]string{"question": "hi", "model": "Llama"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/chat", strings.NewReader("{not json"))
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestChat_FreeQuestionLimit(t *testing.T) {
	ts := newTestServer(t, usecases.SessionConfig{FreeQuestions: 1})

	resp, out := ts.do(t, http.MethodPost, "/api/chat", map[string]string{"question": "one"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionID := out["session_id"].(string)

	resp, out = ts.do(t, http.MethodPost, "/api/chat", map[string]string{"session_id": sessionID, "question": "two"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", out["kind"])

	resp, _ = ts.do(t, http.MethodPut, "/api/sessions/"+sessionID+"/credentials", map[string]string{"gemini_api_key": "mine"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/chat", map[string]string{"session_id": sessionID, "question": "two"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "mine", ts.invoker.lastState.Credentials.GeminiAPIKey)
}

func TestSessionEndpoints(t *testing.T) {
	ts := newTestServer(t, usecases.SessionConfig{})

	resp, out := ts.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := out["session_id"].(string)

	resp, _ = ts.do(t, http.MethodPut, "/api/sessions/"+id+"/model", map[string]string{"model": "GPT-4o Mini"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPut, "/api/sessions/"+id+"/credentials", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ts.do(t, http.MethodPost, "/api/chat", map[string]string{"session_id": id, "question": "hello"})
	resp, _ = ts.do(t, http.MethodPost, "/api/sessions/"+id+"/reset", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, out = ts.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, "GPT-4o Mini", out["model"])
	assert.Empty(t, out["messages"])

	resp, _ = ts.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, out = ts.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", out["kind"])
}

func TestUpload_Limits(t *testing.T) {
	ts := newTestServer(t, usecases.SessionConfig{MaxUploads: 2, MaxUploadBytes: 1 << 20})
	_, out := ts.do(t, http.MethodPost, "/api/sessions", nil)
	id := out["session_id"].(string)

	resp, out := ts.upload(t, id, "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", out["kind"])

	resp, _ = ts.upload(t, id, "empty.pdf", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for i := 0; i < 2; i++ {
		resp, out = ts.upload(t, id, fmt.Sprintf("paper%d.pdf", i), []byte("%PDF-1.4 body"))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.FileExists(t, filepath.Join(ts.dataDir, out["filename"].(string)))
	}

	resp, out = ts.upload(t, id, "third.pdf", []byte("%PDF-1.4 body"))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "upload_limit", out["kind"])
}

func TestUpload_FailedSaveDoesNotUseAllowance(t *testing.T) {
	ts := newTestServer(t, usecases.SessionConfig{MaxUploads: 2, MaxUploadBytes: 1 << 20})
	_, out := ts.do(t, http.MethodPost, "/api/sessions", nil)
	id := out["session_id"].(string)

	// A directory in the way makes the save fail.
	require.NoError(t, os.MkdirAll(filepath.Join(ts.dataDir, "blocked.pdf"), 0o755))
	for i := 0; i < 2; i++ {
		resp, _ := ts.upload(t, id, "blocked.pdf", []byte("%PDF-1.4 body"))
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}

	for i := 0; i < 2; i++ {
		resp, _ := ts.upload(t, id, fmt.Sprintf("paper%d.pdf", i), []byte("%PDF-1.4 body"))
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, out := ts.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, out["uploads"])
}

func TestUpload_SanitizesFilename(t *testing.T) {
	ts := newTestServer(t, usecases.SessionConfig{})

	resp, out := ts.upload(t, "", "../../escape.pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "escape.pdf", out["filename"])
	assert.FileExists(t, filepath.Join(ts.dataDir, "escape.pdf"))
}

func TestIngest_IndexesAndClearsUploads(t *testing.T) {
	ts := newTestServer(t, usecases.SessionConfig{})
	path := filepath.Join(ts.dataDir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("Go is a programming language. ", 10)), 0o644))

	resp, out := ts.do(t, http.MethodPost, "/api/ingest", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, out["documents"])
	assert.Greater(t, out["chunks"].(float64), 0.0)
	assert.NoFileExists(t, path)

	n, err := ts.store.Count(context.Background())
	require.NoError(t, err)
	assert.Positive(t, n)

	resp, out = ts.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
	assert.EqualValues(t, n, out["chunks"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, usecases.SessionConfig{})
	ts.do(t, http.MethodGet, "/api/health", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), `ira_http_requests_total{code="200",method="GET",pattern="/api/health"} 1`)
}

func TestIndexAndCORS(t *testing.T) {
	ts := newTestServer(t, usecases.SessionConfig{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/chat", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
