// Package http provides the HTTP server infrastructure.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
	"github.com/0xcro3dile/ira-go/internal/domain/usecases"
)

// SessionHeader carries the session ID on requests that do not name it in the path.
const SessionHeader = "X-Session-ID"

// HTTPMetrics records served requests. *metrics.Prometheus implements it.
type HTTPMetrics interface {
	ObserveHTTP(method, pattern string, code int)
	Handler() http.Handler
}

// Dependencies are the usecases and stores the server exposes.
type Dependencies struct {
	Sessions       *usecases.SessionManager
	Ingest         *usecases.IngestUseCase
	Store          ports.VectorStore
	Metrics        HTTPMetrics
	DataDir        string
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// Server is the HTTP server for the chat API and UI.
type Server struct {
	deps     Dependencies
	addr     string
	router   chi.Router
	validate *validator.Validate
	logger   *zap.Logger
}

// NewServer creates a new HTTP server.
func NewServer(addr string, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Server{
		deps:     deps,
		addr:     addr,
		validate: validator.New(),
		logger:   deps.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)
	if s.deps.Metrics != nil {
		r.Use(s.metricsMiddleware)
	}
	r.Use(corsMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/api/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Post("/api/chat", s.handleChat)
	r.Post("/api/documents", s.handleUpload)
	r.Post("/api/ingest", s.handleIngest)

	r.Post("/api/sessions", s.handleCreateSession)
	r.Route("/api/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Delete("/", s.handleEndSession)
		r.Put("/credentials", s.handleSetCredentials)
		r.Put("/model", s.handleSetModel)
		r.Post("/reset", s.handleResetSession)
	})
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}

	s.logger.Info("server starting", zap.String("addr", s.addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question" validate:"required"`
	Model     string `json:"model"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.Header.Get(SessionHeader)
	}

	session := s.deps.Sessions.GetOrCreate(req.SessionID)
	if req.Model != "" {
		if err := s.deps.Sessions.SetModel(session, entities.ModelChoice(req.Model)); err != nil {
			s.writeError(w, err)
			return
		}
	}

	answer, err := s.deps.Sessions.Ask(r.Context(), session, req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{SessionID: session.ID, Answer: answer})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.deps.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, fmt.Errorf("%w: file exceeds %d MB", entities.ErrUploadLimit, s.deps.MaxUploadBytes>>20))
			return
		}
		s.writeError(w, fmt.Errorf("%w: %v", entities.ErrInvalidUpload, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: missing file field", entities.ErrInvalidUpload))
		return
	}
	defer file.Close()

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		sessionID = r.Header.Get(SessionHeader)
	}
	session := s.deps.Sessions.GetOrCreate(sessionID)

	name := filepath.Base(header.Filename)
	if err := s.deps.Sessions.CheckUpload(session, name, header.Size); err != nil {
		s.writeError(w, err)
		return
	}

	path := filepath.Join(s.deps.DataDir, name)
	if err := saveUpload(path, file); err != nil {
		s.writeError(w, fmt.Errorf("saving upload: %w", err))
		return
	}
	if err := s.deps.Sessions.CommitUpload(session); err != nil {
		os.Remove(path)
		s.writeError(w, err)
		return
	}

	s.logger.Info("document uploaded", zap.String("file", name), zap.Int64("bytes", header.Size))
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": session.ID,
		"filename":   name,
		"size":       header.Size,
	})
}

// saveUpload writes src to path. A partial file is removed on failure.
func saveUpload(path string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// handleIngest indexes everything in the upload directory, then removes the
// processed files. The index keeps their chunks.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := os.MkdirAll(s.deps.DataDir, 0o755); err != nil {
		s.writeError(w, fmt.Errorf("creating upload directory: %w", err))
		return
	}

	report, err := s.deps.Ingest.IngestDirectory(r.Context(), s.deps.DataDir)
	if report != nil {
		for _, path := range report.Files {
			if rmErr := os.Remove(path); rmErr != nil {
				s.logger.Warn("could not remove ingested file", zap.String("path", path), zap.Error(rmErr))
			}
		}
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": report.Documents,
		"chunks":    report.Chunks,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := s.deps.Sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": session.ID})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	snap := session.Snapshot()

	messages := make([]map[string]string, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		messages = append(messages, map[string]string{"role": string(m.Role), "content": m.Content})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": snap.ID,
		"model":      snap.ModelChoice,
		"own_keys":   snap.OwnKeys,
		"questions":  snap.Questions,
		"uploads":    snap.Uploads,
		"messages":   messages,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.deps.Sessions.End(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

type credentialsRequest struct {
	GeminiAPIKey string `json:"gemini_api_key" validate:"required_without=OpenAIAPIKey"`
	OpenAIAPIKey string `json:"openai_api_key" validate:"required_without=GeminiAPIKey"`
}

func (s *Server) handleSetCredentials(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.deps.Sessions.SetCredentials(session, entities.Credentials{
		GeminiAPIKey: req.GeminiAPIKey,
		OpenAIAPIKey: req.OpenAIAPIKey,
	})
	w.WriteHeader(http.StatusNoContent)
}

type modelRequest struct {
	Model string `json:"model" validate:"required"`
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req modelRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.deps.Sessions.SetModel(session, entities.ModelChoice(req.Model)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	s.deps.Sessions.Reset(session)
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"sessions": s.deps.Sessions.Count(),
	}
	if s.deps.Store != nil {
		if n, err := s.deps.Store.Count(r.Context()); err == nil {
			resp["chunks"] = n
		} else {
			resp["status"] = "degraded"
			resp["index_error"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*usecases.Session, bool) {
	session, ok := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found", Kind: "not_found"})
		return nil, false
	}
	return session, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body: " + err.Error(), Kind: "invalid_request"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "invalid_request"})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "configuration", "invalid_request":
		return http.StatusBadRequest
	case "rate_limited", "upload_limit":
		return http.StatusTooManyRequests
	case "routing", "provider":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := entities.ErrorKind(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// metricsMiddleware labels requests by chi route pattern rather than raw path.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.deps.Metrics.ObserveHTTP(r.Method, pattern, status)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
