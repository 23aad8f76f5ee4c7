package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/0xcro3dile/ira-go/internal/adapters/embedding"
	"github.com/0xcro3dile/ira-go/internal/adapters/llm"
	"github.com/0xcro3dile/ira-go/internal/adapters/loader"
	"github.com/0xcro3dile/ira-go/internal/adapters/parser"
	"github.com/0xcro3dile/ira-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/ira-go/internal/adapters/web"
	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
	"github.com/0xcro3dile/ira-go/internal/domain/usecases"
	"github.com/0xcro3dile/ira-go/internal/infrastructure/config"
	"github.com/0xcro3dile/ira-go/internal/infrastructure/metrics"
)

// app is the wired object graph shared by the commands.
type app struct {
	store    ports.VectorStore
	ingest   *usecases.IngestUseCase
	workflow *usecases.Workflow
	sessions *usecases.SessionManager
	metrics  *metrics.Prometheus
	close    func() error
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	docLoader := loader.NewMultiLoader(parser.NewPDFParser())
	ingest := usecases.NewIngestUseCase(embedder, store, docLoader, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, logger.Named("ingest"))

	supervisor, err := usecases.NewSupervisor(logger.Named("supervisor"))
	if err != nil {
		closeStore()
		return nil, err
	}

	retriever := usecases.NewRetriever(embedder, store, usecases.DefaultTopK)
	tools := web.Tools(
		web.NewDuckDuckGo(cfg.Web.SearchURL, cfg.FetchTimeout(), logger.Named("search")),
		web.NewFetcher(web.FetcherConfig{
			Timeout:          cfg.FetchTimeout(),
			MaxChars:         cfg.Web.MaxChars,
			LeetCodeEndpoint: cfg.Web.LeetCodeEndpoint,
		}, logger.Named("fetch")),
	)

	workflow, err := usecases.NewWorkflow(
		llm.NewSelector(llm.SelectorConfig{
			GeminiBaseURL: cfg.LLM.GeminiBaseURL,
			OpenAIBaseURL: cfg.LLM.OpenAIBaseURL,
			Timeout:       cfg.LLMTimeout(),
		}),
		supervisor,
		map[entities.Route]usecases.Responder{
			entities.RouteDocument: usecases.NewDocumentResponder(retriever, logger.Named("document")),
			entities.RouteResearch: usecases.NewResearchResponder(tools, cfg.Research.MaxSteps, m, logger.Named("research")),
		},
		m,
		logger.Named("workflow"),
	)
	if err != nil {
		closeStore()
		return nil, err
	}

	sessions := usecases.NewSessionManager(workflow, usecases.SessionConfig{
		FreeQuestions:  cfg.Session.FreeQuestions,
		MaxUploads:     cfg.Session.MaxUploads,
		MaxUploadBytes: cfg.Session.MaxUploadBytes,
		TTL:            cfg.SessionTTL(),
		EnvCredentials: cfg.EnvCredentials(),
		DefaultModel:   entities.ModelChoice(cfg.LLM.DefaultModel),
	}, logger.Named("sessions"))

	return &app{
		store:    store,
		ingest:   ingest,
		workflow: workflow,
		sessions: sessions,
		metrics:  m,
		close:    closeStore,
	}, nil
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (ports.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case "gemini":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("%w: gemini embeddings need GOOGLE_API_KEY", entities.ErrConfiguration)
		}
		e, err := embedding.NewGeminiAdapter(cfg.GoogleAPIKey, cfg.Embedding.Model, cfg.LLM.GeminiBaseURL)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return embedding.NewOllamaAdapter(cfg.Embedding.OllamaURL, cfg.Embedding.Model, logger.Named("ollama")), nil
	}
}

func newStore(cfg *config.Config, logger *zap.Logger) (ports.VectorStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store.Backend {
	case "memory":
		return vectordb.NewInMemoryStore(), noop, nil
	case "sqlite":
		s, err := vectordb.NewSQLiteStore(cfg.Store.Path, logger.Named("sqlite"))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := vectordb.NewChromemStore(cfg.Store.Path, true, logger.Named("chromem"))
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	}
}
