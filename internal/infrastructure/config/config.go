// Package config loads the assistant's configuration from a YAML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Research  ResearchConfig  `yaml:"research"`
	Web       WebConfig       `yaml:"web"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`

	// Provider keys come from the environment only.
	GoogleAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// LLMConfig selects the default chat model and provider endpoints.
type LLMConfig struct {
	DefaultModel  string `yaml:"default_model" validate:"required"`
	Timeout       string `yaml:"timeout" validate:"required"`
	GeminiBaseURL string `yaml:"gemini_base_url" validate:"omitempty,url"`
	OpenAIBaseURL string `yaml:"openai_base_url" validate:"omitempty,url"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" validate:"oneof=ollama gemini"`
	OllamaURL string `yaml:"ollama_url" validate:"omitempty,url"`
	Model     string `yaml:"model"` // empty selects the provider default
}

// StoreConfig selects the vector index backend and its location.
type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=chromem sqlite memory"`
	Path    string `yaml:"path"`
}

// IngestConfig controls document chunking and the upload directory.
type IngestConfig struct {
	DataDir      string `yaml:"data_dir" validate:"required"`
	ChunkSize    int    `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int    `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	Watch        bool   `yaml:"watch"`
}

// ResearchConfig bounds the research tool loop.
type ResearchConfig struct {
	MaxSteps int `yaml:"max_steps" validate:"gte=1,lte=20"`
}

// WebConfig configures web search and page fetching. MaxChars is capped at 8000.
type WebConfig struct {
	FetchTimeout     string `yaml:"fetch_timeout" validate:"required"`
	MaxChars         int    `yaml:"max_chars" validate:"gt=0,lte=8000"`
	SearchURL        string `yaml:"search_url" validate:"omitempty,url"`
	LeetCodeEndpoint string `yaml:"leetcode_endpoint" validate:"omitempty,url"`
}

// SessionConfig sets per-session usage limits.
type SessionConfig struct {
	FreeQuestions  int    `yaml:"free_questions" validate:"gte=0"`
	MaxUploads     int    `yaml:"max_uploads" validate:"gte=0"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" validate:"gt=0"`
	TTL            string `yaml:"ttl" validate:"required"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	File   string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		LLM: LLMConfig{
			DefaultModel: string(entities.DefaultModelChoice),
			Timeout:      "60s",
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			OllamaURL: "http://localhost:11434",
		},
		Store: StoreConfig{
			Backend: "chromem",
			Path:    "./data/index",
		},
		Ingest: IngestConfig{
			DataDir:      "./data/uploads",
			ChunkSize:    1000,
			ChunkOverlap: 200,
			Watch:        true,
		},
		Research: ResearchConfig{MaxSteps: 8},
		Web: WebConfig{
			FetchTimeout: "10s",
			MaxChars:     8000,
		},
		Session: SessionConfig{
			FreeQuestions:  5,
			MaxUploads:     2,
			MaxUploadBytes: 200 << 20,
			TTL:            "1h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads .env (if present) and the YAML file at path (if present),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	c.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	if c.GoogleAPIKey == "" {
		c.GoogleAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	strs := map[string]*string{
		"IRA_ADDR":              &c.Server.Addr,
		"IRA_DEFAULT_MODEL":     &c.LLM.DefaultModel,
		"IRA_EMBEDDING":         &c.Embedding.Provider,
		"OLLAMA_URL":            &c.Embedding.OllamaURL,
		"IRA_EMBEDDING_MODEL":   &c.Embedding.Model,
		"IRA_STORE":             &c.Store.Backend,
		"IRA_STORE_PATH":        &c.Store.Path,
		"IRA_DATA_DIR":          &c.Ingest.DataDir,
		"IRA_LOG_LEVEL":         &c.Log.Level,
		"IRA_LOG_FORMAT":        &c.Log.Format,
		"IRA_LOG_FILE":          &c.Log.File,
		"IRA_SESSION_TTL":       &c.Session.TTL,
		"IRA_LLM_TIMEOUT":       &c.LLM.Timeout,
		"IRA_GEMINI_BASE_URL":   &c.LLM.GeminiBaseURL,
		"IRA_OPENAI_BASE_URL":   &c.LLM.OpenAIBaseURL,
		"IRA_WEB_FETCH_TIMEOUT": &c.Web.FetchTimeout,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"IRA_FREE_QUESTIONS":     &c.Session.FreeQuestions,
		"IRA_MAX_UPLOADS":        &c.Session.MaxUploads,
		"IRA_RESEARCH_MAX_STEPS": &c.Research.MaxSteps,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks field constraints and that durations and the model choice parse.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !slices.Contains(entities.ModelChoices(), entities.ModelChoice(c.LLM.DefaultModel)) {
		return fmt.Errorf("invalid config: unknown default model %q", c.LLM.DefaultModel)
	}
	for name, d := range map[string]string{
		"llm.timeout":       c.LLM.Timeout,
		"web.fetch_timeout": c.Web.FetchTimeout,
		"session.ttl":       c.Session.TTL,
	} {
		if v, err := time.ParseDuration(d); err != nil || v <= 0 {
			return fmt.Errorf("invalid config: %s must be a positive duration, got %q", name, d)
		}
	}
	return nil
}

// LLMTimeout returns the model call timeout.
func (c *Config) LLMTimeout() time.Duration {
	return mustDuration(c.LLM.Timeout, 60*time.Second)
}

// FetchTimeout returns the page fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return mustDuration(c.Web.FetchTimeout, 10*time.Second)
}

// SessionTTL returns the idle lifetime of a session.
func (c *Config) SessionTTL() time.Duration {
	return mustDuration(c.Session.TTL, time.Hour)
}

// EnvCredentials returns the server's own provider keys.
func (c *Config) EnvCredentials() entities.Credentials {
	return entities.Credentials{GeminiAPIKey: c.GoogleAPIKey, OpenAIAPIKey: c.OpenAIAPIKey}
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
