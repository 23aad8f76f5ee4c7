package usecases

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

// Invoker runs one conversation turn.
type Invoker interface {
	Invoke(ctx context.Context, state *entities.ConversationState) (*entities.ConversationState, error)
}

// SessionConfig bounds what a session may do.
type SessionConfig struct {
	// FreeQuestions is how many questions a session may ask on the server's
	// own keys. Zero means unlimited.
	FreeQuestions  int
	MaxUploads     int
	MaxUploadBytes int64
	TTL            time.Duration
	// EnvCredentials fill in keys the session did not supply.
	EnvCredentials entities.Credentials
	DefaultModel   entities.ModelChoice
}

// Session is one user's conversation, model choice, credentials and counters.
type Session struct {
	ID string

	mu          sync.Mutex
	messages    []entities.Message
	modelChoice entities.ModelChoice
	credentials entities.Credentials
	questions   int
	uploads     int
}

// SessionSnapshot is a read-only view of a session without credentials.
type SessionSnapshot struct {
	ID          string
	Messages    []entities.Message
	ModelChoice entities.ModelChoice
	OwnKeys     bool
	Questions   int
	Uploads     int
}

// SessionManager owns sessions and runs their questions through the workflow.
// Sessions idle for longer than the TTL expire and their credentials are cleared.
type SessionManager struct {
	sessions *cache.Cache
	workflow Invoker
	cfg      SessionConfig
	logger   *zap.Logger
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(workflow Invoker, cfg SessionConfig, logger *zap.Logger) *SessionManager {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = entities.DefaultModelChoice
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sessions := cache.New(cfg.TTL, cfg.TTL/2)
	sessions.OnEvicted(func(id string, v interface{}) {
		if s, ok := v.(*Session); ok {
			s.mu.Lock()
			s.credentials.Clear()
			s.mu.Unlock()
		}
		logger.Debug("session ended", zap.String("session", id))
	})

	return &SessionManager{
		sessions: sessions,
		workflow: workflow,
		cfg:      cfg,
		logger:   logger,
	}
}

// Create starts a new empty session.
func (m *SessionManager) Create() *Session {
	s := &Session{
		ID:          uuid.NewString(),
		modelChoice: m.cfg.DefaultModel,
	}
	m.sessions.Set(s.ID, s, cache.DefaultExpiration)
	return s
}

// Get returns a live session and extends its lifetime.
func (m *SessionManager) Get(id string) (*Session, bool) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	m.sessions.Set(id, s, cache.DefaultExpiration)
	return s, true
}

// GetOrCreate returns the session for id, or a new one when id is unknown or empty.
func (m *SessionManager) GetOrCreate(id string) *Session {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s
		}
	}
	return m.Create()
}

// End discards a session and its credentials.
func (m *SessionManager) End(id string) {
	m.sessions.Delete(id)
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	return m.sessions.ItemCount()
}

// SetCredentials stores the session's own keys. Empty fields leave existing keys untouched.
func (m *SessionManager) SetCredentials(s *Session, creds entities.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = creds.Merge(s.credentials)
}

// SetModel changes the session's model choice.
func (m *SessionManager) SetModel(s *Session, choice entities.ModelChoice) error {
	if !slices.Contains(entities.ModelChoices(), choice) {
		return fmt.Errorf("%w: unknown model %q", entities.ErrConfiguration, choice)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelChoice = choice
	return nil
}

// Ask appends question to the session, runs the workflow and returns the answer.
// A failed invocation leaves the session history unchanged.
func (m *SessionManager) Ask(ctx context.Context, s *Session, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", entities.ErrEmptyConversation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.credentials.IsZero() && m.cfg.FreeQuestions > 0 && s.questions >= m.cfg.FreeQuestions {
		return "", fmt.Errorf("%w: %d free questions used, add your own API key to continue",
			entities.ErrRateLimited, m.cfg.FreeQuestions)
	}

	messages := make([]entities.Message, len(s.messages), len(s.messages)+1)
	copy(messages, s.messages)
	state := &entities.ConversationState{
		Messages:    append(messages, entities.UserMessage(question)),
		ModelChoice: s.modelChoice,
		Credentials: s.credentials.Merge(m.cfg.EnvCredentials),
	}

	out, err := m.workflow.Invoke(ctx, state)
	if err != nil {
		return "", err
	}

	s.messages = out.Messages
	s.questions++
	return out.Messages[len(out.Messages)-1].Content, nil
}

// CheckUpload validates an upload against the session's allowance without
// counting it. Call CommitUpload once the file is saved.
func (m *SessionManager) CheckUpload(s *Session, filename string, size int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: %s is empty", entities.ErrInvalidUpload, filename)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return fmt.Errorf("%w: %s is not a PDF", entities.ErrInvalidUpload, filename)
	}
	if m.cfg.MaxUploadBytes > 0 && size > m.cfg.MaxUploadBytes {
		return fmt.Errorf("%w: %s exceeds %d MB", entities.ErrUploadLimit, filename, m.cfg.MaxUploadBytes>>20)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return m.uploadAllowed(s)
}

// CommitUpload counts a saved upload. It fails if a concurrent upload used
// the last slot since CheckUpload.
func (m *SessionManager) CommitUpload(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := m.uploadAllowed(s); err != nil {
		return err
	}
	s.uploads++
	return nil
}

func (m *SessionManager) uploadAllowed(s *Session) error {
	if m.cfg.MaxUploads > 0 && s.uploads >= m.cfg.MaxUploads {
		return fmt.Errorf("%w: at most %d uploads per session", entities.ErrUploadLimit, m.cfg.MaxUploads)
	}
	return nil
}

// Reset clears the conversation but keeps credentials and counters.
func (m *SessionManager) Reset(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Snapshot returns a copy of the session's visible state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionSnapshot{
		ID:          s.ID,
		Messages:    slices.Clone(s.messages),
		ModelChoice: s.modelChoice,
		OwnKeys:     !s.credentials.IsZero(),
		Questions:   s.questions,
		Uploads:     s.uploads,
	}
}
