// Package llm provides chat-model adapters and the selector that maps a
// user's model choice onto one of them.
package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
)

// Placeholder keys shipped in example env files.
var placeholderKeys = map[string]bool{
	"your_google_api_key_here": true,
	"your_openai_api_key_here": true,
	"your_gemini_api_key_here": true,
}

type provider int

const (
	providerGemini provider = iota
	providerOpenAI
)

type modelBinding struct {
	provider provider
	model    string
}

var bindings = map[entities.ModelChoice]modelBinding{
	entities.ModelGeminiFlash: {providerGemini, "gemini-2.5-flash"},
	entities.ModelGPT4oMini:   {providerOpenAI, "gpt-4o-mini"},
	entities.ModelGPT4o:       {providerOpenAI, "gpt-4o"},
}

// SelectorConfig holds provider endpoints and the per-call timeout.
type SelectorConfig struct {
	GeminiBaseURL string
	OpenAIBaseURL string
	Timeout       time.Duration
}

// Selector implements ports.ModelSelector.
type Selector struct {
	cfg SelectorConfig
}

// NewSelector creates a Selector.
func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{cfg: cfg}
}

// Select validates credentials and builds the client for choice. It never
// touches the network.
func (s *Selector) Select(choice entities.ModelChoice, creds entities.Credentials) (ports.LLMService, error) {
	if choice == "" {
		choice = entities.DefaultModelChoice
	}
	binding, ok := bindings[choice]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported model %q", entities.ErrConfiguration, choice)
	}

	switch binding.provider {
	case providerGemini:
		key, err := usableKey(creds.GeminiAPIKey, "GOOGLE_API_KEY")
		if err != nil {
			return nil, err
		}
		adapter, err := NewGeminiAdapter(key, binding.model, s.cfg.GeminiBaseURL, s.cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		key, err := usableKey(creds.OpenAIAPIKey, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		adapter, err := NewOpenAIAdapter(key, binding.model, s.cfg.OpenAIBaseURL, s.cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	}
}

func usableKey(key, name string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: %s is not set", entities.ErrConfiguration, name)
	}
	if placeholderKeys[strings.ToLower(key)] {
		return "", fmt.Errorf("%w: %s is still the placeholder value", entities.ErrConfiguration, name)
	}
	return key, nil
}
