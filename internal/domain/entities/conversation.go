package entities

import (
	"fmt"
	"log/slog"
	"strings"
)

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleTool marks an observation produced by a tool call. Tool turns live only
	// inside the research loop and are never part of a persisted conversation.
	RoleTool Role = "tool"
)

// Message is one role-tagged turn.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // set on assistant turns that request tools
	ToolCallID string     // set on tool turns
	Name       string     // tool name on tool turns
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// HistoryWindow is the number of prior turns given to the nodes as context.
const HistoryWindow = 4

// RecentHistory returns up to n turns preceding the latest one.
// Older turns are dropped, not summarised.
func RecentHistory(messages []Message, n int) []Message {
	if len(messages) <= 1 || n <= 0 {
		return nil
	}
	prior := messages[:len(messages)-1]
	if len(prior) > n {
		prior = prior[len(prior)-n:]
	}
	return prior
}

// FormatHistory renders prior turns as a "Recent Conversation" block, or "" when empty.
func FormatHistory(history []Message) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Recent Conversation:\n")
	for _, m := range history {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Route is the supervisor's decision label.
type Route string

const (
	RouteDocument Route = "document"
	RouteResearch Route = "research"
)

// Routes lists every valid route label.
func Routes() []Route {
	return []Route{RouteDocument, RouteResearch}
}

// ParseRoute validates a raw label. Anything outside the two routes is an ErrRouting.
func ParseRoute(s string) (Route, error) {
	switch r := Route(s); r {
	case RouteDocument, RouteResearch:
		return r, nil
	default:
		return "", fmt.Errorf("%w: invalid route label %q", ErrRouting, s)
	}
}

// ModelChoice is the human-readable model selected for an invocation.
type ModelChoice string

const (
	ModelGeminiFlash ModelChoice = "Gemini 2.5 Flash"
	ModelGPT4oMini   ModelChoice = "GPT-4o Mini"
	ModelGPT4o       ModelChoice = "GPT-4o"
)

// DefaultModelChoice is used when a state carries no choice.
const DefaultModelChoice = ModelGeminiFlash

// ModelChoices lists the supported choices in display order.
func ModelChoices() []ModelChoice {
	return []ModelChoice{ModelGeminiFlash, ModelGPT4oMini, ModelGPT4o}
}

// Credentials holds per-session provider secrets. They are never persisted.
type Credentials struct {
	GeminiAPIKey string
	OpenAIAPIKey string
}

// IsZero reports whether no key is present.
func (c Credentials) IsZero() bool {
	return c.GeminiAPIKey == "" && c.OpenAIAPIKey == ""
}

// Merge fills empty keys from fallback. User-supplied keys win.
func (c Credentials) Merge(fallback Credentials) Credentials {
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = fallback.GeminiAPIKey
	}
	if c.OpenAIAPIKey == "" {
		c.OpenAIAPIKey = fallback.OpenAIAPIKey
	}
	return c
}

// Clear discards the secrets.
func (c *Credentials) Clear() {
	c.GeminiAPIKey = ""
	c.OpenAIAPIKey = ""
}

// String redacts the secrets so credentials can't leak through %v.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{gemini:%s openai:%s}", redact(c.GeminiAPIKey), redact(c.OpenAIAPIKey))
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

func redact(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}

// ConversationState is the unit passed through the workflow graph.
type ConversationState struct {
	Messages    []Message
	ModelChoice ModelChoice
	Credentials Credentials
	// NextRoute is set by the supervisor once per invocation and read by the router.
	NextRoute Route
}

// LatestUserTurn returns the last message when it is a user turn.
func (s *ConversationState) LatestUserTurn() (Message, bool) {
	if s == nil || len(s.Messages) == 0 {
		return Message{}, false
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Role != RoleUser || strings.TrimSpace(last.Content) == "" {
		return Message{}, false
	}
	return last, true
}

// Clone copies the state so the caller's message slice is never aliased.
func (s *ConversationState) Clone() *ConversationState {
	out := *s
	out.Messages = make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(out.Messages, s.Messages)
	return &out
}
