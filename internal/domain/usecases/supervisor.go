package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
	"github.com/0xcro3dile/ira-go/internal/pkg/schema"
)

const supervisorInstruction = `You are a supervisor managing a conversation between two specialists:

1. document: answers questions about the documents, PDFs and files the user has uploaded.
2. research: searches the web, reads web pages and LeetCode profiles, and answers general knowledge or current-events questions.

Read the recent conversation and the latest user question, then choose the specialist that should answer it.
Questions that mention "the document", "the file", "the PDF" or "my upload" go to document.
Questions that contain a URL or need up-to-date information go to research.`

// routeDecision is the only shape the classifier may answer with.
type routeDecision struct {
	Next string `json:"next_node" jsonschema:"required,description=The specialist that should answer the latest question,enum=document,enum=research"`
}

// Supervisor classifies the latest user turn into a route.
type Supervisor struct {
	responseSchema *entities.ResponseSchema
	logger         *zap.Logger
}

// NewSupervisor creates a Supervisor with a reflected decision schema.
func NewSupervisor(logger *zap.Logger) (*Supervisor, error) {
	s, err := schema.For[routeDecision]()
	if err != nil {
		return nil, fmt.Errorf("building route schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		responseSchema: &entities.ResponseSchema{Name: "route_decision", Schema: s},
		logger:         logger,
	}, nil
}

// Route asks the model for a decision. There is no default route: every
// classifier failure is an entities.ErrRouting.
func (s *Supervisor) Route(ctx context.Context, llm ports.LLMService, state *entities.ConversationState) (entities.Route, error) {
	question, ok := state.LatestUserTurn()
	if !ok {
		return "", entities.ErrEmptyConversation
	}

	history := entities.RecentHistory(state.Messages, entities.HistoryWindow)
	messages := make([]entities.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, entities.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, question)

	resp, err := llm.Generate(ctx, &entities.GenerateRequest{
		System:         supervisorInstruction,
		Messages:       messages,
		Temperature:    0,
		ResponseSchema: s.responseSchema,
	})
	if err != nil {
		return "", fmt.Errorf("%w: classifying question: %w", entities.ErrRouting, err)
	}

	route, err := decodeRoute(resp.Text)
	if err != nil {
		s.logger.Warn("classifier returned an unusable decision",
			zap.String("model", llm.Model()),
			zap.Error(err))
		return "", err
	}

	s.logger.Debug("question routed", zap.String("route", string(route)))
	return route, nil
}

func decodeRoute(raw string) (entities.Route, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return "", fmt.Errorf("%w: empty decision", entities.ErrRouting)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var decision routeDecision
	if err := dec.Decode(&decision); err != nil {
		return "", fmt.Errorf("%w: decoding decision: %w", entities.ErrRouting, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: trailing content after decision", entities.ErrRouting)
	}
	return entities.ParseRoute(decision.Next)
}

// stripCodeFence removes a ```json ... ``` wrapper some models add around JSON.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
