package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
)

// NoDocumentsContext replaces retrieved context when nothing can be retrieved.
const NoDocumentsContext = "No documents have been loaded into the database yet."

const documentTemperature = 0.2

const documentInstruction = "You are a helpful research assistant. Answer the user's question based strictly " +
	"on the provided context. If the context doesn't contain the answer, say that you don't know " +
	"based on the provided documents."

// DocumentResponder answers from the user's indexed documents.
type DocumentResponder struct {
	retriever ports.DocumentRetriever
	logger    *zap.Logger
}

// NewDocumentResponder creates a DocumentResponder. A nil retriever behaves
// like an empty index.
func NewDocumentResponder(retriever ports.DocumentRetriever, logger *zap.Logger) *DocumentResponder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentResponder{retriever: retriever, logger: logger}
}

// Respond answers the latest user turn from retrieved context.
func (r *DocumentResponder) Respond(ctx context.Context, llm ports.LLMService, state *entities.ConversationState) (string, error) {
	question, ok := state.LatestUserTurn()
	if !ok {
		return "", entities.ErrEmptyConversation
	}

	history := entities.FormatHistory(entities.RecentHistory(state.Messages, entities.HistoryWindow))
	prompt := buildDocumentPrompt(r.retrieveContext(ctx, question.Content), history, question.Content)

	resp, err := llm.Generate(ctx, &entities.GenerateRequest{
		System:      documentInstruction,
		Messages:    []entities.Message{entities.UserMessage(prompt)},
		Temperature: documentTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("answering from documents: %w", err)
	}
	return resp.Text, nil
}

// retrieveContext never fails: retrieval problems degrade to NoDocumentsContext.
func (r *DocumentResponder) retrieveContext(ctx context.Context, query string) string {
	if r.retriever == nil {
		return NoDocumentsContext
	}

	results, err := r.retriever.Retrieve(ctx, query)
	if err != nil {
		level := r.logger.Warn
		if errors.Is(err, context.Canceled) {
			level = r.logger.Debug
		}
		level("retrieval unavailable", zap.Error(err))
		return NoDocumentsContext
	}
	if len(results) == 0 {
		return NoDocumentsContext
	}

	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = fmt.Sprintf("[Source: %s]\n%s", res.SourceDoc, res.Chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}

func buildDocumentPrompt(contextText, history, question string) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	sb.WriteString(contextText)
	sb.WriteString("\n\n")
	if history != "" {
		sb.WriteString(history)
		sb.WriteString("\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}
