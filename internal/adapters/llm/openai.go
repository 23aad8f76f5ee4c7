package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter implements ports.LLMService using the Chat Completions API.
type OpenAIAdapter struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIAdapter creates a new OpenAI chat adapter.
func NewOpenAIAdapter(apiKey, model, baseURL string, timeout time.Duration) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", entities.ErrConfiguration)
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Model returns the OpenAI model identifier.
func (a *OpenAIAdapter) Model() string {
	return a.model
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	Tools          []chatTool      `json:"tools,omitempty"`
	ToolChoice     string          `json:"tool_choice,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string        `json:"content"`
			Refusal   *string        `json:"refusal"`
			ToolCalls []chatToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Generate produces one model turn.
func (a *OpenAIAdapter) Generate(ctx context.Context, req *entities.GenerateRequest) (*entities.GenerateResponse, error) {
	body, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: calling OpenAI: %w", entities.ErrProvider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading OpenAI response: %w", entities.ErrProvider, err)
	}

	var chatResp chatResponse
	decodeErr := json.Unmarshal(raw, &chatResp)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && chatResp.Error != nil {
			return nil, fmt.Errorf("%w: OpenAI returned status %d: %s", entities.ErrProvider, resp.StatusCode, chatResp.Error.Message)
		}
		return nil, fmt.Errorf("%w: OpenAI returned status %d", entities.ErrProvider, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decoding OpenAI response: %w", entities.ErrProvider, decodeErr)
	}
	return parseChatResponse(&chatResp)
}

func (a *OpenAIAdapter) buildRequest(req *entities.GenerateRequest) *chatRequest {
	out := &chatRequest{
		Model:       a.model,
		Temperature: req.Temperature,
	}

	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: ptr(req.System)})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toChatMessage(m))
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if len(out.Tools) > 0 && req.ToolChoice == entities.ToolChoiceNone {
		out.ToolChoice = "none"
	}

	if req.ResponseSchema != nil {
		out.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   req.ResponseSchema.Name,
				Strict: true,
				Schema: req.ResponseSchema.Schema,
			},
		}
	}
	return out
}

func toChatMessage(m entities.Message) chatMessage {
	msg := chatMessage{Role: string(m.Role), ToolCallID: m.ToolCallID}
	if m.Role == entities.RoleTool || m.Content != "" || len(m.ToolCalls) == 0 {
		msg.Content = ptr(m.Content)
	}
	for _, call := range m.ToolCalls {
		args, err := json.Marshal(call.Args)
		if err != nil || call.Args == nil {
			args = []byte("{}")
		}
		msg.ToolCalls = append(msg.ToolCalls, chatToolCall{
			ID:       call.ID,
			Type:     "function",
			Function: chatFunctionCall{Name: call.Name, Arguments: string(args)},
		})
	}
	return msg
}

func parseChatResponse(resp *chatResponse) (*entities.GenerateResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: OpenAI returned no choices", entities.ErrProvider)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != nil && *msg.Refusal != "" {
		return nil, fmt.Errorf("%w: model refused: %s", entities.ErrProvider, *msg.Refusal)
	}

	out := &entities.GenerateResponse{}
	if msg.Content != nil {
		out.Text = *msg.Content
	}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%w: decoding arguments of %s: %w", entities.ErrProvider, tc.Function.Name, err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, entities.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	return out, nil
}

func ptr[T any](v T) *T {
	return &v
}
