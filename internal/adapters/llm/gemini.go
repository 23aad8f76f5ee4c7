package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

// GeminiAdapter implements ports.LLMService using the Gemini API.
type GeminiAdapter struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiAdapter creates a Gemini client for model. baseURL is only set in tests.
// No request is sent until Generate is called.
func NewGeminiAdapter(apiKey, model, baseURL string, timeout time.Duration) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", entities.ErrConfiguration)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: creating Gemini client: %w", entities.ErrConfiguration, err)
	}

	return &GeminiAdapter{client: client, model: model, timeout: timeout}, nil
}

// Model returns the Gemini model identifier.
func (a *GeminiAdapter) Model() string {
	return a.model
}

// Generate produces one model turn.
func (a *GeminiAdapter) Generate(ctx context.Context, req *entities.GenerateRequest) (*entities.GenerateResponse, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, toGeminiContents(req.Messages), a.buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("%w: calling Gemini: %w", entities.ErrProvider, err)
	}
	return parseGeminiResponse(resp)
}

func (a *GeminiAdapter) buildConfig(req *entities.GenerateRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	if req.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toGeminiSchema(req.ResponseSchema.Schema)
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGeminiSchema(t.Parameters),
			}
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}

		if req.ToolChoice == entities.ToolChoiceNone {
			config.ToolConfig = &genai.ToolConfig{
				FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone},
			}
		}
	}

	return config
}

// toGeminiContents maps turns onto Gemini roles. Consecutive tool results are
// merged into one user content, as Gemini expects.
func toGeminiContents(messages []entities.Message) []*genai.Content {
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case entities.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, call := range m.ToolCalls {
				part := genai.NewPartFromFunctionCall(call.Name, call.Args)
				part.FunctionCall.ID = call.ID
				parts = append(parts, part)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}

		case entities.RoleTool:
			part := genai.NewPartFromFunctionResponse(m.Name, map[string]any{"output": m.Content})
			part.FunctionResponse.ID = m.ToolCallID

			if n := len(contents); n > 0 && isFunctionResponseContent(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))

		case entities.RoleSystem:
			// Carried by SystemInstruction.

		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	return contents
}

func isFunctionResponseContent(c *genai.Content) bool {
	return c.Role == string(genai.RoleUser) && len(c.Parts) > 0 && c.Parts[0].FunctionResponse != nil
}

func parseGeminiResponse(resp *genai.GenerateContentResponse) (*entities.GenerateResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		reason := "no candidates"
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("%w: empty Gemini response (%s)", entities.ErrProvider, reason)
	}

	out := &entities.GenerateResponse{}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			id := fc.ID
			if id == "" {
				id = uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, entities.ToolCall{ID: id, Name: fc.Name, Args: fc.Args})
		}
	}
	out.Text = text.String()
	return out, nil
}

// toGeminiSchema converts a JSON schema map into a Gemini schema, dropping
// keywords Gemini does not understand.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGeminiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}
