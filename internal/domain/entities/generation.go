package entities

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema of the arguments object
}

// ToolCall is a model-directed invocation request.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ResponseSchema constrains a completion to JSON matching Schema.
type ResponseSchema struct {
	Name   string
	Schema map[string]any
}

// ToolChoice controls whether the model may call the declared tools.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = ""
	ToolChoiceNone ToolChoice = "none"
)

// GenerateRequest is the provider-neutral chat-completion request.
type GenerateRequest struct {
	System      string
	Messages    []Message
	Temperature float64
	Tools       []ToolDefinition
	ToolChoice  ToolChoice
	// ResponseSchema, when set, asks the provider for schema-validated JSON output.
	ResponseSchema *ResponseSchema
}

// GenerateResponse is a single model turn: text, tool calls, or both.
type GenerateResponse struct {
	Text      string
	ToolCalls []ToolCall
}
