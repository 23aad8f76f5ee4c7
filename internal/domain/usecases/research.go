package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
)

// Bounds on model turns in one research invocation.
const (
	DefaultResearchSteps = 8
	MaxResearchSteps     = 20
)

const researchTemperature = 0.7

const researchInstruction = `You are a web research assistant with access to tools.

- If the user gives a specific URL, ALWAYS call fetch_page on that URL first before anything else.
- Use web_search to find current information, then fetch_page to read the most promising results.
- If a tool fails or returns nothing useful, answer from your own knowledge and say so.
- Cite the pages you used.`

const finalizeInstruction = "You have used all available research steps. Do not call any more tools. " +
	"Write the best possible answer to the original question using the information gathered so far."

// researchStep is the decoded shape of one model turn: exactly one of
// finalAnswer or toolRequest.
type researchStep interface {
	isResearchStep()
}

type finalAnswer struct {
	text string
}

type toolRequest struct {
	text  string
	calls []entities.ToolCall
}

func (finalAnswer) isResearchStep() {}
func (toolRequest) isResearchStep() {}

func decodeStep(resp *entities.GenerateResponse) researchStep {
	if len(resp.ToolCalls) > 0 {
		return toolRequest{text: resp.Text, calls: resp.ToolCalls}
	}
	return finalAnswer{text: resp.Text}
}

// ResearchResponder answers with a bounded tool-calling loop.
type ResearchResponder struct {
	tools    map[string]ports.Tool
	defs     []entities.ToolDefinition
	maxSteps int
	metrics  ports.Metrics
	logger   *zap.Logger
}

// NewResearchResponder creates a ResearchResponder over the given tools.
// maxSteps outside 1..MaxResearchSteps falls back to DefaultResearchSteps.
func NewResearchResponder(tools []ports.Tool, maxSteps int, metrics ports.Metrics, logger *zap.Logger) *ResearchResponder {
	if maxSteps < 1 || maxSteps > MaxResearchSteps {
		maxSteps = DefaultResearchSteps
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ResearchResponder{
		tools:    make(map[string]ports.Tool, len(tools)),
		maxSteps: maxSteps,
		metrics:  metrics,
		logger:   logger,
	}
	for _, t := range tools {
		def := t.Definition()
		r.tools[def.Name] = t
		r.defs = append(r.defs, def)
	}
	return r
}

// Respond runs the loop until the model produces a final answer or the step
// budget is spent. Only the final answer text is returned.
func (r *ResearchResponder) Respond(ctx context.Context, llm ports.LLMService, state *entities.ConversationState) (string, error) {
	question, ok := state.LatestUserTurn()
	if !ok {
		return "", entities.ErrEmptyConversation
	}

	history := entities.RecentHistory(state.Messages, entities.HistoryWindow)
	messages := make([]entities.Message, 0, len(history)+1+2*r.maxSteps)
	for _, m := range history {
		messages = append(messages, entities.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, question)

	for step := 1; step <= r.maxSteps; step++ {
		resp, err := llm.Generate(ctx, &entities.GenerateRequest{
			System:      researchInstruction,
			Messages:    messages,
			Temperature: researchTemperature,
			Tools:       r.defs,
		})
		if err != nil {
			return "", fmt.Errorf("research step %d: %w", step, err)
		}

		switch s := decodeStep(resp).(type) {
		case finalAnswer:
			r.logger.Debug("research finished", zap.Int("steps", step))
			return nonEmptyAnswer(s.text)
		case toolRequest:
			messages = append(messages, entities.Message{
				Role:      entities.RoleAssistant,
				Content:   s.text,
				ToolCalls: s.calls,
			})
			for _, call := range s.calls {
				messages = append(messages, entities.Message{
					Role:       entities.RoleTool,
					Content:    r.callTool(ctx, call),
					ToolCallID: call.ID,
					Name:       call.Name,
				})
			}
		}
	}

	r.logger.Info("research step budget exhausted, finalizing", zap.Int("max_steps", r.maxSteps))
	messages = append(messages, entities.UserMessage(finalizeInstruction))
	resp, err := llm.Generate(ctx, &entities.GenerateRequest{
		System:      researchInstruction,
		Messages:    messages,
		Temperature: researchTemperature,
		Tools:       r.defs,
		ToolChoice:  entities.ToolChoiceNone,
	})
	if err != nil {
		return "", fmt.Errorf("finalizing research: %w", err)
	}
	return nonEmptyAnswer(resp.Text)
}

// callTool runs one tool call and renders its outcome as an observation.
func (r *ResearchResponder) callTool(ctx context.Context, call entities.ToolCall) string {
	tool, ok := r.tools[call.Name]
	if !ok {
		r.metrics.ObserveToolCall(call.Name, true)
		return fmt.Sprintf("Unknown tool %q. Available tools: %s.", call.Name, strings.Join(r.toolNames(), ", "))
	}

	out, err := tool.Call(ctx, call.Args)
	r.metrics.ObserveToolCall(call.Name, err != nil)
	if err != nil {
		r.logger.Warn("tool call failed", zap.String("tool", call.Name), zap.Error(err))
		return err.Error()
	}
	if strings.TrimSpace(out) == "" {
		return "The tool returned no content."
	}
	return out
}

func (r *ResearchResponder) toolNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func nonEmptyAnswer(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: model returned an empty answer", entities.ErrProvider)
	}
	return text, nil
}
