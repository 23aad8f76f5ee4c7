package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
)

// Router picks the responder for the latest user turn.
type Router interface {
	Route(ctx context.Context, llm ports.LLMService, state *entities.ConversationState) (entities.Route, error)
}

// Responder produces the assistant turn for one route.
type Responder interface {
	Respond(ctx context.Context, llm ports.LLMService, state *entities.ConversationState) (string, error)
}

// Workflow runs supervisor -> responder -> end for each invocation.
type Workflow struct {
	selector ports.ModelSelector
	router   Router
	routes   map[entities.Route]Responder
	metrics  ports.Metrics
	logger   *zap.Logger
}

// NewWorkflow wires the graph: router is the entry node, routes are the
// conditional edges to the terminal responders.
func NewWorkflow(
	selector ports.ModelSelector,
	router Router,
	routes map[entities.Route]Responder,
	metrics ports.Metrics,
	logger *zap.Logger,
) (*Workflow, error) {
	if selector == nil || router == nil {
		return nil, errors.New("workflow needs a model selector and a router")
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	edges := make(map[entities.Route]Responder, len(routes))
	for route, responder := range routes {
		if _, err := entities.ParseRoute(string(route)); err != nil {
			return nil, fmt.Errorf("registering route: %w", err)
		}
		if responder == nil {
			return nil, fmt.Errorf("registering route %s: nil responder", route)
		}
		edges[route] = responder
	}

	return &Workflow{
		selector: selector,
		router:   router,
		routes:   edges,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Invoke runs one turn. The returned state holds the input messages plus
// exactly one assistant turn; the input state is never modified.
func (w *Workflow) Invoke(ctx context.Context, state *entities.ConversationState) (*entities.ConversationState, error) {
	start := time.Now()

	if _, ok := state.LatestUserTurn(); !ok {
		return nil, entities.ErrEmptyConversation
	}

	out := state.Clone()
	out.NextRoute = ""
	if out.ModelChoice == "" {
		out.ModelChoice = entities.DefaultModelChoice
	}

	llm, err := w.selector.Select(out.ModelChoice, out.Credentials)
	if err != nil {
		w.finish("", start, err)
		return nil, fmt.Errorf("selecting model: %w", err)
	}

	route, err := w.router.Route(ctx, llm, out)
	if err != nil {
		w.finish("", start, err)
		return nil, fmt.Errorf("supervising: %w", err)
	}
	out.NextRoute = route
	w.metrics.ObserveRoute(route)

	responder, ok := w.routes[route]
	if !ok {
		err := fmt.Errorf("%w: no responder registered for %q", entities.ErrRouting, route)
		w.finish(route, start, err)
		return nil, err
	}

	answer, err := responder.Respond(ctx, llm, out)
	if err != nil {
		w.finish(route, start, err)
		return nil, fmt.Errorf("%s responder: %w", route, err)
	}

	out.Messages = append(out.Messages, entities.AssistantMessage(answer))
	w.finish(route, start, nil)
	return out, nil
}

func (w *Workflow) finish(route entities.Route, start time.Time, err error) {
	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = entities.ErrorKind(err)
	}
	w.metrics.ObserveInvocation(route, outcome, elapsed)

	if err != nil {
		w.logger.Warn("invocation failed",
			zap.String("route", string(route)),
			zap.String("kind", outcome),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	w.logger.Info("invocation completed",
		zap.String("route", string(route)),
		zap.Duration("elapsed", elapsed))
}

type nopMetrics struct{}

func (nopMetrics) ObserveRoute(entities.Route) {}

func (nopMetrics) ObserveToolCall(string, bool) {}

func (nopMetrics) ObserveInvocation(entities.Route, string, time.Duration) {}
