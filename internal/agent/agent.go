// Package agent runs conversational turns end to end: parse the query, route
// it to a domain service, gate side effects behind confirmation and shape the
// answer with learned preferences.
package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nickbooth1/airport-capacity-planner/internal/confirmation"
	"github.com/nickbooth1/airport-capacity-planner/internal/learning"
	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
	"github.com/nickbooth1/airport-capacity-planner/internal/nlp"
	"github.com/nickbooth1/airport-capacity-planner/internal/observability"
	"github.com/nickbooth1/airport-capacity-planner/internal/params"
	"github.com/nickbooth1/airport-capacity-planner/internal/protocol"
	"github.com/nickbooth1/airport-capacity-planner/internal/session"
	"github.com/nickbooth1/airport-capacity-planner/internal/tools"
	"github.com/nickbooth1/airport-capacity-planner/internal/vectorstore"
)

// Deps wires the agent's collaborators. Store, Pipeline, Orchestrator and
// Confirmations are required; the rest degrade gracefully when nil.
type Deps struct {
	Store         memory.Store
	Vectors       *vectorstore.Store
	Pipeline      *nlp.Pipeline
	Orchestrator  *tools.Orchestrator
	Validator     *params.Validator
	Confirmations *confirmation.Manager
	Engine        *learning.Engine
	Sessions      *session.Manager
	Metrics       *observability.Metrics
}

type Agent struct {
	store         memory.Store
	vectors       *vectorstore.Store
	pipeline      *nlp.Pipeline
	orch          *tools.Orchestrator
	validator     *params.Validator
	confirmations *confirmation.Manager
	engine        *learning.Engine
	sessions      *session.Manager
	metrics       *observability.Metrics
	now           func() time.Time

	mu           sync.Mutex
	contextLocks map[string]*sync.Mutex
}

func New(deps Deps) *Agent {
	return &Agent{
		store:         deps.Store,
		vectors:       deps.Vectors,
		pipeline:      deps.Pipeline,
		orch:          deps.Orchestrator,
		validator:     deps.Validator,
		confirmations: deps.Confirmations,
		engine:        deps.Engine,
		sessions:      deps.Sessions,
		metrics:       deps.Metrics,
		now:           time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (a *Agent) WithClock(now func() time.Time) *Agent {
	a.now = now
	return a
}

// TurnResult is the outcome of one user turn. Exactly one of Response and
// Proposal carries the payload the client should act on.
type TurnResult struct {
	ContextID string
	Response  *protocol.AgentResponse
	Proposal  *protocol.ActionProposal
}

// contextLock returns the per-context mutex, creating it on first use. Turns
// within one conversation are serialized; different conversations proceed in
// parallel.
func (a *Agent) contextLock(contextID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.contextLocks == nil {
		a.contextLocks = make(map[string]*sync.Mutex)
	}
	lock, ok := a.contextLocks[contextID]
	if !ok {
		lock = &sync.Mutex{}
		a.contextLocks[contextID] = lock
	}
	return lock
}

// HandleQuery runs one conversational turn. An empty contextID starts a new
// conversation.
func (a *Agent) HandleQuery(ctx context.Context, userID, sessionID, contextID, query string) (TurnResult, error) {
	started := a.now()
	contextID, err := a.resolveContext(ctx, userID, sessionID, contextID)
	if err != nil {
		return TurnResult{}, err
	}

	lock := a.contextLock(contextID)
	lock.Lock()
	defer lock.Unlock()

	if a.sessions != nil && sessionID != "" {
		if err := a.sessions.RecordTurn(sessionID); err != nil {
			log.Printf("agent: record turn for session %s: %v", sessionID, err)
		}
	}

	if _, err := a.store.AppendMessage(ctx, contextID, memory.Message{
		Role:      memory.RoleUser,
		Content:   query,
		Timestamp: a.now().UTC(),
	}); err != nil {
		return TurnResult{}, fmt.Errorf("append user message: %w", err)
	}

	parseStarted := a.now()
	parsed := a.pipeline.Parse(ctx, query, a.now())
	a.observeIntent(parsed)
	if a.metrics != nil {
		a.metrics.ObserveTurnStage("parse", a.now().Sub(parseStarted))
		if parsed.LowConfidence {
			a.metrics.ObserveTurnIndicator("low_confidence")
		}
		if parsed.ClarificationRequired {
			a.metrics.ObserveTurnIndicator("clarification_required")
		}
	}

	executeStarted := a.now()
	result, err := a.respond(ctx, userID, sessionID, contextID, parsed)
	if err != nil {
		a.countTurn("error")
		return TurnResult{}, err
	}
	if a.metrics != nil {
		a.metrics.ObserveTurnStage("execute", a.now().Sub(executeStarted))
		if result.Proposal != nil {
			a.metrics.ObserveTurnIndicator("approval_proposed")
		}
		a.metrics.ObserveTurnLatency(a.now().Sub(started))
	}
	return result, nil
}

func (a *Agent) resolveContext(ctx context.Context, userID, sessionID, contextID string) (string, error) {
	if contextID != "" {
		if _, err := a.store.GetContext(ctx, contextID); err != nil {
			return "", fmt.Errorf("resolve context: %w", err)
		}
		return contextID, nil
	}
	cc, err := a.store.CreateContext(ctx, memory.ConversationContext{
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("create context: %w", err)
	}
	return cc.ID, nil
}

func (a *Agent) respond(ctx context.Context, userID, sessionID, contextID string, parsed nlp.ParseResult) (TurnResult, error) {
	if parsed.ClarificationRequired {
		a.countTurn("clarification")
		return a.finishText(ctx, userID, contextID, parsed, clarificationText(parsed), nil)
	}
	if parsed.Intent == nlp.IntentHelpRequest {
		a.countTurn("answered")
		return a.finishText(ctx, userID, contextID, parsed, helpText, nil)
	}

	result := a.orch.Execute(ctx, parsed)
	a.observeToolCall(result)

	if !result.Success && !result.RequiresApproval {
		a.countTurn("error")
		return a.finishText(ctx, userID, contextID, parsed, "Sorry, "+result.Error+".", nil)
	}

	if result.RequiresApproval {
		return a.propose(ctx, userID, sessionID, contextID, parsed, result)
	}

	a.countTurn("answered")
	text, viz := renderResult(result)
	if parsed.LowConfidence {
		text = lowConfidencePreamble + text
	}
	return a.finishText(ctx, userID, contextID, parsed, text, viz)
}

// propose validates parameters when a scenario schema applies, then parks the
// operation for confirmation instead of executing it.
func (a *Agent) propose(ctx context.Context, userID, sessionID, contextID string, parsed nlp.ParseResult, result tools.Result) (TurnResult, error) {
	parameters := result.Parameters
	if schema := a.schemaFor(parsed.Intent); schema != nil {
		parameters = schema.Complete(parameters, nil)
		check := schema.Validate(parameters)
		if !check.IsValid {
			a.countTurn("invalid_parameters")
			return a.finishText(ctx, userID, contextID, parsed, validationText(check.Errors), nil)
		}
		parameters = check.Parameters
	}

	proposal, err := a.confirmations.CreatePendingOperation(ctx, confirmation.Operation{
		Type:        result.ActionType,
		Service:     result.Service,
		Method:      result.Method,
		Parameters:  parameters,
		Description: result.Description,
	}, sessionID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("create pending operation: %w", err)
	}
	a.countTurn("proposal")
	if a.metrics != nil {
		a.metrics.OperationEvents.WithLabelValues("created").Inc()
		a.metrics.PendingOperations.Set(float64(a.confirmations.PendingCount()))
	}

	if _, err := a.store.AppendMessage(ctx, contextID, memory.Message{
		Role:      memory.RoleAgent,
		Content:   proposal.Message,
		Timestamp: a.now().UTC(),
	}); err != nil {
		return TurnResult{}, fmt.Errorf("append proposal message: %w", err)
	}

	return TurnResult{
		ContextID: contextID,
		Proposal: &protocol.ActionProposal{
			Type:        protocol.TypeActionProposal,
			ContextID:   contextID,
			OperationID: proposal.OperationID,
			ActionType:  result.ActionType,
			Description: result.Description,
			Message:     proposal.Message,
			ExpiresAt:   proposal.ExpiresAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

// finishText runs the learned-preference enhancement, persists the agent
// message and shapes the final response event.
func (a *Agent) finishText(ctx context.Context, userID, contextID string, parsed nlp.ParseResult, text string, viz []memory.Visualization) (TurnResult, error) {
	response := learning.Response{Text: text, Visualizations: viz}
	if a.engine != nil {
		enhanceStarted := a.now()
		response = a.engine.EnhanceResponse(ctx, userID, response)
		if a.metrics != nil {
			a.metrics.ObserveTurnStage("enhance", a.now().Sub(enhanceStarted))
		}
	}

	msg, err := a.store.AppendMessage(ctx, contextID, memory.Message{
		Role:           memory.RoleAgent,
		Content:        response.Text,
		Timestamp:      a.now().UTC(),
		Visualizations: response.Visualizations,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("append agent message: %w", err)
	}

	out := &protocol.AgentResponse{
		Type:       protocol.TypeAgentResponse,
		ContextID:  contextID,
		MessageID:  msg.ID,
		Text:       response.Text,
		Confidence: parsed.Confidence,
	}
	for _, v := range response.Visualizations {
		out.Visualizations = append(out.Visualizations, v)
	}
	return TurnResult{ContextID: contextID, Response: out}, nil
}

// RelevantMemory surfaces stored knowledge related to a query. Used by the
// history endpoint and available to generator-backed enhancement.
func (a *Agent) RelevantMemory(ctx context.Context, userID, contextID, query string) (vectorstore.SearchResult, error) {
	if a.vectors == nil {
		return vectorstore.SearchResult{}, nil
	}
	return a.vectors.SearchRelevantInformation(ctx, userID, contextID, query, vectorstore.SearchOptions{})
}

var intentSchemas = map[nlp.Intent]string{
	nlp.IntentMaintenanceCreate: params.MaintenanceScenario,
	nlp.IntentMaintenanceUpdate: params.MaintenanceScenario,
	nlp.IntentScenarioCreate:    params.CapacityScenario,
	nlp.IntentScenarioModify:    params.CapacityScenario,
}

func (a *Agent) schemaFor(intent nlp.Intent) *params.Schema {
	if a.validator == nil {
		return nil
	}
	name, ok := intentSchemas[intent]
	if !ok {
		return nil
	}
	return a.validator.Schema(name)
}

func (a *Agent) countTurn(outcome string) {
	if a.metrics != nil {
		a.metrics.AgentTurns.WithLabelValues(outcome).Inc()
	}
}

func (a *Agent) observeIntent(parsed nlp.ParseResult) {
	if a.metrics == nil {
		return
	}
	tier := "weak"
	switch {
	case parsed.Confidence >= nlp.ConfidenceStrong:
		tier = "strong"
	case parsed.Confidence >= nlp.ConfidenceDefault:
		tier = "default"
	}
	a.metrics.IntentClassified.WithLabelValues(string(parsed.Intent), tier).Inc()
}

func (a *Agent) observeToolCall(result tools.Result) {
	if a.metrics == nil || result.Service == "" {
		return
	}
	outcome := "ok"
	switch {
	case result.RequiresApproval:
		outcome = "proposed"
	case !result.Success:
		outcome = "error"
	}
	a.metrics.ToolCalls.WithLabelValues(result.Service, result.Method, outcome).Inc()
}
