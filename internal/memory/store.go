package memory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrInvalidRecord  = errors.New("invalid record")
	ErrTerminalStatus = errors.New("operation already in terminal state")
)

// MaintenanceReport summarizes one retention sweep.
type MaintenanceReport struct {
	ContextsRemoved   int `json:"contexts_removed"`
	MemoriesRemoved   int `json:"memories_removed"`
	OperationsRemoved int `json:"operations_removed"`
}

// Store persists the agent's conversational and learned state. Postgres backs
// production; the in-memory implementation serves tests and DB-less runs.
type Store interface {
	// Conversation contexts.
	CreateContext(ctx context.Context, cc ConversationContext) (ConversationContext, error)
	GetContext(ctx context.Context, contextID string) (ConversationContext, error)
	ListContexts(ctx context.Context, userID string, limit int) ([]ConversationContext, error)
	AppendMessage(ctx context.Context, contextID string, msg Message) (Message, error)
	RecentMessages(ctx context.Context, contextID string, limit int) ([]Message, error)

	// Long-term memory items.
	CreateMemory(ctx context.Context, item Item) (Item, error)
	GetMemory(ctx context.Context, id string) (Item, error)
	QueryMemories(ctx context.Context, userID string, filters ItemFilters) ([]Item, error)
	// UpdateMemoryAccess bumps access count by delta (never below the current
	// value) and refreshes last-accessed time.
	UpdateMemoryAccess(ctx context.Context, id string, delta int) error
	// UpdateMemoryEmbedding stores the computed semantic vector for an item.
	UpdateMemoryEmbedding(ctx context.Context, id string, embedding []float64) error

	// User preferences.
	GetUserPreferences(ctx context.Context, userID string) (Preferences, error)
	UpdateUserPreferences(ctx context.Context, userID string, partial map[string]any, strict bool) (Preferences, error)
	ResetUserPreferences(ctx context.Context, userID string) (Preferences, error)

	// Decision audit trail.
	RecordDecision(ctx context.Context, rec DecisionRecord) (DecisionRecord, error)
	UpdateDecisionOutcome(ctx context.Context, id, outcome string) error
	ListDecisions(ctx context.Context, userID string, limit int) ([]DecisionRecord, error)

	// Learned patterns.
	StorePattern(ctx context.Context, p Pattern) (Pattern, error)
	RetrievePatterns(ctx context.Context, kind string, userID string) ([]Pattern, error)

	// Feedback records.
	SaveFeedback(ctx context.Context, rec FeedbackRecord) (FeedbackRecord, error)
	ListFeedback(ctx context.Context, userID, targetType string, limit int) ([]FeedbackRecord, error)
	MarkFeedbackProcessed(ctx context.Context, id string) error

	// Pending operation audit copies (the confirmation manager owns the live
	// table; these persist lifecycle for restart and offline analysis).
	SavePendingOperation(ctx context.Context, op PendingOperation) error
	GetPendingOperation(ctx context.Context, operationID string) (PendingOperation, error)
	ListPendingOperations(ctx context.Context, sessionID string) ([]PendingOperation, error)

	// PerformMaintenance removes records past retention.
	PerformMaintenance(ctx context.Context, now time.Time) (MaintenanceReport, error)

	Close() error
}
