package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is an in-process store for tests and DB-less runs.
type InMemoryStore struct {
	mu sync.RWMutex

	defaultRetention time.Duration
	memoryRetention  time.Duration

	contexts    map[string]*ConversationContext
	memories    map[string]*Item
	preferences map[string]Preferences
	decisions   map[string]*DecisionRecord
	patterns    []Pattern
	feedback    map[string]*FeedbackRecord
	operations  map[string]*PendingOperation
}

func NewInMemoryStore(defaultRetention time.Duration) *InMemoryStore {
	if defaultRetention <= 0 {
		defaultRetention = 30 * 24 * time.Hour
	}
	return &InMemoryStore{
		defaultRetention: defaultRetention,
		memoryRetention:  180 * 24 * time.Hour,
		contexts:         make(map[string]*ConversationContext),
		memories:         make(map[string]*Item),
		preferences:      make(map[string]Preferences),
		decisions:        make(map[string]*DecisionRecord),
		feedback:         make(map[string]*FeedbackRecord),
		operations:       make(map[string]*PendingOperation),
	}
}

func (s *InMemoryStore) CreateContext(_ context.Context, cc ConversationContext) (ConversationContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if cc.ID == "" {
		cc.ID = uuid.NewString()
	}
	if cc.CreatedAt.IsZero() {
		cc.CreatedAt = now
	}
	cc.UpdatedAt = now
	if cc.RetentionPeriod <= 0 {
		cc.RetentionPeriod = s.defaultRetention
	}
	if cc.Attributes == nil {
		cc.Attributes = make(map[string]any)
	}
	clone := cloneContext(&cc)
	s.contexts[cc.ID] = clone
	return *cloneContext(clone), nil
}

func (s *InMemoryStore) GetContext(_ context.Context, contextID string) (ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cc, ok := s.contexts[contextID]
	if !ok {
		return ConversationContext{}, fmt.Errorf("context %s: %w", contextID, ErrNotFound)
	}
	return *cloneContext(cc), nil
}

func (s *InMemoryStore) ListContexts(_ context.Context, userID string, limit int) ([]ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ConversationContext
	for _, cc := range s.contexts {
		if userID != "" && cc.UserID != userID {
			continue
		}
		out = append(out, *cloneContext(cc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AppendMessage(_ context.Context, contextID string, msg Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cc, ok := s.contexts[contextID]
	if !ok {
		return Message{}, fmt.Errorf("context %s: %w", contextID, ErrNotFound)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.ContextID = contextID
	msg.Similarity = 0
	cc.Messages = append(cc.Messages, msg)
	cc.UpdatedAt = time.Now().UTC()
	return msg, nil
}

func (s *InMemoryStore) RecentMessages(_ context.Context, contextID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cc, ok := s.contexts[contextID]
	if !ok {
		return nil, fmt.Errorf("context %s: %w", contextID, ErrNotFound)
	}
	msgs := cc.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *InMemoryStore) CreateMemory(_ context.Context, item Item) (Item, error) {
	if strings.TrimSpace(item.Content) == "" {
		return Item{}, fmt.Errorf("%w: empty memory content", ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = now
	}
	if item.LastAccessedAt.IsZero() {
		item.LastAccessedAt = item.Timestamp
	}
	item.Normalize()
	clone := item
	s.memories[item.ID] = &clone
	return item, nil
}

func (s *InMemoryStore) GetMemory(_ context.Context, id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.memories[id]
	if !ok {
		return Item{}, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return *it, nil
}

func (s *InMemoryStore) QueryMemories(_ context.Context, userID string, filters ItemFilters) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	var out []Item
	for _, it := range s.memories {
		if it.UserID != userID {
			continue
		}
		if !matchesFilters(it, filters, now) {
			continue
		}
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func matchesFilters(it *Item, filters ItemFilters, now time.Time) bool {
	if len(filters.Categories) > 0 {
		found := false
		for _, c := range filters.Categories {
			if it.Category == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filters.MinImportance > 0 && it.Importance < filters.MinImportance {
		return false
	}
	if filters.MaxAge > 0 && now.Sub(it.Timestamp) > filters.MaxAge {
		return false
	}
	for _, tag := range filters.Tags {
		found := false
		for _, have := range it.Tags {
			if have == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *InMemoryStore) UpdateMemoryAccess(_ context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.memories[id]
	if !ok {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if delta > 0 {
		it.AccessCount += delta
	}
	it.LastAccessedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) UpdateMemoryEmbedding(_ context.Context, id string, embedding []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.memories[id]
	if !ok {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	it.Embedding = append([]float64(nil), embedding...)
	return nil
}

func (s *InMemoryStore) GetUserPreferences(_ context.Context, userID string) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, ok := s.preferences[userID]
	if !ok {
		return DefaultPreferences(), nil
	}
	out := make(Preferences, len(prefs))
	for k, v := range prefs {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryStore) UpdateUserPreferences(_ context.Context, userID string, partial map[string]any, strict bool) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base, ok := s.preferences[userID]
	if !ok {
		base = DefaultPreferences()
	}
	merged, err := MergePreferences(base, partial, strict)
	if err != nil {
		return nil, err
	}
	s.preferences[userID] = merged
	out := make(Preferences, len(merged))
	for k, v := range merged {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryStore) ResetUserPreferences(_ context.Context, userID string) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defaults := DefaultPreferences()
	s.preferences[userID] = defaults
	out := make(Preferences, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryStore) RecordDecision(_ context.Context, rec DecisionRecord) (DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	clone := rec
	s.decisions[rec.ID] = &clone
	return rec, nil
}

func (s *InMemoryStore) UpdateDecisionOutcome(_ context.Context, id, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.decisions[id]
	if !ok {
		return fmt.Errorf("decision %s: %w", id, ErrNotFound)
	}
	rec.Outcome = outcome
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) ListDecisions(_ context.Context, userID string, limit int) ([]DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DecisionRecord
	for _, rec := range s.decisions {
		if userID != "" && rec.UserID != userID {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) StorePattern(_ context.Context, p Pattern) (Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.patterns = append(s.patterns, p)
	return p, nil
}

func (s *InMemoryStore) RetrievePatterns(_ context.Context, kind string, userID string) ([]Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Pattern
	for _, p := range s.patterns {
		if kind != "" && p.Kind != kind {
			continue
		}
		if userID != "" && p.UserID != userID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *InMemoryStore) SaveFeedback(_ context.Context, rec FeedbackRecord) (FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	clone := rec
	s.feedback[rec.ID] = &clone
	return rec, nil
}

func (s *InMemoryStore) ListFeedback(_ context.Context, userID, targetType string, limit int) ([]FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []FeedbackRecord
	for _, rec := range s.feedback {
		if userID != "" && rec.UserID != userID {
			continue
		}
		if targetType != "" && rec.TargetType != targetType {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) MarkFeedbackProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.feedback[id]
	if !ok {
		return fmt.Errorf("feedback %s: %w", id, ErrNotFound)
	}
	rec.Processed = true
	return nil
}

func (s *InMemoryStore) SavePendingOperation(_ context.Context, op PendingOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op.OperationID == "" {
		return fmt.Errorf("%w: missing operation id", ErrInvalidRecord)
	}
	existing, ok := s.operations[op.OperationID]
	if ok && existing.Status.Terminal() && existing.Status != op.Status {
		return fmt.Errorf("operation %s: %w", op.OperationID, ErrTerminalStatus)
	}
	clone := op
	s.operations[op.OperationID] = &clone
	return nil
}

func (s *InMemoryStore) GetPendingOperation(_ context.Context, operationID string) (PendingOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operations[operationID]
	if !ok {
		return PendingOperation{}, fmt.Errorf("operation %s: %w", operationID, ErrNotFound)
	}
	return *op, nil
}

func (s *InMemoryStore) ListPendingOperations(_ context.Context, sessionID string) ([]PendingOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PendingOperation
	for _, op := range s.operations {
		if sessionID != "" && op.SessionID != sessionID {
			continue
		}
		out = append(out, *op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) PerformMaintenance(_ context.Context, now time.Time) (MaintenanceReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report MaintenanceReport
	for id, cc := range s.contexts {
		if now.Sub(cc.UpdatedAt) > cc.RetentionPeriod {
			delete(s.contexts, id)
			report.ContextsRemoved++
		}
	}
	// High-importance memories survive the sweep regardless of age.
	for id, it := range s.memories {
		if it.Importance >= 8 {
			continue
		}
		if now.Sub(it.LastAccessedAt) > s.memoryRetention {
			delete(s.memories, id)
			report.MemoriesRemoved++
		}
	}
	for id, op := range s.operations {
		if op.Status.Terminal() && now.Sub(op.ExpiresAt) > 30*24*time.Hour {
			delete(s.operations, id)
			report.OperationsRemoved++
		}
	}
	return report, nil
}

func (s *InMemoryStore) Close() error { return nil }

func cloneContext(cc *ConversationContext) *ConversationContext {
	out := *cc
	out.Messages = make([]Message, len(cc.Messages))
	copy(out.Messages, cc.Messages)
	out.Attributes = make(map[string]any, len(cc.Attributes))
	for k, v := range cc.Attributes {
		out.Attributes[k] = v
	}
	return &out
}
