package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateMemoryAppliesInvariants(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	item, err := s.CreateMemory(ctx, Item{
		UserID:     "u1",
		Content:    "prefers morning slots",
		Importance: 42,
		Tags:       []string{"pref", "pref", "slots", ""},
	})
	if err != nil {
		t.Fatalf("CreateMemory() error = %v", err)
	}
	if item.ID == "" || item.Timestamp.IsZero() {
		t.Fatalf("id and timestamp should be assigned, got %+v", item)
	}
	if item.Importance != MaxImportance {
		t.Fatalf("Importance = %d, want clamped to %d", item.Importance, MaxImportance)
	}
	if item.Category != CategoryOther {
		t.Fatalf("Category = %q, want default %q", item.Category, CategoryOther)
	}
	if len(item.Tags) != 2 {
		t.Fatalf("Tags = %v, want deduplicated to 2", item.Tags)
	}

	zero, err := s.CreateMemory(ctx, Item{UserID: "u1", Content: "x"})
	if err != nil {
		t.Fatalf("CreateMemory() error = %v", err)
	}
	if zero.Importance != DefaultImportance {
		t.Fatalf("unset importance = %d, want default %d", zero.Importance, DefaultImportance)
	}

	if _, err := s.CreateMemory(ctx, Item{UserID: "u1"}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("empty content error = %v, want ErrInvalidRecord", err)
	}
}

func TestUpdateMemoryAccessMonotone(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	item, _ := s.CreateMemory(ctx, Item{UserID: "u1", Content: "fact"})
	if err := s.UpdateMemoryAccess(ctx, item.ID, 2); err != nil {
		t.Fatalf("UpdateMemoryAccess() error = %v", err)
	}
	if err := s.UpdateMemoryAccess(ctx, item.ID, -5); err != nil {
		t.Fatalf("UpdateMemoryAccess() error = %v", err)
	}

	got, err := s.GetMemory(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetMemory() error = %v", err)
	}
	if got.AccessCount != 2 {
		t.Fatalf("AccessCount = %d, want 2 (never decreases)", got.AccessCount)
	}
}

func TestUpdateMemoryEmbedding(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	item, _ := s.CreateMemory(ctx, Item{UserID: "u1", Content: "fact"})
	if err := s.UpdateMemoryEmbedding(ctx, item.ID, []float64{0.5, 0.5, 0}); err != nil {
		t.Fatalf("UpdateMemoryEmbedding() error = %v", err)
	}

	got, err := s.GetMemory(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetMemory() error = %v", err)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 0.5 {
		t.Fatalf("Embedding = %v, want the stored vector", got.Embedding)
	}

	if err := s.UpdateMemoryEmbedding(ctx, "missing", []float64{1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id error = %v, want ErrNotFound", err)
	}
}

func TestQueryMemoriesFilters(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	_, _ = s.CreateMemory(ctx, Item{UserID: "u1", Content: "a", Category: CategoryPreference, Importance: 9})
	_, _ = s.CreateMemory(ctx, Item{UserID: "u1", Content: "b", Category: CategoryData, Importance: 3, Tags: []string{"insight"}})
	_, _ = s.CreateMemory(ctx, Item{UserID: "u2", Content: "c", Category: CategoryPreference, Importance: 9})

	got, err := s.QueryMemories(ctx, "u1", ItemFilters{Categories: []Category{CategoryPreference}})
	if err != nil {
		t.Fatalf("QueryMemories() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "a" {
		t.Fatalf("category filter got %+v, want only item a", got)
	}

	got, _ = s.QueryMemories(ctx, "u1", ItemFilters{Tags: []string{"insight"}})
	if len(got) != 1 || got[0].Content != "b" {
		t.Fatalf("tag filter got %+v, want only item b", got)
	}

	got, _ = s.QueryMemories(ctx, "u1", ItemFilters{MinImportance: 5})
	if len(got) != 1 || got[0].Content != "a" {
		t.Fatalf("importance filter got %+v, want only item a", got)
	}
}

func TestAppendMessageAndContext(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	cc, err := s.CreateContext(ctx, ConversationContext{UserID: "u1", SessionID: "s1"})
	if err != nil {
		t.Fatalf("CreateContext() error = %v", err)
	}
	if cc.RetentionPeriod <= 0 {
		t.Fatalf("retention should default, got %v", cc.RetentionPeriod)
	}

	for _, content := range []string{"first", "second", "third"} {
		if _, err := s.AppendMessage(ctx, cc.ID, Message{Role: RoleUser, Content: content}); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	got, err := s.GetContext(ctx, cc.ID)
	if err != nil {
		t.Fatalf("GetContext() error = %v", err)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(got.Messages))
	}
	if got.Messages[0].Content != "first" || got.Messages[2].Content != "third" {
		t.Fatalf("messages out of order: %+v", got.Messages)
	}

	recent, err := s.RecentMessages(ctx, cc.ID, 2)
	if err != nil {
		t.Fatalf("RecentMessages() error = %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "second" {
		t.Fatalf("RecentMessages() = %+v, want last two chronological", recent)
	}

	if _, err := s.AppendMessage(ctx, "missing", Message{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("append to missing context error = %v, want ErrNotFound", err)
	}
}

func TestPreferencesMergeNotReplace(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	got, err := s.UpdateUserPreferences(ctx, "u1", map[string]any{"theme": "DARK"}, false)
	if err != nil {
		t.Fatalf("UpdateUserPreferences() error = %v", err)
	}
	if got[PrefTheme] != "dark" {
		t.Fatalf("theme = %v, want canonicalized dark", got[PrefTheme])
	}
	if got[PrefDataPresentation] != "table" {
		t.Fatalf("merge dropped default dataPresentation: %+v", got)
	}

	// Unknown keys ignored in lax mode, rejected in strict mode.
	if _, err := s.UpdateUserPreferences(ctx, "u1", map[string]any{"bogus": 1}, false); err != nil {
		t.Fatalf("lax mode should ignore unknown key: %v", err)
	}
	if _, err := s.UpdateUserPreferences(ctx, "u1", map[string]any{"bogus": 1}, true); err == nil {
		t.Fatalf("strict mode should reject unknown key")
	}

	if _, err := s.UpdateUserPreferences(ctx, "u1", map[string]any{"theme": "purple"}, true); err == nil {
		t.Fatalf("invalid enum value should be rejected")
	}

	reset, err := s.ResetUserPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("ResetUserPreferences() error = %v", err)
	}
	if reset[PrefTheme] != "system" {
		t.Fatalf("reset theme = %v, want system", reset[PrefTheme])
	}
}

func TestDecisionsAndPatterns(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	rec, err := s.RecordDecision(ctx, DecisionRecord{UserID: "u1", Type: "approval", Payload: map[string]any{"op": "create_stand"}})
	if err != nil {
		t.Fatalf("RecordDecision() error = %v", err)
	}
	if err := s.UpdateDecisionOutcome(ctx, rec.ID, "confirmed"); err != nil {
		t.Fatalf("UpdateDecisionOutcome() error = %v", err)
	}
	list, _ := s.ListDecisions(ctx, "u1", 10)
	if len(list) != 1 || list[0].Outcome != "confirmed" {
		t.Fatalf("ListDecisions() = %+v, want confirmed outcome", list)
	}

	_, _ = s.StorePattern(ctx, Pattern{Kind: "routing", UserID: "u1"})
	_, _ = s.StorePattern(ctx, Pattern{Kind: "style", UserID: "u1"})
	pats, _ := s.RetrievePatterns(ctx, "routing", "u1")
	if len(pats) != 1 {
		t.Fatalf("RetrievePatterns() = %d patterns, want 1", len(pats))
	}
}

func TestMaintenanceSweepsExpired(t *testing.T) {
	s := NewInMemoryStore(time.Hour)
	ctx := context.Background()

	cc, _ := s.CreateContext(ctx, ConversationContext{UserID: "u1", RetentionPeriod: time.Hour})
	_, _ = s.CreateMemory(ctx, Item{UserID: "u1", Content: "low", Importance: 3})
	_, _ = s.CreateMemory(ctx, Item{UserID: "u1", Content: "critical", Importance: 9})

	report, err := s.PerformMaintenance(ctx, time.Now().UTC().Add(400*24*time.Hour))
	if err != nil {
		t.Fatalf("PerformMaintenance() error = %v", err)
	}
	if report.ContextsRemoved != 1 {
		t.Fatalf("ContextsRemoved = %d, want 1", report.ContextsRemoved)
	}
	if report.MemoriesRemoved != 1 {
		t.Fatalf("MemoriesRemoved = %d, want 1 (high importance survives)", report.MemoriesRemoved)
	}
	if _, err := s.GetContext(ctx, cc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired context still present: %v", err)
	}
}

func TestPendingOperationTerminalGuard(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()

	op := PendingOperation{
		OperationID:   "op1",
		SessionID:     "s1",
		OperationType: "create_maintenance",
		Status:        OpPending,
		CreatedAt:     time.Now().UTC(),
		ExpiresAt:     time.Now().UTC().Add(time.Minute),
	}
	if err := s.SavePendingOperation(ctx, op); err != nil {
		t.Fatalf("SavePendingOperation() error = %v", err)
	}

	op.Status = OpConfirmed
	if err := s.SavePendingOperation(ctx, op); err != nil {
		t.Fatalf("confirm transition error = %v", err)
	}

	op.Status = OpRejected
	if err := s.SavePendingOperation(ctx, op); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("terminal re-transition error = %v, want ErrTerminalStatus", err)
	}
}
