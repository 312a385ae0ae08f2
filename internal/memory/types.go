package memory

import (
	"sort"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// Visualization is an opaque reference to a rendered artifact attached to a
// message. The agent core never interprets the payload.
type Visualization struct {
	Type  string         `json:"type"`
	Title string         `json:"title,omitempty"`
	Ref   string         `json:"ref,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Message is a single conversational turn.
type Message struct {
	ID             string          `json:"id"`
	ContextID      string          `json:"context_id"`
	Role           Role            `json:"role"`
	Content        string          `json:"content"`
	Timestamp      time.Time       `json:"timestamp"`
	Visualizations []Visualization `json:"visualizations,omitempty"`

	// Similarity is a transient search-time score; it is never persisted.
	Similarity float64 `json:"similarity,omitempty"`
}

// ConversationContext owns an ordered message list for one conversation.
type ConversationContext struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	SessionID       string         `json:"session_id"`
	Messages        []Message      `json:"messages"`
	Attributes      map[string]any `json:"context,omitempty"`
	RetentionPeriod time.Duration  `json:"retention_period"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Category classifies a long-term memory item.
type Category string

const (
	CategoryPreference Category = "PREFERENCE"
	CategoryConstraint Category = "CONSTRAINT"
	CategoryAction     Category = "ACTION"
	CategoryData       Category = "DATA"
	CategoryOther      Category = "OTHER"
)

const (
	DefaultImportance = 5
	MinImportance     = 1
	MaxImportance     = 10
)

// Item is a long-term memory record: a categorized fact or preference.
type Item struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ContextID      string    `json:"context_id,omitempty"`
	Content        string    `json:"content"`
	Category       Category  `json:"category"`
	Importance     int       `json:"importance"`
	Timestamp      time.Time `json:"timestamp"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int       `json:"access_count"`
	Tags           []string  `json:"tags,omitempty"`

	// Embedding is the stored semantic vector for this item, when one has
	// been computed. Empty means not yet embedded.
	Embedding []float64 `json:"embedding,omitempty"`
}

// Normalize enforces the item invariants: importance clamped to [1,10]
// (default 5 when unset), category defaulted, tags deduplicated, access count
// never negative.
func (it *Item) Normalize() {
	if it.Importance == 0 {
		it.Importance = DefaultImportance
	}
	if it.Importance < MinImportance {
		it.Importance = MinImportance
	}
	if it.Importance > MaxImportance {
		it.Importance = MaxImportance
	}
	if it.Category == "" {
		it.Category = CategoryOther
	}
	if it.AccessCount < 0 {
		it.AccessCount = 0
	}
	it.Tags = dedupeTags(it.Tags)
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// ItemFilters narrows a memory query.
type ItemFilters struct {
	Categories    []Category
	MinImportance int
	MaxAge        time.Duration
	Tags          []string
	Limit         int
}

// DecisionRecord is an append-only audit artifact.
type DecisionRecord struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Pattern is a learned artifact retrievable by kind.
type Pattern struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// FeedbackSource distinguishes explicit ratings from derived implicit signals.
type FeedbackSource string

const (
	SourceExplicit FeedbackSource = "user_explicit"
	SourceImplicit FeedbackSource = "user_implicit"
)

// FeedbackRecord stores one piece of user feedback. Rating is within [1,5];
// implicit feedback may carry a non-integer derived rating.
type FeedbackRecord struct {
	ID           string         `json:"id"`
	TargetType   string         `json:"target_type"`
	TargetID     string         `json:"target_id"`
	UserID       string         `json:"user_id"`
	Rating       float64        `json:"rating"`
	FeedbackText string         `json:"feedback_text,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Source       FeedbackSource `json:"source"`
	ReceivedAt   time.Time      `json:"received_at"`
	Processed    bool           `json:"processed"`
}

// OperationStatus is the pending-operation state machine. Transitions are
// monotone: pending may move to confirmed, rejected or expired, and terminal
// states never change.
type OperationStatus string

const (
	OpPending   OperationStatus = "pending"
	OpConfirmed OperationStatus = "confirmed"
	OpRejected  OperationStatus = "rejected"
	OpExpired   OperationStatus = "expired"
)

func (s OperationStatus) Terminal() bool {
	return s == OpConfirmed || s == OpRejected || s == OpExpired
}

// PendingOperation is a side-effecting proposal held for human confirmation.
type PendingOperation struct {
	OperationID     string          `json:"operation_id"`
	SessionID       string          `json:"session_id"`
	OperationType   string          `json:"operation_type"`
	Parameters      map[string]any  `json:"parameters,omitempty"`
	Status          OperationStatus `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
}

func sortMessagesChronological(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
