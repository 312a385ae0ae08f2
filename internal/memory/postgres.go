package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists agent state in PostgreSQL.
type PostgresStore struct {
	pool             *pgxpool.Pool
	defaultRetention time.Duration
	memoryRetention  time.Duration
}

func NewPostgresStore(ctx context.Context, databaseURL string, defaultRetention time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	if defaultRetention <= 0 {
		defaultRetention = 30 * 24 * time.Hour
	}
	return &PostgresStore{
		pool:             pool,
		defaultRetention: defaultRetention,
		memoryRetention:  180 * 24 * time.Hour,
	}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		`CREATE TABLE IF NOT EXISTS conversation_contexts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			attributes JSONB NOT NULL DEFAULT '{}',
			retention_seconds BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_contexts_user_updated ON conversation_contexts (user_id, updated_at DESC);`,
		`CREATE TABLE IF NOT EXISTS agent_messages (
			id TEXT PRIMARY KEY,
			context_id TEXT NOT NULL REFERENCES conversation_contexts(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			visualizations JSONB NOT NULL DEFAULT '[]',
			embedding vector(1536),
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_context_created ON agent_messages (context_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS agent_long_term_memories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			context_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			importance INTEGER NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			access_count INTEGER NOT NULL DEFAULT 0,
			embedding vector(1536),
			created_at TIMESTAMPTZ NOT NULL,
			last_accessed_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memories_user_importance ON agent_long_term_memories (user_id, importance DESC, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS agent_user_preferences (
			user_id TEXT PRIMARY KEY,
			preferences JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS agent_decisions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			decision_type TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			outcome TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_user_created ON agent_decisions (user_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS agent_patterns (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_kind ON agent_patterns (kind, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS agent_feedback (
			id TEXT PRIMARY KEY,
			target_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			rating DOUBLE PRECISION NOT NULL,
			feedback_text TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			source TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			processed BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_user_type ON agent_feedback (user_id, target_type, received_at DESC);`,
		`CREATE TABLE IF NOT EXISTS agent_pending_operations (
			operation_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			operation_type TEXT NOT NULL,
			parameters JSONB NOT NULL DEFAULT '{}',
			status TEXT NOT NULL,
			rejection_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_ops_session ON agent_pending_operations (session_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateContext(ctx context.Context, cc ConversationContext) (ConversationContext, error) {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_contexts (id, user_id, session_id, attributes, retention_seconds, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		cc.ID, cc.UserID, cc.SessionID, cc.Attributes, int64(cc.RetentionPeriod.Seconds()), cc.CreatedAt, cc.UpdatedAt,
	)
	if err != nil {
		return ConversationContext{}, fmt.Errorf("create context: %w", err)
	}
	return cc, nil
}

func (s *PostgresStore) GetContext(ctx context.Context, contextID string) (ConversationContext, error) {
	var (
		cc               ConversationContext
		retentionSeconds int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, session_id, attributes, retention_seconds, created_at, updated_at
		 FROM conversation_contexts WHERE id=$1`, contextID,
	).Scan(&cc.ID, &cc.UserID, &cc.SessionID, &cc.Attributes, &retentionSeconds, &cc.CreatedAt, &cc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConversationContext{}, fmt.Errorf("context %s: %w", contextID, ErrNotFound)
	}
	if err != nil {
		return ConversationContext{}, fmt.Errorf("get context: %w", err)
	}
	cc.RetentionPeriod = time.Duration(retentionSeconds) * time.Second

	msgs, err := s.RecentMessages(ctx, contextID, 0)
	if err != nil {
		return ConversationContext{}, err
	}
	cc.Messages = msgs
	return cc, nil
}

func (s *PostgresStore) ListContexts(ctx context.Context, userID string, limit int) ([]ConversationContext, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, session_id, attributes, retention_seconds, created_at, updated_at
		 FROM conversation_contexts
		 WHERE ($1 = '' OR user_id = $1)
		 ORDER BY updated_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list contexts: %w", err)
	}
	defer rows.Close()

	var out []ConversationContext
	for rows.Next() {
		var (
			cc               ConversationContext
			retentionSeconds int64
		)
		if err := rows.Scan(&cc.ID, &cc.UserID, &cc.SessionID, &cc.Attributes, &retentionSeconds, &cc.CreatedAt, &cc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan context row: %w", err)
		}
		cc.RetentionPeriod = time.Duration(retentionSeconds) * time.Second
		out = append(out, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate context rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, contextID string, msg Message) (Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.ContextID = contextID
	msg.Similarity = 0
	if msg.Visualizations == nil {
		msg.Visualizations = []Visualization{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE conversation_contexts SET updated_at=$2 WHERE id=$1`,
		contextID, time.Now().UTC())
	if err != nil {
		return Message{}, fmt.Errorf("touch context: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Message{}, fmt.Errorf("context %s: %w", contextID, ErrNotFound)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO agent_messages (id, context_id, role, content, visualizations, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		msg.ID, contextID, string(msg.Role), msg.Content, msg.Visualizations, msg.Timestamp)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, contextID string, limit int) ([]Message, error) {
	query := `SELECT id, context_id, role, content, visualizations, created_at
	 FROM agent_messages WHERE context_id=$1 ORDER BY created_at DESC`
	args := []any{contextID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m    Message
			role string
		)
		if err := rows.Scan(&m.ID, &m.ContextID, &role, &m.Content, &m.Visualizations, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	// Rows come newest-first; reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *PostgresStore) CreateMemory(ctx context.Context, item Item) (Item, error) {
	if strings.TrimSpace(item.Content) == "" {
		return Item{}, fmt.Errorf("%w: empty memory content", ErrInvalidRecord)
	}
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
	if item.Tags == nil {
		item.Tags = []string{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_long_term_memories
		 (id, user_id, context_id, content, category, importance, tags, access_count, embedding, created_at, last_accessed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::vector,$10,$11)`,
		item.ID, item.UserID, item.ContextID, item.Content, string(item.Category),
		item.Importance, item.Tags, item.AccessCount, vectorLiteral(item.Embedding),
		item.Timestamp, item.LastAccessedAt)
	if err != nil {
		return Item{}, fmt.Errorf("create memory: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) GetMemory(ctx context.Context, id string) (Item, error) {
	it, err := s.scanMemory(s.pool.QueryRow(ctx,
		`SELECT id, user_id, context_id, content, category, importance, tags, access_count, embedding::text, created_at, last_accessed_at
		 FROM agent_long_term_memories WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("get memory: %w", err)
	}
	return it, nil
}

func (s *PostgresStore) scanMemory(row pgx.Row) (Item, error) {
	var (
		it        Item
		category  string
		embedding *string
	)
	err := row.Scan(&it.ID, &it.UserID, &it.ContextID, &it.Content, &category,
		&it.Importance, &it.Tags, &it.AccessCount, &embedding, &it.Timestamp, &it.LastAccessedAt)
	if err != nil {
		return Item{}, err
	}
	it.Category = Category(category)
	it.Embedding = parseVector(embedding)
	return it, nil
}

func (s *PostgresStore) QueryMemories(ctx context.Context, userID string, filters ItemFilters) ([]Item, error) {
	query := `SELECT id, user_id, context_id, content, category, importance, tags, access_count, embedding::text, created_at, last_accessed_at
	 FROM agent_long_term_memories WHERE user_id=$1`
	args := []any{userID}
	idx := 2

	if len(filters.Categories) > 0 {
		cats := make([]string, len(filters.Categories))
		for i, c := range filters.Categories {
			cats[i] = string(c)
		}
		query += fmt.Sprintf(" AND category = ANY($%d)", idx)
		args = append(args, cats)
		idx++
	}
	if filters.MinImportance > 0 {
		query += fmt.Sprintf(" AND importance >= $%d", idx)
		args = append(args, filters.MinImportance)
		idx++
	}
	if filters.MaxAge > 0 {
		query += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, time.Now().UTC().Add(-filters.MaxAge))
		idx++
	}
	if len(filters.Tags) > 0 {
		query += fmt.Sprintf(" AND tags @> $%d", idx)
		args = append(args, filters.Tags)
		idx++
	}
	query += " ORDER BY importance DESC, created_at DESC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, filters.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		it, err := s.scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateMemoryAccess(ctx context.Context, id string, delta int) error {
	if delta < 0 {
		delta = 0
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_long_term_memories
		 SET access_count = access_count + $2, last_accessed_at = $3
		 WHERE id=$1`, id, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update memory access: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) UpdateMemoryEmbedding(ctx context.Context, id string, embedding []float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_long_term_memories SET embedding = $2::vector WHERE id=$1`,
		id, vectorLiteral(embedding))
	if err != nil {
		return fmt.Errorf("update memory embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return nil
}

// vectorLiteral renders a vector in pgvector's text form, nil for NULL.
func vectorLiteral(vec []float64) *string {
	if len(vec) == 0 {
		return nil
	}
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	literal := "[" + strings.Join(parts, ",") + "]"
	return &literal
}

func parseVector(literal *string) []float64 {
	if literal == nil {
		return nil
	}
	body := strings.Trim(strings.TrimSpace(*literal), "[]")
	if body == "" {
		return nil
	}
	parts := strings.Split(body, ",")
	vec := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil
		}
		vec = append(vec, v)
	}
	return vec
}

func (s *PostgresStore) GetUserPreferences(ctx context.Context, userID string) (Preferences, error) {
	var prefs Preferences
	err := s.pool.QueryRow(ctx,
		`SELECT preferences FROM agent_user_preferences WHERE user_id=$1`, userID,
	).Scan(&prefs)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return prefs, nil
}

func (s *PostgresStore) UpdateUserPreferences(ctx context.Context, userID string, partial map[string]any, strict bool) (Preferences, error) {
	base, err := s.GetUserPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	merged, err := MergePreferences(base, partial, strict)
	if err != nil {
		return nil, err
	}
	if err := s.writePreferences(ctx, userID, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *PostgresStore) ResetUserPreferences(ctx context.Context, userID string) (Preferences, error) {
	defaults := DefaultPreferences()
	if err := s.writePreferences(ctx, userID, defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

func (s *PostgresStore) writePreferences(ctx context.Context, userID string, prefs Preferences) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_user_preferences (user_id, preferences, updated_at)
		 VALUES ($1,$2,$3)
		 ON CONFLICT (user_id) DO UPDATE SET preferences=EXCLUDED.preferences, updated_at=EXCLUDED.updated_at`,
		userID, prefs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordDecision(ctx context.Context, rec DecisionRecord) (DecisionRecord, error) {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Payload == nil {
		rec.Payload = map[string]any{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_decisions (id, user_id, decision_type, payload, outcome, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.UserID, rec.Type, rec.Payload, rec.Outcome, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return DecisionRecord{}, fmt.Errorf("record decision: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) UpdateDecisionOutcome(ctx context.Context, id, outcome string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_decisions SET outcome=$2, updated_at=$3 WHERE id=$1`,
		id, outcome, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update decision outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("decision %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context, userID string, limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, decision_type, payload, outcome, created_at, updated_at
		 FROM agent_decisions WHERE ($1 = '' OR user_id = $1)
		 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Type, &rec.Payload, &rec.Outcome, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) StorePattern(ctx context.Context, p Pattern) (Pattern, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Payload == nil {
		p.Payload = map[string]any{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_patterns (id, user_id, kind, payload, created_at) VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.UserID, p.Kind, p.Payload, p.CreatedAt)
	if err != nil {
		return Pattern{}, fmt.Errorf("store pattern: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) RetrievePatterns(ctx context.Context, kind string, userID string) ([]Pattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, payload, created_at FROM agent_patterns
		 WHERE ($1 = '' OR kind = $1) AND ($2 = '' OR user_id = $2)
		 ORDER BY created_at DESC`, kind, userID)
	if err != nil {
		return nil, fmt.Errorf("retrieve patterns: %w", err)
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		var p Pattern
		if err := rows.Scan(&p.ID, &p.UserID, &p.Kind, &p.Payload, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pattern row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pattern rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, rec FeedbackRecord) (FeedbackRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_feedback
		 (id, target_type, target_id, user_id, rating, feedback_text, metadata, source, received_at, processed)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.TargetType, rec.TargetID, rec.UserID, rec.Rating, rec.FeedbackText,
		rec.Metadata, string(rec.Source), rec.ReceivedAt, rec.Processed)
	if err != nil {
		return FeedbackRecord{}, fmt.Errorf("save feedback: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListFeedback(ctx context.Context, userID, targetType string, limit int) ([]FeedbackRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, target_type, target_id, user_id, rating, feedback_text, metadata, source, received_at, processed
		 FROM agent_feedback
		 WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR target_type = $2)
		 ORDER BY received_at DESC LIMIT $3`, userID, targetType, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []FeedbackRecord
	for rows.Next() {
		var (
			rec    FeedbackRecord
			source string
		)
		if err := rows.Scan(&rec.ID, &rec.TargetType, &rec.TargetID, &rec.UserID, &rec.Rating,
			&rec.FeedbackText, &rec.Metadata, &source, &rec.ReceivedAt, &rec.Processed); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		rec.Source = FeedbackSource(source)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkFeedbackProcessed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE agent_feedback SET processed=TRUE WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("mark feedback processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("feedback %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SavePendingOperation(ctx context.Context, op PendingOperation) error {
	if op.OperationID == "" {
		return fmt.Errorf("%w: missing operation id", ErrInvalidRecord)
	}
	if op.Parameters == nil {
		op.Parameters = map[string]any{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_pending_operations
		 (operation_id, session_id, operation_type, parameters, status, rejection_reason, created_at, expires_at, resolved_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (operation_id) DO UPDATE SET
			status=EXCLUDED.status,
			rejection_reason=EXCLUDED.rejection_reason,
			resolved_at=EXCLUDED.resolved_at
		 WHERE agent_pending_operations.status = 'pending'`,
		op.OperationID, op.SessionID, op.OperationType, op.Parameters, string(op.Status),
		op.RejectionReason, op.CreatedAt, op.ExpiresAt, op.ResolvedAt)
	if err != nil {
		return fmt.Errorf("save pending operation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPendingOperation(ctx context.Context, operationID string) (PendingOperation, error) {
	var (
		op     PendingOperation
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT operation_id, session_id, operation_type, parameters, status, rejection_reason, created_at, expires_at, resolved_at
		 FROM agent_pending_operations WHERE operation_id=$1`, operationID,
	).Scan(&op.OperationID, &op.SessionID, &op.OperationType, &op.Parameters, &status,
		&op.RejectionReason, &op.CreatedAt, &op.ExpiresAt, &op.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PendingOperation{}, fmt.Errorf("operation %s: %w", operationID, ErrNotFound)
	}
	if err != nil {
		return PendingOperation{}, fmt.Errorf("get pending operation: %w", err)
	}
	op.Status = OperationStatus(status)
	return op, nil
}

func (s *PostgresStore) ListPendingOperations(ctx context.Context, sessionID string) ([]PendingOperation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT operation_id, session_id, operation_type, parameters, status, rejection_reason, created_at, expires_at, resolved_at
		 FROM agent_pending_operations WHERE ($1 = '' OR session_id = $1)
		 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list pending operations: %w", err)
	}
	defer rows.Close()

	var out []PendingOperation
	for rows.Next() {
		var (
			op     PendingOperation
			status string
		)
		if err := rows.Scan(&op.OperationID, &op.SessionID, &op.OperationType, &op.Parameters, &status,
			&op.RejectionReason, &op.CreatedAt, &op.ExpiresAt, &op.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan operation row: %w", err)
		}
		op.Status = OperationStatus(status)
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operation rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) PerformMaintenance(ctx context.Context, now time.Time) (MaintenanceReport, error) {
	var report MaintenanceReport

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_contexts
		 WHERE updated_at + make_interval(secs => retention_seconds) < $1`, now)
	if err != nil {
		return report, fmt.Errorf("sweep contexts: %w", err)
	}
	report.ContextsRemoved = int(tag.RowsAffected())

	tag, err = s.pool.Exec(ctx,
		`DELETE FROM agent_long_term_memories
		 WHERE importance < 8 AND last_accessed_at < $1`, now.Add(-s.memoryRetention))
	if err != nil {
		return report, fmt.Errorf("sweep memories: %w", err)
	}
	report.MemoriesRemoved = int(tag.RowsAffected())

	tag, err = s.pool.Exec(ctx,
		`DELETE FROM agent_pending_operations
		 WHERE status <> 'pending' AND expires_at < $1`, now.Add(-30*24*time.Hour))
	if err != nil {
		return report, fmt.Errorf("sweep operations: %w", err)
	}
	report.OperationsRemoved = int(tag.RowsAffected())

	return report, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
