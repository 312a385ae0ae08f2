// Package confirmation holds side-effecting proposals until a human confirms
// or rejects them.
package confirmation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
)

var (
	ErrNotFound        = errors.New("operation not found or expired")
	ErrSessionMismatch = errors.New("operation belongs to a different session")
	ErrAlreadyResolved = errors.New("operation already resolved")
)

// Operation is the side-effecting call being proposed.
type Operation struct {
	Type        string         `json:"type"`
	Service     string         `json:"service"`
	Method      string         `json:"method"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Description string         `json:"description,omitempty"`
}

// Proposal is returned to the caller when an operation is parked.
type Proposal struct {
	OperationID string    `json:"operation_id"`
	Message     string    `json:"message"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type pendingRecord struct {
	Operation       Operation
	OperationID     string
	SessionID       string
	Status          memory.OperationStatus
	RejectionReason string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	ResolvedAt      *time.Time
}

// Manager is the custody point for pending operations. State lives in
// memory; every transition is also written through to the memory store so
// operations survive as audit records.
type Manager struct {
	mu       sync.RWMutex
	ops      map[string]*pendingRecord
	ttl      time.Duration
	store    memory.Store
	onExpire func(operationID, sessionID string)
	now      func() time.Time
}

// NewManager builds a manager with the given pending TTL. store may be nil
// in tests; write-through is skipped then.
func NewManager(ttl time.Duration, store memory.Store) *Manager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Manager{
		ops:   make(map[string]*pendingRecord),
		ttl:   ttl,
		store: store,
		now:   time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// SetExpireHook registers a callback invoked after the sweeper expires an
// operation. Called outside the manager lock.
func (m *Manager) SetExpireHook(hook func(operationID, sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// CreatePendingOperation parks an operation for the session and returns the
// proposal the user sees.
func (m *Manager) CreatePendingOperation(ctx context.Context, op Operation, sessionID string) (Proposal, error) {
	now := m.now().UTC()
	rec := &pendingRecord{
		Operation:   op,
		OperationID: uuid.NewString(),
		SessionID:   sessionID,
		Status:      memory.OpPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}

	m.mu.Lock()
	m.ops[rec.OperationID] = rec
	m.mu.Unlock()

	m.writeThrough(ctx, rec)

	return Proposal{
		OperationID: rec.OperationID,
		Message:     confirmationMessage(rec),
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// ConfirmOperation transitions a pending operation to confirmed and returns
// the operation to execute.
func (m *Manager) ConfirmOperation(ctx context.Context, operationID, sessionID string) (Operation, error) {
	rec, err := m.resolve(operationID, sessionID, memory.OpConfirmed, "")
	if err != nil {
		return Operation{}, err
	}
	m.writeThrough(ctx, rec)
	return rec.Operation, nil
}

// RejectOperation transitions a pending operation to rejected. An empty
// reason defaults to "User rejected".
func (m *Manager) RejectOperation(ctx context.Context, operationID, sessionID, reason string) error {
	if reason == "" {
		reason = "User rejected"
	}
	rec, err := m.resolve(operationID, sessionID, memory.OpRejected, reason)
	if err != nil {
		return err
	}
	m.writeThrough(ctx, rec)
	return nil
}

func (m *Manager) resolve(operationID, sessionID string, to memory.OperationStatus, reason string) (*pendingRecord, error) {
	now := m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.ops[operationID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.SessionID != sessionID {
		return nil, ErrSessionMismatch
	}
	if rec.Status.Terminal() {
		return nil, fmt.Errorf("%w: already %s", ErrAlreadyResolved, rec.Status)
	}
	if now.After(rec.ExpiresAt) {
		rec.Status = memory.OpExpired
		rec.ResolvedAt = &now
		return nil, ErrNotFound
	}
	rec.Status = to
	rec.RejectionReason = reason
	rec.ResolvedAt = &now
	return snapshot(rec), nil
}

// GetOperation returns a pending operation's current state. Expired pending
// records are reported as not found.
func (m *Manager) GetOperation(operationID string) (memory.PendingOperation, error) {
	now := m.now().UTC()
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.ops[operationID]
	if !ok {
		return memory.PendingOperation{}, ErrNotFound
	}
	if rec.Status == memory.OpPending && now.After(rec.ExpiresAt) {
		return memory.PendingOperation{}, ErrNotFound
	}
	return toStored(rec), nil
}

// PendingForSession lists the session's non-terminal operations.
func (m *Manager) PendingForSession(sessionID string) []memory.PendingOperation {
	now := m.now().UTC()
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []memory.PendingOperation
	for _, rec := range m.ops {
		if rec.SessionID != sessionID || rec.Status.Terminal() {
			continue
		}
		if now.After(rec.ExpiresAt) {
			continue
		}
		out = append(out, toStored(rec))
	}
	return out
}

// PendingCount reports how many operations are currently pending.
func (m *Manager) PendingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, rec := range m.ops {
		if rec.Status == memory.OpPending {
			count++
		}
	}
	return count
}

// StartSweeper expires overdue pending operations at a fixed cadence until
// the context is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(ctx)
			}
		}
	}()
}

func (m *Manager) sweep(ctx context.Context) {
	now := m.now().UTC()
	var expired []*pendingRecord

	m.mu.Lock()
	for id, rec := range m.ops {
		if rec.Status.Terminal() {
			delete(m.ops, id)
			continue
		}
		if now.After(rec.ExpiresAt) {
			rec.Status = memory.OpExpired
			rec.ResolvedAt = &now
			expired = append(expired, snapshot(rec))
			delete(m.ops, id)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, rec := range expired {
		m.writeThrough(ctx, rec)
		if hook != nil {
			hook(rec.OperationID, rec.SessionID)
		}
	}
}

func (m *Manager) writeThrough(ctx context.Context, rec *pendingRecord) {
	if m.store == nil {
		return
	}
	if err := m.store.SavePendingOperation(ctx, toStored(rec)); err != nil {
		log.Printf("confirmation: persist %s failed: %v", rec.OperationID, err)
	}
}

func toStored(rec *pendingRecord) memory.PendingOperation {
	params := map[string]any{
		"service":     rec.Operation.Service,
		"method":      rec.Operation.Method,
		"parameters":  rec.Operation.Parameters,
		"description": rec.Operation.Description,
	}
	return memory.PendingOperation{
		OperationID:     rec.OperationID,
		SessionID:       rec.SessionID,
		OperationType:   rec.Operation.Type,
		Parameters:      params,
		Status:          rec.Status,
		RejectionReason: rec.RejectionReason,
		CreatedAt:       rec.CreatedAt,
		ExpiresAt:       rec.ExpiresAt,
		ResolvedAt:      rec.ResolvedAt,
	}
}

func snapshot(rec *pendingRecord) *pendingRecord {
	c := *rec
	return &c
}

// confirmationMessage renders the per-type prompt. Unknown types fall back
// to a generic rendering of the parameters.
func confirmationMessage(rec *pendingRecord) string {
	var action string
	switch rec.Operation.Type {
	case "maintenance.create", "create_maintenance":
		action = "Create this maintenance request"
	case "maintenance.update", "update_maintenance":
		action = "Apply this maintenance update"
	case "capacity.parameter_update", "update_capacity_parameters":
		action = "Update the capacity parameters"
	case "autonomous.setting":
		action = "Change the autonomous operation setting"
	case "create_stand":
		action = "Create this stand"
	case "update_terminal":
		action = "Apply this terminal update"
	default:
		payload, _ := json.Marshal(rec.Operation.Parameters)
		action = fmt.Sprintf("Confirm %s: %s", rec.Operation.Type, payload)
	}
	if rec.Operation.Description != "" {
		action += " (" + rec.Operation.Description + ")"
	}
	return fmt.Sprintf("%s. Reply \"confirm %s\" to proceed or \"reject %s\" to cancel.",
		action, rec.OperationID, rec.OperationID)
}
