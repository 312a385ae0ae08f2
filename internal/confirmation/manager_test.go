package confirmation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
)

func testOperation() Operation {
	return Operation{
		Type:    "maintenance.create",
		Service: "maintenanceService",
		Method:  "createMaintenanceRequest",
		Parameters: map[string]any{
			"stand":     "A12",
			"startDate": "2025-03-13",
		},
		Description: "Create a maintenance request for stand A12 starting tomorrow",
	}
}

func TestConfirmationLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := NewManager(10*time.Minute, nil).WithClock(clock)

	proposal, err := m.CreatePendingOperation(ctx, testOperation(), "S1")
	if err != nil {
		t.Fatal(err)
	}
	if proposal.OperationID == "" {
		t.Fatal("empty operation id")
	}
	if !strings.Contains(proposal.Message, proposal.OperationID) {
		t.Errorf("message does not reference the operation id: %q", proposal.Message)
	}
	if !strings.Contains(proposal.Message, "confirm") {
		t.Errorf("message does not say how to confirm: %q", proposal.Message)
	}
	if got := proposal.ExpiresAt; !got.Equal(now.Add(10 * time.Minute)) {
		t.Errorf("expiresAt = %v", got)
	}

	// Wrong session.
	if _, err := m.ConfirmOperation(ctx, proposal.OperationID, "S2"); !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("err = %v, want ErrSessionMismatch", err)
	}

	// Right session succeeds and returns the parked operation.
	op, err := m.ConfirmOperation(ctx, proposal.OperationID, "S1")
	if err != nil {
		t.Fatal(err)
	}
	if op.Method != "createMaintenanceRequest" {
		t.Errorf("method = %q", op.Method)
	}

	// Second confirm fails with already confirmed.
	_, err = m.ConfirmOperation(ctx, proposal.OperationID, "S1")
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("err = %v, want ErrAlreadyResolved", err)
	}
	if !strings.Contains(err.Error(), "already confirmed") {
		t.Errorf("err = %v, want mention of confirmed state", err)
	}
}

func TestConfirmationExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := NewManager(5*time.Minute, nil).WithClock(clock)

	proposal, err := m.CreatePendingOperation(ctx, testOperation(), "S1")
	if err != nil {
		t.Fatal(err)
	}

	// Past the TTL the operation is gone for every read and transition.
	now = now.Add(6 * time.Minute)

	if _, err := m.GetOperation(proposal.OperationID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetOperation err = %v, want ErrNotFound", err)
	}
	if _, err := m.ConfirmOperation(ctx, proposal.OperationID, "S1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ConfirmOperation err = %v, want ErrNotFound", err)
	}
}

func TestRejectOperationDefaultReason(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInMemoryStore(30 * 24 * time.Hour)
	m := NewManager(5*time.Minute, store)

	proposal, err := m.CreatePendingOperation(ctx, testOperation(), "S1")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.RejectOperation(ctx, proposal.OperationID, "S1", ""); err != nil {
		t.Fatal(err)
	}

	stored, err := store.GetPendingOperation(ctx, proposal.OperationID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != memory.OpRejected {
		t.Errorf("status = %q", stored.Status)
	}
	if stored.RejectionReason != "User rejected" {
		t.Errorf("reason = %q", stored.RejectionReason)
	}
}

func TestSweeperExpiresAndNotifies(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := memory.NewInMemoryStore(30 * 24 * time.Hour)
	m := NewManager(time.Minute, store).WithClock(clock)

	var expiredID string
	m.SetExpireHook(func(operationID, sessionID string) { expiredID = operationID })

	proposal, err := m.CreatePendingOperation(ctx, testOperation(), "S1")
	if err != nil {
		t.Fatal(err)
	}
	if m.PendingCount() != 1 {
		t.Fatalf("pending = %d", m.PendingCount())
	}

	now = now.Add(2 * time.Minute)
	m.sweep(ctx)

	if expiredID != proposal.OperationID {
		t.Errorf("expire hook got %q, want %q", expiredID, proposal.OperationID)
	}
	if m.PendingCount() != 0 {
		t.Errorf("pending = %d after sweep", m.PendingCount())
	}
	stored, err := store.GetPendingOperation(ctx, proposal.OperationID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != memory.OpExpired {
		t.Errorf("stored status = %q", stored.Status)
	}
}

func TestPendingForSessionExcludesTerminal(t *testing.T) {
	ctx := context.Background()
	m := NewManager(5*time.Minute, nil)

	first, _ := m.CreatePendingOperation(ctx, testOperation(), "S1")
	second, _ := m.CreatePendingOperation(ctx, testOperation(), "S1")
	m.CreatePendingOperation(ctx, testOperation(), "S2")

	if _, err := m.ConfirmOperation(ctx, first.OperationID, "S1"); err != nil {
		t.Fatal(err)
	}

	pending := m.PendingForSession("S1")
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].OperationID != second.OperationID {
		t.Errorf("pending op = %q, want %q", pending[0].OperationID, second.OperationID)
	}
}
