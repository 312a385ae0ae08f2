package agent

import (
	"context"
	"log"

	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
	"github.com/nickbooth1/airport-capacity-planner/internal/protocol"
)

// Confirm executes a pending operation after the user approves it. The
// operation is consumed either way; a failed execution is reported, not
// retried.
func (a *Agent) Confirm(ctx context.Context, sessionID, operationID string) (protocol.ActionResult, error) {
	op, err := a.confirmations.ConfirmOperation(ctx, operationID, sessionID)
	if err != nil {
		return protocol.ActionResult{}, err
	}
	a.operationEvent("confirmed")

	result := a.orch.CallApproved(ctx, op.Service, op.Method, op.Parameters)
	a.observeToolCall(result)

	status := "executed"
	if !result.Success {
		status = "failed"
	}
	a.recordDecision(ctx, sessionID, "operation_confirmed", operationID, op.Type, status)

	return protocol.ActionResult{
		Type:        protocol.TypeActionResult,
		OperationID: operationID,
		Status:      status,
		Data:        result.Data,
		Error:       result.Error,
	}, nil
}

// Reject discards a pending operation without executing it.
func (a *Agent) Reject(ctx context.Context, sessionID, operationID, reason string) (protocol.ActionResult, error) {
	if err := a.confirmations.RejectOperation(ctx, operationID, sessionID, reason); err != nil {
		return protocol.ActionResult{}, err
	}
	a.operationEvent("rejected")
	a.recordDecision(ctx, sessionID, "operation_rejected", operationID, "", "rejected")

	return protocol.ActionResult{
		Type:        protocol.TypeActionResult,
		OperationID: operationID,
		Status:      "rejected",
	}, nil
}

// OperationStatus reports the lifecycle state of a pending operation.
func (a *Agent) OperationStatus(operationID string) (memory.PendingOperation, error) {
	return a.confirmations.GetOperation(operationID)
}

func (a *Agent) operationEvent(event string) {
	if a.metrics == nil {
		return
	}
	a.metrics.OperationEvents.WithLabelValues(event).Inc()
	a.metrics.PendingOperations.Set(float64(a.confirmations.PendingCount()))
}

func (a *Agent) recordDecision(ctx context.Context, sessionID, decisionType, operationID, actionType, outcome string) {
	payload := map[string]any{
		"operation_id": operationID,
		"session_id":   sessionID,
	}
	if actionType != "" {
		payload["action_type"] = actionType
	}
	userID := sessionID
	if a.sessions != nil {
		if sess, err := a.sessions.Get(sessionID); err == nil {
			userID = sess.UserID
		}
	}
	if _, err := a.store.RecordDecision(ctx, memory.DecisionRecord{
		UserID:  userID,
		Type:    decisionType,
		Payload: payload,
		Outcome: outcome,
	}); err != nil {
		log.Printf("agent: record decision for operation %s: %v", operationID, err)
	}
}
