package agent

import (
	"context"
	"errors"

	"github.com/nickbooth1/airport-capacity-planner/internal/confirmation"
	"github.com/nickbooth1/airport-capacity-planner/internal/protocol"
	"github.com/nickbooth1/airport-capacity-planner/internal/session"
)

// RunConnection serves one websocket connection: it consumes parsed client
// frames from inbound and pushes agent events to outbound. It returns when
// inbound closes or the context is canceled. The caller owns both channels
// and the connection itself.
func (a *Agent) RunConnection(ctx context.Context, sess *session.Session, inbound <-chan any, outbound chan<- any) error {
	contextID := sess.ContextID

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-inbound:
			if !ok {
				return nil
			}
			switch msg := raw.(type) {
			case protocol.JoinContext:
				contextID = msg.ContextID
			case protocol.ClientQuery:
				if msg.ContextID != "" {
					contextID = msg.ContextID
				}
				turn, err := a.HandleQuery(ctx, sess.UserID, msg.SessionID, contextID, msg.Query)
				if err != nil {
					a.emit(ctx, outbound, protocol.ErrorEvent{
						Type:      protocol.TypeErrorEvent,
						ContextID: contextID,
						Code:      "turn_failed",
						Detail:    err.Error(),
					})
					continue
				}
				contextID = turn.ContextID
				if turn.Proposal != nil {
					a.emit(ctx, outbound, *turn.Proposal)
				}
				if turn.Response != nil {
					a.emit(ctx, outbound, *turn.Response)
				}
			case protocol.ClientAction:
				result, err := a.handleAction(ctx, msg)
				if err != nil {
					a.emit(ctx, outbound, protocol.ErrorEvent{
						Type:      protocol.TypeErrorEvent,
						ContextID: contextID,
						Code:      actionErrorCode(err),
						Detail:    err.Error(),
					})
					continue
				}
				result.ContextID = contextID
				a.emit(ctx, outbound, result)
			}
		}
	}
}

func (a *Agent) handleAction(ctx context.Context, msg protocol.ClientAction) (protocol.ActionResult, error) {
	if msg.Action == "reject" {
		return a.Reject(ctx, msg.SessionID, msg.OperationID, msg.Reason)
	}
	return a.Confirm(ctx, msg.SessionID, msg.OperationID)
}

func actionErrorCode(err error) string {
	switch {
	case errors.Is(err, confirmation.ErrNotFound):
		return "operation_not_found"
	case errors.Is(err, confirmation.ErrSessionMismatch):
		return "session_mismatch"
	case errors.Is(err, confirmation.ErrAlreadyResolved):
		return "operation_already_resolved"
	default:
		return "action_failed"
	}
}

func (a *Agent) emit(ctx context.Context, outbound chan<- any, event any) {
	select {
	case <-ctx.Done():
	case outbound <- event:
	}
}
