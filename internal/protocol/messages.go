// Package protocol defines the websocket payloads of the real-time agent
// channel.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientQuery    MessageType = "client_query"
	TypeClientAction   MessageType = "client_action"
	TypeJoinContext    MessageType = "join_context"
	TypeAgentResponse  MessageType = "agent-response"
	TypeResponseUpdate MessageType = "response-update"
	TypeActionProposal MessageType = "action-proposal"
	TypeActionResult   MessageType = "action-result"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientQuery is an inbound user utterance.
type ClientQuery struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	ContextID string      `json:"context_id,omitempty"`
	Query     string      `json:"query"`
}

// ClientAction confirms or rejects a pending operation.
type ClientAction struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	OperationID string      `json:"operation_id"`
	Action      string      `json:"action"`
	Reason      string      `json:"reason,omitempty"`
}

// JoinContext subscribes the connection to a conversation's events.
type JoinContext struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	ContextID string      `json:"context_id"`
}

// AgentResponse is the final answer for one turn.
type AgentResponse struct {
	Type           MessageType `json:"type"`
	ContextID      string      `json:"context_id"`
	MessageID      string      `json:"message_id"`
	Text           string      `json:"text"`
	Visualizations []any       `json:"visualizations,omitempty"`
	Confidence     float64     `json:"confidence"`
}

// ResponseUpdate streams partial answer text while a turn is in flight.
type ResponseUpdate struct {
	Type      MessageType `json:"type"`
	ContextID string      `json:"context_id"`
	MessageID string      `json:"message_id"`
	TextDelta string      `json:"text_delta"`
}

// ActionProposal asks the user to confirm a side-effecting operation.
type ActionProposal struct {
	Type        MessageType `json:"type"`
	ContextID   string      `json:"context_id"`
	OperationID string      `json:"operation_id"`
	ActionType  string      `json:"action_type"`
	Description string      `json:"description"`
	Message     string      `json:"message"`
	ExpiresAt   string      `json:"expires_at"`
}

// ActionResult reports the outcome of a confirmed or rejected operation.
type ActionResult struct {
	Type        MessageType `json:"type"`
	ContextID   string      `json:"context_id"`
	OperationID string      `json:"operation_id"`
	Status      string      `json:"status"`
	Data        any         `json:"data,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ErrorEvent reports a turn-level failure.
type ErrorEvent struct {
	Type      MessageType `json:"type"`
	ContextID string      `json:"context_id,omitempty"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates an inbound frame.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientQuery:
		var msg ClientQuery
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Query == "" {
			return nil, errors.New("invalid client_query")
		}
		return msg, nil
	case TypeClientAction:
		var msg ClientAction
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.OperationID == "" {
			return nil, errors.New("invalid client_action")
		}
		if msg.Action != "confirm" && msg.Action != "reject" {
			return nil, fmt.Errorf("invalid client_action action %q", msg.Action)
		}
		return msg, nil
	case TypeJoinContext:
		var msg JoinContext
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.ContextID == "" {
			return nil, errors.New("invalid join_context")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
