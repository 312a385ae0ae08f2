package llm

import (
	"context"
	"strings"
)

// MockGenerator produces deterministic local replies for development and
// tests.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (g *MockGenerator) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	text := buildMockReply(req)
	if onDelta != nil && text != "" {
		if err := onDelta(text); err != nil {
			return Response{}, err
		}
	}
	return Response{Text: text}, nil
}

func buildMockReply(req Request) string {
	base := strings.TrimSpace(req.InputText)
	if base == "" {
		return "No data available for that request."
	}
	if strings.TrimSpace(req.Instructions) != "" {
		// Restyle calls echo the input; the facts must survive untouched.
		return base
	}
	return base
}
