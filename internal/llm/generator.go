// Package llm talks to an optional text generator used for response
// rendering and restyling. The agent works without it.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Request is the normalized prompt sent to the generator.
type Request struct {
	UserID        string   `json:"user_id,omitempty"`
	ContextID     string   `json:"context_id,omitempty"`
	InputText     string   `json:"input_text"`
	Instructions  string   `json:"instructions,omitempty"`
	MemoryContext []string `json:"memory_context,omitempty"`
}

// Response is the final text after any streaming deltas.
type Response struct {
	Text string `json:"text"`
}

// DeltaHandler receives streaming text fragments.
type DeltaHandler func(delta string) error

// Generator produces text for a request, optionally streaming deltas.
type Generator interface {
	StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error)
}

// New builds a generator for the configured mode: "http" for a remote
// endpoint, "mock" for deterministic local replies, "off" (or empty) for
// none. A nil Generator means the feature is disabled.
func New(mode, url, apiKey string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "off":
		return nil, nil
	case "http":
		if strings.TrimSpace(url) == "" {
			return nil, errors.New("generator http url is required for http mode")
		}
		return NewHTTPGenerator(url, apiKey), nil
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, errors.New("unknown generator mode: " + mode)
	}
}

// Rewriter adapts a Generator to the single-shot restyle call the learning
// engine uses.
type Rewriter struct {
	gen Generator
}

func NewRewriter(gen Generator) *Rewriter {
	return &Rewriter{gen: gen}
}

func (r *Rewriter) Rewrite(ctx context.Context, instructions, text string) (string, error) {
	if r.gen == nil {
		return "", errors.New("no generator configured")
	}
	res, err := r.gen.StreamResponse(ctx, Request{
		InputText:    text,
		Instructions: instructions,
	}, nil)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
