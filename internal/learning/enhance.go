package learning

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
)

// Generator optionally re-renders response text toward a learned style. The
// enhancement path tolerates any failure.
type Generator interface {
	Rewrite(ctx context.Context, instructions, text string) (string, error)
}

// Response is the agent output the enhancement path operates on.
type Response struct {
	Text           string                 `json:"text"`
	Visualizations []memory.Visualization `json:"visualizations,omitempty"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
}

// SetGenerator attaches an optional text generator used to restyle
// responses. Safe to leave unset.
func (e *Engine) SetGenerator(g Generator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generator = g
}

// EnhanceResponse adjusts a base response to the user's learned preferences:
// the preferred visualization type moves to the front, the preferred detail
// level is surfaced in metadata, and the text may be restyled by the
// generator. Any failure returns the base response unchanged.
func (e *Engine) EnhanceResponse(ctx context.Context, userID string, base Response) Response {
	out := base

	if preferred, ok := e.Preferred(userID, "visualization", "visualType"); ok {
		out.Visualizations = reorderVisualizations(base.Visualizations, preferred)
	}

	if detail, ok := e.Preferred(userID, "response", "detailLevel"); ok {
		out.Metadata = cloneMetadata(out.Metadata)
		out.Metadata["preferredDetailLevel"] = detail
	}

	if style, ok := e.Preferred(userID, "response", "responseStyle"); ok && e.currentGenerator() != nil && out.Text != "" {
		instructions := fmt.Sprintf(
			"Rewrite the answer in a %s style. Preserve every fact, figure and caveat exactly.", style)
		rewritten, err := e.currentGenerator().Rewrite(ctx, instructions, out.Text)
		if err != nil {
			log.Printf("learning: response restyle for %s failed: %v", userID, err)
		} else if rewritten != "" {
			out.Text = rewritten
		}
	}

	return out
}

// reorderVisualizations stably moves visualizations of the preferred type to
// the front.
func reorderVisualizations(viz []memory.Visualization, preferred string) []memory.Visualization {
	if len(viz) < 2 {
		return viz
	}
	out := make([]memory.Visualization, len(viz))
	copy(out, viz)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type == preferred && out[j].Type != preferred
	})
	return out
}

func cloneMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func (e *Engine) currentGenerator() Generator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generator
}
