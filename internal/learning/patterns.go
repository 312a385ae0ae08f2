package learning

import (
	"context"
	"fmt"
	"math"

	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
)

// Metadata fields tracked as pattern dimensions per target type.
var patternDimensions = []string{"visualType", "responseStyle", "detailLevel"}

type dimensionStats struct {
	Count       int     `json:"count"`
	TotalRating float64 `json:"totalRating"`
}

func (d dimensionStats) average() float64 {
	if d.Count == 0 {
		return 0
	}
	return d.TotalRating / float64(d.Count)
}

// userPatterns aggregates one user's feedback per target type. It is a
// derivable cache: Rebuild reconstructs it from stored feedback records.
type userPatterns struct {
	// dimension -> value -> stats
	byTarget map[string]map[string]map[string]dimensionStats
}

// updatePatterns folds one record into the user's aggregates.
func (e *Engine) updatePatterns(rec memory.FeedbackRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyPattern(rec)
}

func (e *Engine) applyPattern(rec memory.FeedbackRecord) {
	up, ok := e.patterns[rec.UserID]
	if !ok {
		up = &userPatterns{byTarget: make(map[string]map[string]map[string]dimensionStats)}
		e.patterns[rec.UserID] = up
	}
	dims, ok := up.byTarget[rec.TargetType]
	if !ok {
		dims = make(map[string]map[string]dimensionStats)
		up.byTarget[rec.TargetType] = dims
	}

	for _, dim := range patternDimensions {
		raw, ok := rec.Metadata[dim]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok || value == "" {
			continue
		}
		values, ok := dims[dim]
		if !ok {
			values = make(map[string]dimensionStats)
			dims[dim] = values
		}
		stats := values[value]
		stats.Count++
		stats.TotalRating += rec.Rating
		values[value] = stats
	}
}

// Preferred returns the user's preferred value for a dimension of a target
// type, scoring each candidate by averageRating * log(count+1) and ignoring
// values seen fewer than twice. ok is false when nothing qualifies.
func (e *Engine) Preferred(userID, targetType, dimension string) (value string, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	up, found := e.patterns[userID]
	if !found {
		return "", false
	}
	values, found := up.byTarget[targetType][dimension]
	if !found {
		return "", false
	}

	best := ""
	bestScore := math.Inf(-1)
	for candidate, stats := range values {
		if stats.Count < 2 {
			continue
		}
		score := stats.average() * math.Log(float64(stats.Count)+1)
		if score > bestScore || (score == bestScore && candidate < best) {
			best = candidate
			bestScore = score
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// Rebuild reconstructs a user's pattern aggregates from stored feedback.
func (e *Engine) Rebuild(ctx context.Context, userID string) error {
	records, err := e.store.ListFeedback(ctx, userID, "", 0)
	if err != nil {
		return fmt.Errorf("rebuild patterns for %s: %w", userID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.patterns, userID)
	for _, rec := range records {
		e.applyPattern(rec)
	}
	return nil
}

// PersistPatterns writes the user's current aggregates through to the store
// as an audit artifact. The stored copy is informational; the in-memory
// aggregates remain the working set.
func (e *Engine) PersistPatterns(ctx context.Context, userID string) error {
	e.mu.RLock()
	up, ok := e.patterns[userID]
	var payload map[string]any
	if ok {
		payload = make(map[string]any, len(up.byTarget))
		for target, dims := range up.byTarget {
			targetPayload := make(map[string]any, len(dims))
			for dim, values := range dims {
				dimPayload := make(map[string]any, len(values))
				for value, stats := range values {
					dimPayload[value] = map[string]any{
						"count":       stats.Count,
						"totalRating": stats.TotalRating,
					}
				}
				targetPayload[dim] = dimPayload
			}
			payload[target] = targetPayload
		}
	}
	e.mu.RUnlock()

	if payload == nil {
		return nil
	}
	_, err := e.store.StorePattern(ctx, memory.Pattern{
		UserID:  userID,
		Kind:    "feedback_patterns",
		Payload: payload,
	})
	return err
}
