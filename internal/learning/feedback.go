// Package learning ingests user feedback and steers future responses toward
// learned preferences.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
	"github.com/nickbooth1/airport-capacity-planner/internal/policy"
)

// ErrInvalidFeedback is returned when an explicit submission fails validation.
var ErrInvalidFeedback = errors.New("invalid feedback")

// Target types feedback can address.
var validTargetTypes = map[string]bool{
	"response":       true,
	"insight":        true,
	"recommendation": true,
	"visualization":  true,
}

// Implicit behavior signals and their derived ratings.
var implicitRatings = map[string]float64{
	"implement": 5,
	"save":      4,
	"saved":     4,
	"share":     4.5,
	"click":     3.5,
	"explored":  3.5,
	"viewed":    3,
	"ignore":    3,
	"dismiss":   2,
	"reported":  1,
}

const defaultImplicitRating = 3

// ExplicitFeedback is a direct user rating.
type ExplicitFeedback struct {
	TargetType   string         `json:"targetType"`
	TargetID     string         `json:"targetId"`
	UserID       string         `json:"userId"`
	Rating       int            `json:"rating"`
	FeedbackText string         `json:"feedbackText,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ImplicitFeedback is a behavioral signal.
type ImplicitFeedback struct {
	UserID     string         `json:"userId"`
	TargetType string         `json:"targetType"`
	TargetID   string         `json:"targetId"`
	Type       string         `json:"type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Engine is the feedback and learning pipeline.
type Engine struct {
	store        memory.Store
	learningRate float64
	now          func() time.Time

	mu          sync.RWMutex
	generator   Generator
	performance map[string]*perfAggregate
	models      map[string]*model
	patterns    map[string]*userPatterns
	experiments map[string]*Experiment
}

type perfAggregate struct {
	Count       int     `json:"count"`
	TotalRating float64 `json:"totalRating"`
}

// NewEngine builds an engine over the given store. learningRate outside
// (0,1] falls back to 0.05.
func NewEngine(store memory.Store, learningRate float64) *Engine {
	if learningRate <= 0 || learningRate > 1 {
		learningRate = 0.05
	}
	return &Engine{
		store:        store,
		learningRate: learningRate,
		now:          time.Now,
		performance:  make(map[string]*perfAggregate),
		models:       make(map[string]*model),
		patterns:     make(map[string]*userPatterns),
		experiments:  make(map[string]*Experiment),
	}
}

// WithClock overrides the time source. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ProcessExplicit validates and ingests a direct rating.
func (e *Engine) ProcessExplicit(ctx context.Context, fb ExplicitFeedback) (memory.FeedbackRecord, error) {
	if !validTargetTypes[fb.TargetType] {
		return memory.FeedbackRecord{}, fmt.Errorf("%w: unknown target type %q", ErrInvalidFeedback, fb.TargetType)
	}
	if fb.TargetID == "" || fb.UserID == "" {
		return memory.FeedbackRecord{}, fmt.Errorf("%w: targetId and userId are required", ErrInvalidFeedback)
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return memory.FeedbackRecord{}, fmt.Errorf("%w: rating %d out of range", ErrInvalidFeedback, fb.Rating)
	}

	rec := memory.FeedbackRecord{
		TargetType:   fb.TargetType,
		TargetID:     fb.TargetID,
		UserID:       fb.UserID,
		Rating:       float64(fb.Rating),
		FeedbackText: fb.FeedbackText,
		Metadata:     fb.Metadata,
		Source:       memory.SourceExplicit,
		ReceivedAt:   e.now().UTC(),
	}
	return e.process(ctx, rec)
}

// ProcessImplicit derives a rating from a behavior signal and ingests it.
func (e *Engine) ProcessImplicit(ctx context.Context, fb ImplicitFeedback) (memory.FeedbackRecord, error) {
	if !validTargetTypes[fb.TargetType] {
		return memory.FeedbackRecord{}, fmt.Errorf("%w: unknown target type %q", ErrInvalidFeedback, fb.TargetType)
	}
	if fb.TargetID == "" || fb.UserID == "" {
		return memory.FeedbackRecord{}, fmt.Errorf("%w: targetId and userId are required", ErrInvalidFeedback)
	}

	rating, ok := implicitRatings[fb.Type]
	if !ok {
		rating = defaultImplicitRating
	}
	rec := memory.FeedbackRecord{
		TargetType: fb.TargetType,
		TargetID:   fb.TargetID,
		UserID:     fb.UserID,
		Rating:     rating,
		Metadata:   fb.Metadata,
		Source:     memory.SourceImplicit,
		ReceivedAt: e.now().UTC(),
	}
	return e.process(ctx, rec)
}

// process runs the full pipeline for one record: persist, aggregate
// performance, update model weights, update user patterns, and derive
// memories and preference changes where the feedback warrants them.
func (e *Engine) process(ctx context.Context, rec memory.FeedbackRecord) (memory.FeedbackRecord, error) {
	saved, err := e.store.SaveFeedback(ctx, rec)
	if err != nil {
		return memory.FeedbackRecord{}, fmt.Errorf("save feedback: %w", err)
	}

	e.recordPerformance(saved)
	e.updateModels(saved)
	e.updatePatterns(saved)

	if isSignificant(saved) {
		if err := e.storeSignificantMemory(ctx, saved); err != nil {
			log.Printf("learning: significant-feedback memory for %s failed: %v", saved.ID, err)
		}
	}
	if isActionable(saved) {
		if err := e.applyPreferenceUpdates(ctx, saved); err != nil {
			log.Printf("learning: preference merge for %s failed: %v", saved.ID, err)
		}
	}

	if err := e.store.MarkFeedbackProcessed(ctx, saved.ID); err != nil {
		log.Printf("learning: mark processed %s failed: %v", saved.ID, err)
	} else {
		saved.Processed = true
	}
	return saved, nil
}

// recordPerformance aggregates ratings per (targetType, ISO week).
func (e *Engine) recordPerformance(rec memory.FeedbackRecord) {
	year, week := rec.ReceivedAt.ISOWeek()
	key := fmt.Sprintf("%s/%d-W%02d", rec.TargetType, year, week)

	e.mu.Lock()
	defer e.mu.Unlock()
	agg, ok := e.performance[key]
	if !ok {
		agg = &perfAggregate{}
		e.performance[key] = agg
	}
	agg.Count++
	agg.TotalRating += rec.Rating
}

// PerformanceMetric reports the aggregate for one target type and week.
func (e *Engine) PerformanceMetric(targetType string, at time.Time) (count int, average float64) {
	year, week := at.ISOWeek()
	key := fmt.Sprintf("%s/%d-W%02d", targetType, year, week)

	e.mu.RLock()
	defer e.mu.RUnlock()
	agg, ok := e.performance[key]
	if !ok || agg.Count == 0 {
		return 0, 0
	}
	return agg.Count, agg.TotalRating / float64(agg.Count)
}

// isSignificant reports whether the feedback deserves a long-term memory:
// an extreme rating, or substantial text.
func isSignificant(rec memory.FeedbackRecord) bool {
	return rec.Rating == 1 || rec.Rating == 5 || len(rec.FeedbackText) >= 10
}

// isActionable reports whether the feedback should adjust stored
// preferences: positive with structured metadata.
func isActionable(rec memory.FeedbackRecord) bool {
	return rec.Rating >= 4 && len(rec.Metadata) > 0
}

func (e *Engine) storeSignificantMemory(ctx context.Context, rec memory.FeedbackRecord) error {
	text := rec.FeedbackText
	if text != "" {
		text, _ = policy.RedactPII(text)
	}
	content := fmt.Sprintf("User rated %s %s %.1f/5", rec.TargetType, rec.TargetID, rec.Rating)
	if text != "" {
		content += ": " + text
	}

	importance := 6
	if rec.Rating == 1 || rec.Rating == 5 {
		importance = 7
	}
	_, err := e.store.CreateMemory(ctx, memory.Item{
		UserID:     rec.UserID,
		Content:    content,
		Category:   memory.CategoryPreference,
		Importance: importance,
		Tags:       []string{"feedback", rec.TargetType},
	})
	return err
}

// Metadata fields that map onto preference keys.
var metadataPreferenceKeys = map[string]string{
	"visualType":  "dataPresentation",
	"visual_type": "dataPresentation",
	"theme":       "theme",
	"detailLevel": "advancedMode",
}

// visualTypeValues folds concrete visualization names onto the presentation
// preference enumeration.
var visualTypeValues = map[string]string{
	"table":     "table",
	"barChart":  "chart",
	"lineChart": "chart",
	"pieChart":  "chart",
	"chart":     "chart",
	"map":       "map",
	"heatmap":   "map",
}

func (e *Engine) applyPreferenceUpdates(ctx context.Context, rec memory.FeedbackRecord) error {
	partial := make(map[string]any)
	for field, prefKey := range metadataPreferenceKeys {
		raw, ok := rec.Metadata[field]
		if !ok {
			continue
		}
		value, ok := raw.(string)
		if !ok {
			continue
		}
		switch prefKey {
		case "dataPresentation":
			if folded, ok := visualTypeValues[value]; ok {
				partial[prefKey] = folded
			}
		case "advancedMode":
			partial[prefKey] = value == "detailed" || value == "advanced"
		default:
			partial[prefKey] = value
		}
	}
	if len(partial) == 0 {
		return nil
	}
	_, err := e.store.UpdateUserPreferences(ctx, rec.UserID, partial, false)
	return err
}
