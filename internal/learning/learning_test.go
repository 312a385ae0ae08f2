package learning

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
)

func newTestEngine(t *testing.T) (*Engine, *memory.InMemoryStore) {
	t.Helper()
	store := memory.NewInMemoryStore(30 * 24 * time.Hour)
	return NewEngine(store, 0.05), store
}

func TestProcessExplicitValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		fb   ExplicitFeedback
	}{
		{"bad target type", ExplicitFeedback{TargetType: "widget", TargetID: "x", UserID: "u1", Rating: 4}},
		{"missing target id", ExplicitFeedback{TargetType: "response", UserID: "u1", Rating: 4}},
		{"missing user", ExplicitFeedback{TargetType: "response", TargetID: "x", Rating: 4}},
		{"rating too low", ExplicitFeedback{TargetType: "response", TargetID: "x", UserID: "u1", Rating: 0}},
		{"rating too high", ExplicitFeedback{TargetType: "response", TargetID: "x", UserID: "u1", Rating: 6}},
	}
	for _, tt := range tests {
		if _, err := e.ProcessExplicit(ctx, tt.fb); !errors.Is(err, ErrInvalidFeedback) {
			t.Errorf("%s: err = %v, want ErrInvalidFeedback", tt.name, err)
		}
	}
}

func TestProcessExplicitPersistsAndMarks(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	rec, err := e.ProcessExplicit(ctx, ExplicitFeedback{
		TargetType: "response", TargetID: "r1", UserID: "u1", Rating: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Processed {
		t.Error("record not marked processed")
	}
	if rec.Source != memory.SourceExplicit {
		t.Errorf("source = %q", rec.Source)
	}

	stored, err := store.ListFeedback(ctx, "u1", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Rating != 4 {
		t.Errorf("stored = %+v", stored)
	}
}

func TestImplicitRatingTable(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		signal string
		want   float64
	}{
		{"implement", 5},
		{"save", 4},
		{"share", 4.5},
		{"click", 3.5},
		{"dismiss", 2},
		{"reported", 1},
		{"hover", 3},
	}
	for _, tt := range tests {
		rec, err := e.ProcessImplicit(ctx, ImplicitFeedback{
			UserID: "u1", TargetType: "insight", TargetID: "i1", Type: tt.signal,
		})
		if err != nil {
			t.Fatal(err)
		}
		if rec.Rating != tt.want {
			t.Errorf("%s: rating = %v, want %v", tt.signal, rec.Rating, tt.want)
		}
		if rec.Source != memory.SourceImplicit {
			t.Errorf("%s: source = %q", tt.signal, rec.Source)
		}
	}
}

func TestPerformanceMetricsPerISOWeek(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	now := time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)
	e.WithClock(func() time.Time { return now })

	for _, rating := range []int{5, 3} {
		if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
			TargetType: "response", TargetID: "r1", UserID: "u1", Rating: rating,
		}); err != nil {
			t.Fatal(err)
		}
	}

	count, avg := e.PerformanceMetric("response", now)
	if count != 2 || avg != 4 {
		t.Errorf("count = %d avg = %v", count, avg)
	}

	// A different week is a different bucket.
	count, _ = e.PerformanceMetric("response", now.AddDate(0, 0, 14))
	if count != 0 {
		t.Errorf("count = %d for empty week", count)
	}
}

func TestModelWeightUpdates(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
		TargetType: "insight", TargetID: "i1", UserID: "u1", Rating: 5,
	}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"proactiveAnalysis", "anomalyDetection"} {
		weights := e.ModelWeights(name)
		if weights == nil {
			t.Fatalf("%s has no weights", name)
		}
		// learningRate 0.05 * normalized (5-3)/2 = 1 * bias 1.
		if got := weights["bias"]; got != 0.05 {
			t.Errorf("%s bias = %v, want 0.05", name, got)
		}
	}

	// A rating of 1 moves weights the other way.
	if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
		TargetType: "insight", TargetID: "i2", UserID: "u1", Rating: 1,
	}); err != nil {
		t.Fatal(err)
	}
	if got := e.ModelWeights("proactiveAnalysis")["bias"]; got != 0 {
		t.Errorf("bias = %v, want 0 after opposite update", got)
	}
}

func TestModelSnapshotsEveryTenSamples(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
			TargetType: "visualization", TargetID: fmt.Sprintf("v%d", i), UserID: "u1", Rating: 4,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if got := e.ModelSnapshots("visualPreference"); got != 2 {
		t.Errorf("snapshots = %d, want 2", got)
	}
}

func TestSignificantFeedbackCreatesMemory(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	// Rating 5 is significant; text with an email gets redacted.
	if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
		TargetType: "response", TargetID: "r1", UserID: "u1", Rating: 5,
		FeedbackText: "brilliant, send the report to ops@example.com",
	}); err != nil {
		t.Fatal(err)
	}
	// Rating 3 with short text is not.
	if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
		TargetType: "response", TargetID: "r2", UserID: "u1", Rating: 3, FeedbackText: "fine",
	}); err != nil {
		t.Fatal(err)
	}

	items, err := store.QueryMemories(ctx, "u1", memory.ItemFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("memories = %d, want 1", len(items))
	}
	if items[0].Importance != 7 {
		t.Errorf("importance = %d", items[0].Importance)
	}
	for _, item := range items {
		if contains := item.Content; len(contains) > 0 && containsEmail(contains) {
			t.Errorf("memory content leaked PII: %q", contains)
		}
	}
}

func containsEmail(s string) bool {
	for i := range s {
		if s[i] == '@' {
			return true
		}
	}
	return false
}

func TestActionableFeedbackMergesPreferences(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
		TargetType: "visualization", TargetID: "v1", UserID: "u1", Rating: 5,
		Metadata: map[string]any{"visualType": "barChart"},
	}); err != nil {
		t.Fatal(err)
	}

	prefs, err := store.GetUserPreferences(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if prefs["dataPresentation"] != "chart" {
		t.Errorf("dataPresentation = %v, want chart", prefs["dataPresentation"])
	}
}

func TestPreferredRequiresTwoSamples(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
		TargetType: "visualization", TargetID: "v1", UserID: "u1", Rating: 5,
		Metadata: map[string]any{"visualType": "barChart"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Preferred("u1", "visualization", "visualType"); ok {
		t.Error("single sample should not produce a preference")
	}
}

func TestFeedbackDrivenVisualizationReorder(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
			TargetType: "visualization", TargetID: fmt.Sprintf("bar%d", i), UserID: "u1", Rating: 5,
			Metadata: map[string]any{"visualType": "barChart"},
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
			TargetType: "visualization", TargetID: fmt.Sprintf("tab%d", i), UserID: "u1", Rating: 2,
			Metadata: map[string]any{"visualType": "table"},
		}); err != nil {
			t.Fatal(err)
		}
	}

	base := Response{
		Text: "Terminal 1 utilization is 78% today.",
		Visualizations: []memory.Visualization{
			{Type: "table", Title: "Stand detail"},
			{Type: "barChart", Title: "Hourly utilization"},
		},
	}
	enhanced := e.EnhanceResponse(ctx, "u1", base)
	if enhanced.Visualizations[0].Type != "barChart" {
		t.Errorf("first visualization = %q, want barChart", enhanced.Visualizations[0].Type)
	}
	if enhanced.Visualizations[1].Type != "table" {
		t.Errorf("second visualization = %q", enhanced.Visualizations[1].Type)
	}
	// Base response untouched.
	if base.Visualizations[0].Type != "table" {
		t.Error("base response mutated")
	}
}

type failingGenerator struct{}

func (failingGenerator) Rewrite(ctx context.Context, instructions, text string) (string, error) {
	return "", errors.New("generator down")
}

func TestEnhanceGeneratorFailureFallsBack(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	e.SetGenerator(failingGenerator{})

	for i := 0; i < 3; i++ {
		if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
			TargetType: "response", TargetID: fmt.Sprintf("r%d", i), UserID: "u1", Rating: 5,
			Metadata: map[string]any{"responseStyle": "concise"},
		}); err != nil {
			t.Fatal(err)
		}
	}

	base := Response{Text: "Terminal 1 utilization is 78% today."}
	enhanced := e.EnhanceResponse(ctx, "u1", base)
	if enhanced.Text != base.Text {
		t.Errorf("text changed despite generator failure: %q", enhanced.Text)
	}
}

func TestRebuildPatternsFromStore(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.ProcessExplicit(ctx, ExplicitFeedback{
			TargetType: "visualization", TargetID: fmt.Sprintf("v%d", i), UserID: "u1", Rating: 5,
			Metadata: map[string]any{"visualType": "map"},
		}); err != nil {
			t.Fatal(err)
		}
	}

	// A fresh engine sees nothing until it rebuilds from stored feedback.
	fresh := NewEngine(store, 0.05)
	if _, ok := fresh.Preferred("u1", "visualization", "visualType"); ok {
		t.Fatal("fresh engine should start empty")
	}
	if err := fresh.Rebuild(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if got, ok := fresh.Preferred("u1", "visualization", "visualType"); !ok || got != "map" {
		t.Errorf("preferred = %q ok=%v, want map", got, ok)
	}
}

func TestExperimentAssignmentDeterministic(t *testing.T) {
	e, _ := newTestEngine(t)

	exp, err := e.CreateExperiment("summary-style", []string{"control", "concise"}, nil, "rating")
	if err != nil {
		t.Fatal(err)
	}

	first, ok := e.AssignVariant("u1", exp.ID)
	if !ok {
		t.Fatal("user not assigned")
	}
	for i := 0; i < 20; i++ {
		again, ok := e.AssignVariant("u1", exp.ID)
		if !ok || again != first {
			t.Fatalf("assignment changed: %q -> %q", first, again)
		}
	}
}

func TestExperimentTrafficSplit(t *testing.T) {
	e, _ := newTestEngine(t)

	// 10% of traffic; most users stay outside the experiment.
	exp, err := e.CreateExperiment("narrow", []string{"a", "b"}, []int{5, 5}, "")
	if err != nil {
		t.Fatal(err)
	}

	inside := 0
	for i := 0; i < 1000; i++ {
		if _, ok := e.AssignVariant(fmt.Sprintf("user-%d", i), exp.ID); ok {
			inside++
		}
	}
	if inside == 0 || inside > 250 {
		t.Errorf("inside = %d, want a small nonzero share of 1000", inside)
	}
}

func TestExperimentTallies(t *testing.T) {
	e, _ := newTestEngine(t)
	exp, err := e.CreateExperiment("viz", []string{"a", "b"}, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := e.RecordImpression(exp.ID, "a"); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordExperimentRating(exp.ID, "a", 5); err != nil {
		t.Fatal(err)
	}
	if err := e.RecordExperimentRating(exp.ID, "a", 0); !errors.Is(err, ErrInvalidFeedback) {
		t.Errorf("err = %v, want ErrInvalidFeedback", err)
	}

	results, err := e.ExperimentResults(exp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if results.Impressions["a"] != 1 || results.Ratings["a"][5] != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestCreateExperimentValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.CreateExperiment("solo", []string{"only"}, nil, ""); !errors.Is(err, ErrBadVariants) {
		t.Errorf("err = %v, want ErrBadVariants", err)
	}
	if _, err := e.CreateExperiment("over", []string{"a", "b"}, []int{80, 30}, ""); !errors.Is(err, ErrBadVariants) {
		t.Errorf("err = %v, want ErrBadVariants", err)
	}
}
