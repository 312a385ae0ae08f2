package learning

import "github.com/nickbooth1/airport-capacity-planner/internal/memory"

// Models affected by each feedback target type.
var affectedModels = map[string][]string{
	"insight":        {"proactiveAnalysis", "anomalyDetection"},
	"visualization":  {"visualPreference"},
	"response":       {"responseGeneration"},
	"recommendation": {"recommendationEngine"},
}

type model struct {
	Weights   map[string]float64
	Samples   int
	Snapshots []map[string]float64
}

// updateModels applies one gradient-style step to every model the feedback
// touches: weight[f] += learningRate * normalizedRating * feature[f], with
// normalizedRating = (rating - 3) / 2 in [-1, 1]. Every tenth sample the
// weight vector is snapshotted.
func (e *Engine) updateModels(rec memory.FeedbackRecord) {
	names, ok := affectedModels[rec.TargetType]
	if !ok {
		return
	}
	normalized := (rec.Rating - 3) / 2
	features := extractFeatures(rec)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range names {
		m, ok := e.models[name]
		if !ok {
			m = &model{Weights: make(map[string]float64)}
			e.models[name] = m
		}
		for feature, value := range features {
			m.Weights[feature] += e.learningRate * normalized * value
		}
		m.Samples++
		if m.Samples%10 == 0 {
			snap := make(map[string]float64, len(m.Weights))
			for k, v := range m.Weights {
				snap[k] = v
			}
			m.Snapshots = append(m.Snapshots, snap)
		}
	}
}

// extractFeatures builds the feature vector: a bias term plus the numeric
// and categorical metadata fields.
func extractFeatures(rec memory.FeedbackRecord) map[string]float64 {
	features := map[string]float64{"bias": 1}
	for key, raw := range rec.Metadata {
		switch v := raw.(type) {
		case float64:
			features[key] = v
		case int:
			features[key] = float64(v)
		case bool:
			if v {
				features[key] = 1
			}
		case string:
			features[key+"="+v] = 1
		}
	}
	return features
}

// ModelWeights returns a copy of a model's current weight vector, or nil
// when the model has seen no samples.
func (e *Engine) ModelWeights(name string) map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.models[name]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(m.Weights))
	for k, v := range m.Weights {
		out[k] = v
	}
	return out
}

// ModelSnapshots returns how many snapshots a model has recorded.
func (e *Engine) ModelSnapshots(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.models[name]
	if !ok {
		return 0
	}
	return len(m.Snapshots)
}
