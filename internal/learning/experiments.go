package learning

import (
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
)

var (
	ErrExperimentNotFound = errors.New("experiment not found")
	ErrBadVariants        = errors.New("experiment needs at least two variants")
)

// Experiment is an A/B test over response variants. TrafficAllocation holds
// one percentage per variant; the percentages sum to at most 100, and a user
// hashing past the allocated range is left out of the experiment.
type Experiment struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Variants          []string       `json:"variants"`
	TrafficAllocation []int          `json:"trafficAllocation"`
	SuccessMetric     string         `json:"successMetric,omitempty"`
	Impressions       map[string]int `json:"impressions"`
	// variant -> rating bucket (1..5) -> count
	Ratings map[string]map[int]int `json:"ratings"`
}

// CreateExperiment registers an experiment. A nil allocation splits traffic
// evenly across the variants.
func (e *Engine) CreateExperiment(name string, variants []string, trafficAllocation []int, successMetric string) (*Experiment, error) {
	if len(variants) < 2 {
		return nil, ErrBadVariants
	}
	if trafficAllocation == nil {
		share := 100 / len(variants)
		trafficAllocation = make([]int, len(variants))
		for i := range trafficAllocation {
			trafficAllocation[i] = share
		}
	}
	if len(trafficAllocation) != len(variants) {
		return nil, fmt.Errorf("%w: allocation length %d does not match %d variants",
			ErrBadVariants, len(trafficAllocation), len(variants))
	}
	total := 0
	for _, share := range trafficAllocation {
		if share < 0 {
			return nil, fmt.Errorf("%w: negative allocation", ErrBadVariants)
		}
		total += share
	}
	if total > 100 {
		return nil, fmt.Errorf("%w: allocation sums to %d", ErrBadVariants, total)
	}

	exp := &Experiment{
		ID:                uuid.NewString(),
		Name:              name,
		Variants:          variants,
		TrafficAllocation: trafficAllocation,
		SuccessMetric:     successMetric,
		Impressions:       make(map[string]int),
		Ratings:           make(map[string]map[int]int),
	}

	e.mu.Lock()
	e.experiments[exp.ID] = exp
	e.mu.Unlock()
	return exp, nil
}

// AssignVariant deterministically maps a user into a variant by hashing
// userID+experimentID into a 0..99 bucket and walking the cumulative traffic
// split. ok is false when the user falls outside the allocated traffic or
// the experiment does not exist.
func (e *Engine) AssignVariant(userID, experimentID string) (variant string, ok bool) {
	e.mu.RLock()
	exp, found := e.experiments[experimentID]
	e.mu.RUnlock()
	if !found {
		return "", false
	}

	bucket := hashBucket(userID + experimentID)
	cumulative := 0
	for i, share := range exp.TrafficAllocation {
		cumulative += share
		if bucket < cumulative {
			return exp.Variants[i], true
		}
	}
	return "", false
}

// RecordImpression counts one exposure of a variant.
func (e *Engine) RecordImpression(experimentID, variant string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	exp, ok := e.experiments[experimentID]
	if !ok {
		return ErrExperimentNotFound
	}
	exp.Impressions[variant]++
	return nil
}

// RecordExperimentRating tallies a rating against a variant.
func (e *Engine) RecordExperimentRating(experimentID, variant string, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating %d out of range", ErrInvalidFeedback, rating)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	exp, ok := e.experiments[experimentID]
	if !ok {
		return ErrExperimentNotFound
	}
	buckets, ok := exp.Ratings[variant]
	if !ok {
		buckets = make(map[int]int)
		exp.Ratings[variant] = buckets
	}
	buckets[rating]++
	return nil
}

// ExperimentResults returns a copy of an experiment's current tallies.
func (e *Engine) ExperimentResults(experimentID string) (*Experiment, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	exp, ok := e.experiments[experimentID]
	if !ok {
		return nil, ErrExperimentNotFound
	}

	out := &Experiment{
		ID:                exp.ID,
		Name:              exp.Name,
		Variants:          append([]string(nil), exp.Variants...),
		TrafficAllocation: append([]int(nil), exp.TrafficAllocation...),
		SuccessMetric:     exp.SuccessMetric,
		Impressions:       make(map[string]int, len(exp.Impressions)),
		Ratings:           make(map[string]map[int]int, len(exp.Ratings)),
	}
	for variant, count := range exp.Impressions {
		out.Impressions[variant] = count
	}
	for variant, buckets := range exp.Ratings {
		copied := make(map[int]int, len(buckets))
		for rating, count := range buckets {
			copied[rating] = count
		}
		out.Ratings[variant] = copied
	}
	return out, nil
}

func hashBucket(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % 100)
}
