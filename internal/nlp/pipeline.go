package nlp

import (
	"context"
	"strings"
	"time"
)

// EntityValidator checks extracted entity values against known airport
// infrastructure. Implementations return the canonical value and whether the
// entity is known.
type EntityValidator interface {
	ValidateEntity(kind, value string) (canonical string, ok bool)
}

// Extractor is an optional AI-backed extraction step. It may return extra
// entities or an intent guess for phrasings the rule tables miss. Errors are
// tolerated; the rule-based result stands on its own.
type Extractor interface {
	Extract(ctx context.Context, text string) (ExtractedInput, error)
}

// ExtractedInput is what an Extractor produced for one utterance.
type ExtractedInput struct {
	Intent     Intent
	Confidence float64
	Entities   map[string]string
}

// ParseResult is the outcome of running one utterance through the pipeline.
type ParseResult struct {
	Text                  string
	Intent                Intent
	Confidence            float64
	Entities              map[string]string
	TimeRange             *TimeRange
	LowConfidence         bool
	ClarificationRequired bool
	InvalidEntities       map[string]string
}

// Pipeline turns raw utterances into structured parse results.
type Pipeline struct {
	validator              EntityValidator
	extractor              Extractor
	lowConfidenceThreshold float64
	legacyIntentFallback   bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithValidator attaches infrastructure-aware entity validation.
func WithValidator(v EntityValidator) Option {
	return func(p *Pipeline) { p.validator = v }
}

// WithExtractor attaches an AI extraction step that supplements the rules.
func WithExtractor(e Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithLowConfidenceThreshold overrides the default threshold of 0.6.
func WithLowConfidenceThreshold(t float64) Option {
	return func(p *Pipeline) { p.lowConfidenceThreshold = t }
}

// WithLegacyIntentFallback makes unclassifiable input fall back to a
// low-confidence capacity query instead of asking for clarification.
func WithLegacyIntentFallback(on bool) Option {
	return func(p *Pipeline) { p.legacyIntentFallback = on }
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{lowConfidenceThreshold: 0.6}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse runs the full pipeline: preprocess, rule-based extraction and
// classification, entity validation, optional AI supplementation, and
// temporal derivation.
func (p *Pipeline) Parse(ctx context.Context, text string, now time.Time) ParseResult {
	clean := preprocess(text)
	res := ParseResult{Text: clean}
	if clean == "" {
		res.ClarificationRequired = true
		return res
	}

	res.Entities = ExtractEntities(clean)
	res.Intent, res.Confidence = ClassifyIntent(clean)

	if p.validator != nil {
		res.InvalidEntities = map[string]string{}
		for kind, value := range res.Entities {
			canonical, ok := p.validator.ValidateEntity(kind, value)
			if ok {
				res.Entities[kind] = canonical
			} else {
				res.InvalidEntities[kind] = value
				delete(res.Entities, kind)
			}
		}
		if len(res.InvalidEntities) == 0 {
			res.InvalidEntities = nil
		}
	}

	if p.extractor != nil {
		if ai, err := p.extractor.Extract(ctx, clean); err == nil {
			p.merge(&res, ai)
		}
	}

	if tr := p.deriveTimeRange(res.Entities, now); tr != nil {
		res.TimeRange = tr
	}

	if res.Intent == "" {
		if p.legacyIntentFallback {
			res.Intent = IntentCapacityQuery
			res.Confidence = ConfidenceFloor
			res.LowConfidence = true
		} else {
			res.ClarificationRequired = true
		}
		return res
	}

	if res.Confidence < p.lowConfidenceThreshold {
		res.LowConfidence = true
	}
	return res
}

// merge folds AI-extracted input into the rule-based result. Rules win: an
// entity the rules already extracted (and the validator accepted) is never
// overwritten, and the AI intent is used only when the rules found none or
// the AI is more confident.
func (p *Pipeline) merge(res *ParseResult, ai ExtractedInput) {
	for kind, value := range ai.Entities {
		if _, exists := res.Entities[kind]; exists {
			continue
		}
		if p.validator != nil {
			canonical, ok := p.validator.ValidateEntity(kind, value)
			if !ok {
				continue
			}
			value = canonical
		}
		res.Entities[kind] = value
	}
	if ai.Intent != "" && (res.Intent == "" || ai.Confidence > res.Confidence) {
		res.Intent = ai.Intent
		res.Confidence = ai.Confidence
	}
}

func (p *Pipeline) deriveTimeRange(entities map[string]string, now time.Time) *TimeRange {
	phrase, ok := entities[EntityTimePeriod]
	if !ok {
		return nil
	}
	tr := ProcessTimeExpression(phrase, now)
	if tr.Type == RangeError {
		return nil
	}
	return &tr
}

func preprocess(text string) string {
	clean := strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(clean)
}
