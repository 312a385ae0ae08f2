package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nickbooth1/airport-capacity-planner/internal/nlp"
)

const extractInstructions = `Identify the intent and entities of the airport capacity query. ` +
	`Reply with a single JSON object of the form ` +
	`{"intent":"capacity.query","confidence":0.9,"entities":{"terminal":"terminal 1"}}. ` +
	`Intents: capacity.query, maintenance.query, maintenance.create, maintenance.update, ` +
	`infrastructure.query, stand.status, scenario.create, scenario.modify, ` +
	`capacity.parameter_update, autonomous.setting, help.request. ` +
	`Entity kinds: terminal, stand, aircraft_type, airline, airport, time_period, status, metric.`

// Extractor adapts the generator to the parse pipeline's AI-assisted
// extraction hook. Rules still win on conflict; a failed or malformed reply
// just leaves the rule-based result untouched.
type Extractor struct {
	gen Generator
}

func NewExtractor(gen Generator) *Extractor { return &Extractor{gen: gen} }

func (e *Extractor) Extract(ctx context.Context, text string) (nlp.ExtractedInput, error) {
	if e.gen == nil {
		return nlp.ExtractedInput{}, errors.New("no generator configured")
	}
	res, err := e.gen.StreamResponse(ctx, Request{
		InputText:    text,
		Instructions: extractInstructions,
	}, nil)
	if err != nil {
		return nlp.ExtractedInput{}, err
	}
	return parseExtraction(res.Text)
}

// parseExtraction pulls the JSON object out of the generator reply, which may
// carry surrounding prose.
func parseExtraction(text string) (nlp.ExtractedInput, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nlp.ExtractedInput{}, errors.New("no JSON object in generator reply")
	}
	var payload struct {
		Intent     string            `json:"intent"`
		Confidence float64           `json:"confidence"`
		Entities   map[string]string `json:"entities"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nlp.ExtractedInput{}, fmt.Errorf("decode extraction: %w", err)
	}

	out := nlp.ExtractedInput{Entities: payload.Entities}
	if intent := nlp.Intent(payload.Intent); nlp.KnownIntent(intent) {
		out.Intent = intent
		out.Confidence = payload.Confidence
		if out.Confidence < 0 {
			out.Confidence = 0
		}
		if out.Confidence > 1 {
			out.Confidence = 1
		}
	}
	return out, nil
}
