package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
	"github.com/nickbooth1/airport-capacity-planner/internal/nlp"
	"github.com/nickbooth1/airport-capacity-planner/internal/params"
	"github.com/nickbooth1/airport-capacity-planner/internal/tools"
)

const helpText = "I can answer questions about stand and terminal capacity, " +
	"maintenance schedules, infrastructure and stand status. I can also " +
	"create maintenance requests and run capacity scenarios, which I will " +
	"always ask you to confirm first. Try \"What is the capacity of Terminal 2?\" " +
	"or \"Schedule maintenance for stand A3 next week\"."

const lowConfidencePreamble = "I wasn't fully sure what you were asking, so here is the overall capacity picture. "

func clarificationText(parsed nlp.ParseResult) string {
	if len(parsed.InvalidEntities) > 0 {
		names := make([]string, 0, len(parsed.InvalidEntities))
		for kind, value := range parsed.InvalidEntities {
			names = append(names, fmt.Sprintf("%s %q", kind, value))
		}
		sort.Strings(names)
		return fmt.Sprintf("I couldn't match %s to anything at this airport. Could you rephrase?", strings.Join(names, ", "))
	}
	return "I'm not sure what you're asking about. Could you rephrase? You can ask about capacity, maintenance, infrastructure or stand status."
}

func validationText(errs []params.FieldError) string {
	var b strings.Builder
	b.WriteString("I can't run that yet, a few details need fixing:")
	for _, e := range errs {
		b.WriteString("\n- ")
		b.WriteString(e.Field)
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// renderResult turns a service payload into response text and a table
// visualization the client can render directly.
func renderResult(result tools.Result) (string, []memory.Visualization) {
	subject := subjectLine(result.QuerySubtype)
	if result.Data == nil {
		return subject + " request completed.", nil
	}

	body, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return subject + " request completed.", nil
	}

	viz := []memory.Visualization{{
		Type:  "table",
		Title: subject,
		Data:  asDataMap(result.Data),
	}}
	return fmt.Sprintf("%s:\n%s", subject, body), viz
}

func asDataMap(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		return m
	}
	return map[string]any{"result": data}
}

func subjectLine(subtype string) string {
	if subtype == "" {
		return "Result"
	}
	words := strings.Split(subtype, "_")
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}
