package tools

import (
	"time"

	"github.com/nickbooth1/airport-capacity-planner/internal/nlp"
)

// Entity kinds copied verbatim into the parameter object.
var copiedEntities = []string{
	nlp.EntityTerminal,
	nlp.EntityStand,
	nlp.EntityAircraftType,
	nlp.EntityAirline,
	nlp.EntityStatus,
	nlp.EntityMetric,
}

// buildParameters assembles the parameter object for a routed call: the raw
// query, the processed time window (today when no phrase was given), the
// recognized entities, and subtype-specific defaults.
func buildParameters(parsed nlp.ParseResult, subtype string, now time.Time) map[string]any {
	params := map[string]any{
		"query": parsed.Text,
	}

	tr := parsed.TimeRange
	if tr == nil {
		def := nlp.ProcessTimeExpression("today", now)
		tr = &def
	}
	params["startDate"] = tr.ISOStart
	params["endDate"] = tr.ISOEnd
	params["processed_time"] = map[string]any{
		"type":  string(tr.Type),
		"start": tr.ISOStart,
		"end":   tr.ISOEnd,
	}

	for _, kind := range copiedEntities {
		if value, ok := parsed.Entities[kind]; ok {
			params[kind] = value
		}
	}

	switch subtype {
	case "terminal_capacity":
		params["scope"] = "terminal"
	case "stand_compatibility":
		params["check_type"] = "compatibility"
	}
	if parsed.Intent == nlp.IntentCapacityQuery {
		if _, ok := params[nlp.EntityMetric]; !ok {
			params[nlp.EntityMetric] = "utilization"
		}
	}

	return params
}

func stringParam(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return value
}

func rangeParam(params map[string]any) DateRange {
	return DateRange{
		Start: stringParam(params, "startDate"),
		End:   stringParam(params, "endDate"),
	}
}
