package nlp

import (
	"regexp"
	"strings"
)

// Entity kinds extracted from utterances.
const (
	EntityTerminal     = "terminal"
	EntityStand        = "stand"
	EntityAircraftType = "aircraft_type"
	EntityAirport      = "airport"
	EntityAirline      = "airline"
	EntityTimePeriod   = "time_period"
	EntityStatus       = "status"
	EntityMetric       = "metric"
)

var (
	terminalPattern = regexp.MustCompile(`\b(?:t(\d+)|terminal\s+(\w+))\b`)
	standPattern    = regexp.MustCompile(`\b(?:stand|gate)\s+(\w+)\b`)
	aircraftPattern = regexp.MustCompile(`(?i)\b([ab]\d{3})\b`)
	airportPattern  = regexp.MustCompile(`^[A-Z]{3}$`)
	airlinePattern  = regexp.MustCompile(`^[A-Z0-9]{2}$`)
)

// Known time phrases, longest first so "next week" beats "week".
var timePhrases = []string{
	"next week", "this month", "peak hour",
	"today", "tomorrow", "morning", "afternoon", "evening",
}

var statusWords = []string{"available", "occupied", "closed", "open", "under maintenance"}

var metricWords = []string{"utilization", "occupancy", "throughput", "availability"}

// ExtractEntities runs the rule-based extractors over the utterance. Case
// sensitive patterns (airport/airline codes, aircraft types) run against the
// raw text; the rest run against the lowercased form.
func ExtractEntities(raw string) map[string]string {
	entities := make(map[string]string)
	lower := strings.ToLower(raw)

	if m := terminalPattern.FindStringSubmatch(lower); m != nil {
		if m[1] != "" {
			entities[EntityTerminal] = "terminal " + m[1]
		} else {
			entities[EntityTerminal] = "terminal " + m[2]
		}
	}
	if m := standPattern.FindStringSubmatch(lower); m != nil {
		entities[EntityStand] = strings.ToUpper(m[1])
	}
	if m := aircraftPattern.FindStringSubmatch(raw); m != nil {
		entities[EntityAircraftType] = strings.ToUpper(m[1])
	}

	for _, token := range strings.Fields(raw) {
		token = strings.Trim(token, ".,!?;:")
		if token == "" {
			continue
		}
		// Tokens already claimed by the stand or terminal rules are not
		// airport or airline codes.
		if strings.ToUpper(token) == entities[EntityStand] || terminalPattern.MatchString(strings.ToLower(token)) {
			continue
		}
		if airportPattern.MatchString(token) {
			if _, ok := entities[EntityAirport]; !ok {
				entities[EntityAirport] = token
			}
			continue
		}
		if airlinePattern.MatchString(token) {
			if _, ok := entities[EntityAirline]; !ok {
				entities[EntityAirline] = token
			}
		}
	}

	for _, phrase := range timePhrases {
		if strings.Contains(lower, phrase) {
			entities[EntityTimePeriod] = phrase
			break
		}
	}
	for _, word := range statusWords {
		if strings.Contains(lower, word) {
			entities[EntityStatus] = word
			break
		}
	}
	for _, word := range metricWords {
		if strings.Contains(lower, word) {
			entities[EntityMetric] = word
			break
		}
	}

	return entities
}
