package nlp

import "strings"

// Intent is a coarse category of user request.
type Intent string

const (
	IntentCapacityQuery       Intent = "capacity.query"
	IntentMaintenanceQuery    Intent = "maintenance.query"
	IntentInfrastructureQuery Intent = "infrastructure.query"
	IntentStandStatus         Intent = "stand.status"
	IntentHelpRequest         Intent = "help.request"
	IntentMaintenanceCreate   Intent = "maintenance.create"
	IntentMaintenanceUpdate   Intent = "maintenance.update"
	IntentCapacityParamUpdate Intent = "capacity.parameter_update"
	IntentAutonomousSetting   Intent = "autonomous.setting"
	IntentScenarioCreate      Intent = "scenario.create"
	IntentScenarioModify      Intent = "scenario.modify"
)

// Confidence tiers for keyword classification.
const (
	ConfidenceStrong  = 0.85
	ConfidenceDefault = 0.7
	ConfidenceFloor   = 0.5
)

type intentRule struct {
	intent Intent
	// strong keywords award the high tier; weak keywords the default tier.
	strong []string
	weak   []string
}

// Rules are ordered: modifying intents come before their query counterparts
// so "schedule maintenance for stand A1" does not classify as a query.
// First declared wins on equal confidence.
var intentRules = []intentRule{
	{
		intent: IntentMaintenanceCreate,
		strong: []string{"schedule maintenance", "create maintenance", "create a maintenance", "request maintenance", "maintenance request for", "new maintenance"},
		weak:   []string{"book maintenance"},
	},
	{
		intent: IntentMaintenanceUpdate,
		strong: []string{"update maintenance", "reschedule maintenance", "cancel maintenance", "extend maintenance"},
	},
	{
		intent: IntentCapacityParamUpdate,
		strong: []string{"update capacity parameters", "change capacity parameters", "capacity settings", "set turnaround", "adjust buffer time"},
	},
	{
		intent: IntentAutonomousSetting,
		strong: []string{"autonomous mode", "enable autonomous", "disable autonomous"},
		weak:   []string{"autonomous"},
	},
	{
		intent: IntentScenarioCreate,
		strong: []string{"create scenario", "new scenario", "what if"},
		weak:   []string{"simulate"},
	},
	{
		intent: IntentScenarioModify,
		strong: []string{"modify scenario", "update scenario", "change scenario"},
	},
	{
		intent: IntentStandStatus,
		strong: []string{"stand status", "stand available", "stand availability", "is stand"},
		weak:   []string{"occupied", "compatibility"},
	},
	{
		intent: IntentMaintenanceQuery,
		strong: []string{"maintenance schedule", "scheduled maintenance", "active maintenance", "maintenance status"},
		weak:   []string{"maintenance"},
	},
	{
		intent: IntentCapacityQuery,
		strong: []string{"capacity", "how many aircraft", "how many flights"},
		weak:   []string{"utilization", "throughput", "busiest"},
	},
	{
		intent: IntentInfrastructureQuery,
		strong: []string{"infrastructure", "airport layout", "how many stands", "terminal information"},
		weak:   []string{"pier", "layout"},
	},
	{
		intent: IntentHelpRequest,
		strong: []string{"help", "what can you do", "how do i"},
	},
}

// ClassifyIntent returns the best-matching intent and its confidence, or
// ("", 0) when nothing matches.
func ClassifyIntent(text string) (Intent, float64) {
	lower := strings.ToLower(text)

	best := Intent("")
	bestConf := 0.0
	for _, rule := range intentRules {
		conf := 0.0
		for _, kw := range rule.strong {
			if strings.Contains(lower, kw) {
				conf = ConfidenceStrong
				break
			}
		}
		if conf == 0 {
			for _, kw := range rule.weak {
				if strings.Contains(lower, kw) {
					conf = ConfidenceDefault
					break
				}
			}
		}
		if conf > bestConf {
			best = rule.intent
			bestConf = conf
		}
	}

	if bestConf > 0 && bestConf < ConfidenceFloor {
		bestConf = ConfidenceFloor
	}
	return best, bestConf
}

// ModifyingIntents require human approval before execution.
var ModifyingIntents = map[Intent]bool{
	IntentMaintenanceCreate:   true,
	IntentMaintenanceUpdate:   true,
	IntentCapacityParamUpdate: true,
	IntentAutonomousSetting:   true,
}

var knownIntents = map[Intent]bool{
	IntentCapacityQuery:       true,
	IntentMaintenanceQuery:    true,
	IntentInfrastructureQuery: true,
	IntentStandStatus:         true,
	IntentHelpRequest:         true,
	IntentMaintenanceCreate:   true,
	IntentMaintenanceUpdate:   true,
	IntentCapacityParamUpdate: true,
	IntentAutonomousSetting:   true,
	IntentScenarioCreate:      true,
	IntentScenarioModify:      true,
}

// KnownIntent reports whether the value is one of the declared intents.
func KnownIntent(i Intent) bool {
	return knownIntents[i]
}
