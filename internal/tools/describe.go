package tools

import (
	"encoding/json"
	"fmt"

	"github.com/nickbooth1/airport-capacity-planner/internal/nlp"
)

// describeAction renders a proposed side-effecting call for the user. The
// wording is deterministic in the intent and entities.
func describeAction(intent nlp.Intent, entities map[string]string) string {
	subject := entitySubject(entities)
	when := entities[nlp.EntityTimePeriod]
	if when == "" {
		when = "today"
	}

	switch intent {
	case nlp.IntentMaintenanceCreate:
		return fmt.Sprintf("Create a maintenance request for %s starting %s", subject, when)
	case nlp.IntentMaintenanceUpdate:
		return fmt.Sprintf("Update the maintenance request for %s effective %s", subject, when)
	case nlp.IntentCapacityParamUpdate:
		return fmt.Sprintf("Update capacity parameters for %s effective %s", subject, when)
	case nlp.IntentAutonomousSetting:
		return fmt.Sprintf("Change the autonomous operation setting for %s", subject)
	default:
		payload, _ := json.Marshal(entities)
		return fmt.Sprintf("Perform %s with %s", intent, payload)
	}
}

// entitySubject picks the most specific location entity for a description.
func entitySubject(entities map[string]string) string {
	if stand, ok := entities[nlp.EntityStand]; ok {
		return "stand " + stand
	}
	if terminal, ok := entities[nlp.EntityTerminal]; ok {
		return terminal
	}
	if airport, ok := entities[nlp.EntityAirport]; ok {
		return airport
	}
	return "the airport"
}
