// Package router maps a classified query to a concrete service method.
package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nickbooth1/airport-capacity-planner/internal/nlp"
)

// ErrNoMapping means no service method is declared for the intent.
var ErrNoMapping = errors.New("router: no mapping for intent")

// Route is the resolved target of a query.
type Route struct {
	Subtype string
	Service string
	Method  string
}

// Service names as registered in the service registry.
const (
	ServiceCapacity       = "capacityService"
	ServiceMaintenance    = "maintenanceService"
	ServiceInfrastructure = "infrastructureService"
	ServiceStand          = "standService"
)

// subtypeRule selects a method when one of its patterns matches the query
// text. A rule with no patterns is the intent's declared default. Rules are
// ordered; the first match wins.
type subtypeRule struct {
	subtype  string
	patterns []string
	service  string
	method   string
}

var subtypeRules = map[nlp.Intent][]subtypeRule{
	nlp.IntentCapacityQuery: {
		{"terminal_capacity", []string{"terminal"}, ServiceCapacity, "calculateStandCapacity"},
		{"time_slot_capacity", []string{"time slot", "slot", "hourly", "per hour"}, ServiceCapacity, "calculateCapacityForTimeSlot"},
		{"overall_capacity", nil, ServiceCapacity, "calculateCapacity"},
	},
	nlp.IntentMaintenanceQuery: {
		{"stand_maintenance", []string{"stand", "gate"}, ServiceMaintenance, "getMaintenanceForStand"},
		{"terminal_maintenance", []string{"terminal"}, ServiceMaintenance, "getMaintenanceForTerminal"},
		{"active_maintenance", []string{"active", "current", "ongoing"}, ServiceMaintenance, "getActiveMaintenance"},
		{"period_maintenance", []string{"next week", "this month", "between"}, ServiceMaintenance, "getMaintenanceForPeriod"},
		{"scheduled_maintenance", nil, ServiceMaintenance, "getScheduledMaintenance"},
	},
	nlp.IntentInfrastructureQuery: {
		{"stand_info", []string{"stand", "gate"}, ServiceInfrastructure, "getStandInfo"},
		{"terminal_info", []string{"terminal"}, ServiceInfrastructure, "getTerminalInfo"},
		{"airport_layout", []string{"layout", "map", "overview"}, ServiceInfrastructure, "getAirportLayout"},
		{"stand_list", []string{"list", "how many stands"}, ServiceInfrastructure, "listStands"},
		{"general_infrastructure", nil, ServiceInfrastructure, "getInfrastructureInfo"},
	},
	nlp.IntentStandStatus: {
		{"stand_compatibility", []string{"compatib", "fit", "handle", "accommodate"}, ServiceStand, "checkStandCompatibility"},
		{"stand_occupancy", []string{"occupied", "occupancy"}, ServiceStand, "getStandOccupancy"},
		{"stand_availability", []string{"available", "availability", "free"}, ServiceStand, "getStandAvailability"},
		{"stand_status", nil, ServiceStand, "getStandStatus"},
	},
}

// flatRoutes covers intents without subtype rules.
var flatRoutes = map[nlp.Intent]Route{
	nlp.IntentMaintenanceCreate:   {Subtype: "maintenance_create", Service: ServiceMaintenance, Method: "createMaintenanceRequest"},
	nlp.IntentMaintenanceUpdate:   {Subtype: "maintenance_update", Service: ServiceMaintenance, Method: "updateMaintenanceRequest"},
	nlp.IntentCapacityParamUpdate: {Subtype: "parameter_update", Service: ServiceCapacity, Method: "updateCapacityParameters"},
	nlp.IntentAutonomousSetting:   {Subtype: "autonomous_setting", Service: ServiceCapacity, Method: "updateCapacityParameters"},
	nlp.IntentScenarioCreate:      {Subtype: "scenario_create", Service: ServiceCapacity, Method: "calculateCapacity"},
	nlp.IntentScenarioModify:      {Subtype: "scenario_modify", Service: ServiceCapacity, Method: "calculateCapacity"},
}

// Resolve picks the service method for a parsed query. Matching order:
// pattern hit on the query text, then entity presence against subtype names,
// then the intent's declared default, then the flat intent table. The result
// depends only on the arguments.
func Resolve(intent nlp.Intent, queryText string, entities map[string]string) (Route, error) {
	rules, ok := subtypeRules[intent]
	if !ok {
		if route, ok := flatRoutes[intent]; ok {
			return route, nil
		}
		return Route{}, fmt.Errorf("%w: %s", ErrNoMapping, intent)
	}

	lower := strings.ToLower(queryText)

	for _, rule := range rules {
		for _, pattern := range rule.patterns {
			if strings.Contains(lower, pattern) {
				return rule.route(), nil
			}
		}
	}

	for _, rule := range rules {
		if len(rule.patterns) == 0 {
			continue
		}
		for entity := range entities {
			if strings.Contains(rule.subtype, entity) {
				return rule.route(), nil
			}
		}
	}

	for _, rule := range rules {
		if len(rule.patterns) == 0 {
			return rule.route(), nil
		}
	}

	if route, ok := flatRoutes[intent]; ok {
		return route, nil
	}
	return Route{}, fmt.Errorf("%w: %s", ErrNoMapping, intent)
}

func (r subtypeRule) route() Route {
	return Route{Subtype: r.subtype, Service: r.service, Method: r.method}
}
