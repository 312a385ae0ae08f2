// Package tools executes routed queries against the domain services and
// gates side effects behind human approval.
package tools

import "context"

// DateRange bounds a query in time. Values are RFC 3339 strings.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MaintenanceQuery scopes a maintenance lookup.
type MaintenanceQuery struct {
	Stand    string    `json:"stand,omitempty"`
	Terminal string    `json:"terminal,omitempty"`
	Range    DateRange `json:"range"`
	Status   string    `json:"status,omitempty"`
}

// InfrastructureQuery scopes an infrastructure lookup.
type InfrastructureQuery struct {
	Terminal    string `json:"terminal,omitempty"`
	Stand       string `json:"stand,omitempty"`
	DetailLevel string `json:"detailLevel,omitempty"`
}

// StandQuery scopes a stand status lookup.
type StandQuery struct {
	Stand        string    `json:"stand"`
	AircraftType string    `json:"aircraftType,omitempty"`
	Range        DateRange `json:"range"`
}

// CapacityService computes stand and terminal capacity figures.
type CapacityService interface {
	CalculateCapacity(ctx context.Context, options map[string]any) (any, error)
	CalculateStandCapacity(ctx context.Context, options map[string]any) (any, error)
	CalculateCapacityForTimeSlot(ctx context.Context, slot DateRange, options map[string]any) (any, error)
	UpdateCapacityParameters(ctx context.Context, params map[string]any) (any, error)
}

// MaintenanceService answers maintenance queries and accepts requests.
type MaintenanceService interface {
	GetScheduledMaintenance(ctx context.Context, q MaintenanceQuery) (any, error)
	GetActiveMaintenance(ctx context.Context, q MaintenanceQuery) (any, error)
	GetMaintenanceForStand(ctx context.Context, q MaintenanceQuery) (any, error)
	GetMaintenanceForTerminal(ctx context.Context, q MaintenanceQuery) (any, error)
	GetMaintenanceForPeriod(ctx context.Context, q MaintenanceQuery) (any, error)
	CreateMaintenanceRequest(ctx context.Context, params map[string]any) (any, error)
	UpdateMaintenanceRequest(ctx context.Context, params map[string]any) (any, error)
}

// InfrastructureService describes the airport's physical layout.
type InfrastructureService interface {
	GetStandInfo(ctx context.Context, q InfrastructureQuery) (any, error)
	GetTerminalInfo(ctx context.Context, q InfrastructureQuery) (any, error)
	ListStands(ctx context.Context, q InfrastructureQuery) (any, error)
	GetAirportLayout(ctx context.Context, q InfrastructureQuery) (any, error)
	GetInfrastructureInfo(ctx context.Context, q InfrastructureQuery) (any, error)
}

// StandService answers point-in-time stand questions.
type StandService interface {
	GetStandAvailability(ctx context.Context, q StandQuery) (any, error)
	GetStandOccupancy(ctx context.Context, q StandQuery) (any, error)
	CheckStandCompatibility(ctx context.Context, q StandQuery) (any, error)
	GetStandStatus(ctx context.Context, q StandQuery) (any, error)
}

// DataService is the legacy escape hatch: a service that answers arbitrary
// get-style methods through a single entry point. Only consulted when a
// routed method is not part of the declared call shapes.
type DataService interface {
	GetData(ctx context.Context, params map[string]any) (any, error)
}
