package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nickbooth1/airport-capacity-planner/internal/nlp"
	"github.com/nickbooth1/airport-capacity-planner/internal/policy"
	"github.com/nickbooth1/airport-capacity-planner/internal/registry"
	"github.com/nickbooth1/airport-capacity-planner/internal/router"
)

// Error kinds carried on failed results. Stable strings; user-safe.
const (
	ErrKindNoMapping          = "no_mapping"
	ErrKindServiceUnavailable = "service_unavailable"
	ErrKindInternal           = "internal"
)

// Result is the discriminated outcome of one tool call. Either a completed
// call (Success with Data or an error), or an approval proposal carrying the
// would-be call so the confirmation flow can replay it.
type Result struct {
	Success          bool           `json:"success"`
	Data             any            `json:"data,omitempty"`
	Error            string         `json:"error,omitempty"`
	ErrorKind        string         `json:"errorKind,omitempty"`
	RequiresApproval bool           `json:"requiresApproval,omitempty"`
	ActionType       string         `json:"actionType,omitempty"`
	Service          string         `json:"service,omitempty"`
	Method           string         `json:"method,omitempty"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	Description      string         `json:"description,omitempty"`
	QuerySubtype     string         `json:"querySubtype,omitempty"`
}

// Orchestrator resolves a routed query to a service call.
type Orchestrator struct {
	registry          *registry.Registry
	approvalOverrides map[string]bool
	now               func() time.Time
}

// NewOrchestrator builds an orchestrator over the given registry.
// approvalOverrides may force or exempt approval per method name; nil means
// no overrides.
func NewOrchestrator(reg *registry.Registry, approvalOverrides map[string]bool) *Orchestrator {
	return &Orchestrator{
		registry:          reg,
		approvalOverrides: approvalOverrides,
		now:               time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Execute runs one parsed query end to end: route, resolve the service,
// gate on approval, bind parameters, call. Failures come back as results,
// never as errors or panics.
func (o *Orchestrator) Execute(ctx context.Context, parsed nlp.ParseResult) Result {
	route, err := router.Resolve(parsed.Intent, parsed.Text, parsed.Entities)
	if err != nil {
		return Result{Error: "no mapping for this request", ErrorKind: ErrKindNoMapping}
	}

	svc, err := o.registry.Get(route.Service)
	if err != nil {
		if errors.Is(err, registry.ErrNotRegistered) {
			return Result{Error: "service not found: " + route.Service, ErrorKind: ErrKindServiceUnavailable}
		}
		return Result{Error: "service unavailable: " + route.Service, ErrorKind: ErrKindServiceUnavailable}
	}

	params := buildParameters(parsed, route.Subtype, o.now())

	decision := policy.DecideAction(string(parsed.Intent), route.Method, o.approvalOverrides)
	if decision.RequiresApproval {
		return Result{
			Success:          true,
			RequiresApproval: true,
			ActionType:       string(parsed.Intent),
			Service:          route.Service,
			Method:           route.Method,
			Parameters:       params,
			Description:      describeAction(parsed.Intent, parsed.Entities),
			QuerySubtype:     route.Subtype,
		}
	}

	data, err := o.invoke(ctx, route, svc, params)
	if err != nil {
		if errors.Is(err, errUnknownMethod) {
			return Result{Error: "method not found: " + route.Method, ErrorKind: ErrKindServiceUnavailable, QuerySubtype: route.Subtype}
		}
		log.Printf("tools: %s.%s failed: %v", route.Service, route.Method, err)
		return Result{Error: "the request could not be completed", ErrorKind: ErrKindInternal, QuerySubtype: route.Subtype}
	}
	return Result{Success: true, Data: data, QuerySubtype: route.Subtype, Service: route.Service, Method: route.Method, Parameters: params}
}

// CallApproved replays a previously approved proposal.
func (o *Orchestrator) CallApproved(ctx context.Context, service, method string, params map[string]any) Result {
	svc, err := o.registry.Get(service)
	if err != nil {
		return Result{Error: "service not found: " + service, ErrorKind: ErrKindServiceUnavailable}
	}
	route := router.Route{Service: service, Method: method}
	data, err := o.invoke(ctx, route, svc, params)
	if err != nil {
		if errors.Is(err, errUnknownMethod) {
			return Result{Error: "method not found: " + method, ErrorKind: ErrKindServiceUnavailable}
		}
		log.Printf("tools: approved %s.%s failed: %v", service, method, err)
		return Result{Error: "the request could not be completed", ErrorKind: ErrKindInternal}
	}
	return Result{Success: true, Data: data, Service: service, Method: method}
}

var errUnknownMethod = errors.New("tools: unknown method")

// invoke dispatches through the declared call shapes. Capacity methods take
// an options object; maintenance queries take a scoped query; infrastructure
// and stand methods take their own query shapes. No signature introspection.
func (o *Orchestrator) invoke(ctx context.Context, route router.Route, svc any, params map[string]any) (any, error) {
	switch route.Service {
	case router.ServiceCapacity:
		cs, ok := svc.(CapacityService)
		if !ok {
			return nil, fmt.Errorf("%s does not implement the capacity interface", route.Service)
		}
		switch route.Method {
		case "calculateCapacity":
			return cs.CalculateCapacity(ctx, params)
		case "calculateStandCapacity":
			return cs.CalculateStandCapacity(ctx, params)
		case "calculateCapacityForTimeSlot":
			return cs.CalculateCapacityForTimeSlot(ctx, rangeParam(params), params)
		case "updateCapacityParameters":
			return cs.UpdateCapacityParameters(ctx, params)
		}
	case router.ServiceMaintenance:
		ms, ok := svc.(MaintenanceService)
		if !ok {
			return nil, fmt.Errorf("%s does not implement the maintenance interface", route.Service)
		}
		q := MaintenanceQuery{
			Stand:    stringParam(params, nlp.EntityStand),
			Terminal: stringParam(params, nlp.EntityTerminal),
			Range:    rangeParam(params),
			Status:   stringParam(params, nlp.EntityStatus),
		}
		switch route.Method {
		case "getScheduledMaintenance":
			return ms.GetScheduledMaintenance(ctx, q)
		case "getActiveMaintenance":
			return ms.GetActiveMaintenance(ctx, q)
		case "getMaintenanceForStand":
			return ms.GetMaintenanceForStand(ctx, q)
		case "getMaintenanceForTerminal":
			return ms.GetMaintenanceForTerminal(ctx, q)
		case "getMaintenanceForPeriod":
			return ms.GetMaintenanceForPeriod(ctx, q)
		case "createMaintenanceRequest":
			return ms.CreateMaintenanceRequest(ctx, params)
		case "updateMaintenanceRequest":
			return ms.UpdateMaintenanceRequest(ctx, params)
		}
	case router.ServiceInfrastructure:
		is, ok := svc.(InfrastructureService)
		if !ok {
			return nil, fmt.Errorf("%s does not implement the infrastructure interface", route.Service)
		}
		q := InfrastructureQuery{
			Terminal:    stringParam(params, nlp.EntityTerminal),
			Stand:       stringParam(params, nlp.EntityStand),
			DetailLevel: stringParam(params, "detail_level"),
		}
		switch route.Method {
		case "getStandInfo":
			return is.GetStandInfo(ctx, q)
		case "getTerminalInfo":
			return is.GetTerminalInfo(ctx, q)
		case "listStands":
			return is.ListStands(ctx, q)
		case "getAirportLayout":
			return is.GetAirportLayout(ctx, q)
		case "getInfrastructureInfo":
			return is.GetInfrastructureInfo(ctx, q)
		}
	case router.ServiceStand:
		ss, ok := svc.(StandService)
		if !ok {
			return nil, fmt.Errorf("%s does not implement the stand interface", route.Service)
		}
		q := StandQuery{
			Stand:        stringParam(params, nlp.EntityStand),
			AircraftType: stringParam(params, nlp.EntityAircraftType),
			Range:        rangeParam(params),
		}
		switch route.Method {
		case "getStandAvailability":
			return ss.GetStandAvailability(ctx, q)
		case "getStandOccupancy":
			return ss.GetStandOccupancy(ctx, q)
		case "checkStandCompatibility":
			return ss.CheckStandCompatibility(ctx, q)
		case "getStandStatus":
			return ss.GetStandStatus(ctx, q)
		}
	}

	// Unknown get-style methods may go through the legacy data entry point.
	if ds, ok := svc.(DataService); ok && len(route.Method) > 3 && route.Method[:3] == "get" {
		fallbackParams := make(map[string]any, len(params)+1)
		for k, v := range params {
			fallbackParams[k] = v
		}
		fallbackParams["requestedMethod"] = route.Method
		return ds.GetData(ctx, fallbackParams)
	}
	return nil, fmt.Errorf("%w: %s.%s", errUnknownMethod, route.Service, route.Method)
}
