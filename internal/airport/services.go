package airport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nickbooth1/airport-capacity-planner/internal/tools"
)

// Services bundles the four reference services over one model.
type Services struct {
	Model          *Model
	Capacity       *CapacityService
	Maintenance    *MaintenanceService
	Infrastructure *InfrastructureService
	Stand          *StandService
}

// NewServices builds the reference services. A nil model uses DefaultModel.
func NewServices(model *Model) *Services {
	if model == nil {
		model = DefaultModel()
	}
	maintenance := &MaintenanceService{model: model, requests: make(map[string]*MaintenanceRequest)}
	return &Services{
		Model:          model,
		Capacity:       &CapacityService{model: model, maintenance: maintenance},
		Maintenance:    maintenance,
		Infrastructure: &InfrastructureService{model: model},
		Stand:          &StandService{model: model, maintenance: maintenance},
	}
}

// CapacityService computes movement capacity from the stand mix and
// turnaround times.
type CapacityService struct {
	model       *Model
	maintenance *MaintenanceService

	mu         sync.RWMutex
	paramShift map[StandSize]int
}

func (s *CapacityService) turnaround(size StandSize) int {
	base := s.model.TurnaroundMinutes[size]
	s.mu.RLock()
	defer s.mu.RUnlock()
	return base + s.paramShift[size]
}

// capacityFor computes hourly movements for a stand set: each stand cycles
// every turnaround+buffer minutes.
func (s *CapacityService) capacityFor(stands []Stand, aircraftType string) map[string]any {
	perHour := 0.0
	usable := 0
	for _, stand := range stands {
		if aircraftType != "" && !fits(stand, aircraftType) {
			continue
		}
		usable++
		cycle := float64(s.turnaround(stand.Size) + s.model.BufferMinutes)
		perHour += 60.0 / cycle
	}
	return map[string]any{
		"stands":            usable,
		"movementsPerHour":  perHour,
		"movementsPerDay":   perHour * 18, // operating day 06:00-24:00
		"bufferMinutes":     s.model.BufferMinutes,
		"aircraftType":      aircraftType,
		"basisTurnarounds":  s.model.TurnaroundMinutes,
		"maintenanceImpact": s.maintenance.activeCount(),
	}
}

func (s *CapacityService) CalculateCapacity(ctx context.Context, options map[string]any) (any, error) {
	aircraft, _ := options["aircraft_type"].(string)
	return s.capacityFor(s.model.standsFor(""), aircraft), nil
}

func (s *CapacityService) CalculateStandCapacity(ctx context.Context, options map[string]any) (any, error) {
	terminal, _ := options["terminal"].(string)
	aircraft, _ := options["aircraft_type"].(string)
	result := s.capacityFor(s.model.standsFor(terminal), aircraft)
	result["terminal"] = terminal
	return result, nil
}

func (s *CapacityService) CalculateCapacityForTimeSlot(ctx context.Context, slot tools.DateRange, options map[string]any) (any, error) {
	aircraft, _ := options["aircraft_type"].(string)
	result := s.capacityFor(s.model.standsFor(""), aircraft)
	result["slot"] = slot
	return result, nil
}

// UpdateCapacityParameters shifts turnaround minutes per stand size. Only
// recognized keys take effect; the response reports what changed.
func (s *CapacityService) UpdateCapacityParameters(ctx context.Context, params map[string]any) (any, error) {
	applied := map[string]int{}
	s.mu.Lock()
	if s.paramShift == nil {
		s.paramShift = make(map[StandSize]int)
	}
	for key, size := range map[string]StandSize{
		"turnaround_narrow": SizeNarrow,
		"turnaround_wide":   SizeWide,
		"turnaround_super":  SizeSuper,
	} {
		if raw, ok := params[key]; ok {
			if minutes, ok := raw.(float64); ok {
				s.paramShift[size] = int(minutes) - s.model.TurnaroundMinutes[size]
				applied[key] = int(minutes)
			}
		}
	}
	s.mu.Unlock()
	return map[string]any{"updated": applied}, nil
}

// MaintenanceRequest is a scheduled closure of a stand.
type MaintenanceRequest struct {
	ID          string    `json:"id"`
	Stand       string    `json:"stand"`
	Description string    `json:"description,omitempty"`
	ImpactLevel string    `json:"impactLevel,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status"`
}

// MaintenanceService keeps maintenance requests in memory.
type MaintenanceService struct {
	model *Model

	mu       sync.RWMutex
	requests map[string]*MaintenanceRequest
}

func (s *MaintenanceService) activeCount() int {
	now := time.Now().UTC()
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, req := range s.requests {
		if req.Status == "scheduled" && !now.Before(req.Start) && now.Before(req.End) {
			count++
		}
	}
	return count
}

func (s *MaintenanceService) list(filter func(*MaintenanceRequest) bool) []MaintenanceRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []MaintenanceRequest
	for _, req := range s.requests {
		if filter == nil || filter(req) {
			out = append(out, *req)
		}
	}
	return out
}

func (s *MaintenanceService) GetScheduledMaintenance(ctx context.Context, q tools.MaintenanceQuery) (any, error) {
	return s.list(func(req *MaintenanceRequest) bool { return req.Status == "scheduled" }), nil
}

func (s *MaintenanceService) GetActiveMaintenance(ctx context.Context, q tools.MaintenanceQuery) (any, error) {
	now := time.Now().UTC()
	return s.list(func(req *MaintenanceRequest) bool {
		return req.Status == "scheduled" && !now.Before(req.Start) && now.Before(req.End)
	}), nil
}

func (s *MaintenanceService) GetMaintenanceForStand(ctx context.Context, q tools.MaintenanceQuery) (any, error) {
	return s.list(func(req *MaintenanceRequest) bool {
		return strings.EqualFold(req.Stand, q.Stand)
	}), nil
}

func (s *MaintenanceService) GetMaintenanceForTerminal(ctx context.Context, q tools.MaintenanceQuery) (any, error) {
	standIdx := make(map[string]string)
	for _, stand := range s.model.Stands {
		standIdx[strings.ToUpper(stand.ID)] = stand.Terminal
	}
	return s.list(func(req *MaintenanceRequest) bool {
		return strings.EqualFold(standIdx[strings.ToUpper(req.Stand)], q.Terminal)
	}), nil
}

func (s *MaintenanceService) GetMaintenanceForPeriod(ctx context.Context, q tools.MaintenanceQuery) (any, error) {
	if q.Range.Start == "" || q.Range.End == "" {
		return nil, fmt.Errorf("period query needs a date range")
	}
	start, err := parseWhen(q.Range.Start)
	if err != nil {
		return nil, fmt.Errorf("bad range start: %w", err)
	}
	end, err := parseWhen(q.Range.End)
	if err != nil {
		return nil, fmt.Errorf("bad range end: %w", err)
	}
	return s.list(func(req *MaintenanceRequest) bool {
		return req.Start.Before(end) && req.End.After(start)
	}), nil
}

func (s *MaintenanceService) CreateMaintenanceRequest(ctx context.Context, params map[string]any) (any, error) {
	stand, _ := params["stand"].(string)
	if stand == "" {
		return nil, fmt.Errorf("stand is required")
	}
	if _, ok := s.model.findStand(stand); !ok {
		return nil, fmt.Errorf("unknown stand %q", stand)
	}
	start, end, err := parseWindow(params)
	if err != nil {
		return nil, err
	}

	req := &MaintenanceRequest{
		ID:          uuid.NewString(),
		Stand:       strings.ToUpper(stand),
		Description: stringOr(params, "description"),
		ImpactLevel: stringOr(params, "impactLevel"),
		Start:       start,
		End:         end,
		Status:      "scheduled",
	}
	s.mu.Lock()
	s.requests[req.ID] = req
	s.mu.Unlock()
	return *req, nil
}

func (s *MaintenanceService) UpdateMaintenanceRequest(ctx context.Context, params map[string]any) (any, error) {
	id, _ := params["id"].(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("unknown maintenance request %q", id)
	}
	if status, ok := params["status"].(string); ok && status != "" {
		req.Status = status
	}
	if desc, ok := params["description"].(string); ok && desc != "" {
		req.Description = desc
	}
	return *req, nil
}

func parseWindow(params map[string]any) (time.Time, time.Time, error) {
	startRaw := stringOr(params, "startDate")
	if startRaw == "" {
		startRaw = stringOr(params, "start_date")
	}
	start, err := parseWhen(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad startDate: %w", err)
	}
	endRaw := stringOr(params, "endDate")
	if endRaw == "" {
		endRaw = stringOr(params, "end_date")
	}
	if endRaw == "" {
		return start, start.Add(24 * time.Hour), nil
	}
	end, err := parseWhen(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad endDate: %w", err)
	}
	// Date-only input can collapse the window to zero; keep at least a day.
	if !end.After(start) {
		end = start.Add(24 * time.Hour)
	}
	return start, end, nil
}

func parseWhen(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func stringOr(params map[string]any, key string) string {
	value, _ := params[key].(string)
	return value
}

// InfrastructureService describes the static layout.
type InfrastructureService struct {
	model *Model
}

func (s *InfrastructureService) GetStandInfo(ctx context.Context, q tools.InfrastructureQuery) (any, error) {
	stand, ok := s.model.findStand(q.Stand)
	if !ok {
		return nil, fmt.Errorf("unknown stand %q", q.Stand)
	}
	return stand, nil
}

func (s *InfrastructureService) GetTerminalInfo(ctx context.Context, q tools.InfrastructureQuery) (any, error) {
	for _, terminal := range s.model.Terminals {
		if strings.EqualFold(terminal.ID, q.Terminal) {
			return terminal, nil
		}
	}
	return nil, fmt.Errorf("unknown terminal %q", q.Terminal)
}

func (s *InfrastructureService) ListStands(ctx context.Context, q tools.InfrastructureQuery) (any, error) {
	if q.Terminal != "" {
		return s.model.standsFor(q.Terminal), nil
	}
	return s.model.Stands, nil
}

func (s *InfrastructureService) GetAirportLayout(ctx context.Context, q tools.InfrastructureQuery) (any, error) {
	return map[string]any{
		"airport":   s.model.Code,
		"terminals": s.model.Terminals,
		"stands":    len(s.model.Stands),
	}, nil
}

func (s *InfrastructureService) GetInfrastructureInfo(ctx context.Context, q tools.InfrastructureQuery) (any, error) {
	return s.GetAirportLayout(ctx, q)
}

// StandService answers point-in-time stand questions, joined against active
// maintenance.
type StandService struct {
	model       *Model
	maintenance *MaintenanceService
}

func (s *StandService) underMaintenance(standID string) bool {
	now := time.Now().UTC()
	s.maintenance.mu.RLock()
	defer s.maintenance.mu.RUnlock()
	for _, req := range s.maintenance.requests {
		if !strings.EqualFold(req.Stand, standID) {
			continue
		}
		if req.Status == "scheduled" && !now.Before(req.Start) && now.Before(req.End) {
			return true
		}
	}
	return false
}

func (s *StandService) GetStandAvailability(ctx context.Context, q tools.StandQuery) (any, error) {
	stand, ok := s.model.findStand(q.Stand)
	if !ok {
		return nil, fmt.Errorf("unknown stand %q", q.Stand)
	}
	available := stand.Open && !s.underMaintenance(stand.ID)
	return map[string]any{"stand": stand.ID, "available": available}, nil
}

func (s *StandService) GetStandOccupancy(ctx context.Context, q tools.StandQuery) (any, error) {
	stand, ok := s.model.findStand(q.Stand)
	if !ok {
		return nil, fmt.Errorf("unknown stand %q", q.Stand)
	}
	return map[string]any{
		"stand":    stand.ID,
		"occupied": s.underMaintenance(stand.ID),
	}, nil
}

func (s *StandService) CheckStandCompatibility(ctx context.Context, q tools.StandQuery) (any, error) {
	stand, ok := s.model.findStand(q.Stand)
	if !ok {
		return nil, fmt.Errorf("unknown stand %q", q.Stand)
	}
	return map[string]any{
		"stand":        stand.ID,
		"aircraftType": q.AircraftType,
		"compatible":   fits(stand, q.AircraftType),
		"standSize":    stand.Size,
	}, nil
}

func (s *StandService) GetStandStatus(ctx context.Context, q tools.StandQuery) (any, error) {
	stand, ok := s.model.findStand(q.Stand)
	if !ok {
		return nil, fmt.Errorf("unknown stand %q", q.Stand)
	}
	status := "available"
	switch {
	case !stand.Open:
		status = "closed"
	case s.underMaintenance(stand.ID):
		status = "under maintenance"
	}
	return map[string]any{"stand": stand.ID, "status": status}, nil
}
