package airport

import (
	"context"
	"testing"
	"time"

	"github.com/nickbooth1/airport-capacity-planner/internal/tools"
)

func TestDefaultModel(t *testing.T) {
	model := DefaultModel()
	if model.Code != "LHR" {
		t.Fatalf("Code = %q, want LHR", model.Code)
	}
	if got := len(model.Stands); got != 10 {
		t.Fatalf("len(Stands) = %d, want 10", got)
	}
	// A6 is closed and excluded from the open-stand sets.
	if got := len(model.standsFor("terminal 1")); got != 5 {
		t.Fatalf("open stands in terminal 1 = %d, want 5", got)
	}
	if got := len(model.standsFor("")); got != 9 {
		t.Fatalf("open stands for empty terminal = %d, want 9", got)
	}
	if _, ok := model.findStand("a1"); !ok {
		t.Fatal("findStand should match case-insensitively")
	}
}

func TestValidateEntity(t *testing.T) {
	model := DefaultModel()
	tests := []struct {
		kind      string
		value     string
		canonical string
		ok        bool
	}{
		{"stand", "a1", "A1", true},
		{"stand", "Z9", "", false},
		{"terminal", "Terminal 2", "terminal 2", true},
		{"terminal", "terminal 9", "", false},
		{"aircraft_type", "A380", "A380", true},
	}
	for _, tt := range tests {
		canonical, ok := model.ValidateEntity(tt.kind, tt.value)
		if canonical != tt.canonical || ok != tt.ok {
			t.Errorf("ValidateEntity(%s, %q) = (%q, %v), want (%q, %v)",
				tt.kind, tt.value, canonical, ok, tt.canonical, tt.ok)
		}
	}
}

func TestFits(t *testing.T) {
	tests := []struct {
		size     StandSize
		aircraft string
		want     bool
	}{
		{SizeNarrow, "A320", true},
		{SizeNarrow, "B777", false},
		{SizeNarrow, "A380", false},
		{SizeWide, "B777", true},
		{SizeWide, "A380", false},
		{SizeSuper, "A380", true},
		{SizeSuper, "A320", true},
		{SizeWide, "", true},
	}
	for _, tt := range tests {
		stand := Stand{ID: "X", Size: tt.size}
		if got := fits(stand, tt.aircraft); got != tt.want {
			t.Errorf("fits(%s, %q) = %v, want %v", tt.size, tt.aircraft, got, tt.want)
		}
	}
}

func TestCapacityCalculation(t *testing.T) {
	svc := NewServices(nil)
	raw, err := svc.Capacity.CalculateStandCapacity(context.Background(), map[string]any{"terminal": "terminal 2"})
	if err != nil {
		t.Fatalf("CalculateStandCapacity: %v", err)
	}
	result := raw.(map[string]any)
	if got := result["stands"].(int); got != 4 {
		t.Fatalf("stands = %d, want 4", got)
	}
	// Terminal 2: one wide (90+15 min cycle) and three narrow (45+15).
	want := 60.0/105.0 + 3*60.0/60.0
	if got := result["movementsPerHour"].(float64); got != want {
		t.Fatalf("movementsPerHour = %v, want %v", got, want)
	}
}

func TestCapacityAircraftFilter(t *testing.T) {
	svc := NewServices(nil)
	raw, err := svc.Capacity.CalculateCapacity(context.Background(), map[string]any{"aircraft_type": "A380"})
	if err != nil {
		t.Fatalf("CalculateCapacity: %v", err)
	}
	result := raw.(map[string]any)
	// Only the single open super stand takes an A380.
	if got := result["stands"].(int); got != 1 {
		t.Fatalf("stands = %d, want 1", got)
	}
}

func TestUpdateCapacityParameters(t *testing.T) {
	svc := NewServices(nil)
	_, err := svc.Capacity.UpdateCapacityParameters(context.Background(), map[string]any{
		"turnaround_narrow": float64(60),
	})
	if err != nil {
		t.Fatalf("UpdateCapacityParameters: %v", err)
	}
	raw, err := svc.Capacity.CalculateStandCapacity(context.Background(), map[string]any{"terminal": "terminal 2"})
	if err != nil {
		t.Fatalf("CalculateStandCapacity: %v", err)
	}
	result := raw.(map[string]any)
	// Narrow cycle is now 60+15: one wide plus three slower narrows.
	want := 60.0/105.0 + 3*60.0/75.0
	if got := result["movementsPerHour"].(float64); got != want {
		t.Fatalf("movementsPerHour after update = %v, want %v", got, want)
	}
}

func TestMaintenanceLifecycle(t *testing.T) {
	svc := NewServices(nil)
	ctx := context.Background()

	start := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	raw, err := svc.Maintenance.CreateMaintenanceRequest(ctx, map[string]any{
		"stand":     "a3",
		"startDate": start,
		"endDate":   end,
	})
	if err != nil {
		t.Fatalf("CreateMaintenanceRequest: %v", err)
	}
	req := raw.(MaintenanceRequest)
	if req.Stand != "A3" {
		t.Fatalf("Stand = %q, want A3", req.Stand)
	}
	if req.Status != "scheduled" {
		t.Fatalf("Status = %q, want scheduled", req.Status)
	}

	active, err := svc.Maintenance.GetActiveMaintenance(ctx, tools.MaintenanceQuery{})
	if err != nil {
		t.Fatalf("GetActiveMaintenance: %v", err)
	}
	if got := len(active.([]MaintenanceRequest)); got != 1 {
		t.Fatalf("active requests = %d, want 1", got)
	}

	byTerminal, err := svc.Maintenance.GetMaintenanceForTerminal(ctx, tools.MaintenanceQuery{Terminal: "terminal 1"})
	if err != nil {
		t.Fatalf("GetMaintenanceForTerminal: %v", err)
	}
	if got := len(byTerminal.([]MaintenanceRequest)); got != 1 {
		t.Fatalf("terminal 1 requests = %d, want 1", got)
	}

	if _, err := svc.Maintenance.UpdateMaintenanceRequest(ctx, map[string]any{
		"id":     req.ID,
		"status": "completed",
	}); err != nil {
		t.Fatalf("UpdateMaintenanceRequest: %v", err)
	}
	active, err = svc.Maintenance.GetActiveMaintenance(ctx, tools.MaintenanceQuery{})
	if err != nil {
		t.Fatalf("GetActiveMaintenance: %v", err)
	}
	if got := len(active.([]MaintenanceRequest)); got != 0 {
		t.Fatalf("active requests after completion = %d, want 0", got)
	}
}

func TestCreateMaintenanceRejectsUnknownStand(t *testing.T) {
	svc := NewServices(nil)
	_, err := svc.Maintenance.CreateMaintenanceRequest(context.Background(), map[string]any{
		"stand":     "Z9",
		"startDate": "2025-03-12",
	})
	if err == nil {
		t.Fatal("expected error for unknown stand")
	}
}

func TestMaintenanceForPeriod(t *testing.T) {
	svc := NewServices(nil)
	ctx := context.Background()
	if _, err := svc.Maintenance.CreateMaintenanceRequest(ctx, map[string]any{
		"stand":      "B2",
		"start_date": "2025-03-10T00:00:00Z",
		"end_date":   "2025-03-12T00:00:00Z",
	}); err != nil {
		t.Fatalf("CreateMaintenanceRequest: %v", err)
	}

	tests := []struct {
		name  string
		start string
		end   string
		want  int
	}{
		{"overlapping", "2025-03-11T00:00:00Z", "2025-03-13T00:00:00Z", 1},
		{"disjoint", "2025-03-20T00:00:00Z", "2025-03-21T00:00:00Z", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := svc.Maintenance.GetMaintenanceForPeriod(ctx, tools.MaintenanceQuery{
				Range: tools.DateRange{Start: tt.start, End: tt.end},
			})
			if err != nil {
				t.Fatalf("GetMaintenanceForPeriod: %v", err)
			}
			if got := len(raw.([]MaintenanceRequest)); got != tt.want {
				t.Fatalf("requests = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStandStatus(t *testing.T) {
	svc := NewServices(nil)
	ctx := context.Background()

	raw, err := svc.Stand.GetStandStatus(ctx, tools.StandQuery{Stand: "A6"})
	if err != nil {
		t.Fatalf("GetStandStatus: %v", err)
	}
	if got := raw.(map[string]any)["status"]; got != "closed" {
		t.Fatalf("A6 status = %v, want closed", got)
	}

	start := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	if _, err := svc.Maintenance.CreateMaintenanceRequest(ctx, map[string]any{
		"stand":     "A2",
		"startDate": start,
		"endDate":   end,
	}); err != nil {
		t.Fatalf("CreateMaintenanceRequest: %v", err)
	}
	raw, err = svc.Stand.GetStandStatus(ctx, tools.StandQuery{Stand: "A2"})
	if err != nil {
		t.Fatalf("GetStandStatus: %v", err)
	}
	if got := raw.(map[string]any)["status"]; got != "under maintenance" {
		t.Fatalf("A2 status = %v, want under maintenance", got)
	}

	raw, err = svc.Stand.GetStandAvailability(ctx, tools.StandQuery{Stand: "A2"})
	if err != nil {
		t.Fatalf("GetStandAvailability: %v", err)
	}
	if got := raw.(map[string]any)["available"]; got != false {
		t.Fatalf("A2 available = %v, want false", got)
	}
}

func TestStandCompatibility(t *testing.T) {
	svc := NewServices(nil)
	raw, err := svc.Stand.CheckStandCompatibility(context.Background(), tools.StandQuery{
		Stand:        "B2",
		AircraftType: "B777",
	})
	if err != nil {
		t.Fatalf("CheckStandCompatibility: %v", err)
	}
	result := raw.(map[string]any)
	if got := result["compatible"]; got != false {
		t.Fatalf("B777 on narrow stand compatible = %v, want false", got)
	}
}

func TestInfrastructureLookups(t *testing.T) {
	svc := NewServices(nil)
	ctx := context.Background()

	raw, err := svc.Infrastructure.GetStandInfo(ctx, tools.InfrastructureQuery{Stand: "A1"})
	if err != nil {
		t.Fatalf("GetStandInfo: %v", err)
	}
	if got := raw.(Stand).Size; got != SizeSuper {
		t.Fatalf("A1 size = %v, want %v", got, SizeSuper)
	}

	if _, err := svc.Infrastructure.GetStandInfo(ctx, tools.InfrastructureQuery{Stand: "Z9"}); err == nil {
		t.Fatal("expected error for unknown stand")
	}

	raw, err = svc.Infrastructure.ListStands(ctx, tools.InfrastructureQuery{Terminal: "terminal 2"})
	if err != nil {
		t.Fatalf("ListStands: %v", err)
	}
	if got := len(raw.([]Stand)); got != 4 {
		t.Fatalf("terminal 2 stands = %d, want 4", got)
	}

	raw, err = svc.Infrastructure.GetAirportLayout(ctx, tools.InfrastructureQuery{})
	if err != nil {
		t.Fatalf("GetAirportLayout: %v", err)
	}
	if got := raw.(map[string]any)["airport"]; got != "LHR" {
		t.Fatalf("airport = %v, want LHR", got)
	}
}
