package params

import "time"

// Built-in scenario schema names.
const (
	CapacityScenario        = "capacityScenario"
	MaintenanceScenario     = "maintenanceScenario"
	FlightScheduleScenario  = "flightScheduleScenario"
	StandAllocationScenario = "standAllocationScenario"
	CapacityForecast        = "capacityForecastScenario"
	AdjacencyImpact         = "adjacencyImpactScenario"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

// BuiltinSchemas returns the scenario schemas the validator ships with.
// Date inference is relative to now: an absent endDate becomes startDate
// plus one day for maintenance, plus one year for forecasts, and plus seven
// days otherwise; an absent startDate defaults to today.
func BuiltinSchemas(now func() time.Time) map[string]*Schema {
	if now == nil {
		now = time.Now
	}

	schemas := map[string]*Schema{
		CapacityScenario: {
			Name: CapacityScenario,
			Fields: map[string]Field{
				"airport":                 {Type: TypeString, Format: FormatAirportCode},
				"terminal":                {Type: TypeString, MinLength: ptrInt(1)},
				"startDate":               {Type: TypeString, Format: FormatISODate},
				"endDate":                 {Type: TypeString, Format: FormatISODate},
				"aircraftTypes":           {Type: TypeArray, Items: &Field{Type: TypeString}},
				"metric":                  {Type: TypeString, Enum: []string{"utilization", "occupancy", "throughput"}, Default: "utilization"},
				"includeMaintenanceImpact": {Type: TypeBoolean, Default: true},
			},
		},
		MaintenanceScenario: {
			Name: MaintenanceScenario,
			Fields: map[string]Field{
				"stand":       {Type: TypeString, MinLength: ptrInt(1)},
				"startDate":   {Type: TypeString, Format: FormatISODate},
				"endDate":     {Type: TypeString, Format: FormatISODate},
				"description": {Type: TypeString, MaxLength: ptrInt(500)},
				"impactLevel": {Type: TypeString, Enum: []string{"low", "medium", "high"}, Default: "medium"},
			},
			Required: []string{"stand", "startDate"},
		},
		FlightScheduleScenario: {
			Name: FlightScheduleScenario,
			Fields: map[string]Field{
				"airline":           {Type: TypeString, Format: FormatIATACode},
				"startDate":         {Type: TypeString, Format: FormatISODate},
				"endDate":           {Type: TypeString, Format: FormatISODate},
				"flightsPerDay":     {Type: TypeInteger, Minimum: ptrFloat(0)},
				"turnaroundMinutes": {Type: TypeInteger, Minimum: ptrFloat(10), Maximum: ptrFloat(240)},
			},
			Dependencies: map[string][]string{
				"flightsPerDay": {"airline"},
			},
		},
		StandAllocationScenario: {
			Name: StandAllocationScenario,
			Fields: map[string]Field{
				"terminal":  {Type: TypeString},
				"stands":    {Type: TypeArray, Items: &Field{Type: TypeString}, MinItems: ptrInt(1)},
				"strategy":  {Type: TypeString, Enum: []string{"balanced", "proximity", "airline_priority"}, Default: "balanced"},
				"startDate": {Type: TypeString, Format: FormatISODate},
				"endDate":   {Type: TypeString, Format: FormatISODate},
			},
		},
		CapacityForecast: {
			Name: CapacityForecast,
			Fields: map[string]Field{
				"airport":           {Type: TypeString, Format: FormatAirportCode},
				"startDate":         {Type: TypeString, Format: FormatISODate},
				"endDate":           {Type: TypeString, Format: FormatISODate},
				"growthRatePercent": {Type: TypeNumber, Minimum: ptrFloat(-50), Maximum: ptrFloat(100), Default: 2.5},
				"granularity":       {Type: TypeString, Enum: []string{"day", "week", "month"}, Default: "month"},
			},
			Required: []string{"startDate"},
		},
		AdjacencyImpact: {
			Name: AdjacencyImpact,
			Fields: map[string]Field{
				"stand":          {Type: TypeString, MinLength: ptrInt(1)},
				"affectedStands": {Type: TypeArray, Items: &Field{Type: TypeString}},
				"restriction":    {Type: TypeString, Enum: []string{"closed", "size_limited", "no_wide_body"}, Default: "size_limited"},
				"startDate":      {Type: TypeString, Format: FormatISODate},
				"endDate":        {Type: TypeString, Format: FormatISODate},
			},
			Required: []string{"stand"},
		},
	}

	for name, schema := range schemas {
		schema.Infer = dateInference(name, now)
	}
	return schemas
}

// dateInference produces the per-schema rule for filling missing dates.
func dateInference(schemaName string, now func() time.Time) func(string, map[string]any) (any, bool) {
	return func(field string, params map[string]any) (any, bool) {
		switch field {
		case "startDate":
			return now().Format("2006-01-02"), true
		case "endDate":
			start, ok := params["startDate"].(string)
			if !ok {
				return nil, false
			}
			t, err := time.Parse("2006-01-02", start)
			if err != nil {
				return nil, false
			}
			switch schemaName {
			case MaintenanceScenario:
				t = t.AddDate(0, 0, 1)
			case CapacityForecast:
				t = t.AddDate(1, 0, 0)
			default:
				t = t.AddDate(0, 0, 7)
			}
			return t.Format("2006-01-02"), true
		default:
			return nil, false
		}
	}
}

// Validator holds a named schema set.
type Validator struct {
	schemas map[string]*Schema
}

// NewValidator builds a validator over the built-in schemas. now is used for
// date inference; pass nil for wall-clock time.
func NewValidator(now func() time.Time) *Validator {
	return &Validator{schemas: BuiltinSchemas(now)}
}

// Schema returns the named schema, or nil when none is declared.
func (v *Validator) Schema(name string) *Schema {
	return v.schemas[name]
}

// Names lists the declared schema names.
func (v *Validator) Names() []string {
	names := make([]string, 0, len(v.schemas))
	for name := range v.schemas {
		names = append(names, name)
	}
	return names
}

// Register adds or replaces a schema.
func (v *Validator) Register(schema *Schema) {
	v.schemas[schema.Name] = schema
}
