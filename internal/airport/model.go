// Package airport provides reference implementations of the domain services
// the agent depends on. They run over a static airport model and are
// deterministic, which makes them safe defaults for development and tests.
package airport

import "strings"

// StandSize buckets aircraft by wingspan class.
type StandSize string

const (
	SizeNarrow StandSize = "narrow"
	SizeWide   StandSize = "wide"
	SizeSuper  StandSize = "super"
)

// Stand is one aircraft parking position.
type Stand struct {
	ID       string    `json:"id"`
	Terminal string    `json:"terminal"`
	Size     StandSize `json:"size"`
	Open     bool      `json:"open"`
}

// Terminal groups stands.
type Terminal struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Stands int    `json:"stands"`
}

// Model is the static airport layout the reference services answer from.
type Model struct {
	Code      string
	Terminals []Terminal
	Stands    []Stand

	// TurnaroundMinutes by stand size, used for capacity arithmetic.
	TurnaroundMinutes map[StandSize]int
	BufferMinutes     int
}

// DefaultModel is a two-terminal airport with a realistic stand mix.
func DefaultModel() *Model {
	stands := []Stand{
		{ID: "A1", Terminal: "terminal 1", Size: SizeSuper, Open: true},
		{ID: "A2", Terminal: "terminal 1", Size: SizeWide, Open: true},
		{ID: "A3", Terminal: "terminal 1", Size: SizeWide, Open: true},
		{ID: "A4", Terminal: "terminal 1", Size: SizeNarrow, Open: true},
		{ID: "A5", Terminal: "terminal 1", Size: SizeNarrow, Open: true},
		{ID: "A6", Terminal: "terminal 1", Size: SizeNarrow, Open: false},
		{ID: "B1", Terminal: "terminal 2", Size: SizeWide, Open: true},
		{ID: "B2", Terminal: "terminal 2", Size: SizeNarrow, Open: true},
		{ID: "B3", Terminal: "terminal 2", Size: SizeNarrow, Open: true},
		{ID: "B4", Terminal: "terminal 2", Size: SizeNarrow, Open: true},
	}
	return &Model{
		Code: "LHR",
		Terminals: []Terminal{
			{ID: "terminal 1", Name: "Terminal 1", Stands: 6},
			{ID: "terminal 2", Name: "Terminal 2", Stands: 4},
		},
		Stands: stands,
		TurnaroundMinutes: map[StandSize]int{
			SizeNarrow: 45,
			SizeWide:   90,
			SizeSuper:  120,
		},
		BufferMinutes: 15,
	}
}

// standsFor returns open stands, optionally filtered by terminal.
func (m *Model) standsFor(terminal string) []Stand {
	var out []Stand
	for _, stand := range m.Stands {
		if !stand.Open {
			continue
		}
		if terminal != "" && !strings.EqualFold(stand.Terminal, terminal) {
			continue
		}
		out = append(out, stand)
	}
	return out
}

// findStand looks a stand up by id, case insensitive.
func (m *Model) findStand(id string) (Stand, bool) {
	for _, stand := range m.Stands {
		if strings.EqualFold(stand.ID, id) {
			return stand, true
		}
	}
	return Stand{}, false
}

// ValidateEntity checks extracted entities against the airport layout. Stands
// and terminals must exist; other entity kinds pass through unchanged.
func (m *Model) ValidateEntity(kind, value string) (string, bool) {
	switch kind {
	case "stand":
		stand, ok := m.findStand(value)
		if !ok {
			return "", false
		}
		return stand.ID, true
	case "terminal":
		for _, terminal := range m.Terminals {
			if strings.EqualFold(terminal.ID, value) || strings.EqualFold(terminal.Name, value) {
				return terminal.ID, true
			}
		}
		return "", false
	default:
		return value, true
	}
}

// fits reports whether an aircraft type can use a stand. Aircraft types map
// to size classes: A380 and B747 need super or wide-plus; other wide-bodies
// need wide; everything else fits anywhere.
func fits(stand Stand, aircraftType string) bool {
	switch requiredSize(aircraftType) {
	case SizeSuper:
		return stand.Size == SizeSuper
	case SizeWide:
		return stand.Size == SizeSuper || stand.Size == SizeWide
	default:
		return true
	}
}

var wideBodies = map[string]bool{
	"A330": true, "A340": true, "A350": true,
	"B767": true, "B777": true, "B787": true,
}

var superBodies = map[string]bool{
	"A380": true, "B747": true,
}

func requiredSize(aircraftType string) StandSize {
	upper := strings.ToUpper(strings.TrimSpace(aircraftType))
	if superBodies[upper] {
		return SizeSuper
	}
	if wideBodies[upper] {
		return SizeWide
	}
	return SizeNarrow
}
