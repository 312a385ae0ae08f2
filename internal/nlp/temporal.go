package nlp

import (
	"strings"
	"time"
)

// RangeType classifies a normalized time expression.
type RangeType string

const (
	RangeDay       RangeType = "day"
	RangeWeek      RangeType = "week"
	RangeMonth     RangeType = "month"
	RangePartOfDay RangeType = "part_of_day"
	RangeHour      RangeType = "hour"
	RangeError     RangeType = "error"
)

// TimeRange is a normalized temporal expression.
type TimeRange struct {
	Type     RangeType `json:"type"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	ISOStart string    `json:"iso_start"`
	ISOEnd   string    `json:"iso_end"`
}

// ProcessTimeExpression normalizes a recognized time phrase relative to now.
// Unknown phrases default to today.
func ProcessTimeExpression(phrase string, now time.Time) TimeRange {
	normalized := strings.ToLower(strings.TrimSpace(phrase))
	if normalized == "" {
		return TimeRange{Type: RangeError}
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := midnight.Add(24*time.Hour - time.Second)

	switch normalized {
	case "today":
		return newRange(RangeDay, midnight, endOfDay)
	case "tomorrow":
		start := midnight.Add(24 * time.Hour)
		return newRange(RangeDay, start, start.Add(24*time.Hour-time.Second))
	case "next week":
		// The next calendar week, Monday through Sunday.
		daysUntilMonday := (8 - int(now.Weekday())) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		start := midnight.AddDate(0, 0, daysUntilMonday)
		return newRange(RangeWeek, start, start.AddDate(0, 0, 7).Add(-time.Second))
	case "this month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return newRange(RangeMonth, start, start.AddDate(0, 1, 0).Add(-time.Second))
	case "morning":
		return newRange(RangePartOfDay, midnight.Add(6*time.Hour), midnight.Add(12*time.Hour))
	case "afternoon":
		return newRange(RangePartOfDay, midnight.Add(12*time.Hour), midnight.Add(18*time.Hour))
	case "evening":
		return newRange(RangePartOfDay, midnight.Add(18*time.Hour), endOfDay)
	case "peak hour":
		return newRange(RangeHour, midnight.Add(8*time.Hour), midnight.Add(9*time.Hour))
	default:
		return newRange(RangeDay, midnight, endOfDay)
	}
}

func newRange(t RangeType, start, end time.Time) TimeRange {
	return TimeRange{
		Type:     t,
		Start:    start,
		End:      end,
		ISOStart: start.Format(time.RFC3339),
		ISOEnd:   end.Format(time.RFC3339),
	}
}
