package memory

import (
	"fmt"
	"strconv"
	"strings"
)

// Preferences maps recognized preference keys to values for one user.
type Preferences map[string]any

// Recognized preference keys. dashboards and savedQueries hold opaque
// payloads; the rest are validated and canonicalized on merge.
const (
	PrefTheme               = "theme"
	PrefNotificationEnabled = "notificationEnabled"
	PrefDefaultAirport      = "defaultAirport"
	PrefDefaultTimeHorizon  = "defaultTimeHorizon"
	PrefAutoRefreshInterval = "autoRefreshInterval"
	PrefDataPresentation    = "dataPresentation"
	PrefAdvancedMode        = "advancedMode"
	PrefDashboards          = "dashboards"
	PrefSavedQueries        = "savedQueries"
)

var prefEnums = map[string][]string{
	PrefTheme:              {"light", "dark", "system"},
	PrefDefaultTimeHorizon: {"day", "week", "month", "quarter", "year"},
	PrefDataPresentation:   {"table", "chart", "map"},
}

var prefBools = map[string]bool{
	PrefNotificationEnabled: true,
	PrefAdvancedMode:        true,
}

// DefaultPreferences returns the baseline for a new (or reset) user.
func DefaultPreferences() Preferences {
	return Preferences{
		PrefTheme:               "system",
		PrefNotificationEnabled: true,
		PrefDefaultTimeHorizon:  "week",
		PrefAutoRefreshInterval: 0,
		PrefDataPresentation:    "table",
		PrefAdvancedMode:        false,
	}
}

// MergePreferences merges partial into base (copy-on-write). Unknown keys are
// dropped, or rejected when strict is set. Enum values canonicalize to their
// declared lowercase form; bool-ish and numeric strings coerce.
func MergePreferences(base Preferences, partial map[string]any, strict bool) (Preferences, error) {
	out := make(Preferences, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}

	for key, raw := range partial {
		canonical, err := CanonicalPreference(key, raw)
		if err != nil {
			if strict {
				return nil, err
			}
			continue
		}
		out[key] = canonical
	}
	return out, nil
}

// CanonicalPreference validates one preference key/value pair and returns the
// canonical representation.
func CanonicalPreference(key string, value any) (any, error) {
	switch key {
	case PrefDashboards, PrefSavedQueries:
		// Opaque payloads pass through untouched.
		return value, nil
	case PrefDefaultAirport:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("preference %s: expected airport code string", key)
		}
		code := strings.ToUpper(strings.TrimSpace(s))
		if len(code) != 3 {
			return nil, fmt.Errorf("preference %s: %q is not a 3-letter airport code", key, s)
		}
		return code, nil
	case PrefAutoRefreshInterval:
		n, err := coerceInt(value)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("preference %s: expected non-negative seconds", key)
		}
		return n, nil
	}

	if prefBools[key] {
		b, err := coerceBool(value)
		if err != nil {
			return nil, fmt.Errorf("preference %s: %w", key, err)
		}
		return b, nil
	}

	if allowed, ok := prefEnums[key]; ok {
		s, isStr := value.(string)
		if !isStr {
			return nil, fmt.Errorf("preference %s: expected string", key)
		}
		lower := strings.ToLower(strings.TrimSpace(s))
		for _, candidate := range allowed {
			if lower == candidate {
				return candidate, nil
			}
		}
		return nil, fmt.Errorf("preference %s: %q not in %v", key, s, allowed)
	}

	return nil, fmt.Errorf("unknown preference key %q", key)
}

func coerceBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
	}
	return false, fmt.Errorf("expected bool, got %T", value)
}

func coerceInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected int, got %T", value)
}
