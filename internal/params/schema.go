// Package params validates, normalizes, and completes structured parameter
// objects against named scenario schemas.
package params

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FieldType enumerates the structural types a schema field can declare.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
	TypeNull    FieldType = "null"
)

// String formats a field can require.
const (
	FormatDate        = "date"
	FormatDateTime    = "date-time"
	FormatTime        = "time"
	FormatEmail       = "email"
	FormatURI         = "uri"
	FormatISODate     = "iso-date"
	FormatISODateTime = "iso-date-time"
	FormatAirportCode = "airport-code"
	FormatIATACode    = "iata-code"
)

var (
	airportCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)
	iataCodePattern    = regexp.MustCompile(`^[A-Z0-9]{2}$`)
)

// Field describes one parameter in a schema.
type Field struct {
	Type      FieldType
	Format    string
	Minimum   *float64
	Maximum   *float64
	MinLength *int
	MaxLength *int
	MinItems  *int
	MaxItems  *int
	Enum      []string
	Default   any
	Items     *Field
}

// Schema is a named set of fields with required-field and dependency rules.
// Dependencies maps a field name to the fields that must also be present
// whenever it is.
type Schema struct {
	Name         string
	Fields       map[string]Field
	Required     []string
	Dependencies map[string][]string

	// Infer fills one missing field from the ones already present. It is
	// consulted during Complete after defaults and context overrides.
	Infer func(name string, params map[string]any) (any, bool)
}

// FieldError describes one validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// Result is the outcome of validating a parameter object. Errors accumulate;
// validation never aborts on the first failure.
type Result struct {
	IsValid    bool           `json:"isValid"`
	Errors     []FieldError   `json:"errors,omitempty"`
	Parameters map[string]any `json:"parameters"`
}

// Validate normalizes the input and checks it against the schema. The
// returned parameters are the normalized form regardless of validity.
func (s *Schema) Validate(input map[string]any) Result {
	params := s.Normalize(input)
	var errs []FieldError

	for _, name := range s.Required {
		if _, ok := params[name]; !ok {
			errs = append(errs, FieldError{Field: name, Message: "required field missing"})
		}
	}

	for dep, needs := range s.Dependencies {
		if _, ok := params[dep]; !ok {
			continue
		}
		for _, need := range needs {
			if _, ok := params[need]; !ok {
				errs = append(errs, FieldError{Field: need, Message: "required when " + dep + " is set"})
			}
		}
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		field, ok := s.Fields[name]
		if !ok {
			continue
		}
		errs = append(errs, checkField(name, field, params[name])...)
	}

	return Result{IsValid: len(errs) == 0, Errors: errs, Parameters: params}
}

func checkField(name string, field Field, value any) []FieldError {
	var errs []FieldError
	fail := func(format string, args ...any) {
		errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf(format, args...)})
	}

	if value == nil {
		if field.Type != TypeNull {
			fail("expected %s, got null", field.Type)
		}
		return errs
	}

	switch field.Type {
	case TypeString:
		str, ok := value.(string)
		if !ok {
			fail("expected string, got %T", value)
			return errs
		}
		if field.MinLength != nil && len(str) < *field.MinLength {
			fail("shorter than minimum length %d", *field.MinLength)
		}
		if field.MaxLength != nil && len(str) > *field.MaxLength {
			fail("longer than maximum length %d", *field.MaxLength)
		}
		if len(field.Enum) > 0 && !containsString(field.Enum, str) {
			fail("must be one of %s", strings.Join(field.Enum, ", "))
		}
		if field.Format != "" {
			if msg := checkFormat(field.Format, str); msg != "" {
				fail("%s", msg)
			}
		}
	case TypeNumber, TypeInteger:
		num, ok := asFloat(value)
		if !ok {
			fail("expected %s, got %T", field.Type, value)
			return errs
		}
		if field.Type == TypeInteger && num != float64(int64(num)) {
			fail("expected integer, got %v", num)
		}
		if field.Minimum != nil && num < *field.Minimum {
			fail("below minimum %v", *field.Minimum)
		}
		if field.Maximum != nil && num > *field.Maximum {
			fail("above maximum %v", *field.Maximum)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			fail("expected boolean, got %T", value)
		}
	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			fail("expected array, got %T", value)
			return errs
		}
		if field.MinItems != nil && len(items) < *field.MinItems {
			fail("fewer than %d items", *field.MinItems)
		}
		if field.MaxItems != nil && len(items) > *field.MaxItems {
			fail("more than %d items", *field.MaxItems)
		}
		if field.Items != nil {
			for i, item := range items {
				errs = append(errs, checkField(fmt.Sprintf("%s[%d]", name, i), *field.Items, item)...)
			}
		}
	case TypeObject:
		if _, ok := value.(map[string]any); !ok {
			fail("expected object, got %T", value)
		}
	case TypeNull:
		fail("expected null, got %T", value)
	}
	return errs
}

func checkFormat(format, value string) string {
	switch format {
	case FormatDate, FormatISODate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return "not a valid date (YYYY-MM-DD)"
		}
	case FormatDateTime, FormatISODateTime:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return "not a valid RFC 3339 timestamp"
		}
	case FormatTime:
		if _, err := time.Parse("15:04", value); err != nil {
			if _, err := time.Parse("15:04:05", value); err != nil {
				return "not a valid time (HH:MM)"
			}
		}
	case FormatEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			return "not a valid email address"
		}
	case FormatURI:
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" {
			return "not a valid URI"
		}
	case FormatAirportCode:
		if !airportCodePattern.MatchString(value) {
			return "not a valid airport code"
		}
	case FormatIATACode:
		if !iataCodePattern.MatchString(value) {
			return "not a valid IATA code"
		}
	}
	return ""
}

// Normalize coerces common alternate representations toward each field's
// declared type: numeric strings to numbers, boolean-like strings to
// booleans, comma-separated strings to arrays, enum values to their declared
// casing, and date strings to their ISO-canonical form. Unknown fields pass
// through untouched. Normalize is idempotent.
func (s *Schema) Normalize(input map[string]any) map[string]any {
	params := make(map[string]any, len(input))
	for name, value := range input {
		field, ok := s.Fields[name]
		if !ok {
			params[name] = value
			continue
		}
		params[name] = normalizeValue(field, value)
	}
	return params
}

func normalizeValue(field Field, value any) any {
	switch field.Type {
	case TypeNumber, TypeInteger:
		if str, ok := value.(string); ok {
			if num, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
				value = num
			}
		}
		if field.Type == TypeInteger {
			if num, ok := asFloat(value); ok && num == float64(int64(num)) {
				return num
			}
		}
	case TypeBoolean:
		if str, ok := value.(string); ok {
			switch strings.ToLower(strings.TrimSpace(str)) {
			case "true", "yes", "on", "1":
				return true
			case "false", "no", "off", "0":
				return false
			}
		}
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return value
		}
		str = strings.TrimSpace(str)
		if len(field.Enum) > 0 {
			for _, canonical := range field.Enum {
				if strings.EqualFold(canonical, str) {
					return canonical
				}
			}
		}
		switch field.Format {
		case FormatDate, FormatISODate:
			if t, err := time.Parse(time.RFC3339, str); err == nil {
				return t.Format("2006-01-02")
			}
		case FormatDateTime, FormatISODateTime:
			if t, err := time.Parse(time.RFC3339, str); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		case FormatAirportCode, FormatIATACode:
			return strings.ToUpper(str)
		}
		return str
	case TypeArray:
		if str, ok := value.(string); ok {
			parts := strings.Split(str, ",")
			items := make([]any, 0, len(parts))
			for _, part := range parts {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				var item any = part
				if field.Items != nil {
					item = normalizeValue(*field.Items, part)
				}
				items = append(items, item)
			}
			return items
		}
		if items, ok := value.([]any); ok && field.Items != nil {
			out := make([]any, len(items))
			for i, item := range items {
				out[i] = normalizeValue(*field.Items, item)
			}
			return out
		}
	}
	return value
}

// Complete fills missing fields, in order: schema default, then context
// override, then the schema's inference rule. Fields none of those can
// produce stay absent. The input map is not modified.
func (s *Schema) Complete(input map[string]any, contextOverrides map[string]any) map[string]any {
	params := make(map[string]any, len(input))
	for name, value := range input {
		params[name] = value
	}

	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := params[name]; ok {
			continue
		}
		field := s.Fields[name]
		if field.Default != nil {
			params[name] = field.Default
			continue
		}
		if override, ok := contextOverrides[name]; ok {
			params[name] = normalizeValue(field, override)
		}
	}

	// Inference runs last so rules can read fields filled by defaults or
	// overrides. Repeat until stable, since one inferred field can unblock
	// another (endDate derives from an inferred startDate).
	if s.Infer != nil {
		for changed := true; changed; {
			changed = false
			for _, name := range names {
				if _, ok := params[name]; ok {
					continue
				}
				if inferred, ok := s.Infer(name, params); ok {
					params[name] = inferred
					changed = true
				}
			}
		}
	}
	return params
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func containsString(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
