package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Violation describes the first constraint a payload failed. Path is the
// dotted field path, with [i] suffixes for array elements.
type Violation struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Error implements the error interface.
func (v *Violation) Error() string {
	return fmt.Sprintf("schema violation at %q: expected %s, got %s", v.Path, v.Expected, v.Actual)
}

// Validate checks a decoded payload against the schema. It returns nil on
// success, or the first violation in schema document order. Payload key
// order never influences which violation is reported.
func (s *Schema) Validate(payload map[string]any) *Violation {
	return validateFields("", s.Fields, s.AdditionalProperties, payload)
}

func validateFields(path string, fields []Field, additional bool, payload map[string]any) *Violation {
	for _, f := range fields {
		fpath := joinPath(path, f.Name)
		value, ok := payload[f.Name]
		if !ok {
			if f.Required {
				return &Violation{Path: fpath, Expected: "required " + string(f.Type), Actual: "missing"}
			}
			continue
		}
		if v := validateValue(fpath, f, value); v != nil {
			return v
		}
	}
	if additional {
		return nil
	}
	// Closed world. Undeclared keys have no schema position, so sort them
	// to keep the reported key deterministic.
	var extras []string
	for key := range payload {
		if _, ok := lookupField(fields, key); !ok {
			extras = append(extras, key)
		}
	}
	if len(extras) > 0 {
		sort.Strings(extras)
		return &Violation{
			Path:     joinPath(path, extras[0]),
			Expected: "no additional properties",
			Actual:   "undeclared field",
		}
	}
	return nil
}

func lookupField(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func validateValue(path string, f Field, value any) *Violation {
	switch f.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return typeViolation(path, f, value)
		}
		return checkEnum(path, f, s)
	case TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return typeViolation(path, f, value)
		}
		return checkEnum(path, f, b)
	case TypeNumber:
		num, ok := asNumber(value)
		if !ok {
			return typeViolation(path, f, value)
		}
		if v := checkEnum(path, f, num); v != nil {
			return v
		}
		return checkRange(path, f, num)
	case TypeInteger:
		num, ok := asNumber(value)
		if !ok || math.Trunc(num) != num {
			return typeViolation(path, f, value)
		}
		if v := checkEnum(path, f, num); v != nil {
			return v
		}
		return checkRange(path, f, num)
	case TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return typeViolation(path, f, value)
		}
		if f.Items == nil {
			return nil
		}
		for i, elem := range arr {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if v := validateValue(elemPath, *f.Items, elem); v != nil {
				return v
			}
		}
		return nil
	case TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return typeViolation(path, f, value)
		}
		return validateFields(path, f.Fields, f.AdditionalProperties, obj)
	}
	return &Violation{Path: path, Expected: "known type", Actual: string(f.Type)}
}

func typeViolation(path string, f Field, value any) *Violation {
	return &Violation{Path: path, Expected: string(f.Type), Actual: describeValue(value)}
}

func checkEnum(path string, f Field, value any) *Violation {
	if len(f.Enum) == 0 {
		return nil
	}
	for _, allowed := range f.Enum {
		if scalarEqual(allowed, value) {
			return nil
		}
	}
	return &Violation{
		Path:     path,
		Expected: "one of " + formatEnum(f.Enum),
		Actual:   describeValue(value),
	}
}

func checkRange(path string, f Field, num float64) *Violation {
	if f.Min != nil && num < *f.Min {
		return &Violation{Path: path, Expected: rangeExpectation(f), Actual: formatNumber(num)}
	}
	if f.Max != nil && num > *f.Max {
		return &Violation{Path: path, Expected: rangeExpectation(f), Actual: formatNumber(num)}
	}
	return nil
}

func rangeExpectation(f Field) string {
	switch {
	case f.Min != nil && f.Max != nil:
		return fmt.Sprintf("%s in [%s, %s]", f.Type, formatNumber(*f.Min), formatNumber(*f.Max))
	case f.Min != nil:
		return fmt.Sprintf("%s >= %s", f.Type, formatNumber(*f.Min))
	default:
		return fmt.Sprintf("%s <= %s", f.Type, formatNumber(*f.Max))
	}
}

// asNumber normalizes the numeric types the YAML and JSON decoders produce.
func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func scalarEqual(a, b any) bool {
	an, aok := asNumber(a)
	bn, bok := asNumber(b)
	if aok || bok {
		return aok && bok && an == bn
	}
	return a == b
}

func formatEnum(enum []any) string {
	parts := make([]string, 0, len(enum))
	for _, e := range enum {
		parts = append(parts, fmt.Sprintf("%v", e))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatNumber(num float64) string {
	return strconv.FormatFloat(num, 'g', -1, 64)
}

func describeValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q (string)", v)
	case bool:
		return fmt.Sprintf("%t (boolean)", v)
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		if num, ok := asNumber(value); ok {
			return fmt.Sprintf("%s (number)", formatNumber(num))
		}
		return fmt.Sprintf("%v (%T)", value, value)
	}
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
