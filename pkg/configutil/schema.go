package configutil

import (
	"fmt"
	"sort"
	"strings"
)

// Schema defines required and optional keys for a settings map.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// ValidateSettings checks a settings map against a schema before it is
// decoded. Keys fold case, underscores and hyphens, matching the
// DecodeSettings binding rules. The error lists every problem at once
// so operators fix a config in one pass.
func ValidateSettings(input map[string]any, schema Schema) error {
	type rule struct {
		name     string
		required bool
	}
	rules := make(map[string]rule, len(schema.Required)+len(schema.Optional))
	for _, k := range schema.Required {
		rules[foldKey(k)] = rule{name: k, required: true}
	}
	for _, k := range schema.Optional {
		if _, ok := rules[foldKey(k)]; !ok {
			rules[foldKey(k)] = rule{name: k}
		}
	}

	var missing, unknown []string
	satisfied := make(map[string]bool, len(input))
	for key, value := range input {
		fk := foldKey(key)
		r, known := rules[fk]
		switch {
		case !known && !schema.AllowUnknown:
			unknown = append(unknown, key)
		case known && r.required && IsEmptyValue(value):
			missing = append(missing, r.name)
		}
		satisfied[fk] = true
	}
	for fk, r := range rules {
		if r.required && !satisfied[fk] {
			missing = append(missing, r.name)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}

	sort.Strings(missing)
	sort.Strings(unknown)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(unknown, ", "))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(parts, "; "))
}

// IsEmptyValue reports whether a settings value counts as absent.
// Strings are empty when blank after trimming; nil is always empty.
func IsEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
