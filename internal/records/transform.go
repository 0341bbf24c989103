// =============================================================================
// docbatch - Field Transformation Engine
// =============================================================================
//
// Transformations rewrite cell values after they are read and normalized,
// before batching. They are configured per column in config.yaml:
//
//   records:
//     transformation_rules:
//       - field: NUMBERS
//         actions:
//           - type: replace
//             find: " "
//             value: ""
//       - field: COMPANY
//         actions:
//           - type: lookup
//             lookup_table:
//               "ACME LTD": "Acme"
//
// =============================================================================

package records

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/docbatch/internal/config"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer handles field value transformations.
type Transformer struct {
	rules map[string][]config.TransformationAction
}

// NewTransformer creates a new Transformer with the given rules. Rules that
// name the same field are concatenated in order.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{rules: make(map[string][]config.TransformationAction)}
	for _, rule := range rules {
		for _, action := range rule.Actions {
			if !knownAction(action.Type) {
				return nil, fmt.Errorf("field '%s': unknown transformation type: %s", rule.Field, action.Type)
			}
		}
		t.rules[rule.Field] = append(t.rules[rule.Field], rule.Actions...)
	}
	return t, nil
}

// Transform applies all transformation rules for fieldName to value.
func (t *Transformer) Transform(fieldName, value string) string {
	for _, action := range t.rules[fieldName] {
		value = ApplyTransformation(value, action)
	}
	return value
}

// HasRules reports whether any rule targets fieldName.
func (t *Transformer) HasRules(fieldName string) bool {
	return len(t.rules[fieldName]) > 0
}

func knownAction(kind string) bool {
	switch kind {
	case "trim", "uppercase", "lowercase", "prepend_string", "append_string",
		"pad_zeros_to_length", "replace", "lookup":
		return true
	}
	return false
}

// ApplyTransformation applies a single transformation action. Unknown types
// are rejected by NewTransformer, so they are a no-op here.
//
// EXAMPLES:
//   "123"        pad_zeros_to_length 8      -> "00000123"
//   "138 0013"   replace " " with ""        -> "1380013"
//   "01"         lookup {"01": "January"}   -> "January"
func ApplyTransformation(value string, action config.TransformationAction) string {
	switch action.Type {
	case "trim":
		return strings.TrimSpace(value)

	case "uppercase":
		return strings.ToUpper(value)

	case "lowercase":
		return strings.ToLower(value)

	case "prepend_string":
		return action.Value + value

	case "append_string":
		return value + action.Value

	case "pad_zeros_to_length":
		targetLength, err := strconv.Atoi(action.Value)
		if err != nil || targetLength <= 0 {
			return value
		}
		return PadLeft(value, targetLength, '0')

	case "replace":
		if action.Find == "" {
			return value
		}
		return strings.ReplaceAll(value, action.Find, action.Value)

	case "lookup":
		if replacement, exists := action.LookupTable[value]; exists {
			return replacement
		}
		return value
	}
	return value
}

// PadLeft pads a string with a character on the left to reach the target
// length, counted in characters.
func PadLeft(s string, length int, padChar rune) string {
	n := utf8.RuneCountInString(s)
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
