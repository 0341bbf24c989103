// =============================================================================
// docbatch - Validation Engine
// =============================================================================
//
// This module validates the record table before any document is generated.
//
// VALIDATION STRATEGY:
//   Validation is performed at two levels:
//   1. Structural (fatal): required columns exist, at least one data row,
//      at least one company. Any failure aborts the run with a
//      types.ValidationError.
//   2. Field-level (warnings): phone numbers that do not look like numbers.
//      These are collected and logged; the run continues.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ginjaninja78/docbatch/internal/types"
)

// =============================================================================
// WARNING TYPES
// =============================================================================

// Warning represents a single non-fatal finding.
type Warning struct {
	// Field is the column the value came from.
	Field string

	// Value is the value that looked wrong.
	Value string

	// RowNumber is the 1-based spreadsheet row (the header is row 1).
	RowNumber int

	// Message is a human-readable description.
	Message string
}

func (w *Warning) String() string {
	return fmt.Sprintf("row %d, field '%s': %s (value: '%s')", w.RowNumber, w.Field, w.Message, w.Value)
}

// =============================================================================
// STRUCTURAL VALIDATION
// =============================================================================

// RequireColumns checks that every required header is present.
//
// PARAMETERS:
//   - source: The spreadsheet path (for error messages).
//   - headers: The trimmed header row.
//   - required: The column names that must exist.
//
// RETURNS:
//   - A map of header name to column index (first occurrence wins).
//   - A *types.ValidationError naming every missing column.
func RequireColumns(source string, headers []string, required ...string) (map[string]int, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if _, seen := index[h]; !seen {
			index[h] = i
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &types.ValidationError{
			Source:  source,
			Field:   strings.Join(missing, ", "),
			Message: fmt.Sprintf("required column(s) missing; found headers: [%s]", strings.Join(headers, ", ")),
		}
	}
	return index, nil
}

// RequireRows fails when the table has no data rows.
func RequireRows(source string, rowCount int) error {
	if rowCount == 0 {
		return &types.ValidationError{Source: source, Message: "no data rows"}
	}
	return nil
}

// RequireCompanies fails when no non-empty company value exists.
func RequireCompanies(source, column string, companies []string) error {
	if len(companies) == 0 {
		return &types.ValidationError{
			Source:  source,
			Field:   column,
			Message: "no company values found",
		}
	}
	return nil
}

// =============================================================================
// FIELD VALIDATION
// =============================================================================

// CheckNumbers reports phone numbers that contain anything other than
// digits, spaces, '+' and '-'. Blank entries are not reported.
//
// PARAMETERS:
//   - field: The column name (for the report).
//   - numbers: The values in table order.
//   - rows: The spreadsheet row of each value. When shorter than numbers,
//     index i is taken to be row i+2.
//
// RETURNS:
//   - One Warning per suspicious value.
func CheckNumbers(field string, numbers []string, rows []int) []*Warning {
	var warnings []*Warning
	for i, n := range numbers {
		if n == "" {
			continue
		}
		if msg := validatePhoneNumber(n); msg != "" {
			row := i + 2
			if i < len(rows) {
				row = rows[i]
			}
			warnings = append(warnings, &Warning{
				Field:     field,
				Value:     n,
				RowNumber: row,
				Message:   msg,
			})
		}
	}
	return warnings
}

// validatePhoneNumber returns a message when value does not look like a number.
func validatePhoneNumber(value string) string {
	digits := 0
	for _, r := range value {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ' || r == '-' || r == '+':
		default:
			return "value contains characters that are not part of a phone number"
		}
	}
	if digits == 0 {
		return "value contains no digits"
	}
	return ""
}

// =============================================================================
// WARNING FORMATTING
// =============================================================================

// FormatWarnings formats warnings for display or logging.
func FormatWarnings(warnings []*Warning) string {
	if len(warnings) == 0 {
		return "No validation warnings."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d warning(s):\n", len(warnings)))
	for i, w := range warnings {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, w.String()))
	}
	return builder.String()
}
