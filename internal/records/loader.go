// Package records loads the NUMBERS/COMPANY table that drives document
// generation. Both .xlsx workbooks and .csv files are accepted.
package records

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/csvparser"
	"github.com/ginjaninja78/docbatch/internal/types"
	"github.com/ginjaninja78/docbatch/internal/validation"
	"github.com/ginjaninja78/docbatch/internal/xlsxparser"
)

// Records is the validated, normalized content of the record spreadsheet.
type Records struct {
	// Source is the path the records were read from.
	Source string

	// Headers are the normalized column headers.
	Headers []string

	// Numbers holds one entry per data row in table order. Blank cells are
	// kept as "" unless SkipBlankNumbers is set.
	Numbers []string

	// Companies holds the distinct non-empty company names in order of first
	// appearance.
	Companies []string

	// Warnings are non-fatal findings about the numbers column.
	Warnings []*validation.Warning

	rows map[string]map[string]string
}

// New builds Records from values already in memory. rows maps a company to
// its first data row and may be nil.
func New(numbers, companies []string, rows map[string]map[string]string) *Records {
	if rows == nil {
		rows = make(map[string]map[string]string)
	}
	return &Records{Numbers: numbers, Companies: companies, rows: rows}
}

// Row returns the first data row of company as header -> value. The map is
// nil when the company does not appear in the table.
func (r *Records) Row(company string) map[string]string {
	return r.rows[company]
}

// Field returns the value of column field in the first row of company, or
// "" when either is unknown.
func (r *Records) Field(company, field string) string {
	return r.rows[company][field]
}

// table is the common shape of both parsers' output.
type table struct {
	headers []string
	rows    [][]string
	// rowNumbers are the spreadsheet rows of rows, header being row 1.
	rowNumbers []int
}

// Load reads, validates and normalizes the record spreadsheet at path.
// Every failure is returned as a *types.ValidationError.
func Load(path string, opts config.RecordsConfig) (*Records, error) {
	tbl, err := readTable(path, opts)
	if err != nil {
		return nil, &types.ValidationError{Source: path, Message: "cannot read spreadsheet", Cause: err}
	}

	transformer, err := NewTransformer(opts.TransformationRules)
	if err != nil {
		return nil, &types.ValidationError{Source: path, Field: "transformation_rules", Message: err.Error()}
	}

	headers := make([]string, len(tbl.headers))
	for i, h := range tbl.headers {
		headers[i] = NormalizeText(h)
	}

	index, err := validation.RequireColumns(path, headers, opts.NumbersColumn, opts.CompanyColumn)
	if err != nil {
		return nil, err
	}
	if err := validation.RequireRows(path, len(tbl.rows)); err != nil {
		return nil, err
	}

	rec := &Records{
		Source:  path,
		Headers: headers,
		rows:    make(map[string]map[string]string),
	}

	numCol := index[opts.NumbersColumn]
	compCol := index[opts.CompanyColumn]

	var numberRows []int
	for n, raw := range tbl.rows {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if _, dup := row[h]; dup {
				continue
			}
			v := ""
			if i < len(raw) {
				v = NormalizeCell(raw[i])
			}
			row[h] = transformer.Transform(h, v)
		}

		number := row[headers[numCol]]
		if number != "" || !opts.SkipBlankNumbers {
			rec.Numbers = append(rec.Numbers, number)
			numberRows = append(numberRows, tbl.rowNumber(n))
		}

		company := row[headers[compCol]]
		if company == "" {
			continue
		}
		if _, seen := rec.rows[company]; !seen {
			rec.rows[company] = row
			rec.Companies = append(rec.Companies, company)
		}
	}

	if err := validation.RequireCompanies(path, opts.CompanyColumn, rec.Companies); err != nil {
		return nil, err
	}

	rec.Warnings = validation.CheckNumbers(opts.NumbersColumn, rec.Numbers, numberRows)
	return rec, nil
}

// rowNumber returns the spreadsheet row of data row i.
func (t *table) rowNumber(i int) int {
	if i < len(t.rowNumbers) {
		return t.rowNumbers[i]
	}
	return i + 2
}

// readTable dispatches on the file extension.
func readTable(path string, opts config.RecordsConfig) (*table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		sheet, err := xlsxparser.Parse(path, opts.Sheet)
		if err != nil {
			return nil, err
		}
		return &table{headers: sheet.Headers, rows: sheet.Rows, rowNumbers: sheet.RowNumbers}, nil
	case ".csv":
		data, err := csvparser.Parse(path, csvparser.Settings{Delimiter: opts.CSVDelimiter})
		if err != nil {
			return nil, err
		}
		return &table{headers: data.Headers, rows: data.Rows, rowNumbers: data.RowNumbers}, nil
	default:
		return nil, fmt.Errorf("unsupported spreadsheet type %q (want .xlsx or .csv)", ext)
	}
}

// NormalizeText trims s and converts it to Unicode NFC so that visually
// identical company names compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizeCell normalizes a cell value. Integral numbers that a spreadsheet
// stored as floats ("13800138000.0", "1.3800138E+10") are rendered as plain
// integer text.
func NormalizeCell(s string) string {
	s = NormalizeText(s)
	if s == "" || !looksNumeric(s) {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		if strings.ContainsAny(s, ".eE") {
			return strconv.FormatFloat(f, 'f', 0, 64)
		}
	}
	return s
}

// looksNumeric reports whether s is written as a decimal or exponent number.
// Leading zeros are significant in phone numbers, so "0755..." is not
// touched by the float path because it contains no '.', 'e' or 'E'.
func looksNumeric(s string) bool {
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == 'e', r == 'E':
		case (r == '+' || r == '-') && (i == 0 || s[i-1] == 'e' || s[i-1] == 'E'):
		default:
			return false
		}
	}
	return true
}
