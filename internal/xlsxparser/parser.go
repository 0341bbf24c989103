// =============================================================================
// docbatch - XLSX Parser
// =============================================================================
//
// This module reads the record workbook (data.xlsx). The first row of the
// selected sheet holds the column headers; every following non-empty row is
// a data row.
//
// EXPECTED LAYOUT:
//
//   | NUMBERS     | COMPANY | FAREN | ZHIWU | ... |
//   |-------------|---------|-------|-------|-----|
//   | 13800138000 | Acme    | Zhang | CEO   |     |
//   | 13800138001 |         |       |       |     |
//
// Only NUMBERS and COMPANY are required. Extra columns are exposed to the
// template through row fields.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// =============================================================================
// SHEET STRUCTURE
// =============================================================================

// Sheet represents one parsed worksheet.
type Sheet struct {
	// SourceFile is the path to the workbook.
	SourceFile string

	// Name is the worksheet name that was read.
	Name string

	// Headers are the trimmed values of the first row.
	Headers []string

	// Rows are the data rows, each padded to len(Headers).
	Rows [][]string

	// RowNumbers holds the 1-based worksheet row of each entry of Rows.
	RowNumbers []int
}

// =============================================================================
// PARSING FUNCTIONS
// =============================================================================

// Parse reads a worksheet from an XLSX workbook.
//
// PARAMETERS:
//   - path: The path to the workbook.
//   - sheetName: The sheet to read. Empty selects the first sheet.
//
// RETURNS:
//   - A pointer to the Sheet struct.
//   - An error if the workbook cannot be opened or the sheet does not exist.
//
// Cell values are read raw (without number formats applied) so that long
// phone numbers are not rendered in a display format such as "1.38E+10".
func Parse(path, sheetName string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
	} else if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheetName)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	sheet := &Sheet{SourceFile: path, Name: sheetName}
	if len(rows) == 0 {
		return sheet, nil
	}

	sheet.Headers = make([]string, len(rows[0]))
	for i, h := range rows[0] {
		sheet.Headers[i] = strings.TrimSpace(h)
	}

	for n, row := range rows[1:] {
		// Skip empty rows.
		if len(row) == 0 || isRowEmpty(row) {
			continue
		}
		padded := make([]string, len(sheet.Headers))
		for i := range padded {
			if i < len(row) {
				padded[i] = strings.TrimSpace(row[i])
			}
		}
		sheet.Rows = append(sheet.Rows, padded)
		sheet.RowNumbers = append(sheet.RowNumbers, n+2)
	}

	return sheet, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
