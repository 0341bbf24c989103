// =============================================================================
// docbatch - CSV Parser Module
// =============================================================================
//
// This module reads the record spreadsheet when it is supplied as a CSV file
// instead of an .xlsx workbook. The result has the same shape as the xlsx
// parser's output so the record loader does not care which one was used.
//
// FEATURES:
//   - Configurable delimiter (comma, pipe, tab, semicolon)
//   - UTF-8 byte order mark is stripped (Excel writes one on "CSV UTF-8")
//   - Ragged rows are padded to the header width
//   - Fully empty rows are skipped
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// utf8BOM is the byte order mark some spreadsheet tools prepend.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents the parsed CSV file.
type CSVData struct {
	// Headers contains the column headers from the first row.
	Headers []string

	// Rows contains the data rows, each padded to len(Headers).
	Rows [][]string

	// RowNumbers holds the 1-based line each entry of Rows started on.
	RowNumbers []int

	// SourceFile is the path to the source CSV file.
	SourceFile string
}

// Settings controls how the file is read.
type Settings struct {
	// Delimiter is the field separator. Accepts a single character or one
	// of the names "tab", "pipe", "semicolon".
	Delimiter string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed data.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings.
//
// RETURNS:
//   - A pointer to the CSVData struct containing the parsed data.
//   - An error if the file cannot be read or has no header row.
func Parse(filePath string, settings Settings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := ParseReader(file, settings)
	if err != nil {
		return nil, err
	}
	data.SourceFile = filePath
	return data, nil
}

// ParseReader parses CSV content from r.
func ParseReader(r io.Reader, settings Settings) (*CSVData, error) {
	reader := bufio.NewReader(r)
	if head, err := reader.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = reader.Discard(len(utf8BOM))
	}

	csvReader := csv.NewReader(reader)
	configureReader(csvReader, settings)

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	data := &CSVData{Headers: cleanHeaders(header)}
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if isRowEmpty(row) {
			continue
		}
		// Blank lines are skipped by the reader, so take the line from it.
		line, _ := csvReader.FieldPos(0)

		padded := make([]string, len(data.Headers))
		for i := range data.Headers {
			if i < len(row) {
				padded[i] = strings.TrimSpace(row[i])
			}
		}
		data.Rows = append(data.Rows, padded)
		data.RowNumbers = append(data.RowNumbers, line)
	}

	return data, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings Settings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if r := []rune(settings.Delimiter); len(r) > 0 {
			reader.Comma = r[0]
		} else {
			reader.Comma = ','
		}
	}

	// Allow variable number of fields per row.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// cleanHeaders trims header names. Empty headers keep their position so
// column indexes stay aligned with the data rows.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
