package io

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"sales-import/internal/logging"
	"sales-import/internal/sales"
)

// CSVSalesReader implements SalesFileReader for delimited text files.
type CSVSalesReader struct {
	Delimiter rune
}

// NewCSVSalesReader creates a CSVSalesReader with the configured delimiter.
func NewCSVSalesReader(delimiter string) (*CSVSalesReader, error) {
	var delim rune = ','
	if delimiter != "" {
		if utf8.RuneCountInString(delimiter) != 1 {
			return nil, fmt.Errorf("invalid delimiter '%s': must be a single character", delimiter)
		}
		delim = []rune(delimiter)[0]
	}
	return &CSVSalesReader{Delimiter: delim}, nil
}

// Read loads raw sales records from a CSV file, enforcing the schema header.
func (cr *CSVSalesReader) Read(filePath string) ([]sales.RawRecord, error) {
	logging.Logf(logging.Debug, "CSVSalesReader reading file: %s (Delimiter: '%c')", filePath, cr.Delimiter)

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("CSVSalesReader failed to open file '%s': %w", filePath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = cr.Delimiter
	// Column-count enforcement is ours: short or long rows are skipped with
	// a warning, not surfaced as parse errors.
	reader.FieldsPerRecord = -1

	allRows, err := reader.ReadAll()
	if err != nil {
		if parseErr, ok := err.(*csv.ParseError); ok {
			return nil, fmt.Errorf("CSVSalesReader parse error in '%s' on line %d, column %d: %w", filePath, parseErr.Line, parseErr.Column, parseErr.Err)
		}
		return nil, fmt.Errorf("CSVSalesReader failed to read rows from '%s': %w", filePath, err)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSVSalesReader: '%s': %w", filePath, ErrEmptyFile)
	}

	if err := checkHeader(allRows[0], filePath); err != nil {
		return nil, err
	}

	return rowsToRecords(allRows[1:], filePath), nil
}

// checkHeader verifies the header row equals the schema exactly, in order.
func checkHeader(header []string, filePath string) error {
	expected := sales.FieldNames()
	match := len(header) == len(expected)
	if match {
		for i, name := range expected {
			if header[i] != name {
				match = false
				break
			}
		}
	}
	if !match {
		return fmt.Errorf("%w in '%s': expected [%s], got [%s]",
			ErrHeaderMismatch, filePath,
			strings.Join(expected, ", "), strings.Join(header, ", "))
	}
	return nil
}

// rowsToRecords converts data rows into raw records, dropping blank rows
// silently and logging a distinct warning for rows with a deviating column
// count. Shared by the CSV and XLSX readers.
func rowsToRecords(rows [][]string, filePath string) []sales.RawRecord {
	fields := sales.FieldNames()
	records := make([]sales.RawRecord, 0, len(rows))

	for i, row := range rows {
		rowNum := i + 2 // 1-based file line number, header is line 1

		if isBlankRow(row) {
			continue
		}

		if len(row) != len(fields) {
			logging.Logf(logging.Warning, "Skipping line %d in '%s': has %d columns, expected %d", rowNum, filePath, len(row), len(fields))
			continue
		}

		rec := make(sales.RawRecord, len(fields))
		for col, name := range fields {
			rec[name] = row[col]
		}
		records = append(records, rec)
	}

	logging.Logf(logging.Debug, "Loaded %d records from %s", len(records), filePath)
	return records
}

// isBlankRow reports whether every cell of a row is empty after trimming.
func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
