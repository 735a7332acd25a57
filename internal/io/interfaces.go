package io

import (
	"errors"

	"sales-import/internal/sales"
)

// Input-shape errors. These abort the entire run: a file whose shape is wrong
// produces no partial result.
var (
	// ErrEmptyFile indicates the input file has no header row at all.
	ErrEmptyFile = errors.New("input file is empty or has no header row")
	// ErrHeaderMismatch indicates the header row does not equal the expected
	// schema exactly (order- and case-sensitive).
	ErrHeaderMismatch = errors.New("input file header does not match expected schema")
)

// SalesFileReader reads a partner sales file into raw records.
type SalesFileReader interface {
	// Read parses the file at filePath. The header row must equal the fixed
	// 15-column schema exactly; rows with a deviating column count are
	// skipped with a warning, fully-blank rows are dropped silently.
	// Returns the remaining rows in file order.
	Read(filePath string) ([]sales.RawRecord, error)
}
