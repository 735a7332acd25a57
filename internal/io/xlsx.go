package io

import (
	"fmt"

	"sales-import/internal/logging"
	"sales-import/internal/sales"

	"github.com/xuri/excelize/v2"
)

// XLSXSalesReader implements SalesFileReader for Excel (.xlsx) files carrying
// the same 15-column schema as the CSV variant.
type XLSXSalesReader struct {
	sheetName string
}

// NewXLSXSalesReader creates an XLSXSalesReader. An empty sheetName selects
// the first sheet of the workbook.
func NewXLSXSalesReader(sheetName string) *XLSXSalesReader {
	return &XLSXSalesReader{sheetName: sheetName}
}

// Read loads raw sales records from an Excel file, enforcing the schema
// header on the selected sheet.
func (xr *XLSXSalesReader) Read(filePath string) ([]sales.RawRecord, error) {
	logging.Logf(logging.Debug, "XLSXSalesReader reading file: %s (SheetName: '%s')", filePath, xr.sheetName)

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("XLSXSalesReader failed to open file '%s': %w", filePath, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Logf(logging.Error, "XLSXSalesReader failed to close file '%s': %v", filePath, err)
		}
	}()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, fmt.Errorf("XLSXSalesReader: file '%s' contains no sheets", filePath)
	}

	targetSheet := xr.sheetName
	if targetSheet == "" {
		targetSheet = sheetList[0]
	} else {
		found := false
		for _, name := range sheetList {
			if name == targetSheet {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("XLSXSalesReader: sheet '%s' not found in '%s'", targetSheet, filePath)
		}
	}

	rows, err := f.GetRows(targetSheet)
	if err != nil {
		return nil, fmt.Errorf("XLSXSalesReader failed to get rows from sheet '%s' in '%s': %w", targetSheet, filePath, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("XLSXSalesReader: sheet '%s' in '%s': %w", targetSheet, filePath, ErrEmptyFile)
	}

	if err := checkHeader(rows[0], filePath); err != nil {
		return nil, err
	}

	// Excel drops trailing empty cells, so pad short rows back to the header
	// width; the padded fields then fail presence validation like any other
	// blank value. Rows wider than the header remain a column-count skip.
	fieldCount := sales.FieldCount()
	dataRows := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < fieldCount {
			padded := make([]string, fieldCount)
			copy(padded, row)
			row = padded
		}
		dataRows = append(dataRows, row)
	}

	return rowsToRecords(dataRows, filePath), nil
}
