package io

import (
	"fmt"
	"strings"

	"sales-import/internal/config"
	"sales-import/internal/logging"
)

// NewSalesFileReader creates the appropriate SalesFileReader for the source
// configuration.
func NewSalesFileReader(cfg config.SourceConfig) (SalesFileReader, error) {
	sourceType := strings.ToLower(cfg.Type)
	logging.Logf(logging.Debug, "Creating sales file reader for type: %s", sourceType)

	switch sourceType {
	case config.SourceTypeCSV:
		reader, err := NewCSVSalesReader(cfg.Delimiter)
		if err != nil {
			return nil, fmt.Errorf("failed to create CSV reader: %w", err)
		}
		return reader, nil
	case config.SourceTypeXLSX:
		return NewXLSXSalesReader(cfg.SheetName), nil
	default:
		return nil, fmt.Errorf("unsupported source type '%s'", cfg.Type)
	}
}
