package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, parses, and validates the YAML configuration file.
// It applies defaults before returning the validated configuration.
func LoadConfig(filename string) (*ImportConfig, error) {
	fileBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}

	var config ImportConfig
	if err := yaml.Unmarshal(fileBytes, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in '%s': %w", filename, err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyDefaults sets default values for the configuration sections.
func applyDefaults(cfg *ImportConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}

	if cfg.Source.Type == "" {
		cfg.Source.Type = SourceTypeCSV
	}
	if cfg.Source.Type == SourceTypeCSV && cfg.Source.Delimiter == "" {
		cfg.Source.Delimiter = DefaultCSVDelimiter
	}

	if cfg.Salesforce.APIVersion == "" {
		cfg.Salesforce.APIVersion = DefaultAPIVersion
	}
	if cfg.Salesforce.Bulk.Object == "" {
		cfg.Salesforce.Bulk.Object = DefaultBulkObject
	}
	if cfg.Salesforce.Bulk.Operation == "" {
		cfg.Salesforce.Bulk.Operation = DefaultBulkOperation
	}
	if cfg.Salesforce.Bulk.PollInterval <= 0 {
		cfg.Salesforce.Bulk.PollInterval = DefaultPollInterval
	}
	if cfg.Salesforce.Bulk.PollTimeout <= 0 {
		cfg.Salesforce.Bulk.PollTimeout = DefaultPollTimeout
	}

	if cfg.Reports.Dir == "" {
		cfg.Reports.Dir = "var"
	}
	if cfg.Reports.Archive == nil {
		trueVal := true
		cfg.Reports.Archive = &trueVal
	}

	if cfg.Audit != nil && cfg.Audit.Table == "" {
		cfg.Audit.Table = DefaultAuditTable
	}
}
