package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"sales-import/internal/logging"
	"sales-import/internal/util"

	"github.com/Knetic/govaluate"
)

// Known valid enum values for configuration fields.
var (
	knownLogLevels   = []string{"none", "error", "warn", "warning", "info", "debug"}
	knownSourceTypes = []string{SourceTypeCSV, SourceTypeXLSX}
)

// isValidEnumValue checks if a value is present in a list of allowed string
// values (case-insensitive).
func isValidEnumValue(value string, allowedValues []string) bool {
	lowerValue := strings.ToLower(value)
	for _, allowed := range allowedValues {
		if lowerValue == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// ValidateConfig performs comprehensive validation of the import configuration.
func ValidateConfig(cfg *ImportConfig) error {
	var allErrors []string

	if !isValidEnumValue(cfg.Logging.Level, knownLogLevels) {
		allErrors = append(allErrors, fmt.Sprintf("- Config.Logging.Level: invalid log level '%s', must be one of %v", cfg.Logging.Level, knownLogLevels))
	}

	allErrors = append(allErrors, validateSourceConfig("Config.Source", &cfg.Source)...)
	allErrors = append(allErrors, validateSalesforceConfig("Config.Salesforce", &cfg.Salesforce)...)

	if cfg.Filter != "" {
		if _, err := govaluate.NewEvaluableExpression(cfg.Filter); err != nil {
			allErrors = append(allErrors, fmt.Sprintf("- Config.Filter: invalid expression syntax: %v", err))
		}
	}

	if cfg.Audit != nil && cfg.Audit.Table != "" {
		// Table names reach SQL unquoted; restrict to identifier characters.
		for _, r := range cfg.Audit.Table {
			if !(r == '_' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				allErrors = append(allErrors, fmt.Sprintf("- Config.Audit.Table: invalid table name '%s'", cfg.Audit.Table))
				break
			}
		}
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(allErrors, "\n"))
	}
	logging.Logf(logging.Debug, "Configuration validation successful.")
	return nil
}

// validateSourceConfig validates the Source section of the configuration.
func validateSourceConfig(prefix string, cfg *SourceConfig) []string {
	var errs []string
	if cfg.Type == "" {
		errs = append(errs, fmt.Sprintf("- %s.Type: is required", prefix))
		return errs
	}
	if !isValidEnumValue(cfg.Type, knownSourceTypes) {
		errs = append(errs, fmt.Sprintf("- %s.Type: invalid source type '%s', must be one of %v", prefix, cfg.Type, knownSourceTypes))
		return errs
	}
	if strings.ToLower(cfg.Type) == SourceTypeCSV && cfg.Delimiter != "" && utf8.RuneCountInString(cfg.Delimiter) != 1 {
		errs = append(errs, fmt.Sprintf("- %s.Delimiter: must be a single character, got '%s'", prefix, cfg.Delimiter))
	}
	if strings.ToLower(cfg.Type) == SourceTypeXLSX && cfg.Delimiter != "" {
		errs = append(errs, fmt.Sprintf("- %s.Delimiter: not applicable for xlsx sources", prefix))
	}
	return errs
}

// validateSalesforceConfig validates the Salesforce section of the configuration.
func validateSalesforceConfig(prefix string, cfg *SalesforceConfig) []string {
	var errs []string

	if cfg.InstanceURL == "" {
		errs = append(errs, fmt.Sprintf("- %s.InstanceURL: is required", prefix))
	} else if u, err := url.Parse(util.ExpandEnvUniversal(cfg.InstanceURL)); err != nil || u.Scheme == "" || u.Host == "" {
		// The URL may carry environment variable references; validate the
		// expanded form the client will actually use.
		errs = append(errs, fmt.Sprintf("- %s.InstanceURL: '%s' is not an absolute URL", prefix, cfg.InstanceURL))
	}

	if cfg.Auth.ClientID == "" {
		errs = append(errs, fmt.Sprintf("- %s.Auth.ClientID: is required", prefix))
	}
	if cfg.Auth.Username == "" {
		errs = append(errs, fmt.Sprintf("- %s.Auth.Username: is required", prefix))
	}
	if cfg.Auth.PrivateKeyFile == "" {
		errs = append(errs, fmt.Sprintf("- %s.Auth.PrivateKeyFile: is required", prefix))
	}
	if cfg.Auth.AudienceURL == "" {
		errs = append(errs, fmt.Sprintf("- %s.Auth.AudienceURL: is required", prefix))
	}

	if cfg.Bulk.PollInterval > cfg.Bulk.PollTimeout {
		errs = append(errs, fmt.Sprintf("- %s.Bulk: pollInterval (%s) exceeds pollTimeout (%s)", prefix, cfg.Bulk.PollInterval, cfg.Bulk.PollTimeout))
	}

	return errs
}
