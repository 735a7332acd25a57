package config

import "time"

// Constants for configuration types, defaults, and limits.
const (
	SourceTypeCSV  = "csv"
	SourceTypeXLSX = "xlsx"

	DefaultLogLevel     = "info"
	DefaultCSVDelimiter = ","

	DefaultAPIVersion   = "v59.0"
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 600 * time.Second

	// DefaultTokenLifetime is assumed when the token endpoint omits
	// expires_in, matching Salesforce's session default.
	DefaultTokenLifetime = 7200 * time.Second

	DefaultBulkObject    = "Opportunity"
	DefaultBulkOperation = "insert"

	DefaultAuditTable = "sales_import_runs"
)

// ImportConfig defines the overall structure of the YAML configuration file.
type ImportConfig struct {
	// Logging specifies the verbosity level.
	Logging LoggingConfig `yaml:"logging"`
	// Source describes the partner sales file to ingest.
	Source SourceConfig `yaml:"source"`
	// Salesforce holds connection, auth, and bulk job settings.
	Salesforce SalesforceConfig `yaml:"salesforce"`
	// Reports controls where validation and bulk error reports are written,
	// and where processed source files are archived.
	Reports ReportsConfig `yaml:"reports"`
	// Filter is an optional expression (govaluate syntax) evaluated against
	// each parsed row before validation. Rows for which the expression
	// evaluates to false are skipped and counted, not treated as errors.
	// Example: "warranty_code != '' && partner_name != 'INTERNAL'"
	Filter string `yaml:"filter,omitempty"`
	// Audit optionally records one row per import run in PostgreSQL.
	Audit *AuditConfig `yaml:"audit,omitempty"`
}

// LoggingConfig holds settings related to logging verbosity.
type LoggingConfig struct {
	// Level defines the logging detail ("none", "error", "warn", "info",
	// "debug"). Defaults to "info".
	Level string `yaml:"level"`
}

// SourceConfig details the input file properties.
type SourceConfig struct {
	// Type indicates the container format of the input file: "csv" (default)
	// or "xlsx". Both carry the same fixed 15-column schema.
	Type string `yaml:"type"`
	// File is the path of the partner sales file. Environment variables are
	// expanded. Required unless overridden by the -input flag.
	File string `yaml:"file,omitempty"`
	// Delimiter is the CSV field delimiter (default ","). Ignored for xlsx.
	Delimiter string `yaml:"delimiter,omitempty"`
	// SheetName selects the XLSX sheet to read. Defaults to the first sheet.
	// Ignored for csv.
	SheetName string `yaml:"sheetName,omitempty"`
}

// SalesforceConfig holds everything needed to talk to one Salesforce org.
type SalesforceConfig struct {
	// InstanceURL is the org's base URL (e.g. https://acme.my.salesforce.com).
	// Environment variables are expanded. Required.
	InstanceURL string `yaml:"instanceUrl"`
	// APIVersion is the REST API version segment. Defaults to "v59.0".
	APIVersion string `yaml:"apiVersion,omitempty"`
	// Auth configures the OAuth2 JWT bearer grant.
	Auth AuthConfig `yaml:"auth"`
	// Bulk configures the ingestion job.
	Bulk BulkConfig `yaml:"bulk"`
}

// AuthConfig configures the OAuth2 JWT bearer flow used to obtain access
// tokens. The private key signs a short-lived RS256 assertion.
type AuthConfig struct {
	// ClientID is the Connected App consumer key. Required.
	ClientID string `yaml:"clientId"`
	// Username is the Salesforce username the token is issued for. Required.
	Username string `yaml:"username"`
	// PrivateKeyFile is the path of the PEM-encoded RSA private key.
	// Environment variables are expanded. Required.
	PrivateKeyFile string `yaml:"privateKeyFile"`
	// AudienceURL is the assertion audience, normally
	// https://login.salesforce.com or https://test.salesforce.com. Required.
	AudienceURL string `yaml:"audienceUrl"`
}

// BulkConfig configures the Bulk API 2.0 ingestion job and its poll loop.
type BulkConfig struct {
	// Object is the target sObject type. Defaults to "Opportunity".
	Object string `yaml:"object,omitempty"`
	// Operation is the ingest operation. Defaults to "insert".
	Operation string `yaml:"operation,omitempty"`
	// PollInterval is the delay between job status reads. Defaults to 5s.
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`
	// PollTimeout is the ceiling on total polling time before the run fails
	// with a timeout error. Defaults to 600s.
	PollTimeout time.Duration `yaml:"pollTimeout,omitempty"`
}

// ReportsConfig controls the on-disk artifacts of a run.
type ReportsConfig struct {
	// Dir is the base directory under which dated work and archive
	// directories are created. Environment variables are expanded.
	// Defaults to "var".
	Dir string `yaml:"dir,omitempty"`
	// Archive enables copying the source file into the archive directory
	// after a successful run. Defaults to true.
	Archive *bool `yaml:"archive,omitempty"`
}

// AuditConfig configures the optional PostgreSQL run-history sink.
type AuditConfig struct {
	// DSN is the PostgreSQL connection string. Environment variables are
	// expanded; the -db flag and DB_CREDENTIALS env var take precedence.
	DSN string `yaml:"dsn,omitempty"`
	// Table is the table receiving one row per run. Defaults to
	// "sales_import_runs".
	Table string `yaml:"table,omitempty"`
}
