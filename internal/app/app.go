package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"sales-import/internal/audit"
	"sales-import/internal/config"
	salesio "sales-import/internal/io"
	"sales-import/internal/logging"
	"sales-import/internal/pipeline"
	"sales-import/internal/reconcile"
	"sales-import/internal/salesforce"
	"sales-import/internal/util"

	"github.com/Knetic/govaluate"
	"github.com/google/uuid"
)

// Common application-level errors.
var (
	ErrUsage          = errors.New("usage error")
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrMissingInput   = errors.New("no input file specified")
)

// Factory and filesystem variables, overridable in tests.
var (
	newSalesFileReaderFunc = salesio.NewSalesFileReader
	newImportIDFunc        = newImportID
	osStatFunc             = os.Stat
)

// httpTimeout bounds individual Salesforce HTTP calls. The poll loop's own
// ceiling governs total polling time.
const httpTimeout = 120 * time.Second

// AppRunner encapsulates the application's execution logic.
type AppRunner struct{}

// NewAppRunner creates a new instance of the application runner.
func NewAppRunner() *AppRunner {
	return &AppRunner{}
}

// usageText defines the command-line help information.
const usageText = `Usage:
  sales-import [options]

Imports a partner warranty sales file into Salesforce via Bulk API 2.0:
validates each row, reconciles partner names against Accounts, transforms
to the Opportunity bulk format, and drives the ingest job to completion.

Options:
  -config string
        YAML configuration file (default "config/sales-import.yaml")
  -input string
        Override input file path from config
  -db string
        PostgreSQL audit connection string (overrides DB_CREDENTIALS env var)
  -loglevel string
        Logging level (none, error, warn, info, debug) (default "info")
  -dry-run
        Validate, reconcile, and transform, but skip the bulk submission
  -help
        Show help

Environment Variables:
  DB_CREDENTIALS   PostgreSQL audit connection string (used if -db is not set)
  Any VAR          Usable in config paths/URLs via $VAR/${VAR} or %VAR%

Examples:
  sales-import -config=config/sales-import.yaml -input=/data/sales_2024-06.csv
  sales-import -config=config/sales-import.yaml -dry-run -loglevel=debug
`

// Usage prints the command-line help information to the specified writer.
func (a *AppRunner) Usage(writer io.Writer) {
	fmt.Fprint(writer, usageText)
}

// Run parses command-line arguments and executes one import run.
func (a *AppRunner) Run(args []string) error {
	fs := flag.NewFlagSet("sales-import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFile := fs.String("config", "config/sales-import.yaml", "YAML configuration file")
	flagInputFile := fs.String("input", "", "Override input file path from config")
	dbConnStr := fs.String("db", "", "PostgreSQL audit connection string")
	logLevelStr := fs.String("loglevel", "info", "Logging level")
	dryRunFlag := fs.Bool("dry-run", false, "Skip the bulk submission")
	helpFlag := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			a.Usage(os.Stderr)
			return nil
		}
		logging.Logf(logging.Error, "Failed to parse args: %v", err)
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *helpFlag || (len(args) == 0 && !anyFlagsSet(fs)) {
		a.Usage(os.Stderr)
		return nil
	}

	logging.SetupLogging(*logLevelStr)
	if _, err := osStatFunc(*configFile); err != nil {
		if os.IsNotExist(err) {
			logging.Logf(logging.Error, "Config file '%s' not found.", *configFile)
			return ErrConfigNotFound
		}
		return fmt.Errorf("failed to stat config file '%s': %w", *configFile, err)
	}
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logging.Logf(logging.Error, "Error loading/validating config '%s': %v", *configFile, err)
		return err
	}
	if !isFlagSet(fs, "loglevel") && cfg.Logging.Level != "" {
		logging.SetupLogging(cfg.Logging.Level)
	}
	logging.Logf(logging.Info, "Starting sales import with config: %s", *configFile)

	inputFile := cfg.Source.File
	if *flagInputFile != "" {
		inputFile = *flagInputFile
		logging.Logf(logging.Info, "Override input: %s", inputFile)
	}
	inputFile = util.ExpandEnvUniversal(inputFile)
	if inputFile == "" {
		return ErrMissingInput
	}

	auditDSN := *dbConnStr
	if auditDSN == "" {
		auditDSN = os.Getenv("DB_CREDENTIALS")
	}
	if auditDSN == "" && cfg.Audit != nil {
		auditDSN = cfg.Audit.DSN
	}

	importID := newImportIDFunc()

	// --- Instantiate components ---
	reader, err := newSalesFileReaderFunc(cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to create sales file reader: %w", err)
	}

	httpClient := &http.Client{Timeout: httpTimeout}
	tokens := salesforce.NewJWTTokenProvider(
		httpClient,
		util.ExpandEnvUniversal(cfg.Salesforce.InstanceURL),
		util.ExpandEnvUniversal(cfg.Salesforce.Auth.ClientID),
		util.ExpandEnvUniversal(cfg.Salesforce.Auth.Username),
		util.ExpandEnvUniversal(cfg.Salesforce.Auth.PrivateKeyFile),
		util.ExpandEnvUniversal(cfg.Salesforce.Auth.AudienceURL),
		config.DefaultTokenLifetime,
	)
	client := salesforce.NewClient(httpClient, util.ExpandEnvUniversal(cfg.Salesforce.InstanceURL), cfg.Salesforce.APIVersion, tokens)
	queries := salesforce.NewQueryClient(client)
	bulk := salesforce.NewBulkClient(client, cfg.Salesforce.Bulk.PollInterval, cfg.Salesforce.Bulk.PollTimeout)

	var filter *govaluate.EvaluableExpression
	if cfg.Filter != "" {
		filter, err = govaluate.NewEvaluableExpression(cfg.Filter)
		if err != nil {
			return fmt.Errorf("invalid filter expression '%s': %w", cfg.Filter, err)
		}
		logging.Logf(logging.Info, "Filter enabled: %s", cfg.Filter)
	}

	workspace := salesio.NewWorkspace(util.ExpandEnvUniversal(cfg.Reports.Dir))
	coordinator := pipeline.NewCoordinator(
		reconcile.NewReconciler(queries),
		bulk,
		workspace,
		filter,
		cfg.Salesforce.Bulk.Operation,
		cfg.Salesforce.Bulk.Object,
		*dryRunFlag,
	)

	var recorder *audit.Recorder
	if auditDSN != "" {
		table := config.DefaultAuditTable
		if cfg.Audit != nil && cfg.Audit.Table != "" {
			table = cfg.Audit.Table
		}
		recorder = audit.NewRecorder(auditDSN, table)
	}

	// --- Execute ---
	ctx := context.Background()

	logging.Logf(logging.Info, "Parsing %s source file: %s (import_id=%s)", cfg.Source.Type, inputFile, importID)
	rows, err := reader.Read(inputFile)
	if err != nil {
		return fmt.Errorf("failed to read input data: %w", err)
	}
	logging.Logf(logging.Info, "Parsed %d data rows.", len(rows))

	result, runErr := coordinator.Run(ctx, importID, rows)
	result.SourceFile = inputFile

	if recorder != nil {
		// Audit failures never change the run outcome.
		_ = recorder.RecordRun(ctx, result, runErr)
	}

	if runErr != nil {
		return runErr
	}

	if *cfg.Reports.Archive && !*dryRunFlag {
		if _, err := workspace.ArchiveSource(importID, inputFile); err != nil {
			logging.Logf(logging.Warning, "Failed to archive source file (import_id=%s): %v", importID, err)
		}
	}

	printSummary(os.Stdout, result)
	return nil
}

// printSummary writes the caller-facing run summary as JSON to w.
func printSummary(w io.Writer, result pipeline.ImportResult) {
	summary := map[string]interface{}{
		"import_id":   result.ImportID,
		"total_lines": result.TotalLines,
		"validation": map[string]int{
			"valid":  result.ValidCount,
			"errors": result.InvalidCount,
		},
		"salesforce": map[string]interface{}{
			"job_id":  result.JobID,
			"success": result.Success,
			"errors":  result.Errors,
		},
		"files": map[string]string{
			"validation_errors": result.ValidationReportPath,
			"salesforce_errors": result.BulkReportPath,
		},
		"duration_seconds": result.Duration.Round(10 * time.Millisecond).Seconds(),
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		logging.Logf(logging.Error, "Failed to encode run summary: %v", err)
	}
}

// newImportID builds the run correlation identifier: sortable timestamp
// prefix plus a UUID, mirroring the identifiers used in report file names.
func newImportID() string {
	return time.Now().Format("20060102150405") + "_" + uuid.NewString()
}

// Helper functions
func anyFlagsSet(fs *flag.FlagSet) bool {
	any := false
	fs.Visit(func(*flag.Flag) { any = true })
	return any
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
