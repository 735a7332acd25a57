// Package pipeline sequences one sales import run: validate, reconcile,
// transform, and drive the bulk job lifecycle, aggregating counts into an
// ImportResult.
package pipeline

import (
	"context"
	"fmt"
	"time"

	salesio "sales-import/internal/io"
	"sales-import/internal/logging"
	"sales-import/internal/reconcile"
	"sales-import/internal/sales"
	"sales-import/internal/salesforce"
	"sales-import/internal/transform"
	"sales-import/internal/validate"

	"github.com/Knetic/govaluate"
)

// BulkJobRunner is the bulk ingestion lifecycle consumed by the coordinator.
// *salesforce.BulkClient satisfies it.
type BulkJobRunner interface {
	CreateJob(ctx context.Context, operation, object string) (string, error)
	UploadData(ctx context.Context, jobID string, payload []byte) error
	CloseJob(ctx context.Context, jobID string) error
	PollJobCompletion(ctx context.Context, jobID string) (salesforce.JobStatus, error)
	GetFailedResults(ctx context.Context, jobID string) []byte
}

// ImportResult is the immutable outcome of one pipeline run.
type ImportResult struct {
	ImportID   string
	SourceFile string

	TotalLines   int // parsed data rows handed to the pipeline
	FilteredOut  int // rows skipped by the configured filter expression
	ValidCount   int
	InvalidCount int

	UnmatchedPartners int // valid records whose partner had no account id

	JobID   string
	Success int // records processed minus records failed, from the terminal snapshot
	Errors  int // records failed, from the terminal snapshot

	ValidationReportPath string // empty when no validation errors occurred
	BulkReportPath       string // empty when no bulk failures were reported

	Duration time.Duration
}

// RunError is a fatal pipeline failure. It preserves the triggering cause
// and the elapsed time up to the failure point.
type RunError struct {
	Cause   error
	Elapsed time.Duration
}

func (e *RunError) Error() string {
	return fmt.Sprintf("import failed after %s: %v", e.Elapsed.Round(time.Millisecond), e.Cause)
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// Coordinator wires the pipeline stages for one configuration. A Coordinator
// is stateless across runs; concurrent Run calls are independent.
type Coordinator struct {
	reconciler *reconcile.Reconciler
	bulk       BulkJobRunner
	reports    salesio.ReportStore
	filter     *govaluate.EvaluableExpression
	operation  string
	object     string
	dryRun     bool

	now func() time.Time
}

// NewCoordinator creates a Coordinator. filter may be nil when no filter
// expression is configured; dryRun skips the remote bulk submission.
func NewCoordinator(reconciler *reconcile.Reconciler, bulk BulkJobRunner, reports salesio.ReportStore, filter *govaluate.EvaluableExpression, operation, object string, dryRun bool) *Coordinator {
	return &Coordinator{
		reconciler: reconciler,
		bulk:       bulk,
		reports:    reports,
		filter:     filter,
		operation:  operation,
		object:     object,
		dryRun:     dryRun,
		now:        time.Now,
	}
}

// Run executes the pipeline over parsed rows. importID correlates every log
// line of the run; it has no bearing on logic. Row-level validation failures
// and reconciliation gaps never abort the run; remote-call failures and a
// polling timeout do, carrying the cause and elapsed duration.
func (c *Coordinator) Run(ctx context.Context, importID string, rows []sales.RawRecord) (ImportResult, error) {
	start := c.now()
	result := ImportResult{ImportID: importID, TotalLines: len(rows)}

	logging.Logf(logging.Info, "Starting sales import (import_id=%s total_lines=%d)", importID, len(rows))

	fail := func(err error) (ImportResult, error) {
		runErr := &RunError{Cause: err, Elapsed: c.now().Sub(start)}
		logging.Logf(logging.Error, "Sales import failed (import_id=%s error=%v)", importID, err)
		return result, runErr
	}

	// Optional pre-validation filter.
	if c.filter != nil {
		kept, skipped := c.applyFilter(importID, rows)
		rows = kept
		result.FilteredOut = skipped
	}

	// Validation partitions every remaining row into exactly one side.
	valid, rejected := validate.Validate(rows)
	result.ValidCount = len(valid)
	result.InvalidCount = len(rejected)

	if len(rejected) > 0 {
		path, err := c.reports.WriteValidationReport(importID, rejected)
		if err != nil {
			return fail(err)
		}
		result.ValidationReportPath = path
	}

	// With nothing valid there is nothing to submit: zero the job fields and
	// make no remote calls.
	if len(valid) == 0 {
		result.Duration = c.now().Sub(start)
		logging.Logf(logging.Warning, "No valid data to import (import_id=%s total_lines=%d validation_errors=%d duration=%s)",
			importID, result.TotalLines, result.InvalidCount, result.Duration.Round(time.Millisecond))
		return result, nil
	}

	reconciled, err := c.reconciler.Reconcile(ctx, valid)
	if err != nil {
		return fail(err)
	}
	result.UnmatchedPartners = reconciled.Unmatched

	payload, err := transform.ToCSV(reconciled.Enriched)
	if err != nil {
		return fail(err)
	}

	if c.dryRun {
		result.Duration = c.now().Sub(start)
		logging.Logf(logging.Info, "DRY RUN: skipping bulk submission (import_id=%s records=%d payload_bytes=%d)",
			importID, len(reconciled.Enriched), len(payload))
		return result, nil
	}

	if err := c.runBulkJob(ctx, importID, payload, &result); err != nil {
		return fail(err)
	}

	result.Duration = c.now().Sub(start)
	logging.Logf(logging.Info, "Sales import completed (import_id=%s total_lines=%d valid=%d invalid=%d success=%d errors=%d duration=%s)",
		importID, result.TotalLines, result.ValidCount, result.InvalidCount, result.Success, result.Errors, result.Duration.Round(time.Millisecond))
	return result, nil
}

// runBulkJob drives create → upload → close → poll → fetch-failed over the
// wire payload, filling the job fields of result.
func (c *Coordinator) runBulkJob(ctx context.Context, importID string, payload []byte, result *ImportResult) error {
	jobID, err := c.bulk.CreateJob(ctx, c.operation, c.object)
	if err != nil {
		return err
	}
	result.JobID = jobID

	if err := c.bulk.UploadData(ctx, jobID, payload); err != nil {
		return err
	}
	if err := c.bulk.CloseJob(ctx, jobID); err != nil {
		return err
	}

	status, err := c.bulk.PollJobCompletion(ctx, jobID)
	if err != nil {
		return err
	}

	// Counts come from the terminal snapshot, never recomputed locally.
	result.Success = status.RecordsProcessed - status.RecordsFailed
	result.Errors = status.RecordsFailed

	if status.RecordsFailed > 0 {
		if report := c.bulk.GetFailedResults(ctx, jobID); report != nil {
			path, err := c.reports.WriteBulkReport(importID, report)
			if err != nil {
				// The failure count is already reported; a report-file
				// problem must not escalate past it.
				logging.Logf(logging.Error, "Failed to persist bulk error report (import_id=%s error=%v)", importID, err)
			} else {
				result.BulkReportPath = path
			}
		}
	}
	return nil
}

// applyFilter evaluates the filter expression against each row, keeping rows
// that evaluate to true. Evaluation errors and non-boolean results skip the
// row with a warning rather than failing the run.
func (c *Coordinator) applyFilter(importID string, rows []sales.RawRecord) ([]sales.RawRecord, int) {
	kept := make([]sales.RawRecord, 0, len(rows))
	skipped := 0

	for i, row := range rows {
		params := make(map[string]interface{}, len(row))
		for k, v := range row {
			params[k] = v
		}
		verdict, err := c.filter.Evaluate(params)
		if err != nil {
			logging.Logf(logging.Warning, "Filter evaluation failed on row %d; skipping (import_id=%s error=%v)", i, importID, err)
			skipped++
			continue
		}
		keep, isBool := verdict.(bool)
		if !isBool {
			logging.Logf(logging.Warning, "Filter returned non-boolean on row %d (type %T); skipping (import_id=%s)", i, verdict, importID)
			skipped++
			continue
		}
		if keep {
			kept = append(kept, row)
		} else {
			skipped++
		}
	}

	if skipped > 0 {
		logging.Logf(logging.Info, "Filter applied (import_id=%s kept=%d skipped=%d)", importID, len(kept), skipped)
	}
	return kept, skipped
}
