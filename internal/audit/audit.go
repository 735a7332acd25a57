// Package audit records import run outcomes in PostgreSQL so operators can
// review run history without trawling logs.
package audit

import (
	"context"
	"fmt"
	"time"

	"sales-import/internal/logging"
	"sales-import/internal/pipeline"
	"sales-import/internal/util"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxPoolNewFunc allows overriding pgxpool.New for testing.
var pgxPoolNewFunc = pgxpool.New

const defaultDBTimeout = 30 * time.Second

// Recorder writes one audit row per import run. A nil *Recorder is a no-op,
// so callers need not branch on whether auditing is configured.
type Recorder struct {
	connStr string
	table   string
}

// NewRecorder creates a Recorder for the given connection string and table.
// The table is expected to exist; its columns mirror ImportResult.
func NewRecorder(connStr, table string) *Recorder {
	return &Recorder{connStr: connStr, table: table}
}

// RecordRun inserts the run outcome. runErr carries the fatal error of a
// failed run, nil for a successful one. Audit failures are logged and
// returned but are never treated as fatal by callers: the import outcome
// stands regardless of whether its bookkeeping landed.
func (r *Recorder) RecordRun(ctx context.Context, result pipeline.ImportResult, runErr error) error {
	if r == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
	defer cancel()

	expandedConnStr := util.ExpandEnvUniversal(r.connStr)
	pool, err := pgxPoolNewFunc(ctx, expandedConnStr)
	if err != nil {
		masked := util.MaskCredentials(expandedConnStr)
		logging.Logf(logging.Error, "Audit recorder failed to create connection pool: %s", masked)
		return fmt.Errorf("audit recorder failed to create connection pool (using %s): %w", masked, err)
	}
	defer pool.Close()

	status := "success"
	errText := ""
	if runErr != nil {
		status = "failed"
		errText = runErr.Error()
	}

	// The table name comes from validated configuration (identifier
	// characters only), so it is safe to splice into the statement.
	sql := fmt.Sprintf(`INSERT INTO %s
		(import_id, source_file, total_lines, filtered_out, valid_count, invalid_count,
		 unmatched_partners, job_id, success_count, error_count, status, error_text, duration_ms, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())`, r.table)

	_, err = pool.Exec(ctx, sql,
		result.ImportID, result.SourceFile, result.TotalLines, result.FilteredOut,
		result.ValidCount, result.InvalidCount, result.UnmatchedPartners,
		result.JobID, result.Success, result.Errors, status, errText,
		result.Duration.Milliseconds())
	if err != nil {
		logging.Logf(logging.Error, "Audit recorder failed to insert run row (import_id=%s): %v", result.ImportID, err)
		return fmt.Errorf("audit recorder failed to insert run row: %w", err)
	}

	logging.Logf(logging.Debug, "Audit row recorded (import_id=%s table=%s)", result.ImportID, r.table)
	return nil
}
