package salesforce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-import/internal/logging"
)

// ErrPollTimeout indicates the job did not reach a terminal state within the
// polling ceiling. This is fatal for the run and distinct from a remote
// rejection: the remote job keeps running, but its outcome is unknown here.
var ErrPollTimeout = errors.New("bulk job polling timed out")

// JobState is a Bulk API 2.0 job lifecycle state as reported by Salesforce.
type JobState string

// Job states. Open and UploadComplete are set by the lifecycle calls;
// InProgress is observed while polling; the last three are terminal.
const (
	JobStateOpen           JobState = "Open"
	JobStateUploadComplete JobState = "UploadComplete"
	JobStateInProgress     JobState = "InProgress"
	JobStateComplete       JobState = "JobComplete"
	JobStateFailed         JobState = "Failed"
	JobStateAborted        JobState = "Aborted"
)

// Terminal reports whether no further state transition can occur.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateComplete, JobStateFailed, JobStateAborted:
		return true
	}
	return false
}

// JobStatus is a local snapshot of the remote job. State is authoritative
// only at Salesforce; this is the view refreshed by polling.
type JobStatus struct {
	ID               string   `json:"id"`
	State            JobState `json:"state"`
	RecordsProcessed int      `json:"numberRecordsProcessed"`
	RecordsFailed    int      `json:"numberRecordsFailed"`
}

// BulkClient drives the Bulk API 2.0 ingest job lifecycle:
// create → upload → close → poll to a terminal state → fetch results.
type BulkClient struct {
	client       *Client
	pollInterval time.Duration
	pollTimeout  time.Duration

	// Injected clock and sleeper keep the poll loop testable without real
	// waiting.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewBulkClient creates a BulkClient with the given polling cadence.
func NewBulkClient(client *Client, pollInterval, pollTimeout time.Duration) *BulkClient {
	return &BulkClient{
		client:       client,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// CreateJob creates an ingest job and returns its id. The payload pins
// contentType to CSV and lineEnding to LF, matching the transformer's wire
// output.
func (b *BulkClient) CreateJob(ctx context.Context, operation, object string) (string, error) {
	start := b.now()
	logging.Logf(logging.Info, "Creating Salesforce bulk job (operation=%s object=%s)", operation, object)

	payload := map[string]string{
		"operation":   operation,
		"object":      object,
		"contentType": "CSV",
		"lineEnding":  "LF",
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := b.client.requestJSON(ctx, "POST", b.client.apiPath("jobs/ingest"), payload, &created); err != nil {
		return "", fmt.Errorf("failed to create bulk job: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("failed to create bulk job: response contained no job id")
	}

	logging.Logf(logging.Info, "Bulk job created (job_id=%s duration=%s)", created.ID, roundSeconds(b.now().Sub(start)))
	return created.ID, nil
}

// UploadData transmits the whole CSV payload in a single request.
func (b *BulkClient) UploadData(ctx context.Context, jobID string, payload []byte) error {
	start := b.now()
	logging.Logf(logging.Info, "Uploading data to bulk job (job_id=%s data_size_bytes=%d)", jobID, len(payload))

	path := b.client.apiPath("jobs/ingest/" + jobID + "/batches")
	if _, err := b.client.request(ctx, "PUT", path, "text/csv", payload); err != nil {
		return fmt.Errorf("failed to upload data to bulk job %s: %w", jobID, err)
	}

	logging.Logf(logging.Info, "Data uploaded (job_id=%s duration=%s)", jobID, roundSeconds(b.now().Sub(start)))
	return nil
}

// CloseJob marks the upload complete, which starts remote processing.
func (b *BulkClient) CloseJob(ctx context.Context, jobID string) error {
	start := b.now()
	logging.Logf(logging.Info, "Closing bulk job (job_id=%s)", jobID)

	payload := map[string]string{"state": string(JobStateUploadComplete)}
	if err := b.client.requestJSON(ctx, "PATCH", b.client.apiPath("jobs/ingest/"+jobID), payload, nil); err != nil {
		return fmt.Errorf("failed to close bulk job %s: %w", jobID, err)
	}

	logging.Logf(logging.Info, "Bulk job closed (job_id=%s duration=%s)", jobID, roundSeconds(b.now().Sub(start)))
	return nil
}

// PollJobCompletion reads the job status at the configured interval until it
// reaches a terminal state. The timeout ceiling is checked before every read,
// so a stuck job yields ErrPollTimeout, never a silent empty result. The
// returned snapshot is the terminal one; its counts are never recomputed
// locally.
func (b *BulkClient) PollJobCompletion(ctx context.Context, jobID string) (JobStatus, error) {
	start := b.now()
	attempt := 0

	logging.Logf(logging.Info, "Starting bulk job polling (job_id=%s poll_interval=%s timeout=%s)",
		jobID, b.pollInterval, b.pollTimeout)

	for {
		attempt++
		elapsed := b.now().Sub(start)

		if elapsed > b.pollTimeout {
			return JobStatus{}, fmt.Errorf("%w after %s (job_id=%s attempts=%d)", ErrPollTimeout, b.pollTimeout, jobID, attempt-1)
		}

		status, err := b.readJob(ctx, jobID)
		if err != nil {
			return JobStatus{}, fmt.Errorf("failed to poll bulk job %s: %w", jobID, err)
		}

		logging.Logf(logging.Debug, "Bulk job poll (job_id=%s attempt=%d state=%s elapsed=%s)",
			jobID, attempt, status.State, roundSeconds(elapsed))

		if status.State.Terminal() {
			logging.Logf(logging.Info, "Bulk job completed (job_id=%s state=%s attempts=%d records_processed=%d records_failed=%d duration=%s)",
				jobID, status.State, attempt, status.RecordsProcessed, status.RecordsFailed, roundSeconds(b.now().Sub(start)))
			return status, nil
		}

		b.sleep(b.pollInterval)
	}
}

// readJob fetches the current job snapshot.
func (b *BulkClient) readJob(ctx context.Context, jobID string) (JobStatus, error) {
	var status JobStatus
	if err := b.client.requestJSON(ctx, "GET", b.client.apiPath("jobs/ingest/"+jobID), nil, &status); err != nil {
		return JobStatus{}, err
	}
	return status, nil
}

// GetFailedResults fetches the failed-record report as CSV. A fetch error is
// degraded to a nil report with a log line: the failure count from the job
// snapshot is already known, and a missing report must never mask it. An
// empty or whitespace-only body also yields nil, meaning no failures.
func (b *BulkClient) GetFailedResults(ctx context.Context, jobID string) []byte {
	return b.getResults(ctx, jobID, "failedResults", "failed")
}

// GetSuccessfulResults fetches the successful-record report as CSV, with the
// same degradation contract as GetFailedResults.
func (b *BulkClient) GetSuccessfulResults(ctx context.Context, jobID string) []byte {
	return b.getResults(ctx, jobID, "successfulResults", "successful")
}

func (b *BulkClient) getResults(ctx context.Context, jobID, endpoint, kind string) []byte {
	start := b.now()
	logging.Logf(logging.Info, "Retrieving %s results from bulk job (job_id=%s)", kind, jobID)

	body, err := b.client.request(ctx, "GET", b.client.apiPath("jobs/ingest/"+jobID+"/"+endpoint), "", nil)
	if err != nil {
		logging.Logf(logging.Error, "Failed to retrieve %s results (job_id=%s error=%v); continuing without report", kind, jobID, err)
		return nil
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		logging.Logf(logging.Info, "No %s results to retrieve (job_id=%s duration=%s)", kind, jobID, roundSeconds(b.now().Sub(start)))
		return nil
	}

	logging.Logf(logging.Info, "Retrieved %s results (job_id=%s csv_size_bytes=%d duration=%s)",
		kind, jobID, len(body), roundSeconds(b.now().Sub(start)))
	return body
}
