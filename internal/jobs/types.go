// Package jobs defines the asynchronous scan-job model: a captured receipt
// is queued, extracted in the background, and the resulting draft is picked
// up by polling the job.
package jobs

import (
	"context"
	"time"

	"github.com/agilizei/irorganiza/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeScanReceipt represents a receipt extraction job.
	JobTypeScanReceipt JobType = "scan_receipt"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ScanReceiptJob represents a queued receipt extraction.
type ScanReceiptJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Owner is the identity the scan belongs to.
	Owner string `json:"owner"`

	// Data holds the captured document bytes. Never serialized.
	Data []byte `json:"-"`

	// MimeType is the captured document's media type.
	MimeType string `json:"mime_type"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// Draft is the extraction result, set when the job completes.
	Draft *domain.Draft `json:"draft,omitempty"`

	// Warning is set when extraction fell back to the default draft.
	Warning string `json:"warning,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed. Extraction
	// already degrades to a default draft, so jobs default to no retries.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ScanReceiptJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ScanReceiptJob) GetType() JobType {
	return JobTypeScanReceipt
}

// GetStatus implements the Job interface.
func (j *ScanReceiptJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishScanReceipt publishes a receipt extraction job.
	PublishScanReceipt(ctx context.Context, job *ScanReceiptJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ScanReceiptJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ScanReceiptJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ScanReceiptJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Owner filters jobs by owning identity.
	Owner string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
