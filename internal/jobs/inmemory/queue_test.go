package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agilizei/irorganiza/internal/domain"
	"github.com/agilizei/irorganiza/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ScanReceiptJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 2, store)
	defer q.Close()

	handler := func(ctx context.Context, j jobs.Job) error {
		scan, ok := j.(*jobs.ScanReceiptJob)
		if !ok {
			t.Fatalf("unexpected job type %T", j)
		}
		scan.Draft = &domain.Draft{PayeeName: "Clinica X", Amount: "100"}
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.ScanReceiptJob{Owner: "user-1", Data: []byte("img"), MimeType: "image/png"}
	if err := q.PublishScanReceipt(context.Background(), job); err != nil {
		t.Fatalf("PublishScanReceipt: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("publish did not assign a job id")
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Draft == nil || done.Draft.PayeeName != "Clinica X" {
		t.Errorf("completed job draft = %+v", done.Draft)
	}
	if done.CompletedAt == nil {
		t.Error("completed job has no CompletedAt")
	}
}

func TestQueueFailedJobWithoutRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, 1, store)
	defer q.Close()

	if err := q.Start(context.Background(), func(ctx context.Context, j jobs.Job) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.ScanReceiptJob{Owner: "user-1"}
	if err := q.PublishScanReceipt(context.Background(), job); err != nil {
		t.Fatalf("PublishScanReceipt: %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.Error != "boom" {
		t.Errorf("Error = %q, want boom", failed.Error)
	}
	if failed.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", failed.RetryCount)
	}
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := NewQueue(1, 1, NewStore())
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.PublishScanReceipt(context.Background(), &jobs.ScanReceiptJob{Owner: "u"}); err == nil {
		t.Fatal("publish on closed queue succeeded")
	}
}

func TestStoreListFiltersByOwnerAndStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seed := []*jobs.ScanReceiptJob{
		{JobID: "a", Owner: "u1", Status: jobs.JobStatusPending},
		{JobID: "b", Owner: "u1", Status: jobs.JobStatusCompleted},
		{JobID: "c", Owner: "u2", Status: jobs.JobStatusCompleted},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob(%s): %v", j.JobID, err)
		}
	}

	got, err := store.ListJobs(ctx, jobs.JobFilter{Owner: "u1", Status: jobs.JobStatusCompleted})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "b" {
		t.Errorf("ListJobs = %v, want single job b", got)
	}
}
