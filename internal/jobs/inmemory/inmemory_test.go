package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/jobs"
	"github.com/dvloznov/money-mirror/internal/pipeline"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.ProcessJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 1, store)
	defer q.Close()

	handler := func(ctx context.Context, job *jobs.ProcessJob) (*pipeline.Result, error) {
		return &pipeline.Result{FilesProcessed: len(job.FilePaths), RowsInserted: 3}, nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.ProcessJob{Institution: domain.InstitutionAmex, FilePaths: []string{"a.csv", "b.csv"}}
	if err := q.PublishProcess(ctx, job); err != nil {
		t.Fatal(err)
	}
	if job.JobID == "" || job.MaxRetries != DefaultMaxRetries {
		t.Fatalf("publish did not initialize job: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Result == nil || done.Result.FilesProcessed != 2 || done.Result.RowsInserted != 3 {
		t.Errorf("Result = %+v", done.Result)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not recorded")
	}
}

func TestQueue_RetriesThenFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 1, store)
	q.backoff = func(int) time.Duration { return time.Millisecond }
	defer q.Close()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job *jobs.ProcessJob) (*pipeline.Result, error) {
		attempts.Add(1)
		return &pipeline.Result{}, errors.New("store unavailable")
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.ProcessJob{Institution: domain.InstitutionAmex, FilePaths: []string{"a.csv"}, MaxRetries: 1}
	if err := q.PublishProcess(ctx, job); err != nil {
		t.Fatal(err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	if failed.Error != "store unavailable" || failed.RetryCount != 1 {
		t.Errorf("job = %+v", failed)
	}
}

func TestQueue_RetrySucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(4, 1, store)
	q.backoff = func(int) time.Duration { return time.Millisecond }
	defer q.Close()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job *jobs.ProcessJob) (*pipeline.Result, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return &pipeline.Result{RowsInserted: 1}, nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.ProcessJob{Institution: domain.InstitutionWealthsimple, FilePaths: []string{"ws.csv"}}
	if err := q.PublishProcess(ctx, job); err != nil {
		t.Fatal(err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Error != "" || done.RetryCount != 1 {
		t.Errorf("job = %+v", done)
	}
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := q.PublishProcess(context.Background(), &jobs.ProcessJob{}); err == nil {
		t.Error("expected error publishing to a stopped queue")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("expected error starting a stopped queue")
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []*jobs.ProcessJob{
		{JobID: "a", Institution: domain.InstitutionAmex, Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", Institution: domain.InstitutionAmex, Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)},
		{JobID: "c", Institution: domain.InstitutionWealthsimple, Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, j := range seed {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by institution", jobs.JobFilter{Institution: domain.InstitutionAmex}, []string{"b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"limit and offset", jobs.JobFilter{Offset: 1, Limit: 1}, []string{"b"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d jobs, want %d", len(got), len(tt.want))
			}
			for i, j := range got {
				if j.JobID != tt.want[i] {
					t.Errorf("job[%d] = %s, want %s", i, j.JobID, tt.want[i])
				}
			}
		})
	}
}

func TestStore_GetJob(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob(missing) error = %v, want ErrJobNotFound", err)
	}
	if err := s.SaveJob(ctx, &jobs.ProcessJob{}); err == nil {
		t.Error("expected error saving a job without id")
	}

	orig := &jobs.ProcessJob{JobID: "x", FilePaths: []string{"a.csv"}}
	if err := s.SaveJob(ctx, orig); err != nil {
		t.Fatal(err)
	}
	orig.FilePaths[0] = "changed.csv"

	got, err := s.GetJob(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if got.FilePaths[0] != "a.csv" {
		t.Errorf("stored job shares state with caller: %v", got.FilePaths)
	}
}
