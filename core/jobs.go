package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

type JobStatus string

const (
	JobScheduled  JobStatus = "scheduled"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

type (
	// JobResult is the downloadable output of a background job (eg. a merged PDF).
	JobResult struct {
		Filename    string
		ContentType string
		Content     []byte
	}

	// JobFunc is the work of a background job. It must tolerate running more than once
	// and after the request that enqueued it has completed.
	JobFunc func(ctx context.Context) (*JobResult, error)

	JobInfo struct {
		ID         string     `json:"id"`
		Name       string     `json:"name"`
		Status     JobStatus  `json:"status"`
		Attempts   int        `json:"attempts"`
		Error      string     `json:"error,omitempty"`
		HasResult  bool       `json:"has_result"`
		EnqueuedAt time.Time  `json:"enqueued_at"`
		StartedAt  *time.Time `json:"started_at,omitempty"`
		FinishedAt *time.Time `json:"finished_at,omitempty"`
	}

	// JobQueue runs long tasks detached from the request that enqueued them.
	JobQueue interface {
		Enqueue(name string, fn JobFunc) (string, error)
		Status(id string) (JobInfo, error)
		Result(id string) (*JobResult, error)
	}
)

var (
	// ErrJobNotFound is returned for unknown or expired job ids.
	ErrJobNotFound  = NewNotFoundError("job")
	ErrJobQueueFull = errors.New("job queue is full")
	ErrJobNotDone   = errors.New("job has not completed")
	ErrJobNoResult  = errors.New("job has no result")
)
