// Package store keeps the status of report jobs submitted over HTTP.
package store

import (
	"context"
	"errors"
	"time"
)

// Job states.
const (
	StateQueued     = "queued"
	StateProcessing = "processing"
	StateSuccess    = "success"
	StateFailed     = "failed"
)

// ErrNotFound is returned when a digest has no job recorded.
var ErrNotFound = errors.New("not found")

type Status struct {
	Status   string         `json:"status"`
	Progress int            `json:"progress"`
	Message  string         `json:"message"`
	Archive  string         `json:"archive,omitempty"`
	Start    *time.Time     `json:"start_time,omitempty"`
	End      *time.Time     `json:"end_time,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (s Status) Done() bool { return s.Status == StateSuccess || s.Status == StateFailed }

// StatusStore records job status and maps submission digests to job IDs so a
// repeated upload returns the existing job.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st Status) error
	Get(ctx context.Context, jobID string) (Status, bool, error)
	SetDigestJob(ctx context.Context, digest, jobID string) error
	GetJobByDigest(ctx context.Context, digest string) (string, error)
	Close() error
}
