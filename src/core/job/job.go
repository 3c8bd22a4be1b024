package job

import (
	"context"
	"errors"

	"adwise/src/core/failure"
)

// State defines the lifecycle state of the tracked job
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further automatic transition happens from s
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is a snapshot of the tracked generation request.
// ArtifactID is set only when Completed, Failure only when Failed.
type Job struct {
	ID         string
	State      State
	ArtifactID string
	Failure    *failure.Error
}

// FailureReason returns the human-readable failure cause, or "" when not Failed
func (j Job) FailureReason() string {
	if j.Failure == nil {
		return ""
	}
	return j.Failure.Reason()
}

// RemoteStatus is the job status reported by the Generation Service
type RemoteStatus string

const (
	RemoteProcessing RemoteStatus = "processing"
	RemoteCompleted  RemoteStatus = "completed"
	RemoteFailed     RemoteStatus = "failed"
)

// StatusReport is one answer of the status endpoint
type StatusReport struct {
	Status     RemoteStatus
	ArtifactID string
}

// GenerationService is the backend that accepts submissions and reports progress
type GenerationService interface {
	// Submit sends the payload and returns the job id assigned by the service
	Submit(ctx context.Context, payload Payload) (string, error)

	// Status reports the current status of a job
	Status(ctx context.Context, jobID string) (StatusReport, error)
}

// Notifier is told about every state transition, in order
type Notifier interface {
	JobChanged(job Job)
}

var (
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrSuperseded        = errors.New("submission superseded by a reset")
	ErrClosed            = errors.New("coordinator is closed")
)
