package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/go-logr/logr"

	"adwise/src/core/failure"
	"adwise/src/core/schedule"
	"adwise/src/log"
	"adwise/src/storage/kvstore"
)

const DefaultPollInterval = 5 * time.Second

// Coordinator owns the lifecycle of the single active job: it submits payloads,
// persists the job id so a restart can resume tracking, and polls the Generation
// Service until the job completes or fails.
type Coordinator struct {
	store     kvstore.Store
	service   GenerationService
	interval  time.Duration
	logger    logr.Logger
	notifiers []Notifier

	ctx    context.Context
	cancel context.CancelFunc

	// notifications are delivered sequentially, outside of mu
	notifyPool *workerpool.WorkerPool

	mu      sync.Mutex
	job     Job
	epoch   uint64
	poller  *schedule.Task
	changed chan struct{}
	closed  bool
}

type Option func(*Coordinator)

// WithPollInterval overrides the status polling interval
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithLogger(l logr.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithNotifier registers n to receive every state transition
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notifiers = append(c.notifiers, n)
		}
	}
}

// NewCoordinator creates an Idle coordinator. Call Resume to pick up a job
// persisted by a previous run and Close to stop polling on teardown.
func NewCoordinator(store kvstore.Store, service GenerationService, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:      store,
		service:    service,
		interval:   DefaultPollInterval,
		logger:     log.WithName("job"),
		ctx:        ctx,
		cancel:     cancel,
		notifyPool: workerpool.New(1),
		job:        Job{State: StateIdle},
		changed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Job returns a snapshot of the tracked job
func (c *Coordinator) Job() Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	return c.Job().State
}

// Submit sends payload to the Generation Service and starts polling for the new
// job. It is only valid from Idle. An invalid payload returns a ValidationError
// and leaves the coordinator Idle; a rejected submission moves it to Failed.
func (c *Coordinator) Submit(ctx context.Context, payload Payload) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.job.State != StateIdle {
		state := c.job.State
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot submit while %s", ErrInvalidTransition, state)
	}
	if err := payload.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.epoch++
	epoch := c.epoch
	c.transition(Job{State: StateSubmitting})
	c.mu.Unlock()

	if err := c.store.Remove(kvstore.ActiveJobIDKey); err != nil {
		return c.failSubmission(epoch, fmt.Errorf("failed to clear previous job id: %w", err))
	}

	jobID, err := c.service.Submit(ctx, payload)
	if err != nil {
		return c.failSubmission(epoch, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		c.logger.Info("Discarding superseded submission", "jobId", jobID)
		return ErrSuperseded
	}
	if err := c.store.Set(kvstore.ActiveJobIDKey, jobID); err != nil {
		f := failure.New(failure.Submission, fmt.Errorf("failed to persist job id: %w", err))
		c.transition(Job{State: StateFailed, Failure: f})
		return f
	}

	c.startPolling(jobID)
	return nil
}

func (c *Coordinator) failSubmission(epoch uint64, err error) error {
	f := failure.New(failure.Submission, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return ErrSuperseded
	}
	c.transition(Job{State: StateFailed, Failure: f})
	return f
}

// Resume re-reads the persisted job id and tracks it. Without a persisted id
// the coordinator returns to Idle. With one it starts polling that id without
// resubmitting, unless it already tracks the same id. Calling Resume after a
// polling failure retries the poll loop.
func (c *Coordinator) Resume() error {
	stored, err := c.store.Get(kvstore.ActiveJobIDKey)
	if err != nil {
		return fmt.Errorf("failed to read persisted job id: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.job.State == StateSubmitting {
		return fmt.Errorf("%w: cannot resume while submitting", ErrInvalidTransition)
	}

	jobID, ok := stored.Get()
	if !ok {
		c.stopPolling()
		if c.job.State != StateIdle {
			c.transition(Job{State: StateIdle})
		}
		return nil
	}

	if c.job.ID == jobID && (c.job.State == StatePolling || c.job.State == StateCompleted) {
		return nil
	}

	c.logger.Info("Resuming job", "jobId", jobID, "previousState", c.job.State)
	c.startPolling(jobID)
	return nil
}

// Reset clears the persisted job id, stops polling and returns to Idle
func (c *Coordinator) Reset() error {
	if err := c.store.Remove(kvstore.ActiveJobIDKey); err != nil {
		return fmt.Errorf("failed to clear persisted job id: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPolling()
	if c.job.State != StateIdle {
		c.transition(Job{State: StateIdle})
	}
	return nil
}

// Wait blocks until the job leaves Submitting and Polling, or ctx is done
func (c *Coordinator) Wait(ctx context.Context) (Job, error) {
	for {
		c.mu.Lock()
		job := c.job
		changed := c.changed
		c.mu.Unlock()

		if job.State != StateSubmitting && job.State != StatePolling {
			return job, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return job, ctx.Err()
		}
	}
}

// Changes returns a channel closed at the next state transition
func (c *Coordinator) Changes() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Close stops the poll loop and waits for it and pending notifications to finish.
// The coordinator cannot be used afterwards.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.epoch++
	poller := c.poller
	c.poller = nil
	c.mu.Unlock()

	c.cancel()
	if poller != nil {
		<-poller.Done()
	}
	c.notifyPool.StopWait()
}

// startPolling must be called with mu held
func (c *Coordinator) startPolling(jobID string) {
	c.stopPolling()
	epoch := c.epoch
	c.transition(Job{ID: jobID, State: StatePolling})
	c.poller = schedule.Every(c.ctx, c.interval, func(ctx context.Context) bool {
		return c.poll(ctx, epoch, jobID)
	})
}

// stopPolling cancels the active loop and invalidates its in-flight results.
// It must be called with mu held.
func (c *Coordinator) stopPolling() {
	c.epoch++
	c.poller.Stop()
	c.poller = nil
}

func (c *Coordinator) poll(ctx context.Context, epoch uint64, jobID string) bool {
	report, err := c.service.Status(ctx, jobID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || ctx.Err() != nil {
		return false
	}

	if err != nil {
		c.transition(Job{ID: jobID, State: StateFailed, Failure: failure.New(failure.Polling, err)})
		return false
	}

	switch report.Status {
	case RemoteCompleted:
		if report.ArtifactID == "" {
			c.transition(Job{
				ID:      jobID,
				State:   StateFailed,
				Failure: failure.Newf(failure.Generation, "job %s completed without an artifact id", jobID),
			})
			return false
		}
		c.transition(Job{ID: jobID, State: StateCompleted, ArtifactID: report.ArtifactID})
		return false
	case RemoteFailed:
		c.transition(Job{
			ID:      jobID,
			State:   StateFailed,
			Failure: failure.Newf(failure.Generation, "generation of job %s failed", jobID),
		})
		return false
	default:
		c.logger.V(1).Info("Job still processing", "jobId", jobID, "status", report.Status)
		return true
	}
}

// transition must be called with mu held
func (c *Coordinator) transition(next Job) {
	c.job = next
	close(c.changed)
	c.changed = make(chan struct{})

	if next.Failure != nil {
		c.logger.Info("Job state changed", "jobId", next.ID, "state", next.State, "reason", next.Failure.Kind, "cause", next.Failure.Reason())
	} else {
		c.logger.Info("Job state changed", "jobId", next.ID, "state", next.State, "artifactId", next.ArtifactID)
	}

	if c.closed || len(c.notifiers) == 0 {
		return
	}
	notifiers := c.notifiers
	c.notifyPool.Submit(func() {
		for _, n := range notifiers {
			n.JobChanged(next)
		}
	})
}
