// Package distribution dispatches one-shot distribution actions against the
// completed job. Actions are never retried or sequenced; every call returns its
// own Outcome and partial success across actions is normal.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gammazero/workerpool"
	"github.com/go-logr/logr"

	"adwise/src/core/failure"
	"adwise/src/core/job"
	"adwise/src/log"
	"adwise/src/storage/kvstore"
)

// Kind identifies a distribution channel
type Kind string

const (
	Poster        Kind = "poster"
	Email         Kind = "email"
	SocialPublish Kind = "social-publish"
	Messaging     Kind = "messaging"
)

// Kinds lists every distribution action
var Kinds = []Kind{Poster, Email, SocialPublish, Messaging}

// ParseKind matches s against the known kinds
func ParseKind(s string) (Kind, error) {
	k, err := parseKind(s)
	if err != nil {
		return "", err
	}
	return k, nil
}

func parseKind(s string) (Kind, *failure.Error) {
	for _, k := range Kinds {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", failure.Newf(failure.Validation, "unknown distribution action %q", s)
}

// Service is the external Distribution Service
type Service interface {
	CreatePoster(ctx context.Context, jobID string) ([]string, error)
	SendEmail(ctx context.Context, jobID string) error
	PublishToSocial(ctx context.Context, jobID string) error
	SendMessage(ctx context.Context) error
}

// JobState exposes a snapshot of the tracked job
type JobState interface {
	Job() job.Job
}

// Notifier is told about every outcome
type Notifier interface {
	Dispatched(outcome Outcome)
}

// Outcome is the result of one distribution action. Err is nil on success.
type Outcome struct {
	ID         int64
	Kind       Kind
	JobID      string
	PosterRefs []string
	Err        *failure.Error
	Duration   time.Duration
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Reason returns the failure kind, or "" on success
func (o Outcome) Reason() failure.Kind {
	if o.Err == nil {
		return ""
	}
	return o.Err.Kind
}

var errNotCompleted = errors.New("no completed job")

// Dispatcher issues distribution actions against the persisted job id
type Dispatcher struct {
	store     kvstore.Store
	jobs      JobState
	service   Service
	node      *snowflake.Node
	logger    logr.Logger
	notifiers []Notifier
}

type Option func(*Dispatcher)

func WithLogger(l logr.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithNotifier registers n to receive every outcome
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
}

// NewDispatcher creates a dispatcher. jobs gates every action on a completed job
// whose id is still the persisted one.
func NewDispatcher(store kvstore.Store, jobs JobState, service Service, opts ...Option) (*Dispatcher, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}

	d := &Dispatcher{
		store:   store,
		jobs:    jobs,
		service: service,
		node:    node,
		logger:  log.WithName("distribution"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// GeneratePoster requests poster artifacts for the completed job
func (d *Dispatcher) GeneratePoster(ctx context.Context) Outcome {
	return d.Dispatch(ctx, Poster)
}

// SendEmail requests an email dispatch referencing the completed job
func (d *Dispatcher) SendEmail(ctx context.Context) Outcome {
	return d.Dispatch(ctx, Email)
}

// PublishToSocial requests a multi-network publish of the completed job
func (d *Dispatcher) PublishToSocial(ctx context.Context) Outcome {
	return d.Dispatch(ctx, SocialPublish)
}

// SendMessage requests a send over the messaging channel. The service does not
// need the job id but a completed job is still required.
func (d *Dispatcher) SendMessage(ctx context.Context) Outcome {
	return d.Dispatch(ctx, Messaging)
}

// Dispatch runs one action. The job id is read from the store on every call.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind) Outcome {
	start := time.Now()
	o := Outcome{ID: d.node.Generate().Int64(), Kind: kind}

	o.Err = d.run(ctx, &o)
	o.Duration = time.Since(start)
	d.report(o)
	return o
}

// FanOut runs the given actions concurrently and returns their outcomes in the
// order requested. One failing action never affects the others.
func (d *Dispatcher) FanOut(ctx context.Context, kinds ...Kind) []Outcome {
	if len(kinds) == 0 {
		kinds = Kinds
	}

	outcomes := make([]Outcome, len(kinds))
	wp := workerpool.New(len(kinds))
	for i, kind := range kinds {
		wp.Submit(func() {
			outcomes[i] = d.Dispatch(ctx, kind)
		})
	}
	wp.StopWait()
	return outcomes
}

func (d *Dispatcher) run(ctx context.Context, o *Outcome) *failure.Error {
	if _, err := parseKind(string(o.Kind)); err != nil {
		return err
	}

	jobID, err := d.completedJobID()
	if err != nil {
		return failure.New(failure.Precondition, err)
	}
	o.JobID = jobID

	switch o.Kind {
	case Poster:
		refs, err := d.service.CreatePoster(ctx, jobID)
		if err != nil {
			return failure.New(failure.PosterGeneration, err)
		}
		o.PosterRefs = refs
	case Email:
		if err := d.service.SendEmail(ctx, jobID); err != nil {
			return failure.New(failure.EmailDispatch, err)
		}
	case SocialPublish:
		if err := d.service.PublishToSocial(ctx, jobID); err != nil {
			return failure.New(failure.SocialPublish, err)
		}
	case Messaging:
		if err := d.service.SendMessage(ctx); err != nil {
			return failure.New(failure.MessagingDispatch, err)
		}
	}
	return nil
}

// completedJobID returns the persisted id only while it names the job this
// process saw complete. Another process may have stored a newer submission.
func (d *Dispatcher) completedJobID() (string, error) {
	tracked := d.jobs.Job()
	if tracked.State != job.StateCompleted {
		return "", fmt.Errorf("%w: job is %s", errNotCompleted, tracked.State)
	}

	stored, err := d.store.Get(kvstore.ActiveJobIDKey)
	if err != nil {
		return "", fmt.Errorf("failed to read persisted job id: %w", err)
	}
	jobID, ok := stored.Get()
	if !ok || jobID == "" {
		return "", fmt.Errorf("%w: no persisted job id", errNotCompleted)
	}
	if jobID != tracked.ID {
		return "", fmt.Errorf("%w: persisted job %s is not the completed job %s", errNotCompleted, jobID, tracked.ID)
	}
	return jobID, nil
}

func (d *Dispatcher) report(o Outcome) {
	if o.Err != nil {
		d.logger.Error(o.Err, "Distribution action failed", "id", o.ID, "kind", o.Kind, "jobId", o.JobID, "reason", o.Err.Kind)
	} else {
		d.logger.Info("Distribution action succeeded", "id", o.ID, "kind", o.Kind, "jobId", o.JobID, "duration", o.Duration)
	}

	for _, n := range d.notifiers {
		n.Dispatched(o)
	}
}
