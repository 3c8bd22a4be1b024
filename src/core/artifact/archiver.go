// Package artifact retrieves the output of a completed job and copies its binary
// into object storage.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/go-logr/logr"

	"adwise/src/core/failure"
	"adwise/src/core/job"
	"adwise/src/infrastructure/integrations/generation"
	"adwise/src/log"
)

var ErrNoFile = errors.New("artifact has no file")

// Fetcher reads artifact metadata and content from the Generation Service
type Fetcher interface {
	Artifact(ctx context.Context, artifactID string) (*generation.Artifact, error)
	OpenFile(ctx context.Context, fileURL string) (io.ReadCloser, string, int64, error)
}

// Sink stores artifact binaries
type Sink interface {
	EnsureBucketExists(ctx context.Context, bucketName string) error
	PutObject(ctx context.Context, bucketName, objectName string, r io.Reader, size int64, contentType string) (int64, error)
}

// JobSource exposes the tracked job
type JobSource interface {
	Job() job.Job
}

// Archived describes a stored artifact
type Archived struct {
	Artifact    generation.Artifact
	Bucket      string
	Object      string
	ContentType string
	Size        int64
}

type Archiver struct {
	jobs    JobSource
	fetcher Fetcher
	sink    Sink
	bucket  string
	logger  logr.Logger
}

func NewArchiver(jobs JobSource, fetcher Fetcher, sink Sink, bucket string) *Archiver {
	return &Archiver{
		jobs:    jobs,
		fetcher: fetcher,
		sink:    sink,
		bucket:  bucket,
		logger:  log.WithName("artifact"),
	}
}

// Current fetches metadata of the completed job's artifact
func (a *Archiver) Current(ctx context.Context) (*generation.Artifact, error) {
	j := a.jobs.Job()
	if j.State != job.StateCompleted || j.ArtifactID == "" {
		return nil, failure.Newf(failure.Precondition, "job is %s, not completed", j.State)
	}

	artifact, err := a.fetcher.Artifact(ctx, j.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artifact %s: %w", j.ArtifactID, err)
	}
	return artifact, nil
}

// Archive streams the completed job's artifact into the bucket under
// <jobId>/<artifactId><ext>.
func (a *Archiver) Archive(ctx context.Context) (*Archived, error) {
	artifact, err := a.Current(ctx)
	if err != nil {
		return nil, err
	}
	if artifact.FileURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoFile, artifact.ID)
	}

	body, contentType, size, err := a.fetcher.OpenFile(ctx, artifact.FileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact %s: %w", artifact.ID, err)
	}
	defer body.Close()

	if err := a.sink.EnsureBucketExists(ctx, a.bucket); err != nil {
		return nil, err
	}

	object := objectName(a.jobs.Job().ID, artifact)
	written, err := a.sink.PutObject(ctx, a.bucket, object, body, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to archive artifact %s: %w", artifact.ID, err)
	}

	a.logger.Info("Artifact archived", "artifactId", artifact.ID, "bucket", a.bucket, "object", object, "size", written)
	return &Archived{
		Artifact:    *artifact,
		Bucket:      a.bucket,
		Object:      object,
		ContentType: contentType,
		Size:        written,
	}, nil
}

func objectName(jobID string, artifact *generation.Artifact) string {
	ext := ""
	if u, err := url.Parse(artifact.FileURL); err == nil {
		ext = path.Ext(u.Path)
	}
	return path.Join(jobID, artifact.ID+ext)
}
