package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"adwise/src/core/artifact"
	"adwise/src/core/connection"
	"adwise/src/core/distribution"
	"adwise/src/core/failure"
	"adwise/src/core/job"
	"adwise/src/infrastructure/integrations/generation"
)

// JobService drives the tracked generation job
type JobService interface {
	Job() job.Job
	Submit(ctx context.Context, payload job.Payload) error
	Resume() error
	Reset() error
}

// ArtifactService reads and archives the completed job's artifact
type ArtifactService interface {
	Current(ctx context.Context) (*generation.Artifact, error)
	Archive(ctx context.Context) (*artifact.Archived, error)
}

// DistributionService triggers distribution actions
type DistributionService interface {
	Dispatch(ctx context.Context, kind distribution.Kind) distribution.Outcome
	FanOut(ctx context.Context, kinds ...distribution.Kind) []distribution.Outcome
}

// ConnectionService reads and updates platform connections
type ConnectionService interface {
	Snapshot() (connection.Record, error)
	Connect(p connection.Platform, creds connection.Credentials) error
	Disconnect(p connection.Platform) error
}

var errArchiveDisabled = errors.New("artifact archive is not configured")

type Handler struct {
	jobs         JobService
	artifacts    ArtifactService
	distribution DistributionService
	connections  ConnectionService
	archive      bool
}

// NewHandler wires the services. Archiving is only exposed when archive is true.
func NewHandler(jobs JobService, artifacts ArtifactService, dist DistributionService, connections ConnectionService, archive bool) *Handler {
	return &Handler{
		jobs:         jobs,
		artifacts:    artifacts,
		distribution: dist,
		connections:  connections,
		archive:      archive,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	// Job routes
	v1.GET("/job", h.GetJob)
	v1.POST("/job", h.SubmitJob)
	v1.POST("/job/resume", h.ResumeJob)
	v1.DELETE("/job", h.ResetJob)

	// Artifact routes
	v1.GET("/artifact", h.GetArtifact)
	v1.POST("/artifact/archive", h.ArchiveArtifact)

	// Distribution routes
	v1.POST("/distribution", h.FanOut)
	v1.POST("/distribution/:kind", h.Distribute)

	// Connection routes
	v1.GET("/connections", h.GetConnections)
	v1.POST("/connections/:platform", h.Connect)
	v1.DELETE("/connections/:platform", h.Disconnect)

	// System routes
	v1.GET("/health", h.CheckHealth)
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func sendError(c *gin.Context, status int, err error) {
	code := "INTERNAL_ERROR"
	if status >= 400 && status < 500 {
		code = "BAD_REQUEST"
	}
	if kind, ok := failure.KindOf(err); ok {
		code = string(kind)
		switch kind {
		case failure.Validation:
			status = http.StatusBadRequest
		case failure.Precondition:
			status = http.StatusConflict
		default:
			status = http.StatusBadGateway
		}
	}

	switch {
	case errors.Is(err, job.ErrInvalidTransition):
		code = "INVALID_TRANSITION"
		status = http.StatusConflict
	case errors.Is(err, job.ErrSuperseded):
		code = "SUPERSEDED"
		status = http.StatusConflict
	case errors.Is(err, job.ErrClosed), errors.Is(err, errArchiveDisabled):
		code = "UNAVAILABLE"
		status = http.StatusServiceUnavailable
	case errors.Is(err, connection.ErrUnknownPlatform):
		code = "NOT_FOUND"
		status = http.StatusNotFound
	case errors.Is(err, connection.ErrInvalidCredentials):
		code = "INVALID_CREDENTIALS"
		status = http.StatusBadRequest
	}

	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// CheckHealth reports the state of the local client
func (h *Handler) CheckHealth(c *gin.Context) {
	sendJSON(c, http.StatusOK, gin.H{
		"status":   "ok",
		"jobState": h.jobs.Job().State,
	})
}
