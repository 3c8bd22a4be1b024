package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"adwise/src/core/failure"
	"adwise/src/core/job"
)

// JobResponse is the JSON view of the tracked job
type JobResponse struct {
	ID            string `json:"id,omitempty"`
	State         string `json:"state"`
	ArtifactID    string `json:"artifactId,omitempty"`
	FailureKind   string `json:"failureKind,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
}

func newJobResponse(j job.Job) JobResponse {
	resp := JobResponse{
		ID:         j.ID,
		State:      string(j.State),
		ArtifactID: j.ArtifactID,
	}
	if j.Failure != nil {
		resp.FailureKind = string(j.Failure.Kind)
		resp.FailureReason = j.Failure.Reason()
	}
	return resp
}

// GetJob returns the tracked job
func (h *Handler) GetJob(c *gin.Context) {
	sendJSON(c, http.StatusOK, newJobResponse(h.jobs.Job()))
}

// SubmitJob accepts a multipart form with either a file or text plus the
// language and contentPreference fields.
func (h *Handler) SubmitJob(c *gin.Context) {
	payload, err := payloadFromForm(c)
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	if err := h.jobs.Submit(c.Request.Context(), payload); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusAccepted, newJobResponse(h.jobs.Job()))
}

// ResumeJob restarts tracking of the persisted job id
func (h *Handler) ResumeJob(c *gin.Context) {
	if err := h.jobs.Resume(); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, newJobResponse(h.jobs.Job()))
}

// ResetJob clears the persisted job id and returns to idle
func (h *Handler) ResetJob(c *gin.Context) {
	if err := h.jobs.Reset(); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, newJobResponse(h.jobs.Job()))
}

func payloadFromForm(c *gin.Context) (job.Payload, error) {
	language, err := job.ParseLanguage(c.PostForm("language"))
	if err != nil {
		return job.Payload{}, err
	}
	preference, err := job.ParseContentPreference(c.PostForm("contentPreference"))
	if err != nil {
		return job.Payload{}, err
	}

	header, err := c.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return job.Payload{}, failure.Newf(failure.Validation, "invalid file upload: %v", err)
	}
	if header == nil {
		return job.NewTextPayload(c.PostForm("text"), language, preference)
	}
	if strings.TrimSpace(c.PostForm("text")) != "" {
		return job.Payload{}, failure.Newf(failure.Validation, "provide either a file or text, not both")
	}

	file, err := header.Open()
	if err != nil {
		return job.Payload{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return job.Payload{}, fmt.Errorf("failed to read upload: %w", err)
	}

	return job.NewFilePayload(job.FileSource{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, language, preference)
}
