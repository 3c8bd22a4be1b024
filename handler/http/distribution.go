package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"adwise/src/core/distribution"
	"adwise/src/core/failure"
)

// OutcomeResponse is the JSON view of one distribution action
type OutcomeResponse struct {
	ID            int64    `json:"id,string"`
	Kind          string   `json:"kind"`
	JobID         string   `json:"jobId,omitempty"`
	Succeeded     bool     `json:"succeeded"`
	PosterRefs    []string `json:"posterRefs,omitempty"`
	FailureKind   string   `json:"failureKind,omitempty"`
	FailureReason string   `json:"failureReason,omitempty"`
}

type FanOutRequest struct {
	Kinds []string `json:"kinds"`
}

func newOutcomeResponse(o distribution.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		ID:         o.ID,
		Kind:       string(o.Kind),
		JobID:      o.JobID,
		Succeeded:  o.Succeeded(),
		PosterRefs: o.PosterRefs,
	}
	if o.Err != nil {
		resp.FailureKind = string(o.Err.Kind)
		resp.FailureReason = o.Err.Reason()
	}
	return resp
}

// Distribute runs one distribution action. A failed action answers with the
// status of its failure kind and still carries the outcome body.
func (h *Handler) Distribute(c *gin.Context) {
	kind, err := distribution.ParseKind(c.Param("kind"))
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	outcome := h.distribution.Dispatch(c.Request.Context(), kind)
	if !outcome.Succeeded() {
		c.JSON(outcomeStatus(outcome), gin.H{
			"code":    string(outcome.Err.Kind),
			"message": outcome.Err.Error(),
			"details": newOutcomeResponse(outcome),
		})
		return
	}
	sendJSON(c, http.StatusOK, newOutcomeResponse(outcome))
}

// FanOut runs several actions concurrently. The response is always 200 with one
// outcome per requested kind; an empty request runs every action.
func (h *Handler) FanOut(c *gin.Context) {
	var req FanOutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			sendError(c, http.StatusBadRequest, err)
			return
		}
	}

	kinds := make([]distribution.Kind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kind, err := distribution.ParseKind(k)
		if err != nil {
			sendError(c, http.StatusBadRequest, err)
			return
		}
		kinds = append(kinds, kind)
	}

	outcomes := h.distribution.FanOut(c.Request.Context(), kinds...)
	resp := make([]OutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		resp = append(resp, newOutcomeResponse(o))
	}
	sendJSON(c, http.StatusOK, resp)
}

func outcomeStatus(o distribution.Outcome) int {
	switch o.Reason() {
	case "":
		return http.StatusOK
	case failure.Precondition:
		return http.StatusConflict
	case failure.Validation:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
