package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetArtifact returns metadata of the completed job's artifact
func (h *Handler) GetArtifact(c *gin.Context) {
	artifact, err := h.artifacts.Current(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, artifact)
}

// ArchiveArtifact copies the artifact binary into object storage
func (h *Handler) ArchiveArtifact(c *gin.Context) {
	if !h.archive {
		sendError(c, http.StatusServiceUnavailable, errArchiveDisabled)
		return
	}

	archived, err := h.artifacts.Archive(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusCreated, gin.H{
		"artifactId":  archived.Artifact.ID,
		"bucket":      archived.Bucket,
		"object":      archived.Object,
		"contentType": archived.ContentType,
		"size":        archived.Size,
	})
}
