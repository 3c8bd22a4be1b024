package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"adwise/src/core/connection"
)

type ConnectRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
}

// ConnectionsResponse is the connection record plus the derived aggregate
type ConnectionsResponse struct {
	connection.Record
	AllConnected bool `json:"allConnected"`
}

// GetConnections returns the persisted connection record
func (h *Handler) GetConnections(c *gin.Context) {
	h.respondConnections(c)
}

// Connect completes the connect flow for a platform
func (h *Handler) Connect(c *gin.Context) {
	platform, err := connection.ParsePlatform(c.Param("platform"))
	if err != nil {
		sendError(c, http.StatusNotFound, err)
		return
	}

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	creds := connection.Credentials{
		Username:    req.Username,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	}
	if err := h.connections.Connect(platform, creds); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	h.respondConnections(c)
}

// Disconnect clears a platform's connected flag
func (h *Handler) Disconnect(c *gin.Context) {
	platform, err := connection.ParsePlatform(c.Param("platform"))
	if err != nil {
		sendError(c, http.StatusNotFound, err)
		return
	}

	if err := h.connections.Disconnect(platform); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	h.respondConnections(c)
}

func (h *Handler) respondConnections(c *gin.Context) {
	record, err := h.connections.Snapshot()
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, ConnectionsResponse{
		Record:       record,
		AllConnected: record.AllConnected(),
	})
}
