package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/travel-behavior-backend-go/internal/models"
	"github.com/jengzang/travel-behavior-backend-go/internal/service"
	"github.com/jengzang/travel-behavior-backend-go/pkg/response"
)

// SnapshotHandler handles snapshot ingestion
type SnapshotHandler struct {
	service *service.SnapshotService
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(service *service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{service: service}
}

// IngestSnapshotsRequest is the body of POST /api/v1/users/:userId/snapshots
type IngestSnapshotsRequest struct {
	Snapshots []models.RawSnapshot `json:"snapshots" binding:"required,min=1"`
}

// IngestDeviceSnapshotsRequest is the body of POST /api/v1/users/:userId/device-snapshots
type IngestDeviceSnapshotsRequest struct {
	DeviceSnapshots []models.DeviceSnapshot `json:"device_snapshots" binding:"required,min=1"`
}

// IngestSnapshots handles POST /api/v1/users/:userId/snapshots
func (h *SnapshotHandler) IngestSnapshots(c *gin.Context) {
	var req IngestSnapshotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resp, err := h.service.IngestSnapshots(c.Request.Context(), c.Param("userId"), req.Snapshots)
	if err != nil {
		ingestError(c, err)
		return
	}

	response.Created(c, resp)
}

// IngestDeviceSnapshots handles POST /api/v1/users/:userId/device-snapshots
func (h *SnapshotHandler) IngestDeviceSnapshots(c *gin.Context) {
	var req IngestDeviceSnapshotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	resp, err := h.service.IngestDeviceSnapshots(c.Request.Context(), c.Param("userId"), req.DeviceSnapshots)
	if err != nil {
		ingestError(c, err)
		return
	}

	response.Created(c, resp)
}

func ingestError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidSnapshot) {
		response.Error(c, http.StatusBadRequest, "Invalid snapshot", err)
		return
	}
	response.Error(c, http.StatusInternalServerError, "Failed to store snapshots", err)
}
