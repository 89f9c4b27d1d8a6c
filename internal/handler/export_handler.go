package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldvue/dispatch-api/internal/service"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
	"github.com/fieldvue/dispatch-api/pkg/response"
)

// ExportHandler manages asynchronous day-sheet exports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Request godoc
// @Summary Queue a day-sheet export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body service.DaySheetRequest true "Export parameters"
// @Success 202 {object} response.Envelope
// @Router /exports/day-sheet [post]
func (h *ExportHandler) Request(c *gin.Context) {
	var req service.DaySheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid export payload"))
		return
	}
	requestedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		requestedBy = claims.Subject
	}
	job, err := h.exports.Request(req, requestedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Inspect an export job
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.exports.Job(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a completed export
// @Tags Exports
// @Produce application/octet-stream
// @Param id path string true "Job ID"
// @Success 200 {file} binary
// @Router /exports/{id}/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	path, err := h.exports.File(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, "day-sheet")
}
