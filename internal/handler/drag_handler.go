package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldvue/dispatch-api/internal/service"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
	"github.com/fieldvue/dispatch-api/pkg/response"
)

// DragHandler drives the drag session lifecycle over HTTP.
type DragHandler struct {
	sessions *service.DragSessionService
}

// NewDragHandler constructs handler.
func NewDragHandler(sessions *service.DragSessionService) *DragHandler {
	return &DragHandler{sessions: sessions}
}

// Start godoc
// @Summary Open a drag session for an appointment
// @Tags Drag
// @Accept json
// @Produce json
// @Param payload body service.BeginDragRequest true "Session parameters"
// @Success 201 {object} response.Envelope
// @Router /drag/start [post]
func (h *DragHandler) Start(c *gin.Context) {
	var req service.BeginDragRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid drag payload"))
		return
	}
	view, err := h.sessions.Begin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Move godoc
// @Summary Stream a pointer sample into a session
// @Description Samples are coalesced to one recompute per frame interval.
// @Tags Drag
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.MoveDragRequest true "Pointer sample"
// @Success 200 {object} response.Envelope
// @Router /drag/{id}/move [post]
func (h *DragHandler) Move(c *gin.Context) {
	var req service.MoveDragRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid pointer payload"))
		return
	}
	view, err := h.sessions.Move(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Drop godoc
// @Summary End a session at the current pointer position
// @Tags Drag
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.DropDragRequest true "Final pointer position"
// @Success 200 {object} response.Envelope
// @Router /drag/{id}/drop [post]
func (h *DragHandler) Drop(c *gin.Context) {
	var req service.DropDragRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid drop payload"))
		return
	}
	result, err := h.sessions.Drop(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Abandon a session without mutating anything
// @Tags Drag
// @Param id path string true "Session ID"
// @Success 204
// @Router /drag/{id}/cancel [post]
func (h *DragHandler) Cancel(c *gin.Context) {
	if err := h.sessions.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Inspect an open drag session
// @Tags Drag
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /drag/{id} [get]
func (h *DragHandler) Get(c *gin.Context) {
	view, err := h.sessions.Session(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
