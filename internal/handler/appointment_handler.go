package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldvue/dispatch-api/internal/dto"
	"github.com/fieldvue/dispatch-api/internal/models"
	"github.com/fieldvue/dispatch-api/internal/service"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
	"github.com/fieldvue/dispatch-api/pkg/response"
)

// AppointmentHandler manages appointment read and mutation endpoints.
type AppointmentHandler struct {
	service  *service.AppointmentService
	board    *service.BoardService
	mutation *service.MutationService
}

// NewAppointmentHandler constructs handler.
func NewAppointmentHandler(svc *service.AppointmentService, board *service.BoardService, mutation *service.MutationService) *AppointmentHandler {
	return &AppointmentHandler{service: svc, board: board, mutation: mutation}
}

// List godoc
// @Summary List appointments
// @Tags Appointments
// @Produce json
// @Param resourceId query string false "Filter by resource"
// @Param status query string false "Filter by status"
// @Param priority query string false "Filter by priority"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	var filter models.AppointmentFilter
	filter.ResourceID = c.Query("resourceId")
	filter.Status = c.Query("status")
	filter.Priority = c.Query("priority")
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = t
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	appts, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appts, pagination)
}

// Unassigned godoc
// @Summary List the unassigned pool in its current order
// @Tags Appointments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /appointments/unassigned [get]
func (h *AppointmentHandler) Unassigned(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.board.Pool(), nil)
}

// Get godoc
// @Summary Load one appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	appt, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Create godoc
// @Summary Create an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.CreateAppointmentRequest true "Appointment"
// @Success 201 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req service.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid appointment payload"))
		return
	}
	appt, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appt)
}

// Delete godoc
// @Summary Delete an appointment
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Success 204
// @Router /appointments/{id} [delete]
func (h *AppointmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Move godoc
// @Summary Reassign and retime an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/move [post]
func (h *AppointmentHandler) Move(c *gin.Context) {
	var req service.MoveAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid move payload"))
		return
	}
	req.ID = c.Param("id")
	appt, err := h.mutation.Move(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Assign godoc
// @Summary Schedule a pool appointment onto a resource
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/assign [post]
func (h *AppointmentHandler) Assign(c *gin.Context) {
	var req service.AssignAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assign payload"))
		return
	}
	req.ID = c.Param("id")
	appt, err := h.mutation.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Unassign godoc
// @Summary Return an appointment to the pool
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/unassign [post]
func (h *AppointmentHandler) Unassign(c *gin.Context) {
	appt, err := h.mutation.Unassign(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// Retime godoc
// @Summary Change an appointment's times on its current resource
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/retime [post]
func (h *AppointmentHandler) Retime(c *gin.Context) {
	var req service.RetimeAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid retime payload"))
		return
	}
	req.ID = c.Param("id")
	appt, err := h.mutation.Retime(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appt, nil)
}

// ReorderPool godoc
// @Summary Reposition an item inside the unassigned pool
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/reorder [post]
func (h *AppointmentHandler) ReorderPool(c *gin.Context) {
	var req dto.PoolReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reorder payload"))
		return
	}
	if !h.board.ReorderPool(c.Param("id"), req.ToIndex) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "appointment is not in the pool"))
		return
	}
	response.JSON(c, http.StatusOK, h.board.Pool(), nil)
}
