package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fieldvue/dispatch-api/internal/models"
	"github.com/fieldvue/dispatch-api/internal/repository"
	"github.com/fieldvue/dispatch-api/internal/service"
	"github.com/fieldvue/dispatch-api/pkg/response"
)

// ResourceHandler serves the resource roster and per-resource feeds.
type ResourceHandler struct {
	repo     *repository.ResourceRepository
	calendar *service.CalendarService
}

// NewResourceHandler constructs handler.
func NewResourceHandler(repo *repository.ResourceRepository, calendar *service.CalendarService) *ResourceHandler {
	return &ResourceHandler{repo: repo, calendar: calendar}
}

// List godoc
// @Summary List resources
// @Tags Resources
// @Produce json
// @Param search query string false "Name search"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	var filter models.ResourceFilter
	filter.Search = c.Query("search")
	if raw := c.Query("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = limit
	}

	resources, total, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resources, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Load one resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	resource, err := h.repo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resource, nil)
}

// Feed godoc
// @Summary iCalendar feed for one resource
// @Tags Resources
// @Produce text/calendar
// @Param id path string true "Resource ID"
// @Success 200 {string} string "iCalendar document"
// @Router /resources/{id}/feed.ics [get]
func (h *ResourceHandler) Feed(c *gin.Context) {
	feed, err := h.calendar.ResourceFeed(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="schedule.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", feed)
}
