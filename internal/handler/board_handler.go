package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldvue/dispatch-api/internal/dto"
	"github.com/fieldvue/dispatch-api/internal/service"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
	"github.com/fieldvue/dispatch-api/pkg/response"
)

// BoardHandler serves the derived board projection.
type BoardHandler struct {
	board  *service.BoardService
	virt   *service.VirtualizerService
	render *service.RenderService
}

// NewBoardHandler constructs handler.
func NewBoardHandler(board *service.BoardService, virt *service.VirtualizerService, render *service.RenderService) *BoardHandler {
	return &BoardHandler{board: board, virt: virt, render: render}
}

// View godoc
// @Summary Current board view
// @Description Positioned lanes, the unassigned pool and the virtualizer table. A date or range outside the materialized window extends the window before the view is built.
// @Tags Board
// @Produce json
// @Param date query string false "Focus day, YYYY-MM-DD"
// @Param from query string false "Range start, YYYY-MM-DD"
// @Param to query string false "Range end, YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /board [get]
func (h *BoardHandler) View(c *gin.Context) {
	var query dto.BoardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid board query"))
		return
	}
	req, err := boardViewRequest(query)
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.board.ViewFor(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// boardViewRequest parses the day-precision focus parameters. The `to` day is
// inclusive, so its guard point is the end of that day.
func boardViewRequest(query dto.BoardQuery) (service.BoardViewRequest, error) {
	var req service.BoardViewRequest
	parse := func(name, raw string) (*time.Time, error) {
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s %q, want YYYY-MM-DD", name, raw))
		}
		return &t, nil
	}

	focus, err := parse("date", query.Date)
	if err != nil {
		return req, err
	}
	from, err := parse("from", query.From)
	if err != nil {
		return req, err
	}
	to, err := parse("to", query.To)
	if err != nil {
		return req, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return req, appErrors.Clone(appErrors.ErrValidation, "to must not precede from")
	}
	if to != nil {
		end := to.AddDate(0, 0, 1)
		to = &end
	}

	req.Focus = focus
	req.From = from
	req.To = to
	return req, nil
}

// Virtualization godoc
// @Summary Visible resource rows for a viewport
// @Tags Board
// @Produce json
// @Param scroll_top query number false "Scroll offset"
// @Param view_height query number true "Viewport height"
// @Success 200 {object} response.Envelope
// @Router /board/virtualization [get]
func (h *BoardHandler) Virtualization(c *gin.Context) {
	var query dto.VirtualizationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "view_height is required"))
		return
	}

	// Rebuild happens inside View; the query only reads the current table.
	if _, err := h.board.View(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}

	visible := h.virt.Visible(query.ScrollTop, query.ViewHeight)
	offsets := h.virt.Offsets()
	resp := dto.VirtualizationResponse{
		First:       visible.First,
		Last:        visible.Last,
		TotalHeight: h.virt.TotalHeight(),
		Stripes:     make([]dto.ResourceStripe, 0, len(offsets)),
	}
	for _, off := range offsets {
		resp.Stripes = append(resp.Stripes, dto.ResourceStripe{
			ResourceID: off.ResourceID,
			Top:        off.Top,
			Bottom:     off.Bottom,
		})
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// SVG godoc
// @Summary Static SVG snapshot of the board
// @Tags Board
// @Produce image/svg+xml
// @Success 200 {string} string "SVG document"
// @Router /board/svg [get]
func (h *BoardHandler) SVG(c *gin.Context) {
	rendered, err := h.render.BoardSVG(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", rendered)
}

// Refresh godoc
// @Summary Reconcile local board state against the data source
// @Tags Board
// @Produce json
// @Success 204
// @Router /board/refresh [post]
func (h *BoardHandler) Refresh(c *gin.Context) {
	if err := h.board.Refresh(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
