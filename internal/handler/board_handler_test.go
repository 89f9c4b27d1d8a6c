package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fieldvue/dispatch-api/internal/models"
	"github.com/fieldvue/dispatch-api/internal/service"
	"github.com/fieldvue/dispatch-api/pkg/config"
)

// newBoardRouter wires the board view stack over in-memory fakes, with the
// buffer window centered on handlerDay.
func newBoardRouter(t *testing.T) (*gin.Engine, *service.BufferWindowService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	timeline := config.TimelineConfig{
		HourWidth:       80,
		CardHeight:      48,
		LaneGap:         4,
		LanePadding:     8,
		SnapMinutes:     15,
		MinDuration:     15 * time.Minute,
		DefaultDuration: 2 * time.Hour,
		MinVisualWidth:  12,
	}
	layout := service.NewLayoutService(timeline, nil)
	travel := service.NewTravelGapService(config.TravelConfig{
		AverageSpeedMph:      25,
		MinGapMinutes:        15,
		MinTravelMinutes:     5,
		DefaultTravelMinutes: 15,
		TightFactor:          1.5,
		InsufficientFactor:   1.0,
	}, nil)
	buffer := service.NewBufferWindowService(config.BufferConfig{
		InitialDays:         3,
		ExtendDays:          2,
		GuardMargin:         36 * time.Hour,
		ScrollEdgeThreshold: 300,
	}, timeline, handlerDay, nil)
	virt := service.NewVirtualizerService(config.VirtualizerConfig{Overscan: 200}, nil)
	recurrence := service.NewRecurrenceService(nil)

	repo := &boardRepoFake{scheduled: []models.Appointment{{
		ID:         "appt-1",
		Title:      "Install",
		ResourceID: sql.NullString{String: "res-1", Valid: true},
		StartTime:  handlerDay.Add(9 * time.Hour),
		EndTime:    handlerDay.Add(10 * time.Hour),
		Status:     models.StatusScheduled,
		Priority:   models.PriorityMedium,
	}}}
	resources := &resourceRepoFake{resources: []models.Resource{
		{ID: "res-1", DisplayName: "Alice", Active: true},
	}}

	board := service.NewBoardService(layout, travel, buffer, virt, recurrence, repo, resources, nil, nil, nil)
	require.NoError(t, board.Refresh(context.Background()))

	h := NewBoardHandler(board, virt, nil)
	r := gin.New()
	r.GET("/board", h.View)
	return r, buffer
}

func getBoard(t *testing.T, r *gin.Engine, path string) (*httptest.ResponseRecorder, service.BoardView) {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)

	var envelope struct {
		Data service.BoardView `json:"data"`
	}
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	}
	return w, envelope.Data
}

func TestBoardViewDefaultsToCurrentWindow(t *testing.T) {
	r, buffer := newBoardRouter(t)
	before := buffer.Window()

	w, view := getBoard(t, r, "/board")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, view.Window.Start.Equal(before.Start))
	require.True(t, view.Window.End.Equal(before.End))
	require.Len(t, view.Lanes, 1)
}

func TestBoardViewFocusJumpExtendsWindow(t *testing.T) {
	r, buffer := newBoardRouter(t)

	jump := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.False(t, buffer.Window().Contains(jump))

	w, view := getBoard(t, r, "/board?date=2026-05-01")
	require.Equal(t, http.StatusOK, w.Code)

	// Navigating to a day outside the materialized range must grow the
	// window until that day sits inside it, guard margin included.
	require.True(t, view.Window.Contains(jump))
	require.GreaterOrEqual(t, view.Window.End.Sub(jump), 36*time.Hour)
	require.True(t, buffer.Window().Contains(jump))
}

func TestBoardViewRangeMaterializesBothEnds(t *testing.T) {
	r, _ := newBoardRouter(t)

	w, view := getBoard(t, r, "/board?from=2026-02-01&to=2026-03-20")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, view.Window.Contains(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
	// The `to` day is inclusive, so its final hour is materialized too.
	require.True(t, view.Window.Contains(time.Date(2026, 3, 20, 23, 0, 0, 0, time.UTC)))
}

func TestBoardViewRejectsBadQuery(t *testing.T) {
	r, _ := newBoardRouter(t)

	w, _ := getBoard(t, r, "/board?date=yesterday")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = getBoard(t, r, "/board?from=2026-03-05&to=2026-03-01")
	require.Equal(t, http.StatusBadRequest, w.Code)
}
