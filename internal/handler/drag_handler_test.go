package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
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

var handlerDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type boardRepoFake struct {
	scheduled  []models.Appointment
	unassigned []models.Appointment
}

func (f *boardRepoFake) ListInRange(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	return append([]models.Appointment{}, f.scheduled...), nil
}

func (f *boardRepoFake) ListUnassigned(ctx context.Context) ([]models.Appointment, error) {
	return append([]models.Appointment{}, f.unassigned...), nil
}

func (f *boardRepoFake) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	return nil, sql.ErrNoRows
}

type resourceRepoFake struct {
	resources []models.Resource
}

func (f *resourceRepoFake) ListActive(ctx context.Context) ([]models.Resource, error) {
	return append([]models.Resource{}, f.resources...), nil
}

type remoteFake struct{}

func (remoteFake) Move(ctx context.Context, id, resourceID string, start, end time.Time) error {
	return nil
}

func (remoteFake) Assign(ctx context.Context, id, resourceID string, start, end time.Time) error {
	return nil
}

func (remoteFake) Unassign(ctx context.Context, id string) error { return nil }

func (remoteFake) Retime(ctx context.Context, id string, start, end time.Time) error { return nil }

// newDragRouter wires the full drag stack over in-memory fakes and returns a
// router exposing the drag routes the gateway registers.
func newDragRouter(t *testing.T) *gin.Engine {
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

	appt := models.Appointment{
		ID:         "appt-1",
		Title:      "Install",
		ResourceID: sql.NullString{String: "res-1", Valid: true},
		StartTime:  handlerDay.Add(9 * time.Hour),
		EndTime:    handlerDay.Add(10 * time.Hour),
		Status:     models.StatusScheduled,
		Priority:   models.PriorityMedium,
	}
	repo := &boardRepoFake{scheduled: []models.Appointment{appt}}
	resources := &resourceRepoFake{resources: []models.Resource{
		{ID: "res-1", DisplayName: "Alice", Active: true},
		{ID: "res-2", DisplayName: "Bram", Active: true},
	}}

	board := service.NewBoardService(layout, travel, buffer, virt, recurrence, repo, resources, nil, nil, nil)
	require.NoError(t, board.Refresh(context.Background()))
	_, err := board.View(context.Background())
	require.NoError(t, err)

	gateway := service.NewMutationService(board, remoteFake{}, nil, nil, nil)
	sessions := service.NewDragSessionService(board, buffer, virt, gateway, service.NewAutoScrollPhysics(config.AutoScrollConfig{
		EdgeBand:     200,
		InnerBand:    80,
		MinSpeed:     8,
		MaxSpeed:     45,
		Acceleration: 2.5,
	}), timeline, nil, nil)
	sessions.SetFrameInterval(time.Millisecond)

	h := NewDragHandler(sessions)
	r := gin.New()
	r.POST("/drag/start", h.Start)
	r.GET("/drag/:id", h.Get)
	r.POST("/drag/:id/move", h.Move)
	r.POST("/drag/:id/drop", h.Drop)
	r.POST("/drag/:id/cancel", h.Cancel)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestDragHandlerStartValidation(t *testing.T) {
	r := newDragRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/drag/start", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDragHandlerLifecycle(t *testing.T) {
	r := newDragRouter(t)

	w := postJSON(t, r, "/drag/start", service.BeginDragRequest{
		AppointmentID: "appt-1",
		Pointer:       models.PointerPosition{X: 720, Y: 30},
		ScrollLeft:    5760,
		ViewWidth:     1200,
		ViewHeight:    800,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var started struct {
		Data service.DragSessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.NotEmpty(t, started.Data.ID)
	require.Equal(t, models.DragActive, started.Data.State)

	// Drop one slot to the right on the second resource row.
	w = postJSON(t, r, fmt.Sprintf("/drag/%s/drop", started.Data.ID), service.DropDragRequest{
		Pointer: models.PointerPosition{X: 960, Y: 90},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var dropped struct {
		Data service.DropResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dropped))
	require.Equal(t, models.CommitMove, dropped.Data.Kind)
	require.NotNil(t, dropped.Data.Appointment)
	require.Equal(t, "res-2", dropped.Data.Appointment.ResourceID.String)

	// The session is gone once the drop resolves.
	w2 := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/drag/"+started.Data.ID, nil)
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusNotFound, w2.Code)
}

func TestDragHandlerCancelUnknownSession(t *testing.T) {
	r := newDragRouter(t)

	w := postJSON(t, r, "/drag/ghost/cancel", struct{}{})
	require.Equal(t, http.StatusNotFound, w.Code)
}
