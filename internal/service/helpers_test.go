package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldvue/dispatch-api/internal/models"
	"github.com/fieldvue/dispatch-api/pkg/config"
)

func testTimelineConfig() config.TimelineConfig {
	return config.TimelineConfig{
		HourWidth:       80,
		CardHeight:      48,
		LaneGap:         4,
		LanePadding:     8,
		SnapMinutes:     15,
		MinDuration:     15 * time.Minute,
		DefaultDuration: 2 * time.Hour,
		MinVisualWidth:  12,
	}
}

func testTravelConfig() config.TravelConfig {
	return config.TravelConfig{
		AverageSpeedMph:      25,
		MinGapMinutes:        15,
		MinTravelMinutes:     5,
		DefaultTravelMinutes: 15,
		TightFactor:          1.5,
		InsufficientFactor:   1.0,
	}
}

func testBufferConfig() config.BufferConfig {
	return config.BufferConfig{
		InitialDays:         3,
		ExtendDays:          2,
		GuardMargin:         36 * time.Hour,
		ScrollEdgeThreshold: 300,
	}
}

func testAutoScrollConfig() config.AutoScrollConfig {
	return config.AutoScrollConfig{
		EdgeBand:     200,
		InnerBand:    80,
		MinSpeed:     8,
		MaxSpeed:     45,
		Acceleration: 2.5,
	}
}

func appt(id, resourceID string, start, end time.Time) models.Appointment {
	a := models.Appointment{
		ID:        id,
		Title:     id,
		StartTime: start,
		EndTime:   end,
		Status:    models.StatusScheduled,
		Priority:  models.PriorityMedium,
	}
	if resourceID != "" {
		a.ResourceID = sql.NullString{String: resourceID, Valid: true}
	}
	return a
}

func apptAt(id, resourceID string, day time.Time, startHour, startMin, endHour, endMin int) models.Appointment {
	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, startMin, 0, 0, time.UTC)
	end := time.Date(day.Year(), day.Month(), day.Day(), endHour, endMin, 0, 0, time.UTC)
	return appt(id, resourceID, start, end)
}

type boardRepoStub struct {
	scheduled  []models.Appointment
	unassigned []models.Appointment
}

func (s *boardRepoStub) ListInRange(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	out := make([]models.Appointment, len(s.scheduled))
	copy(out, s.scheduled)
	return out, nil
}

func (s *boardRepoStub) ListUnassigned(ctx context.Context) ([]models.Appointment, error) {
	out := make([]models.Appointment, len(s.unassigned))
	copy(out, s.unassigned)
	return out, nil
}

func (s *boardRepoStub) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	for _, a := range append(append([]models.Appointment{}, s.scheduled...), s.unassigned...) {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type resourceRepoStub struct {
	resources []models.Resource
}

func (s *resourceRepoStub) ListActive(ctx context.Context) ([]models.Resource, error) {
	out := make([]models.Resource, len(s.resources))
	copy(out, s.resources)
	return out, nil
}

func resource(id, name string) models.Resource {
	return models.Resource{ID: id, DisplayName: name, Active: true}
}

// newTestBoard builds a fully wired board over stub repositories, focused on
// the given day, without redis or metrics.
func newTestBoard(focus time.Time, scheduled, unassigned []models.Appointment, resources []models.Resource) (*BoardService, *BufferWindowService, *VirtualizerService) {
	layout := NewLayoutService(testTimelineConfig(), nil)
	travel := NewTravelGapService(testTravelConfig(), nil)
	buffer := NewBufferWindowService(testBufferConfig(), testTimelineConfig(), focus, nil)
	virt := NewVirtualizerService(config.VirtualizerConfig{Overscan: 200}, nil)
	recurrence := NewRecurrenceService(nil)
	repo := &boardRepoStub{scheduled: scheduled, unassigned: unassigned}
	resRepo := &resourceRepoStub{resources: resources}
	board := NewBoardService(layout, travel, buffer, virt, recurrence, repo, resRepo, nil, nil, nil)
	return board, buffer, virt
}
