package service

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/internal/models"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
)

const icsFeedSpanDays = 30

// CalendarService renders a per-resource iCalendar feed so technicians can
// subscribe to their own lane from a phone calendar.
type CalendarService struct {
	board      *BoardService
	recurrence *RecurrenceService
	enabled    bool
	logger     *zap.Logger
}

// NewCalendarService instantiates CalendarService.
func NewCalendarService(board *BoardService, recurrence *RecurrenceService, enabled bool, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{board: board, recurrence: recurrence, enabled: enabled, logger: logger}
}

// Enabled reports whether the feed is switched on.
func (s *CalendarService) Enabled() bool {
	return s.enabled
}

// ResourceFeed serializes the resource's appointments over the next thirty
// days, recurring series expanded, as an iCalendar document.
func (s *CalendarService) ResourceFeed(ctx context.Context, resourceID string) ([]byte, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar feeds are disabled")
	}

	var resource *models.Resource
	for _, r := range s.board.Resources() {
		if r.ID == resourceID {
			res := r
			resource = &res
			break
		}
	}
	if resource == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
	}

	now := time.Now().UTC()
	window := models.BufferWindow{Start: now, End: now.AddDate(0, 0, icsFeedSpanDays)}

	var scoped []models.Appointment
	for _, lane := range s.boardAppointments() {
		if lane.ResourceID.Valid && lane.ResourceID.String == resourceID {
			scoped = append(scoped, lane)
		}
	}
	scoped = append(scoped, s.recurrence.Expand(window, scoped)...)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//fieldvue//dispatch-api//EN")
	cal.SetXWRCalName(fmt.Sprintf("Dispatch: %s", resource.DisplayName))

	for _, appt := range scoped {
		if appt.EndTime.Before(window.Start) || !appt.StartTime.Before(window.End) {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("%s@dispatch.fieldvue", appt.ID))
		ev.SetDtStampTime(now)
		ev.SetStartAt(appt.StartTime)
		ev.SetEndAt(appt.EndTime)
		ev.SetSummary(appt.Title)
		ev.SetDescription(fmt.Sprintf("Status: %s / Priority: %s", appt.Status, appt.Priority))
		if coord, ok := appt.Coordinate(); ok {
			ev.SetLocation(fmt.Sprintf("%.6f,%.6f", coord.Lat, coord.Lng))
		}
	}

	s.logger.Debug("rendered ics feed",
		zap.String("resource_id", resourceID),
		zap.Int("events", len(scoped)),
	)
	return []byte(cal.Serialize()), nil
}

// boardAppointments snapshots the scheduled set. Pool items carry no times,
// so they never appear in a feed.
func (s *CalendarService) boardAppointments() []models.Appointment {
	all := s.board.Appointments()
	out := all[:0:0]
	for _, a := range all {
		if !a.Unassigned() {
			out = append(out, a)
		}
	}
	return out
}
