package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvue/dispatch-api/internal/models"
)

func newCalendarFixture(t *testing.T) *CalendarService {
	t.Helper()
	now := time.Now().UTC()
	scheduled := []models.Appointment{
		appt("visit-1", "r1", now.Add(2*time.Hour), now.Add(3*time.Hour)),
		appt("visit-2", "r2", now.Add(4*time.Hour), now.Add(5*time.Hour)),
		appt("stale", "r1", now.AddDate(0, 0, -2), now.AddDate(0, 0, -2).Add(time.Hour)),
	}
	unassigned := []models.Appointment{
		appt("pool-1", "", time.Time{}, time.Time{}),
	}
	board, _, _ := newTestBoard(now, scheduled, unassigned, []models.Resource{
		resource("r1", "Alice"),
		resource("r2", "Bram"),
	})
	require.NoError(t, board.Refresh(context.Background()))
	return NewCalendarService(board, NewRecurrenceService(nil), true, nil)
}

func TestResourceFeedScopesToResource(t *testing.T) {
	svc := newCalendarFixture(t)

	feed, err := svc.ResourceFeed(context.Background(), "r1")
	require.NoError(t, err)

	doc := string(feed)
	assert.Contains(t, doc, "BEGIN:VCALENDAR")
	assert.Contains(t, doc, "Dispatch: Alice")
	assert.Contains(t, doc, "visit-1@dispatch.fieldvue")
	// Another lane's work and past appointments stay out of the feed.
	assert.NotContains(t, doc, "visit-2@dispatch.fieldvue")
	assert.NotContains(t, doc, "stale@dispatch.fieldvue")
	// Untimed pool items never serialize.
	assert.NotContains(t, doc, "pool-1")
}

func TestResourceFeedExpandsRecurringSeries(t *testing.T) {
	now := time.Now().UTC()
	series := appt("standup", "r1", now.Add(time.Hour), now.Add(2*time.Hour))
	series.Recurrence.Valid = true
	series.Recurrence.String = "FREQ=DAILY;COUNT=3"

	board, _, _ := newTestBoard(now, []models.Appointment{series}, nil, []models.Resource{resource("r1", "Alice")})
	require.NoError(t, board.Refresh(context.Background()))
	svc := NewCalendarService(board, NewRecurrenceService(nil), true, nil)

	feed, err := svc.ResourceFeed(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(feed), "BEGIN:VEVENT"))
}

func TestResourceFeedUnknownResource(t *testing.T) {
	svc := newCalendarFixture(t)
	_, err := svc.ResourceFeed(context.Background(), "r404")
	require.Error(t, err)
}

func TestResourceFeedDisabled(t *testing.T) {
	board, _, _ := newTestBoard(time.Now().UTC(), nil, nil, nil)
	svc := NewCalendarService(board, NewRecurrenceService(nil), false, nil)
	_, err := svc.ResourceFeed(context.Background(), "r1")
	require.Error(t, err)
}
