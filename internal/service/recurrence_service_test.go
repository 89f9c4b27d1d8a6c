package service

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvue/dispatch-api/internal/models"
)

func recurring(id, rule string, start, end time.Time) models.Appointment {
	a := appt(id, "r1", start, end)
	a.Recurrence = sql.NullString{String: rule, Valid: true}
	return a
}

func TestExpandDailyRule(t *testing.T) {
	svc := NewRecurrenceService(nil)
	window := models.BufferWindow{
		Start: layoutDay,
		End:   layoutDay.AddDate(0, 0, 7),
	}
	base := recurring("daily", "FREQ=DAILY;COUNT=4",
		layoutDay.Add(9*time.Hour), layoutDay.Add(10*time.Hour))

	out := svc.Expand(window, []models.Appointment{base})

	// The stored row covers the first occurrence; only the rest materialize.
	require.Len(t, out, 3)
	for i, occ := range out {
		start := layoutDay.AddDate(0, 0, i+1).Add(9 * time.Hour)
		assert.Equal(t, fmt.Sprintf("daily@%d", start.Unix()), occ.ID)
		assert.True(t, occ.StartTime.Equal(start))
		assert.True(t, occ.EndTime.Equal(start.Add(time.Hour)))
		assert.Equal(t, "daily", occ.ParentID.String)
		assert.True(t, occ.ParentID.Valid)
		assert.False(t, occ.Recurrence.Valid)
	}
}

func TestExpandBoundsOccurrencesToWindow(t *testing.T) {
	svc := NewRecurrenceService(nil)
	window := models.BufferWindow{
		Start: layoutDay,
		End:   layoutDay.AddDate(0, 0, 3),
	}
	base := recurring("daily", "FREQ=DAILY",
		layoutDay.Add(9*time.Hour), layoutDay.Add(10*time.Hour))

	out := svc.Expand(window, []models.Appointment{base})

	require.Len(t, out, 2)
	for _, occ := range out {
		assert.True(t, occ.StartTime.After(window.Start))
		assert.True(t, occ.EndTime.Before(window.End))
	}
}

func TestExpandIgnoresNonRecurringAndBadRules(t *testing.T) {
	svc := NewRecurrenceService(nil)
	window := models.BufferWindow{
		Start: layoutDay,
		End:   layoutDay.AddDate(0, 0, 7),
	}
	plain := apptAt("plain", "r1", layoutDay, 9, 0, 10, 0)
	broken := recurring("broken", "FREQ=SOMETIMES",
		layoutDay.Add(9*time.Hour), layoutDay.Add(10*time.Hour))

	out := svc.Expand(window, []models.Appointment{plain, broken})
	assert.Empty(t, out)
}

func TestExpandKeepsOccurrenceDuration(t *testing.T) {
	svc := NewRecurrenceService(nil)
	window := models.BufferWindow{
		Start: layoutDay,
		End:   layoutDay.AddDate(0, 0, 15),
	}
	base := recurring("weekly", "FREQ=WEEKLY;COUNT=3",
		layoutDay.Add(8*time.Hour), layoutDay.Add(11*time.Hour+30*time.Minute))

	out := svc.Expand(window, []models.Appointment{base})

	require.Len(t, out, 2)
	for _, occ := range out {
		assert.Equal(t, 3*time.Hour+30*time.Minute, occ.EndTime.Sub(occ.StartTime))
	}
}
