package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvue/dispatch-api/internal/models"
)

func positionedPair(t *testing.T, a, b models.Appointment) []models.PositionedAppointment {
	t.Helper()
	layout := NewLayoutService(testTimelineConfig(), nil)
	window := models.BufferWindow{Start: layoutDay, End: layoutDay.AddDate(0, 0, 2)}
	positioned := layout.Position(window, []models.Appointment{a, b})
	require.Len(t, positioned, 2)
	return positioned
}

func withCoords(a models.Appointment, lat, lng float64) models.Appointment {
	a.Lat = sql.NullFloat64{Float64: lat, Valid: true}
	a.Lng = sql.NullFloat64{Float64: lng, Valid: true}
	return a
}

func TestCalculateTightButSufficientGap(t *testing.T) {
	svc := NewTravelGapService(testTravelConfig(), nil)

	// Roughly 7.9 miles apart: ceil(7.9/25*60) = 19 estimated minutes
	// against a 20 minute gap. Tight but not insufficient.
	a := withCoords(apptAt("a", "r1", layoutDay, 9, 0, 10, 0), 40.7357, -74.1724)
	b := withCoords(apptAt("b", "r1", layoutDay, 10, 20, 11, 0), 40.7282, -74.0276)

	gaps := svc.Calculate(positionedPair(t, a, b))
	require.Len(t, gaps, 1)
	gap := gaps[0]

	assert.Equal(t, "a", gap.FromAppointmentID)
	assert.Equal(t, "b", gap.ToAppointmentID)
	assert.Equal(t, 20, gap.GapMinutes)
	assert.Equal(t, 19, gap.EstimatedTravelMinutes)
	assert.True(t, gap.IsTight)
	assert.False(t, gap.IsInsufficient)
}

func TestCalculateInsufficientGap(t *testing.T) {
	svc := NewTravelGapService(testTravelConfig(), nil)

	a := withCoords(apptAt("a", "r1", layoutDay, 9, 0, 10, 0), 40.7357, -74.1724)
	b := withCoords(apptAt("b", "r1", layoutDay, 10, 15, 11, 0), 40.7282, -73.9276)

	gaps := svc.Calculate(positionedPair(t, a, b))
	require.Len(t, gaps, 1)
	assert.True(t, gaps[0].GapMinutes < gaps[0].EstimatedTravelMinutes)
	assert.True(t, gaps[0].IsInsufficient)
	assert.True(t, gaps[0].IsTight)
}

func TestCalculateDefaultTravelWithoutCoordinates(t *testing.T) {
	svc := NewTravelGapService(testTravelConfig(), nil)

	gaps := svc.Calculate(positionedPair(t,
		apptAt("a", "r1", layoutDay, 9, 0, 10, 0),
		apptAt("b", "r1", layoutDay, 11, 0, 12, 0),
	))
	require.Len(t, gaps, 1)
	assert.Equal(t, 15, gaps[0].EstimatedTravelMinutes)
	assert.Equal(t, 60, gaps[0].GapMinutes)
	assert.False(t, gaps[0].IsTight)
}

func TestCalculateSkipsSmallGaps(t *testing.T) {
	svc := NewTravelGapService(testTravelConfig(), nil)

	gaps := svc.Calculate(positionedPair(t,
		apptAt("a", "r1", layoutDay, 9, 0, 10, 0),
		apptAt("b", "r1", layoutDay, 10, 14, 11, 0),
	))
	assert.Empty(t, gaps)
}

func TestCalculateSkipsLaneStackedPairs(t *testing.T) {
	svc := NewTravelGapService(testTravelConfig(), nil)

	gaps := svc.Calculate(positionedPair(t,
		apptAt("a", "r1", layoutDay, 9, 0, 10, 0),
		apptAt("b", "r1", layoutDay, 9, 30, 10, 30),
	))
	assert.Empty(t, gaps)
}

func TestCalculateSkipsDayBoundary(t *testing.T) {
	svc := NewTravelGapService(testTravelConfig(), nil)

	a := apptAt("a", "r1", layoutDay, 22, 0, 23, 0)
	b := appt("b", "r1",
		layoutDay.AddDate(0, 0, 1).Add(8*time.Hour),
		layoutDay.AddDate(0, 0, 1).Add(9*time.Hour),
	)
	gaps := svc.Calculate(positionedPair(t, a, b))
	assert.Empty(t, gaps)
}

func TestCalculateNeedsTwoAppointments(t *testing.T) {
	svc := NewTravelGapService(testTravelConfig(), nil)
	layout := NewLayoutService(testTimelineConfig(), nil)
	window := models.BufferWindow{Start: layoutDay, End: layoutDay.AddDate(0, 0, 1)}

	one := layout.Position(window, []models.Appointment{apptAt("a", "r1", layoutDay, 9, 0, 10, 0)})
	assert.Nil(t, svc.Calculate(one))
	assert.Nil(t, svc.Calculate(nil))
}

func TestEstimateTravelMinutesFloor(t *testing.T) {
	svc := NewTravelGapService(testTravelConfig(), nil)

	near := svc.EstimateTravelMinutes(
		models.Geocoordinate{Lat: 40.7357, Lng: -74.1724},
		models.Geocoordinate{Lat: 40.7360, Lng: -74.1720},
	)
	assert.Equal(t, 5, near)

	zero := svc.EstimateTravelMinutes(
		models.Geocoordinate{Lat: 40.7357, Lng: -74.1724},
		models.Geocoordinate{Lat: 40.7357, Lng: -74.1724},
	)
	assert.Equal(t, 5, zero)
}
