package service

import (
	"fmt"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/internal/models"
)

// maxOccurrencesPerRule caps expansion so a malformed rule cannot flood the
// board.
const maxOccurrencesPerRule = 500

// RecurrenceService materializes recurring appointments as concrete board
// occurrences inside the buffer window.
type RecurrenceService struct {
	logger *zap.Logger
}

// NewRecurrenceService instantiates RecurrenceService.
func NewRecurrenceService(logger *zap.Logger) *RecurrenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecurrenceService{logger: logger}
}

// Expand returns synthetic occurrences for every appointment carrying an
// RRULE, bounded by the window. The first occurrence equals the stored
// appointment itself and is skipped; the stored row stays authoritative.
// Unparseable rules are logged and ignored so layout never blocks on bad
// upstream data.
func (s *RecurrenceService) Expand(window models.BufferWindow, appts []models.Appointment) []models.Appointment {
	var out []models.Appointment
	for _, appt := range appts {
		if !appt.Recurrence.Valid || appt.Recurrence.String == "" {
			continue
		}

		r, err := rrule.StrToRRule(appt.Recurrence.String)
		if err != nil {
			s.logger.Warn("skipping unparseable recurrence rule",
				zap.String("appointment_id", appt.ID),
				zap.Error(err),
			)
			continue
		}
		r.DTStart(appt.StartTime)

		duration := appt.Duration()
		times := r.Between(window.Start, window.End, true)
		if len(times) > maxOccurrencesPerRule {
			times = times[:maxOccurrencesPerRule]
			s.logger.Warn("recurrence expansion truncated",
				zap.String("appointment_id", appt.ID),
				zap.Int("cap", maxOccurrencesPerRule),
			)
		}

		for _, start := range times {
			if start.Equal(appt.StartTime) {
				continue
			}
			occ := appt
			occ.ID = fmt.Sprintf("%s@%d", appt.ID, start.Unix())
			occ.ParentID.Valid = true
			occ.ParentID.String = appt.ID
			occ.StartTime = start
			occ.EndTime = start.Add(duration)
			occ.Recurrence.Valid = false
			occ.Recurrence.String = ""
			out = append(out, occ)
		}
	}
	return out
}
