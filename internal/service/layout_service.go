package service

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/internal/models"
	"github.com/fieldvue/dispatch-api/pkg/config"
)

// LayoutService converts one resource's appointment list into non-overlapping
// visual lanes on the linear time scale. It is pure: malformed input is
// clamped rather than rejected, and it never returns an error.
type LayoutService struct {
	cfg    config.TimelineConfig
	logger *zap.Logger
}

// NewLayoutService instantiates LayoutService.
func NewLayoutService(cfg config.TimelineConfig, logger *zap.Logger) *LayoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LayoutService{cfg: cfg, logger: logger}
}

// PixelsPerMinute returns the horizontal scale of the timeline.
func (s *LayoutService) PixelsPerMinute() float64 {
	return s.cfg.HourWidth / 60.0
}

// Position lays out the appointments of a single resource against the buffer
// window. Appointments keep their incoming order on ties so repeated
// recomputation does not reshuffle visually identical boards.
func (s *LayoutService) Position(window models.BufferWindow, appts []models.Appointment) []models.PositionedAppointment {
	if len(appts) == 0 {
		return nil
	}

	scale := s.PixelsPerMinute()
	positioned := make([]models.PositionedAppointment, 0, len(appts))
	for _, appt := range appts {
		left := appt.StartTime.Sub(window.Start).Minutes() * scale
		width := appt.EndTime.Sub(appt.StartTime).Minutes() * scale
		if width < s.cfg.MinVisualWidth {
			// Degenerate durations get a minimum visual width; the stored
			// times stay untouched.
			width = s.cfg.MinVisualWidth
		}
		positioned = append(positioned, models.PositionedAppointment{
			Appointment: appt,
			Left:        left,
			Width:       width,
			Lane:        0,
		})
	}

	sort.SliceStable(positioned, func(i, j int) bool {
		return positioned[i].Left < positioned[j].Left
	})

	// Greedy interval-graph coloring: each appointment takes the smallest
	// lane not used by an already-placed intersecting appointment, which
	// bounds the lane count to the maximum simultaneous overlap.
	for i := range positioned {
		cur := &positioned[i]
		used := make(map[int]bool)
		for j := 0; j < i; j++ {
			prev := &positioned[j]
			if intersects(cur, prev) {
				used[prev.Lane] = true
				cur.HasOverlap = true
				prev.HasOverlap = true
			}
		}
		lane := 0
		for used[lane] {
			lane++
		}
		cur.Lane = lane
	}

	// Second pass: widen each overlapped appointment's range to the full
	// contiguous span it shares with its intersecting neighbours, so the
	// renderer shades one region. Quadratic, acceptable at
	// per-resource-per-day cardinality.
	for i := range positioned {
		cur := &positioned[i]
		if !cur.HasOverlap {
			continue
		}
		start := cur.Left
		end := cur.Right()
		for j := range positioned {
			if i == j {
				continue
			}
			other := &positioned[j]
			if !intersects(cur, other) {
				continue
			}
			if other.Left < start {
				start = other.Left
			}
			if other.Right() > end {
				end = other.Right()
			}
		}
		cur.OverlapStart = start
		cur.OverlapEnd = end
	}

	return positioned
}

// LaneCount returns the number of lanes the positioned set occupies.
func (s *LayoutService) LaneCount(positioned []models.PositionedAppointment) int {
	max := 0
	for i := range positioned {
		if positioned[i].Lane > max {
			max = positioned[i].Lane
		}
	}
	if len(positioned) == 0 {
		return 1
	}
	return max + 1
}

// LaneHeight derives the vertical height of a resource row from its lane
// count.
func (s *LayoutService) LaneHeight(laneCount int) float64 {
	if laneCount < 1 {
		laneCount = 1
	}
	return float64(laneCount)*(s.cfg.CardHeight+s.cfg.LaneGap) + s.cfg.LanePadding
}

// ClampDuration enforces the minimum appointment duration on ingestion.
func (s *LayoutService) ClampDuration(start, end time.Time) (time.Time, time.Time) {
	if !end.After(start) {
		return start, start.Add(s.cfg.MinDuration)
	}
	return start, end
}

func intersects(a, b *models.PositionedAppointment) bool {
	return a.Left < b.Right() && b.Left < a.Right()
}
