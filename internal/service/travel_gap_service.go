package service

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/internal/models"
	"github.com/fieldvue/dispatch-api/pkg/config"
)

const earthRadiusMiles = 3959.0

// TravelGapService annotates idle spans between consecutive appointments on
// one resource with a drive-time estimate.
type TravelGapService struct {
	cfg    config.TravelConfig
	logger *zap.Logger
}

// NewTravelGapService instantiates TravelGapService.
func NewTravelGapService(cfg config.TravelConfig, logger *zap.Logger) *TravelGapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TravelGapService{cfg: cfg, logger: logger}
}

// Calculate produces travel gaps for one resource's positioned appointments.
// Pairs whose boxes overlap horizontally, pairs spanning a calendar day
// boundary, and gaps under the minimum are skipped. Callers suppress the
// whole computation while a drag session is live.
func (s *TravelGapService) Calculate(positioned []models.PositionedAppointment) []models.TravelGap {
	if len(positioned) < 2 {
		return nil
	}

	sorted := make([]models.PositionedAppointment, len(positioned))
	copy(sorted, positioned)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Left < sorted[j].Left
	})

	var gaps []models.TravelGap
	for i := 0; i < len(sorted)-1; i++ {
		cur := sorted[i]
		next := sorted[i+1]

		// Lane-stacked pairs have no horizontal gap to annotate.
		if cur.Right() > next.Left {
			continue
		}

		curEnd := cur.Appointment.EndTime
		nextStart := next.Appointment.StartTime

		gapMinutes := int(math.Round(nextStart.Sub(curEnd).Minutes()))
		if gapMinutes < s.cfg.MinGapMinutes {
			continue
		}

		cy, cm, cd := curEnd.Date()
		ny, nm, nd := nextStart.Date()
		if cy != ny || cm != nm || cd != nd {
			continue
		}

		estimated := s.cfg.DefaultTravelMinutes
		if from, ok := cur.Appointment.Coordinate(); ok {
			if to, ok := next.Appointment.Coordinate(); ok {
				estimated = s.EstimateTravelMinutes(from, to)
			}
		}

		gaps = append(gaps, models.TravelGap{
			FromAppointmentID:      cur.Appointment.ID,
			ToAppointmentID:        next.Appointment.ID,
			GapMinutes:             gapMinutes,
			EstimatedTravelMinutes: estimated,
			Left:                   cur.Right(),
			Width:                  next.Left - cur.Right(),
			IsTight:                float64(gapMinutes) < s.cfg.TightFactor*float64(estimated),
			IsInsufficient:         float64(gapMinutes) < s.cfg.InsufficientFactor*float64(estimated),
		})
	}

	return gaps
}

// EstimateTravelMinutes converts the great-circle distance between two points
// into minutes at the configured average speed, floored at the minimum.
func (s *TravelGapService) EstimateTravelMinutes(from, to models.Geocoordinate) int {
	distance := haversineMiles(from, to)
	minutes := int(math.Ceil(distance / s.cfg.AverageSpeedMph * 60))
	if minutes < s.cfg.MinTravelMinutes {
		minutes = s.cfg.MinTravelMinutes
	}
	return minutes
}

func haversineMiles(from, to models.Geocoordinate) float64 {
	dLat := (to.Lat - from.Lat) * math.Pi / 180
	dLng := (to.Lng - from.Lng) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(from.Lat*math.Pi/180)*math.Cos(to.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}
