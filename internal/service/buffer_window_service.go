package service

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/internal/models"
	"github.com/fieldvue/dispatch-api/pkg/config"
)

// BufferWindowService owns the materialized time range behind the board and
// the time↔pixel mapping derived from it. The focused date always sits
// strictly inside the window with a guard margin from either edge.
type BufferWindowService struct {
	cfg      config.BufferConfig
	timeline config.TimelineConfig
	logger   *zap.Logger

	mu        sync.Mutex
	window    models.BufferWindow
	extending bool
}

// NewBufferWindowService instantiates BufferWindowService centered on the
// focus date.
func NewBufferWindowService(cfg config.BufferConfig, timeline config.TimelineConfig, focus time.Time, logger *zap.Logger) *BufferWindowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	day := midnight(focus)
	s := &BufferWindowService{cfg: cfg, timeline: timeline, logger: logger}
	s.window = models.BufferWindow{
		Start: day.AddDate(0, 0, -cfg.InitialDays),
		End:   day.AddDate(0, 0, cfg.InitialDays+1),
	}
	return s
}

// Window returns the current buffer window.
func (s *BufferWindowService) Window() models.BufferWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// Width returns the pixel width of the materialized range.
func (s *BufferWindowService) Width() float64 {
	w := s.Window()
	return w.End.Sub(w.Start).Minutes() * s.pixelsPerMinute()
}

// ExtendLeft grows the window into the past and returns the pixel width
// added, which the caller must add to its raw scroll offset so the focused
// content does not jump. A single extension in flight suppresses re-triggers
// until Settle is called.
func (s *BufferWindowService) ExtendLeft(days int) float64 {
	return s.extend(days, true)
}

// ExtendRight grows the window into the future. The returned pixel width is
// informational; no scroll compensation is needed on the right side.
func (s *BufferWindowService) ExtendRight(days int) float64 {
	return s.extend(days, false)
}

func (s *BufferWindowService) extend(days int, left bool) float64 {
	if days <= 0 {
		days = s.cfg.ExtendDays
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extending {
		return 0
	}
	s.extending = true

	if left {
		s.window.Start = s.window.Start.AddDate(0, 0, -days)
	} else {
		s.window.End = s.window.End.AddDate(0, 0, days)
	}

	added := float64(days) * 24 * 60 * s.pixelsPerMinute()
	s.logger.Debug("buffer window extended",
		zap.Bool("left", left),
		zap.Int("days", days),
		zap.Time("start", s.window.Start),
		zap.Time("end", s.window.End),
	)
	return added
}

// Settle clears the in-flight latch once the caller's layout has absorbed
// the extension.
func (s *BufferWindowService) Settle() {
	s.mu.Lock()
	s.extending = false
	s.mu.Unlock()
}

// EnsureGuard is the proactive trigger: when the focused date drifts within
// the guard margin of either edge the window is extended regardless of
// scroll position. A focus jump far outside the window grows it by however
// many days it takes to land the focus inside the margin, not just one step.
// Returns the pixel compensation for a left extension and whether the window
// grew; the caller must Settle once its layout has absorbed the change.
func (s *BufferWindowService) EnsureGuard(focus time.Time) (float64, bool) {
	return s.EnsureGuardSpan(focus, focus)
}

// EnsureGuardSpan guarantees both endpoints of a span sit inside the window
// with the guard margin. One latch covers both sides.
func (s *BufferWindowService) EnsureGuardSpan(from, to time.Time) (float64, bool) {
	if to.Before(from) {
		from, to = to, from
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extending {
		return 0, false
	}

	var compensation float64
	extended := false
	if deficit := s.cfg.GuardMargin - from.Sub(s.window.Start); deficit > 0 {
		days := s.guardDays(deficit)
		s.window.Start = s.window.Start.AddDate(0, 0, -days)
		compensation = float64(days) * 24 * 60 * s.pixelsPerMinute()
		extended = true
	}
	if deficit := s.cfg.GuardMargin - s.window.End.Sub(to); deficit > 0 {
		days := s.guardDays(deficit)
		s.window.End = s.window.End.AddDate(0, 0, days)
		extended = true
	}
	if extended {
		s.extending = true
		s.logger.Debug("buffer window guarded",
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Time("start", s.window.Start),
			zap.Time("end", s.window.End),
		)
	}
	return compensation, extended
}

// guardDays converts a guard deficit into whole extension days, never fewer
// than the configured step.
func (s *BufferWindowService) guardDays(deficit time.Duration) int {
	days := int(math.Ceil(deficit.Hours() / 24))
	if days < s.cfg.ExtendDays {
		days = s.cfg.ExtendDays
	}
	return days
}

// MaybeExtendForScroll is the explicit trigger: extension when the scroll
// position comes within the threshold of either content edge. Returns the
// scroll compensation to apply and whether an extension latched; the caller
// must Settle once its layout has absorbed the change.
func (s *BufferWindowService) MaybeExtendForScroll(scrollLeft, viewWidth float64) (float64, bool) {
	contentWidth := s.Width()
	threshold := s.cfg.ScrollEdgeThreshold

	if scrollLeft < threshold {
		added := s.ExtendLeft(s.cfg.ExtendDays)
		return added, added > 0
	}
	if contentWidth-scrollLeft-viewWidth < threshold {
		return 0, s.ExtendRight(s.cfg.ExtendDays) > 0
	}
	return 0, false
}

// TimeAt maps a horizontal pixel offset to the instant it represents.
func (s *BufferWindowService) TimeAt(offset float64) time.Time {
	w := s.Window()
	minutes := offset / s.pixelsPerMinute()
	return w.Start.Add(time.Duration(minutes * float64(time.Minute)))
}

// OffsetOf maps an instant to its horizontal pixel offset.
func (s *BufferWindowService) OffsetOf(t time.Time) float64 {
	w := s.Window()
	return t.Sub(w.Start).Minutes() * s.pixelsPerMinute()
}

// Snap rounds an instant to the nearest snap interval (round-to-nearest,
// not floor).
func (s *BufferWindowService) Snap(t time.Time) time.Time {
	interval := time.Duration(s.timeline.SnapMinutes) * time.Minute
	if interval <= 0 {
		return t
	}
	return t.Round(interval)
}

func (s *BufferWindowService) pixelsPerMinute() float64 {
	return s.timeline.HourWidth / 60.0
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
