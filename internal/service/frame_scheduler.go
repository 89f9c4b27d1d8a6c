package service

import (
	"math"
	"sync"
	"time"

	"github.com/fieldvue/dispatch-api/pkg/config"
)

// DefaultFrameInterval approximates one render tick at 60fps.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameScheduler coalesces work to one scheduled unit per render tick.
// Multiple submissions inside one frame overwrite a single pending slot, so
// stale intermediate updates are dropped, never queued. This is the sole
// form of backpressure against unbounded pointer-move streams.
type FrameScheduler struct {
	interval time.Duration

	mu      sync.Mutex
	pending func()
	armed   bool
	timer   *time.Timer
	stopped bool
}

// NewFrameScheduler builds a scheduler with the given frame interval.
func NewFrameScheduler(interval time.Duration) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameScheduler{interval: interval}
}

// Schedule stores fn in the single pending slot, overwriting any work
// already waiting for the next tick.
func (f *FrameScheduler) Schedule(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.pending = fn
	if f.armed {
		return
	}
	f.armed = true
	f.timer = time.AfterFunc(f.interval, f.tick)
}

func (f *FrameScheduler) tick() {
	f.mu.Lock()
	fn := f.pending
	f.pending = nil
	f.armed = false
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Flush runs any pending work immediately. Used on drop so the final
// pointer position is never lost to frame timing.
func (f *FrameScheduler) Flush() {
	f.mu.Lock()
	fn := f.pending
	f.pending = nil
	if f.timer != nil {
		f.timer.Stop()
	}
	f.armed = false
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Cancel drops pending work and disarms the timer so no per-session state
// leaks into the next drag.
func (f *FrameScheduler) Cancel() {
	f.mu.Lock()
	f.pending = nil
	if f.timer != nil {
		f.timer.Stop()
	}
	f.armed = false
	f.mu.Unlock()
}

// Close permanently stops the scheduler.
func (f *FrameScheduler) Close() {
	f.mu.Lock()
	f.stopped = true
	f.pending = nil
	if f.timer != nil {
		f.timer.Stop()
	}
	f.armed = false
	f.mu.Unlock()
}

// AutoScrollPhysics converts pointer distance-to-edge into a scroll velocity.
// Velocity is a continuous eased function inside the trigger band: zero at
// the outer edge, maximum inside the inner band.
type AutoScrollPhysics struct {
	cfg config.AutoScrollConfig
}

// NewAutoScrollPhysics builds the velocity curve from config.
func NewAutoScrollPhysics(cfg config.AutoScrollConfig) AutoScrollPhysics {
	return AutoScrollPhysics{cfg: cfg}
}

// Velocity returns the scroll speed (px per frame) for a pointer at the
// given distance from a viewport edge. Always non-negative; the caller
// applies direction.
func (p AutoScrollPhysics) Velocity(distance float64) float64 {
	if distance >= p.cfg.EdgeBand {
		return 0
	}
	if distance <= p.cfg.InnerBand {
		return p.cfg.MaxSpeed
	}
	t := (p.cfg.EdgeBand - distance) / (p.cfg.EdgeBand - p.cfg.InnerBand)
	return p.cfg.MinSpeed + (p.cfg.MaxSpeed-p.cfg.MinSpeed)*math.Pow(t, p.cfg.Acceleration)
}

// Step computes the signed horizontal and vertical scroll deltas for one
// frame given the pointer position inside a viewport rectangle.
func (p AutoScrollPhysics) Step(pointerX, pointerY, viewWidth, viewHeight float64) (dx, dy float64) {
	if v := p.Velocity(pointerX); v > 0 {
		dx = -v
	} else if v := p.Velocity(viewWidth - pointerX); v > 0 {
		dx = v
	}
	if v := p.Velocity(pointerY); v > 0 {
		dy = -v
	} else if v := p.Velocity(viewHeight - pointerY); v > 0 {
		dy = v
	}
	return dx, dy
}
