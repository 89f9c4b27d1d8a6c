package service

import (
	"sync"

	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/pkg/config"
)

// ResourceOffset is one row in the virtualizer's cumulative offset table.
type ResourceOffset struct {
	ResourceID string  `json:"resource_id"`
	Top        float64 `json:"top"`
	Bottom     float64 `json:"bottom"`
}

// VisibleRange is the inclusive index range of resources to materialize.
type VisibleRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// VirtualizerService keeps cumulative vertical offsets per resource and
// answers which rows fall inside (or near) the viewport. The table must be
// rebuilt whenever a resource's lane count changes or the resource list
// itself changes.
type VirtualizerService struct {
	cfg    config.VirtualizerConfig
	logger *zap.Logger

	mu      sync.RWMutex
	offsets []ResourceOffset
}

// NewVirtualizerService instantiates VirtualizerService.
func NewVirtualizerService(cfg config.VirtualizerConfig, logger *zap.Logger) *VirtualizerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VirtualizerService{cfg: cfg, logger: logger}
}

// Rebuild recomputes the cumulative offset table from per-resource lane
// heights, in display order.
func (s *VirtualizerService) Rebuild(resourceIDs []string, laneHeights map[string]float64) {
	offsets := make([]ResourceOffset, 0, len(resourceIDs))
	var top float64
	for _, id := range resourceIDs {
		height := laneHeights[id]
		offsets = append(offsets, ResourceOffset{
			ResourceID: id,
			Top:        top,
			Bottom:     top + height,
		})
		top += height
	}

	s.mu.Lock()
	s.offsets = offsets
	s.mu.Unlock()
}

// Offsets returns a copy of the current offset table.
func (s *VirtualizerService) Offsets() []ResourceOffset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ResourceOffset, len(s.offsets))
	copy(out, s.offsets)
	return out
}

// TotalHeight returns the stacked height of all resource rows.
func (s *VirtualizerService) TotalHeight() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.offsets) == 0 {
		return 0
	}
	return s.offsets[len(s.offsets)-1].Bottom
}

// Visible returns the index range of resources intersecting the viewport
// plus the overscan margin. A linear scan is enough at board cardinality.
func (s *VirtualizerService) Visible(scrollTop, viewHeight float64) VisibleRange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.offsets) == 0 {
		return VisibleRange{First: 0, Last: -1}
	}

	minY := scrollTop - s.cfg.Overscan
	maxY := scrollTop + viewHeight + s.cfg.Overscan

	first := -1
	last := -1
	for i, off := range s.offsets {
		if first == -1 && off.Bottom >= minY {
			first = i
		}
		if off.Top <= maxY {
			last = i
		}
	}
	if first == -1 {
		// Scrolled past the end of the table.
		first = len(s.offsets)
		last = len(s.offsets) - 1
	}
	return VisibleRange{First: first, Last: last}
}

// RowAt returns the resource row containing the vertical position, used by
// the drag controller's hit-testing.
func (s *VirtualizerService) RowAt(y float64) (ResourceOffset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, off := range s.offsets {
		if y >= off.Top && y < off.Bottom {
			return off, true
		}
	}
	return ResourceOffset{}, false
}
