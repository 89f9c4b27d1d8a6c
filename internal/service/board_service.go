package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/internal/models"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
)

// boardEventChannel is the Redis channel carrying the change-notification
// stream between board sessions.
const boardEventChannel = "board:events"

const boardViewCacheTTL = 30 * time.Second

type boardRepository interface {
	ListInRange(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
	ListUnassigned(ctx context.Context) ([]models.Appointment, error)
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
}

type boardResourceRepository interface {
	ListActive(ctx context.Context) ([]models.Resource, error)
}

// BoardView is the derived, ephemeral projection of the board: positioned
// lanes, the unassigned pool and the virtualizer table. Recomputed whenever
// the appointment set or buffer window changes; never persisted.
type BoardView struct {
	Window      models.BufferWindow   `json:"window"`
	Lanes       []models.ResourceLane `json:"lanes"`
	Pool        []models.Appointment  `json:"pool"`
	TotalHeight float64               `json:"total_height"`
	TotalWidth  float64               `json:"total_width"`
}

// BoardService is the single owned state container behind the engine: a
// locally cached copy of the remote appointment and resource collections with
// explicit read and mutate operations. Derived views are pure recomputations
// keyed by the appointment set and buffer window, not by object identity.
type BoardService struct {
	layout     *LayoutService
	travel     *TravelGapService
	buffer     *BufferWindowService
	virt       *VirtualizerService
	recurrence *RecurrenceService
	repo       boardRepository
	resources  boardResourceRepository
	redis      *redis.Client
	metrics    *MetricsService
	logger     *zap.Logger

	mu           sync.RWMutex
	appointments map[string]models.Appointment
	resourceList []models.Resource
	poolOrder    []string
	dragLive     bool
	viewVersion  uint64
}

// NewBoardService instantiates BoardService. Redis and metrics are optional.
func NewBoardService(
	layout *LayoutService,
	travel *TravelGapService,
	buffer *BufferWindowService,
	virt *VirtualizerService,
	recurrence *RecurrenceService,
	repo boardRepository,
	resources boardResourceRepository,
	redisClient *redis.Client,
	metrics *MetricsService,
	logger *zap.Logger,
) *BoardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardService{
		layout:       layout,
		travel:       travel,
		buffer:       buffer,
		virt:         virt,
		recurrence:   recurrence,
		repo:         repo,
		resources:    resources,
		redis:        redisClient,
		metrics:      metrics,
		logger:       logger,
		appointments: make(map[string]models.Appointment),
	}
}

// Refresh reconciles the local collections against the authoritative data
// source for the current buffer window.
func (s *BoardService) Refresh(ctx context.Context) error {
	window := s.buffer.Window()

	appts, err := s.repo.ListInRange(ctx, window.Start, window.End)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointments")
	}
	pool, err := s.repo.ListUnassigned(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unassigned pool")
	}
	resources, err := s.resources.ListActive(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resources")
	}

	s.mu.Lock()
	s.appointments = make(map[string]models.Appointment, len(appts)+len(pool))
	for _, a := range appts {
		a.StartTime, a.EndTime = s.layout.ClampDuration(a.StartTime, a.EndTime)
		s.appointments[a.ID] = a
	}
	for _, a := range pool {
		a.StartTime, a.EndTime = s.layout.ClampDuration(a.StartTime, a.EndTime)
		s.appointments[a.ID] = a
	}
	s.resourceList = resources
	s.reconcilePoolOrderLocked()
	s.viewVersion++
	s.mu.Unlock()

	return nil
}

// Appointment returns the locally cached copy of an appointment.
func (s *BoardService) Appointment(id string) (models.Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	return a, ok
}

// Appointments returns a snapshot of every locally cached appointment.
func (s *BoardService) Appointments() []models.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		out = append(out, a)
	}
	return out
}

// Resources returns the cached resource list in display order.
func (s *BoardService) Resources() []models.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Resource, len(s.resourceList))
	copy(out, s.resourceList)
	return out
}

// HasResource reports whether the id names a known resource.
func (s *BoardService) HasResource(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.resourceList {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Apply writes an appointment into local state synchronously. Used for the
// optimistic apply and for rollback; the visible board never waits on the
// network for its own feedback.
func (s *BoardService) Apply(a models.Appointment) {
	s.mu.Lock()
	a.StartTime, a.EndTime = s.layout.ClampDuration(a.StartTime, a.EndTime)
	s.appointments[a.ID] = a
	s.reconcilePoolOrderLocked()
	s.viewVersion++
	s.mu.Unlock()
}

// Remove drops an appointment from local state.
func (s *BoardService) Remove(id string) {
	s.mu.Lock()
	delete(s.appointments, id)
	s.reconcilePoolOrderLocked()
	s.viewVersion++
	s.mu.Unlock()
}

// SetDragLive flags a live drag session. Travel gap computation is
// suppressed for its duration.
func (s *BoardService) SetDragLive(live bool) {
	s.mu.Lock()
	s.dragLive = live
	s.viewVersion++
	s.mu.Unlock()
}

// DragLive reports whether a drag session is active or previewing.
func (s *BoardService) DragLive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dragLive
}

// View recomputes the positioned board projection for the current window.
func (s *BoardService) View(ctx context.Context) (*BoardView, error) {
	if cached := s.cachedView(ctx); cached != nil {
		return cached, nil
	}

	start := time.Now()
	window := s.buffer.Window()

	s.mu.RLock()
	resources := make([]models.Resource, len(s.resourceList))
	copy(resources, s.resourceList)
	byResource := make(map[string][]models.Appointment)
	var recurring []models.Appointment
	for _, a := range s.appointments {
		if a.Recurrence.Valid && a.Recurrence.String != "" {
			recurring = append(recurring, a)
		}
		if a.Unassigned() {
			continue
		}
		if a.EndTime.Before(window.Start) || !a.StartTime.Before(window.End) {
			continue
		}
		byResource[a.ResourceID.String] = append(byResource[a.ResourceID.String], a)
	}
	dragLive := s.dragLive
	s.mu.RUnlock()

	if s.recurrence != nil {
		for _, occ := range s.recurrence.Expand(window, recurring) {
			if occ.Unassigned() {
				continue
			}
			byResource[occ.ResourceID.String] = append(byResource[occ.ResourceID.String], occ)
		}
	}

	lanes := make([]models.ResourceLane, 0, len(resources))
	laneHeights := make(map[string]float64, len(resources))
	laneCounts := make([]int, 0, len(resources))
	resourceIDs := make([]string, 0, len(resources))

	for _, res := range resources {
		appts := byResource[res.ID]
		sort.SliceStable(appts, func(i, j int) bool {
			return appts[i].StartTime.Before(appts[j].StartTime)
		})

		positioned := s.layout.Position(window, appts)
		laneCount := s.layout.LaneCount(positioned)
		height := s.layout.LaneHeight(laneCount)

		lane := models.ResourceLane{
			Resource:     res,
			Appointments: positioned,
			LaneCount:    laneCount,
			LaneHeight:   height,
		}
		if !dragLive {
			lane.TravelGaps = s.travel.Calculate(positioned)
		}

		lanes = append(lanes, lane)
		laneHeights[res.ID] = height
		laneCounts = append(laneCounts, laneCount)
		resourceIDs = append(resourceIDs, res.ID)
	}

	s.virt.Rebuild(resourceIDs, laneHeights)

	view := &BoardView{
		Window:      window,
		Lanes:       lanes,
		Pool:        s.Pool(),
		TotalHeight: s.virt.TotalHeight(),
		TotalWidth:  s.buffer.Width(),
	}

	if s.metrics != nil {
		s.metrics.ObserveLayout(time.Since(start), laneCounts)
	}
	s.storeView(ctx, view)
	return view, nil
}

// BoardViewRequest optionally jumps the board focus to a date or range
// before the view is built.
type BoardViewRequest struct {
	Focus *time.Time
	From  *time.Time
	To    *time.Time
}

func (r BoardViewRequest) span() (lo, hi *time.Time) {
	for _, t := range []*time.Time{r.Focus, r.From, r.To} {
		if t == nil {
			continue
		}
		if lo == nil || t.Before(*lo) {
			lo = t
		}
		if hi == nil || t.After(*hi) {
			hi = t
		}
	}
	return lo, hi
}

// ViewFor honors a focus jump before building the view: a requested date or
// range outside the guarded window extends the window by however much the
// jump needs and reloads the collections, so navigating far from the
// materialized range still lands on populated lanes. The window stays
// guarded around every requested instant.
func (s *BoardService) ViewFor(ctx context.Context, req BoardViewRequest) (*BoardView, error) {
	if lo, hi := req.span(); lo != nil {
		if _, extended := s.buffer.EnsureGuardSpan(*lo, *hi); extended {
			defer s.buffer.Settle()
			if s.metrics != nil {
				s.metrics.CountBufferExtension("guard")
			}
			if err := s.Refresh(ctx); err != nil {
				return nil, err
			}
		}
	}
	return s.View(ctx)
}

// Pool returns the unassigned pool in operator order.
func (s *BoardService) Pool() []models.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Appointment, 0, len(s.poolOrder))
	for _, id := range s.poolOrder {
		if a, ok := s.appointments[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// ReorderPool moves an unassigned appointment to a new index. Purely local:
// pool ordering is an operator convenience, never sent to the remote.
func (s *BoardService) ReorderPool(id string, toIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := -1
	for i, existing := range s.poolOrder {
		if existing == id {
			from = i
			break
		}
	}
	if from == -1 {
		return false
	}
	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex >= len(s.poolOrder) {
		toIndex = len(s.poolOrder) - 1
	}

	order := append([]string{}, s.poolOrder...)
	order = append(order[:from], order[from+1:]...)
	order = append(order[:toIndex], append([]string{id}, order[toIndex:]...)...)
	s.poolOrder = order
	s.viewVersion++
	return true
}

// Listen consumes the Redis change-notification stream and reconciles local
// state. Blocks until the context is cancelled; no-op without Redis.
func (s *BoardService) Listen(ctx context.Context) {
	if s.redis == nil {
		return
	}
	sub := s.redis.Subscribe(ctx, boardEventChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.BoardEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.Warn("dropping malformed board event", zap.Error(err))
				continue
			}
			s.reconcileEvent(ctx, ev)
		}
	}
}

// PublishEvent pushes a board event onto the change stream.
func (s *BoardService) PublishEvent(ctx context.Context, ev models.BoardEvent) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.redis.Publish(ctx, boardEventChannel, payload).Err(); err != nil {
		s.logger.Warn("failed to publish board event", zap.Error(err))
	}
}

func (s *BoardService) reconcileEvent(ctx context.Context, ev models.BoardEvent) {
	// The event only announces that something changed; the data source stays
	// the single source of truth, so refetch the row.
	appt, err := s.repo.FindByID(ctx, ev.AppointmentID)
	if err != nil {
		s.logger.Warn("failed to reconcile board event",
			zap.String("appointment_id", ev.AppointmentID),
			zap.Error(err),
		)
		return
	}
	if appt == nil {
		s.Remove(ev.AppointmentID)
		return
	}
	s.Apply(*appt)
}

func (s *BoardService) reconcilePoolOrderLocked() {
	seen := make(map[string]bool, len(s.poolOrder))
	order := make([]string, 0, len(s.poolOrder))
	for _, id := range s.poolOrder {
		if a, ok := s.appointments[id]; ok && a.Unassigned() {
			order = append(order, id)
			seen[id] = true
		}
	}
	// Newly unassigned appointments join at the end, keeping the operator's
	// explicit ordering for the rest.
	ids := make([]string, 0)
	for id, a := range s.appointments {
		if a.Unassigned() && !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	s.poolOrder = append(order, ids...)
}

func (s *BoardService) viewCacheKey() string {
	s.mu.RLock()
	version := s.viewVersion
	s.mu.RUnlock()
	w := s.buffer.Window()
	return fmt.Sprintf("board:view:%d:%d:%d", version, w.Start.Unix(), w.End.Unix())
}

func (s *BoardService) cachedView(ctx context.Context) *BoardView {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, s.viewCacheKey()).Bytes()
	if err != nil {
		if s.metrics != nil {
			s.metrics.CountCache(false)
		}
		return nil
	}
	var view BoardView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil
	}
	if s.metrics != nil {
		s.metrics.CountCache(true)
	}
	return &view
}

func (s *BoardService) storeView(ctx context.Context, view *BoardView) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.viewCacheKey(), payload, boardViewCacheTTL).Err(); err != nil {
		s.logger.Debug("failed to cache board view", zap.Error(err))
	}
}
