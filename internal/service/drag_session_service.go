package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/internal/models"
	"github.com/fieldvue/dispatch-api/pkg/config"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
)

// BeginDragRequest opens a drag session for one appointment.
type BeginDragRequest struct {
	AppointmentID string                 `json:"appointment_id" validate:"required"`
	Pointer       models.PointerPosition `json:"pointer"`
	ScrollLeft    float64                `json:"scroll_left"`
	ScrollTop     float64                `json:"scroll_top"`
	ViewWidth     float64                `json:"view_width" validate:"required,gt=0"`
	ViewHeight    float64                `json:"view_height" validate:"required,gt=0"`
}

// MoveDragRequest streams a pointer position into an open session. Calls are
// coalesced to one preview recompute per frame; intermediate positions
// inside a frame are dropped.
type MoveDragRequest struct {
	Pointer  models.PointerPosition `json:"pointer"`
	OverPool bool                   `json:"over_pool"`
}

// DropDragRequest ends a session at the current pointer position.
type DropDragRequest struct {
	Pointer   models.PointerPosition `json:"pointer"`
	OverPool  bool                   `json:"over_pool"`
	PoolIndex int                    `json:"pool_index"`
}

// DragSessionView is the wire representation of a session.
type DragSessionView struct {
	ID         string              `json:"id"`
	State      models.DragState    `json:"state"`
	Snapshot   models.DragSnapshot `json:"snapshot"`
	Preview    *models.DragPreview `json:"preview,omitempty"`
	ScrollLeft float64             `json:"scroll_left"`
	ScrollTop  float64             `json:"scroll_top"`
}

// DropResult reports how a drop was classified and, when a mutation was
// dispatched, the appointment as accepted.
type DropResult struct {
	Kind        models.CommitKind   `json:"kind"`
	Appointment *models.Appointment `json:"appointment,omitempty"`
}

type dragSession struct {
	id        string
	state     models.DragState
	snapshot  models.DragSnapshot
	pointer   models.PointerPosition
	overPool  bool
	preview   *models.DragPreview
	scrollX   float64
	scrollY   float64
	viewW     float64
	viewH     float64
	scheduler *FrameScheduler
	startedAt time.Time
}

// DragSessionService owns the drag lifecycle state machine:
// Idle -> Active -> Previewing -> Committing -> Idle, with cancellation
// returning to Idle from any pre-commit state. One session exists per
// operator pointer; concurrent sessions on distinct appointments are
// allowed so a new drag can start while a prior mutation is still settling.
type DragSessionService struct {
	board    *BoardService
	buffer   *BufferWindowService
	virt     *VirtualizerService
	gateway  *MutationService
	physics  AutoScrollPhysics
	timeline config.TimelineConfig
	metrics  *MetricsService
	logger   *zap.Logger

	frameInterval time.Duration

	mu            sync.Mutex
	sessions      map[string]*dragSession
	byAppointment map[string]string
}

// NewDragSessionService instantiates DragSessionService.
func NewDragSessionService(
	board *BoardService,
	buffer *BufferWindowService,
	virt *VirtualizerService,
	gateway *MutationService,
	physics AutoScrollPhysics,
	timeline config.TimelineConfig,
	metrics *MetricsService,
	logger *zap.Logger,
) *DragSessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DragSessionService{
		board:         board,
		buffer:        buffer,
		virt:          virt,
		gateway:       gateway,
		physics:       physics,
		timeline:      timeline,
		metrics:       metrics,
		logger:        logger,
		frameInterval: DefaultFrameInterval,
		sessions:      make(map[string]*dragSession),
		byAppointment: make(map[string]string),
	}
}

// SetFrameInterval overrides the coalescing interval. Test hook.
func (s *DragSessionService) SetFrameInterval(d time.Duration) {
	s.frameInterval = d
}

// Begin opens a session. The appointment's fields are frozen into the
// session snapshot; later changes to the shared collection do not affect an
// in-flight drag.
func (s *DragSessionService) Begin(ctx context.Context, req BeginDragRequest) (*DragSessionView, error) {
	if req.AppointmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment id required")
	}
	if req.ViewWidth <= 0 || req.ViewHeight <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "viewport dimensions required")
	}
	appt, ok := s.board.Appointment(req.AppointmentID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}

	s.mu.Lock()
	if _, busy := s.byAppointment[req.AppointmentID]; busy {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrDragSession, "appointment is already being dragged")
	}

	snap := models.DragSnapshot{
		AppointmentID: appt.ID,
		Origin:        models.OriginExisting,
		Start:         appt.StartTime,
		End:           appt.EndTime,
		Duration:      appt.Duration(),
	}
	if appt.Unassigned() {
		snap.Origin = models.OriginUnassignedPool
	} else {
		snap.ResourceID = appt.ResourceID.String
	}
	if snap.Duration <= 0 {
		snap.Duration = s.timeline.DefaultDuration
	}
	if snap.Duration < s.timeline.MinDuration {
		snap.Duration = s.timeline.MinDuration
	}

	sess := &dragSession{
		id:        uuid.NewString(),
		state:     models.DragActive,
		snapshot:  snap,
		pointer:   req.Pointer,
		scrollX:   req.ScrollLeft,
		scrollY:   req.ScrollTop,
		viewW:     req.ViewWidth,
		viewH:     req.ViewHeight,
		scheduler: NewFrameScheduler(s.frameInterval),
		startedAt: time.Now(),
	}
	s.sessions[sess.id] = sess
	s.byAppointment[req.AppointmentID] = sess.id
	s.mu.Unlock()

	s.board.SetDragLive(true)

	// Proactively guarantee drop room near the dragged window so no buffer
	// extension has to run mid-drag. A left extension prepends pixels, so the
	// session scroll offset shifts by the same width to keep the dragged card
	// under the pointer.
	if !snap.Start.IsZero() {
		if comp, extended := s.buffer.EnsureGuard(snap.Start); extended {
			s.mu.Lock()
			sess.scrollX += comp
			s.mu.Unlock()
			if s.metrics != nil {
				s.metrics.CountBufferExtension("guard")
			}
			s.buffer.Settle()
		}
	}

	s.logger.Debug("drag session started",
		zap.String("session_id", sess.id),
		zap.String("appointment_id", appt.ID),
		zap.String("origin", string(snap.Origin)),
	)
	return s.viewOf(sess), nil
}

// Move feeds a pointer sample into the session. The recompute runs at most
// once per frame interval; the returned view reflects the last completed
// frame, not necessarily this sample.
func (s *DragSessionService) Move(ctx context.Context, sessionID string, req MoveDragRequest) (*DragSessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if sess.state != models.DragActive && sess.state != models.DragPreviewing {
		state := sess.state
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrDragSession, fmt.Sprintf("cannot move in state %q", state))
	}
	sess.pointer = req.Pointer
	sess.overPool = req.OverPool
	s.mu.Unlock()

	sess.scheduler.Schedule(func() { s.frame(sess) })
	return s.viewOf(sess), nil
}

// Drop ends the session at its final pointer position, classifies the drop
// into exactly one commit kind and dispatches at most one mutation. The
// session returns to idle (is removed) once the dispatch resolves.
func (s *DragSessionService) Drop(ctx context.Context, sessionID string, req DropDragRequest) (*DropResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if sess.state != models.DragActive && sess.state != models.DragPreviewing {
		state := sess.state
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrDragSession, fmt.Sprintf("cannot drop in state %q", state))
	}
	sess.pointer = req.Pointer
	sess.overPool = req.OverPool
	sess.state = models.DragCommitting
	s.mu.Unlock()

	// Fold the final pointer position in before reading the preview, so the
	// drop never acts on a stale frame.
	sess.scheduler.Schedule(func() { s.frame(sess) })
	sess.scheduler.Flush()

	result, err := s.classifyAndDispatch(ctx, sess, req)

	outcome := string(models.CommitNone)
	if result != nil {
		outcome = string(result.Kind)
	}
	if err != nil {
		outcome = "failed"
	}
	s.finish(sess, outcome)
	return result, err
}

// Cancel abandons a session without any mutation. Scheduled frame work is
// dropped and the buffer window settles back to lazy extension.
func (s *DragSessionService) Cancel(ctx context.Context, sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if sess.state == models.DragCommitting {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrDragSession, "session is already committing")
	}
	s.mu.Unlock()

	s.finish(sess, "cancelled")
	return nil
}

// Session returns the current view of an open session.
func (s *DragSessionService) Session(sessionID string) (*DragSessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.viewOf(sess), nil
}

func (s *DragSessionService) session(id string) (*dragSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "drag session not found")
	}
	return sess, nil
}

// frame is the per-tick unit of work: apply one auto-scroll step, extend the
// buffer if the scroll position demands it, and recompute the preview. The
// preview is replaced only when the candidate placement actually changed.
func (s *DragSessionService) frame(sess *dragSession) {
	s.mu.Lock()
	if sess.state != models.DragActive && sess.state != models.DragPreviewing && sess.state != models.DragCommitting {
		s.mu.Unlock()
		return
	}
	pointer := sess.pointer
	overPool := sess.overPool

	dx, dy := s.physics.Step(pointer.X, pointer.Y, sess.viewW, sess.viewH)
	sess.scrollX += dx
	sess.scrollY += dy
	if sess.scrollX < 0 {
		sess.scrollX = 0
	}
	if sess.scrollY < 0 {
		sess.scrollY = 0
	}
	scrollX, scrollY := sess.scrollX, sess.scrollY
	viewW := sess.viewW
	s.mu.Unlock()

	// Left extension prepends pixels, so compensate the scroll position to
	// keep the same instant under the pointer. The extension latch is held
	// until this frame's preview has absorbed the new window, so rapid
	// repeated triggers inside one frame cannot stack extensions.
	if comp, extended := s.buffer.MaybeExtendForScroll(scrollX, viewW); extended {
		if comp > 0 {
			s.mu.Lock()
			sess.scrollX += comp
			scrollX = sess.scrollX
			s.mu.Unlock()
		}
		if s.metrics != nil {
			s.metrics.CountBufferExtension("scroll")
		}
		defer s.buffer.Settle()
	}

	preview := s.computePreview(sess, pointer, overPool, scrollX, scrollY)

	s.mu.Lock()
	changed := previewChanged(sess.preview, preview)
	if changed {
		sess.preview = preview
		if preview != nil && sess.state == models.DragActive {
			sess.state = models.DragPreviewing
		}
	}
	s.mu.Unlock()
}

// computePreview resolves the pointer to a candidate (resource, time) pair.
// Over the pool area there is no timed placement, so no preview.
func (s *DragSessionService) computePreview(sess *dragSession, pointer models.PointerPosition, overPool bool, scrollX, scrollY float64) *models.DragPreview {
	if overPool {
		return nil
	}
	row, ok := s.virt.RowAt(scrollY + pointer.Y)
	if !ok {
		return nil
	}
	start := s.buffer.Snap(s.buffer.TimeAt(scrollX + pointer.X))
	end := start.Add(sess.snapshot.Duration)

	name := row.ResourceID
	for _, r := range s.board.Resources() {
		if r.ID == row.ResourceID {
			name = r.DisplayName
			break
		}
	}
	return &models.DragPreview{
		ResourceID: row.ResourceID,
		Start:      start,
		End:        end,
		Label:      fmt.Sprintf("%s · %s–%s", name, start.Format("Mon 15:04"), end.Format("15:04")),
	}
}

func previewChanged(old, next *models.DragPreview) bool {
	if old == nil || next == nil {
		return old != next
	}
	return old.ResourceID != next.ResourceID || !old.Start.Equal(next.Start)
}

// classifyAndDispatch maps the final session state to exactly one of the
// four commit kinds, or to none when the drop changes nothing.
func (s *DragSessionService) classifyAndDispatch(ctx context.Context, sess *dragSession, req DropDragRequest) (*DropResult, error) {
	s.mu.Lock()
	snap := sess.snapshot
	preview := sess.preview
	s.mu.Unlock()

	if req.OverPool {
		if snap.Origin == models.OriginUnassignedPool {
			// Pool item back into the pool: purely local reorder, no remote.
			s.board.ReorderPool(snap.AppointmentID, req.PoolIndex)
			return &DropResult{Kind: models.CommitReorderPool}, nil
		}
		appt, err := s.gateway.Unassign(ctx, snap.AppointmentID)
		if err != nil {
			return nil, err
		}
		return &DropResult{Kind: models.CommitUnassign, Appointment: appt}, nil
	}

	if preview == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidDrop, "no lane under the pointer")
	}

	if snap.Origin == models.OriginUnassignedPool {
		appt, err := s.gateway.Assign(ctx, AssignAppointmentRequest{
			ID:         snap.AppointmentID,
			ResourceID: preview.ResourceID,
			Start:      preview.Start,
			End:        preview.End,
		})
		if err != nil {
			return nil, err
		}
		return &DropResult{Kind: models.CommitAssign, Appointment: appt}, nil
	}

	// Zero-distance drop: same resource, same snapped start. Nothing to do.
	if preview.ResourceID == snap.ResourceID && preview.Start.Equal(s.buffer.Snap(snap.Start)) {
		return &DropResult{Kind: models.CommitNone}, nil
	}

	appt, err := s.gateway.Move(ctx, MoveAppointmentRequest{
		ID:         snap.AppointmentID,
		ResourceID: preview.ResourceID,
		Start:      preview.Start,
		End:        preview.End,
	})
	if err != nil {
		return nil, err
	}
	return &DropResult{Kind: models.CommitMove, Appointment: appt}, nil
}

// finish tears the session down regardless of outcome so no per-session
// state leaks into the next drag.
func (s *DragSessionService) finish(sess *dragSession, outcome string) {
	sess.scheduler.Close()

	s.mu.Lock()
	delete(s.sessions, sess.id)
	delete(s.byAppointment, sess.snapshot.AppointmentID)
	remaining := len(s.sessions)
	sess.state = models.DragIdle
	s.mu.Unlock()

	if remaining == 0 {
		s.board.SetDragLive(false)
		s.buffer.Settle()
	}
	if s.metrics != nil {
		s.metrics.CountDragSession(outcome)
	}
	s.logger.Debug("drag session finished",
		zap.String("session_id", sess.id),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(sess.startedAt)),
	)
}

func (s *DragSessionService) viewOf(sess *dragSession) *DragSessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := &DragSessionView{
		ID:         sess.id,
		State:      sess.state,
		Snapshot:   sess.snapshot,
		ScrollLeft: sess.scrollX,
		ScrollTop:  sess.scrollY,
	}
	if sess.preview != nil {
		p := *sess.preview
		view.Preview = &p
	}
	return view
}
