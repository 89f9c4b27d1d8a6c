package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/internal/models"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
)

// appointmentRemote issues the four mutation commands against the
// authoritative data source. An error satisfying ErrRemoteRejected is an
// explicit rejection; anything else is treated as a transport failure.
type appointmentRemote interface {
	Move(ctx context.Context, id, resourceID string, start, end time.Time) error
	Assign(ctx context.Context, id, resourceID string, start, end time.Time) error
	Unassign(ctx context.Context, id string) error
	Retime(ctx context.Context, id string, start, end time.Time) error
}

// MoveAppointmentRequest reassigns and/or retimes an existing appointment.
type MoveAppointmentRequest struct {
	ID         string    `json:"id" validate:"required"`
	ResourceID string    `json:"resource_id" validate:"required"`
	Start      time.Time `json:"start" validate:"required"`
	End        time.Time `json:"end" validate:"required,gtfield=Start"`
}

// AssignAppointmentRequest schedules an unassigned pool item.
type AssignAppointmentRequest struct {
	ID         string    `json:"id" validate:"required"`
	ResourceID string    `json:"resource_id" validate:"required"`
	Start      time.Time `json:"start" validate:"required"`
	End        time.Time `json:"end" validate:"required,gtfield=Start"`
}

// RetimeAppointmentRequest changes only the times, same resource.
type RetimeAppointmentRequest struct {
	ID    string    `json:"id" validate:"required"`
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

// MutationService is the optimistic mutation gateway: local state changes
// apply synchronously before the remote command is issued, and a rollback
// snapshot reverts them when the remote fails. At most one live snapshot
// exists per appointment id — a newer drag overwrites the snapshot, and a
// late failure from an older mutation can no longer revert anything.
type MutationService struct {
	board     *BoardService
	remote    appointmentRemote
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger

	mu        sync.Mutex
	snapshots map[string]models.RollbackSnapshot
	versions  map[string]uint64
}

// NewMutationService instantiates MutationService.
func NewMutationService(board *BoardService, remote appointmentRemote, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *MutationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutationService{
		board:     board,
		remote:    remote,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		snapshots: make(map[string]models.RollbackSnapshot),
		versions:  make(map[string]uint64),
	}
}

// Move reassigns and/or retimes an existing appointment.
func (s *MutationService) Move(ctx context.Context, req MoveAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	current, ok := s.board.Appointment(req.ID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}
	if !s.board.HasResource(req.ResourceID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target resource")
	}

	next := current
	next.ResourceID.Valid = true
	next.ResourceID.String = req.ResourceID
	next.StartTime = req.Start
	next.EndTime = req.End

	version := s.applyOptimistic(current, next)
	if err := s.remote.Move(ctx, req.ID, req.ResourceID, req.Start, req.End); err != nil {
		return nil, s.fail(ctx, "move", req.ID, version, err)
	}
	s.succeed(ctx, "move", req.ID, version, next)
	return &next, nil
}

// Assign transitions a pool item into a scheduled appointment.
func (s *MutationService) Assign(ctx context.Context, req AssignAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assign payload")
	}
	current, ok := s.board.Appointment(req.ID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}
	if !current.Unassigned() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment is already scheduled")
	}
	if !s.board.HasResource(req.ResourceID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target resource")
	}

	next := current
	next.ResourceID.Valid = true
	next.ResourceID.String = req.ResourceID
	next.StartTime = req.Start
	next.EndTime = req.End

	version := s.applyOptimistic(current, next)
	if err := s.remote.Assign(ctx, req.ID, req.ResourceID, req.Start, req.End); err != nil {
		return nil, s.fail(ctx, "assign", req.ID, version, err)
	}
	s.succeed(ctx, "assign", req.ID, version, next)
	return &next, nil
}

// Unassign returns a scheduled appointment to the pool.
func (s *MutationService) Unassign(ctx context.Context, id string) (*models.Appointment, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment id required")
	}
	current, ok := s.board.Appointment(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}
	if current.Unassigned() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment is already unassigned")
	}

	next := current
	next.ResourceID.Valid = false
	next.ResourceID.String = ""

	version := s.applyOptimistic(current, next)
	if err := s.remote.Unassign(ctx, id); err != nil {
		return nil, s.fail(ctx, "unassign", id, version, err)
	}
	s.succeed(ctx, "unassign", id, version, next)
	return &next, nil
}

// Retime changes an appointment's times on its current resource.
func (s *MutationService) Retime(ctx context.Context, req RetimeAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid retime payload")
	}
	current, ok := s.board.Appointment(req.ID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
	}

	next := current
	next.StartTime = req.Start
	next.EndTime = req.End

	version := s.applyOptimistic(current, next)
	if err := s.remote.Retime(ctx, req.ID, req.Start, req.End); err != nil {
		return nil, s.fail(ctx, "retime", req.ID, version, err)
	}
	s.succeed(ctx, "retime", req.ID, version, next)
	return &next, nil
}

// Snapshot returns the live rollback snapshot for an appointment, if any.
func (s *MutationService) Snapshot(id string) (models.RollbackSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	return snap, ok
}

// applyOptimistic captures the rollback snapshot and writes the new values
// into local state before any remote call is made.
func (s *MutationService) applyOptimistic(current, next models.Appointment) uint64 {
	s.mu.Lock()
	s.versions[current.ID]++
	version := s.versions[current.ID]
	s.snapshots[current.ID] = models.RollbackSnapshot{
		AppointmentID: current.ID,
		ResourceID:    current.ResourceID.String,
		Unassigned:    current.Unassigned(),
		Start:         current.StartTime,
		End:           current.EndTime,
		Version:       version,
	}
	s.mu.Unlock()

	s.board.Apply(next)
	return version
}

func (s *MutationService) succeed(ctx context.Context, command, id string, version uint64, next models.Appointment) {
	s.mu.Lock()
	if snap, ok := s.snapshots[id]; ok && snap.Version == version {
		delete(s.snapshots, id)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CountMutation(command, "success")
	}
	resourceID := ""
	if next.ResourceID.Valid {
		resourceID = next.ResourceID.String
	}
	s.board.PublishEvent(ctx, models.BoardEvent{
		Kind:          command,
		AppointmentID: id,
		ResourceID:    resourceID,
		Start:         next.StartTime,
		End:           next.EndTime,
		OccurredAt:    time.Now().UTC(),
	})
}

// fail rolls the optimistic apply back, unless a newer apply already
// overwrote the snapshot, and normalises the remote error.
func (s *MutationService) fail(ctx context.Context, command, id string, version uint64, remoteErr error) error {
	s.mu.Lock()
	snap, ok := s.snapshots[id]
	live := ok && snap.Version == version
	if live {
		delete(s.snapshots, id)
	}
	s.mu.Unlock()

	if live {
		if current, exists := s.board.Appointment(id); exists {
			restored := current
			restored.ResourceID.Valid = !snap.Unassigned
			restored.ResourceID.String = snap.ResourceID
			if snap.Unassigned {
				restored.ResourceID.String = ""
			}
			restored.StartTime = snap.Start
			restored.EndTime = snap.End
			s.board.Apply(restored)
		}
		if s.metrics != nil {
			s.metrics.CountRollback()
		}
	} else {
		s.logger.Info("suppressing stale mutation failure",
			zap.String("appointment_id", id),
			zap.Uint64("version", version),
		)
	}

	var typed *appErrors.Error
	if errors.As(remoteErr, &typed) && typed.Code == appErrors.ErrRemoteRejected.Code {
		if s.metrics != nil {
			s.metrics.CountMutation(command, "rejected")
		}
		return typed
	}
	if s.metrics != nil {
		s.metrics.CountMutation(command, "transport")
	}
	return appErrors.Wrap(remoteErr, appErrors.ErrTransport.Code, appErrors.ErrTransport.Status, "remote "+command+" did not complete")
}
