package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/internal/models"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
)

type appointmentRepository interface {
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	Create(ctx context.Context, appt *models.Appointment) error
	Delete(ctx context.Context, id string) error
}

// CreateAppointmentRequest describes a new appointment. Leaving resource_id
// empty creates it in the unassigned pool.
type CreateAppointmentRequest struct {
	ResourceID string     `json:"resource_id,omitempty"`
	Title      string     `json:"title" validate:"required"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
	Priority   string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	Lat        *float64   `json:"lat,omitempty"`
	Lng        *float64   `json:"lng,omitempty"`
	Recurrence string     `json:"recurrence,omitempty"`
}

// AppointmentService handles appointment reads and creation. Board-visible
// mutations flow through the mutation gateway instead.
type AppointmentService struct {
	repo      appointmentRepository
	board     *BoardService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAppointmentService instantiates AppointmentService.
func NewAppointmentService(repo appointmentRepository, board *BoardService, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{repo: repo, board: board, validator: validate, logger: logger}
}

// List returns appointments with pagination metadata.
func (s *AppointmentService) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, *models.Pagination, error) {
	appts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return appts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one appointment.
func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment id required")
	}
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Create stores a new appointment and mirrors it into local board state.
func (s *AppointmentService) Create(ctx context.Context, req CreateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	if (req.Start == nil) != (req.End == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start and end must be set together")
	}
	if req.Start != nil && !req.End.After(*req.Start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end must be after start")
	}
	if req.ResourceID != "" {
		if req.Start == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "scheduled appointments need times")
		}
		if s.board != nil && !s.board.HasResource(req.ResourceID) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown resource")
		}
	}

	appt := &models.Appointment{
		Title:    req.Title,
		Status:   models.StatusScheduled,
		Priority: models.PriorityMedium,
	}
	if req.ResourceID != "" {
		appt.ResourceID = sql.NullString{String: req.ResourceID, Valid: true}
	}
	if req.Start != nil {
		appt.StartTime = *req.Start
		appt.EndTime = *req.End
	}
	if req.Priority != "" {
		appt.Priority = models.AppointmentPriority(req.Priority)
	}
	if req.Lat != nil && req.Lng != nil {
		appt.Lat = sql.NullFloat64{Float64: *req.Lat, Valid: true}
		appt.Lng = sql.NullFloat64{Float64: *req.Lng, Valid: true}
	}
	if req.Recurrence != "" {
		appt.Recurrence = sql.NullString{String: req.Recurrence, Valid: true}
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}
	if s.board != nil {
		s.board.Apply(*appt)
	}
	s.logger.Info("appointment created", zap.String("id", appt.ID), zap.Bool("pooled", appt.Unassigned()))
	return appt, nil
}

// Delete removes an appointment from the data source and local state.
func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "appointment id required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.board != nil {
		s.board.Remove(id)
	}
	return nil
}
