package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fieldvue/dispatch-api/internal/models"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
)

const appointmentColumns = "id, resource_id, title, start_time, end_time, status, priority, lat, lng, recurrence, parent_id, created_at, updated_at"

// AppointmentRepository provides persistence for appointments. The four
// mutation commands return ErrRemoteRejected when the database refuses the
// change, so the caller can distinguish a rejection from a transport fault.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// List returns appointments with optional filtering and pagination.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	base := "FROM appointments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ResourceID != "" {
		conditions = append(conditions, fmt.Sprintf("resource_id = $%d", len(args)+1))
		args = append(args, filter.ResourceID)
	}
	if filter.Unassigned {
		conditions = append(conditions, "resource_id IS NULL")
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, filter.Priority)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("end_time > $%d", len(args)+1))
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("start_time < $%d", len(args)+1))
		args = append(args, filter.To)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"start_time": true,
		"end_time":   true,
		"priority":   true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_time"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", appointmentColumns, base, sortBy, order, size, offset)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	return appts, total, nil
}

// ListInRange returns scheduled appointments intersecting [from, to).
func (r *AppointmentRepository) ListInRange(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE resource_id IS NOT NULL AND start_time < $1 AND end_time > $2 ORDER BY start_time ASC", appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query, to, from); err != nil {
		return nil, fmt.Errorf("list appointments in range: %w", err)
	}
	return appts, nil
}

// ListUnassigned returns the pool in creation order.
func (r *AppointmentRepository) ListUnassigned(ctx context.Context) ([]models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE resource_id IS NULL ORDER BY created_at ASC", appointmentColumns)
	var appts []models.Appointment
	if err := r.db.SelectContext(ctx, &appts, query); err != nil {
		return nil, fmt.Errorf("list unassigned appointments: %w", err)
	}
	return appts, nil
}

// FindByID loads an appointment by id.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1", appointmentColumns)
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &appt, nil
}

// Create stores a new appointment record.
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	const query = `INSERT INTO appointments (id, resource_id, title, start_time, end_time, status, priority, lat, lng, recurrence, parent_id, created_at, updated_at) VALUES (:id, :resource_id, :title, :start_time, :end_time, :status, :priority, :lat, :lng, :recurrence, :parent_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, appt); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// Move reassigns an appointment to a resource and retimes it in one command.
// Rejected when the appointment vanished or the target resource is inactive.
func (r *AppointmentRepository) Move(ctx context.Context, id, resourceID string, start, end time.Time) error {
	const query = `UPDATE appointments SET resource_id = $2, start_time = $3, end_time = $4, updated_at = $5 WHERE id = $1 AND EXISTS (SELECT 1 FROM resources WHERE id = $2 AND active = true)`
	return r.exec(ctx, "move appointment", query, id, resourceID, start, end, time.Now().UTC())
}

// Assign schedules a pool appointment onto a resource. Rejected when the
// appointment is no longer unassigned.
func (r *AppointmentRepository) Assign(ctx context.Context, id, resourceID string, start, end time.Time) error {
	const query = `UPDATE appointments SET resource_id = $2, start_time = $3, end_time = $4, updated_at = $5 WHERE id = $1 AND resource_id IS NULL AND EXISTS (SELECT 1 FROM resources WHERE id = $2 AND active = true)`
	return r.exec(ctx, "assign appointment", query, id, resourceID, start, end, time.Now().UTC())
}

// Unassign returns an appointment to the pool.
func (r *AppointmentRepository) Unassign(ctx context.Context, id string) error {
	const query = `UPDATE appointments SET resource_id = NULL, updated_at = $2 WHERE id = $1 AND resource_id IS NOT NULL`
	return r.exec(ctx, "unassign appointment", query, id, time.Now().UTC())
}

// Retime changes an appointment's interval on its current resource.
func (r *AppointmentRepository) Retime(ctx context.Context, id string, start, end time.Time) error {
	const query = `UPDATE appointments SET start_time = $2, end_time = $3, updated_at = $4 WHERE id = $1`
	return r.exec(ctx, "retime appointment", query, id, start, end, time.Now().UTC())
}

// Delete removes an appointment.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM appointments WHERE id = $1`
	return r.exec(ctx, "delete appointment", query, id)
}

// exec runs a mutation and converts a zero rows-affected result into an
// explicit rejection.
func (r *AppointmentRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrRemoteRejected, op+" affected no rows")
	}
	return nil
}
