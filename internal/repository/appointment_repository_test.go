package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/fieldvue/dispatch-api/internal/models"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
)

func newAppointmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func appointmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "resource_id", "title", "start_time", "end_time", "status", "priority", "lat", "lng", "recurrence", "parent_id", "created_at", "updated_at"})
}

func TestAppointmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	now := time.Now()
	rows := appointmentRows().
		AddRow("appt-1", "res-1", "Install", now, now.Add(time.Hour), "scheduled", "high", nil, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, resource_id, title")).
		WithArgs("res-1", "scheduled").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("res-1", "scheduled").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.AppointmentFilter{
		ResourceID: "res-1",
		Status:     "scheduled",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, "appt-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListRejectsUnknownSortColumn(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY start_time ASC")).
		WillReturnRows(appointmentRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.AppointmentFilter{
		SortBy:    "title; DROP TABLE appointments",
		SortOrder: "sideways",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryListInRange(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	now := time.Now()
	rows := appointmentRows().
		AddRow("appt-1", "res-1", "Install", from.Add(9*time.Hour), from.Add(10*time.Hour), "scheduled", "medium", nil, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE resource_id IS NOT NULL AND start_time < $1 AND end_time > $2")).
		WithArgs(to, from).
		WillReturnRows(rows)

	list, err := repo.ListInRange(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("ghost").
		WillReturnRows(appointmentRows())

	_, err := repo.FindByID(context.Background(), "ghost")
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	require.Equal(t, appErrors.ErrNotFound.Code, typed.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	appt := &models.Appointment{
		Title:     "Install",
		StartTime: time.Now(),
		EndTime:   time.Now().Add(time.Hour),
		Status:    models.StatusScheduled,
		Priority:  models.PriorityMedium,
	}
	require.NoError(t, repo.Create(context.Background(), appt))
	require.NotEmpty(t, appt.ID)
	require.False(t, appt.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryMoveRejectedOnZeroRows(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	start := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET resource_id = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Move(context.Background(), "appt-1", "res-gone", start, start.Add(time.Hour))
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	require.Equal(t, appErrors.ErrRemoteRejected.Code, typed.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryAssignGuardsUnassignedOnly(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	start := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("AND resource_id IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Assign(context.Background(), "pool-1", "res-1", start, start.Add(time.Hour)))

	mock.ExpectExec(regexp.QuoteMeta("AND resource_id IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Assign(context.Background(), "pool-1", "res-1", start, start.Add(time.Hour))
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryUnassign(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("SET resource_id = NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Unassign(context.Background(), "appt-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewAppointmentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "appt-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
