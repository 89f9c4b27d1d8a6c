package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/fieldvue/dispatch-api/internal/models"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
)

func resourceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "display_name", "color", "lat", "lng", "active", "created_at", "updated_at"})
}

func TestResourceRepositoryListSearch(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewResourceRepository(db)
	now := time.Now()
	active := true
	rows := resourceRows().
		AddRow("res-1", "Alice Trucker", "#1e88e5", nil, nil, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("display_name ILIKE $1")).
		WithArgs("%ali%", true).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("%ali%", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.ResourceFilter{
		Search: "ali",
		Active: &active,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, "Alice Trucker", list[0].DisplayName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewResourceRepository(db)
	now := time.Now()
	rows := resourceRows().
		AddRow("res-1", "Alice", "#1e88e5", nil, nil, true, now, now).
		AddRow("res-2", "Bram", "#43a047", nil, nil, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE active = true ORDER BY display_name ASC")).
		WillReturnRows(rows)

	list, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()

	repo := NewResourceRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM resources WHERE id = $1")).
		WithArgs("ghost").
		WillReturnRows(resourceRows())

	_, err := repo.FindByID(context.Background(), "ghost")
	var typed *appErrors.Error
	require.True(t, errors.As(err, &typed))
	require.Equal(t, appErrors.ErrNotFound.Code, typed.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
