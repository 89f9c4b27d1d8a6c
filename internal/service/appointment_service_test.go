package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvue/dispatch-api/internal/models"
)

type appointmentRepoStub struct {
	created []models.Appointment
	deleted []string
	listed  []models.Appointment
	total   int
}

func (s *appointmentRepoStub) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	return s.listed, s.total, nil
}

func (s *appointmentRepoStub) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	for _, a := range s.created {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *appointmentRepoStub) Create(ctx context.Context, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = "generated"
	}
	s.created = append(s.created, *appt)
	return nil
}

func (s *appointmentRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func newAppointmentFixture(t *testing.T) (*AppointmentService, *appointmentRepoStub, *BoardService) {
	t.Helper()
	board, _, _ := newTestBoard(layoutDay, nil, nil, []models.Resource{resource("r1", "Alice")})
	require.NoError(t, board.Refresh(context.Background()))
	repo := &appointmentRepoStub{}
	return NewAppointmentService(repo, board, nil, nil), repo, board
}

func TestCreateScheduledAppointmentMirrorsBoard(t *testing.T) {
	svc, repo, board := newAppointmentFixture(t)

	start := layoutDay.Add(9 * time.Hour)
	end := start.Add(time.Hour)
	created, err := svc.Create(context.Background(), CreateAppointmentRequest{
		ResourceID: "r1",
		Title:      "Install",
		Start:      &start,
		End:        &end,
		Priority:   "high",
	})
	require.NoError(t, err)
	assert.Equal(t, "generated", created.ID)
	assert.Equal(t, models.PriorityHigh, created.Priority)
	require.Len(t, repo.created, 1)

	mirrored, ok := board.Appointment("generated")
	require.True(t, ok)
	assert.Equal(t, "r1", mirrored.ResourceID.String)
}

func TestCreatePooledAppointment(t *testing.T) {
	svc, _, board := newAppointmentFixture(t)

	created, err := svc.Create(context.Background(), CreateAppointmentRequest{Title: "Backlog job"})
	require.NoError(t, err)
	assert.True(t, created.Unassigned())

	pool := board.Pool()
	require.Len(t, pool, 1)
	assert.Equal(t, created.ID, pool[0].ID)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newAppointmentFixture(t)
	start := layoutDay.Add(9 * time.Hour)
	end := start.Add(time.Hour)

	cases := []struct {
		name string
		req  CreateAppointmentRequest
	}{
		{"missing title", CreateAppointmentRequest{ResourceID: "r1", Start: &start, End: &end}},
		{"bad priority", CreateAppointmentRequest{Title: "x", Priority: "maximum"}},
		{"start without end", CreateAppointmentRequest{Title: "x", Start: &start}},
		{"end before start", CreateAppointmentRequest{Title: "x", Start: &end, End: &start}},
		{"scheduled without times", CreateAppointmentRequest{Title: "x", ResourceID: "r1"}},
		{"unknown resource", CreateAppointmentRequest{Title: "x", ResourceID: "r404", Start: &start, End: &end}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			require.Error(t, err)
		})
	}
}

func TestDeleteRemovesLocalState(t *testing.T) {
	svc, repo, board := newAppointmentFixture(t)

	created, err := svc.Create(context.Background(), CreateAppointmentRequest{Title: "Backlog job"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.Equal(t, []string{created.ID}, repo.deleted)
	_, ok := board.Appointment(created.ID)
	assert.False(t, ok)
}

func TestListPaginationDefaults(t *testing.T) {
	board, _, _ := newTestBoard(layoutDay, nil, nil, nil)
	repo := &appointmentRepoStub{total: 120}
	svc := NewAppointmentService(repo, board, nil, nil)

	_, page, err := svc.List(context.Background(), models.AppointmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.PageSize)
	assert.Equal(t, 120, page.TotalCount)
}
