package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvue/dispatch-api/internal/models"
	"github.com/fieldvue/dispatch-api/pkg/config"
)

func newExportFixture(t *testing.T) (*ExportService, context.CancelFunc) {
	t.Helper()
	scheduled := []models.Appointment{
		apptAt("visit-1", "r1", layoutDay, 9, 0, 10, 0),
		apptAt("visit-2", "r2", layoutDay, 13, 0, 14, 30),
	}
	unassigned := []models.Appointment{
		appt("pool-1", "", time.Time{}, time.Time{}),
	}
	board, _, _ := newTestBoard(layoutDay, scheduled, unassigned, []models.Resource{
		resource("r1", "Alice"),
		resource("r2", "Bram"),
	})
	require.NoError(t, board.Refresh(context.Background()))

	svc := NewExportService(board, config.ExportsConfig{
		Enabled:           true,
		StorageDir:        t.TempDir(),
		CleanupSchedule:   "@hourly",
		RetainFor:         time.Hour,
		WorkerConcurrency: 1,
		WorkerRetries:     1,
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(svc.Stop)
	return svc, cancel
}

func TestDaySheetCSVRoundTrip(t *testing.T) {
	svc, cancel := newExportFixture(t)
	defer cancel()

	job, err := svc.Request(DaySheetRequest{Date: "2026-03-02", Format: FormatCSV}, "dispatcher-1")
	require.NoError(t, err)
	assert.Equal(t, ExportPending, job.Status)
	assert.Equal(t, "dispatcher-1", job.RequestedBy)

	require.Eventually(t, func() bool {
		tracked, err := svc.Job(job.ID)
		return err == nil && tracked.Status == ExportCompleted
	}, 5*time.Second, 10*time.Millisecond)

	path, err := svc.File(job.ID)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	body := string(raw)
	assert.Contains(t, body, "resource,start,end,title,status,priority")
	assert.Contains(t, body, "Alice,09:00,10:00,visit-1")
	assert.Contains(t, body, "Bram,13:00,14:30,visit-2")
	assert.Contains(t, body, "(unassigned)")
}

func TestDaySheetScopedToResourceSkipsPool(t *testing.T) {
	svc, cancel := newExportFixture(t)
	defer cancel()

	job, err := svc.Request(DaySheetRequest{Date: "2026-03-02", Format: FormatCSV, ResourceID: "r1"}, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		tracked, err := svc.Job(job.ID)
		return err == nil && tracked.Status == ExportCompleted
	}, 5*time.Second, 10*time.Millisecond)

	path, err := svc.File(job.ID)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	body := string(raw)
	assert.Contains(t, body, "visit-1")
	assert.NotContains(t, body, "visit-2")
	assert.NotContains(t, body, "(unassigned)")
}

func TestDaySheetPDFHasContent(t *testing.T) {
	svc, cancel := newExportFixture(t)
	defer cancel()

	job, err := svc.Request(DaySheetRequest{Date: "2026-03-02", Format: FormatPDF}, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		tracked, err := svc.Job(job.ID)
		return err == nil && tracked.Status == ExportCompleted
	}, 5*time.Second, 10*time.Millisecond)

	path, err := svc.File(job.ID)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "%PDF"))
}

func TestRequestValidation(t *testing.T) {
	svc, cancel := newExportFixture(t)
	defer cancel()

	_, err := svc.Request(DaySheetRequest{Date: "March 2nd", Format: FormatCSV}, "")
	require.Error(t, err)

	_, err = svc.Request(DaySheetRequest{Date: "2026-03-02", Format: "xlsx"}, "")
	require.Error(t, err)

	_, err = svc.Request(DaySheetRequest{Date: "2026-03-02", Format: FormatCSV, ResourceID: "r404"}, "")
	require.Error(t, err)
}

func TestFileRequiresCompletion(t *testing.T) {
	svc, cancel := newExportFixture(t)
	defer cancel()

	_, err := svc.File("ghost")
	require.Error(t, err)
}
