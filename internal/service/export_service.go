package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fieldvue/dispatch-api/pkg/config"
	appErrors "github.com/fieldvue/dispatch-api/pkg/errors"
	"github.com/fieldvue/dispatch-api/pkg/export"
	"github.com/fieldvue/dispatch-api/pkg/jobs"
)

// ExportStatus tracks an export job through its lifecycle.
type ExportStatus string

const (
	ExportPending   ExportStatus = "pending"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
)

// ExportFormat selects the rendered output.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// DaySheetRequest asks for a printable sheet of one day's schedule,
// optionally scoped to a single resource.
type DaySheetRequest struct {
	Date       string       `json:"date" validate:"required"`
	Format     ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	ResourceID string       `json:"resource_id,omitempty"`
}

// ExportJob is the tracked state of one requested export.
type ExportJob struct {
	ID          string       `json:"id"`
	Status      ExportStatus `json:"status"`
	Format      ExportFormat `json:"format"`
	Date        string       `json:"date"`
	ResourceID  string       `json:"resource_id,omitempty"`
	RequestedBy string       `json:"requested_by,omitempty"`
	FilePath    string       `json:"-"`
	Error       string       `json:"error,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// ExportService renders day sheets asynchronously through a worker queue and
// prunes stale files on a cron schedule.
type ExportService struct {
	board  *BoardService
	cfg    config.ExportsConfig
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	queue  *jobs.Queue
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.RWMutex
	tracked map[string]*ExportJob
}

// NewExportService instantiates ExportService. Start must be called before
// exports are accepted.
func NewExportService(board *BoardService, cfg config.ExportsConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		board:   board,
		cfg:     cfg,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
		tracked: make(map[string]*ExportJob),
	}
	s.queue = jobs.NewQueue("day-sheet", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start brings up the worker pool and the cleanup schedule.
func (s *ExportService) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	if err := os.MkdirAll(s.cfg.StorageDir, 0o755); err != nil {
		return fmt.Errorf("create export storage dir: %w", err)
	}
	s.queue.Start(ctx)

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.CleanupSchedule, s.cleanup); err != nil {
		return fmt.Errorf("schedule export cleanup: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop drains the workers and halts the cleanup schedule.
func (s *ExportService) Stop() {
	if !s.cfg.Enabled {
		return
	}
	s.queue.Stop()
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Request validates and enqueues a day sheet export. requestedBy is the
// subject of the requesting operator when auth is enabled, empty otherwise.
func (s *ExportService) Request(req DaySheetRequest, requestedBy string) (*ExportJob, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exports are disabled")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}
	if req.Format != FormatCSV && req.Format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if req.ResourceID != "" && !s.board.HasResource(req.ResourceID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown resource")
	}

	job := &ExportJob{
		ID:          uuid.NewString(),
		Status:      ExportPending,
		Format:      req.Format,
		Date:        req.Date,
		ResourceID:  req.ResourceID,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.tracked[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "day-sheet", Payload: req}); err != nil {
		s.mu.Lock()
		delete(s.tracked, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export queue is full")
	}
	return job, nil
}

// Job returns the tracked state of an export.
func (s *ExportService) Job(id string) (*ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.tracked[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	cp := *job
	return &cp, nil
}

// File returns the rendered file path for a completed export.
func (s *ExportService) File(id string) (string, error) {
	job, err := s.Job(id)
	if err != nil {
		return "", err
	}
	if job.Status != ExportCompleted {
		return "", appErrors.Clone(appErrors.ErrValidation, "export is not completed")
	}
	return job.FilePath, nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(DaySheetRequest)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		s.markFailed(job.ID, err)
		return nil
	}

	data := s.daySheet(day, req.ResourceID)

	var rendered []byte
	switch req.Format {
	case FormatPDF:
		rendered, err = s.pdf.Render(data, fmt.Sprintf("Day Sheet %s", req.Date))
	default:
		rendered, err = s.csv.Render(data)
	}
	if err != nil {
		s.markFailed(job.ID, err)
		return nil
	}

	name := fmt.Sprintf("day-sheet-%s-%s.%s", req.Date, job.ID, req.Format)
	path := filepath.Join(s.cfg.StorageDir, name)
	if err := os.WriteFile(path, rendered, 0o644); err != nil {
		s.markFailed(job.ID, err)
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if tracked, ok := s.tracked[job.ID]; ok {
		tracked.Status = ExportCompleted
		tracked.FilePath = path
		tracked.CompletedAt = &now
	}
	s.mu.Unlock()
	s.logger.Info("day sheet rendered", zap.String("job_id", job.ID), zap.String("path", path))
	return nil
}

// daySheet flattens one day into tabular rows, ordered by resource then
// start time, with pool items collected at the end.
func (s *ExportService) daySheet(day time.Time, resourceID string) export.Dataset {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	names := make(map[string]string)
	for _, r := range s.board.Resources() {
		names[r.ID] = r.DisplayName
	}

	var rows []map[string]string
	appts := s.board.Appointments()
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].ResourceID.String != appts[j].ResourceID.String {
			return appts[i].ResourceID.String < appts[j].ResourceID.String
		}
		return appts[i].StartTime.Before(appts[j].StartTime)
	})
	for _, a := range appts {
		if a.Unassigned() {
			continue
		}
		if resourceID != "" && a.ResourceID.String != resourceID {
			continue
		}
		if !a.StartTime.Before(to) || a.EndTime.Before(from) {
			continue
		}
		rows = append(rows, map[string]string{
			"resource": names[a.ResourceID.String],
			"start":    a.StartTime.Format("15:04"),
			"end":      a.EndTime.Format("15:04"),
			"title":    a.Title,
			"status":   string(a.Status),
			"priority": string(a.Priority),
		})
	}
	if resourceID == "" {
		for _, a := range s.board.Pool() {
			rows = append(rows, map[string]string{
				"resource": "(unassigned)",
				"start":    "",
				"end":      "",
				"title":    a.Title,
				"status":   string(a.Status),
				"priority": string(a.Priority),
			})
		}
	}
	return export.Dataset{
		Headers: []string{"resource", "start", "end", "title", "status", "priority"},
		Rows:    rows,
	}
}

// cleanup removes rendered files past the retention window.
func (s *ExportService) cleanup() {
	cutoff := time.Now().Add(-s.cfg.RetainFor)
	entries, err := os.ReadDir(s.cfg.StorageDir)
	if err != nil {
		s.logger.Warn("export cleanup scan failed", zap.Error(err))
		return
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "day-sheet-") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.StorageDir, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("export cleanup removed files", zap.Int("count", removed))
	}
}

func (s *ExportService) markFailed(id string, cause error) {
	now := time.Now().UTC()
	s.mu.Lock()
	if tracked, ok := s.tracked[id]; ok {
		tracked.Status = ExportFailed
		tracked.Error = cause.Error()
		tracked.CompletedAt = &now
	}
	s.mu.Unlock()
	s.logger.Warn("day sheet export failed", zap.String("job_id", id), zap.Error(cause))
}
