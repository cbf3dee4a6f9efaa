package core

// scheduler.go re-imports the configured source file on a cron schedule.
//
// A scheduled run skips the file when its checksum matches an earlier upload,
// so dropping a new export into place is picked up once. Failures are logged
// and never stop the scheduler.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// StartImportScheduler registers the import job under spec (standard 5-field
// cron syntax or descriptors like "@hourly") and runs it until ctx ends.
// It returns an error if the schedule does not parse or no source path is set.
func (s *Service) StartImportScheduler(ctx context.Context, spec string) error {
	if s.sourcePath == "" {
		return fmt.Errorf("import schedule %q: %w", spec, ErrNoSource)
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.runScheduledImport(ctx) }); err != nil {
		return fmt.Errorf("import schedule %q: %w", spec, err)
	}
	c.Start()

	slog.Info("import scheduler started", "schedule", spec, "path", s.sourcePath)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		slog.Info("import scheduler stopped")
	}()
	return nil
}

// runScheduledImport performs one import of the source path. A run that
// finds every upload slot taken is skipped rather than queued behind requests.
func (s *Service) runScheduledImport(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.limiter.TryAcquire() {
		slog.Warn("scheduled import postponed, upload slots busy", "path", s.sourcePath)
		return
	}
	defer s.limiter.Release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	start := time.Now()

	result, err := s.ingestFile(ctx, s.sourcePath, SourceSchedule, "", true)
	switch {
	case err != nil && IsUserFacing(err):
		slog.Error("scheduled import failed", "path", s.sourcePath, "error", err, "user_error", FormatUserError(err))
	case err != nil:
		slog.Error("scheduled import failed", "path", s.sourcePath, "error", err)
	case result.Skipped:
		slog.Debug("scheduled import found no new file", "path", s.sourcePath)
	default:
		slog.Info("scheduled import completed",
			"upload_id", result.UploadID,
			"rows", result.Rows,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
