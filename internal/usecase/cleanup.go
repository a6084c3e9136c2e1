package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/semmidev/custos/internal/domain"
)

type Cleanup struct {
	storage       domain.Storage
	logger        Logger
	retentionDays int
	dryRun        bool
	now           func() time.Time
}

func NewCleanup(
	storage domain.Storage,
	logger Logger,
	retentionDays int,
	dryRun bool,
) *Cleanup {
	return &Cleanup{
		storage:       storage,
		logger:        logger,
		retentionDays: retentionDays,
		dryRun:        dryRun,
		now:           time.Now,
	}
}

// Execute removes every top-level file whose modification time is strictly
// before now minus the retention window. Files are judged by age alone, not
// by name. A failed removal is recorded and the scan carries on; the
// returned error joins every *domain.RemoveError. A retention of zero days
// puts the cutoff at now, so every file already written becomes eligible.
// A negative retention skips the pass.
func (uc *Cleanup) Execute(ctx context.Context) (domain.CleanupReport, error) {
	report := domain.CleanupReport{DryRun: uc.dryRun}

	if uc.retentionDays < 0 {
		report.Skipped = true
		uc.logger.Warnw("Negative retention, skipping cleanup", "retention_days", uc.retentionDays)
		return report, nil
	}

	report.Cutoff = uc.now().AddDate(0, 0, -uc.retentionDays)
	uc.logger.Infow("Starting cleanup",
		"store", uc.storage.Type(),
		"retention_days", uc.retentionDays,
		"cutoff", report.Cutoff.Format(time.RFC3339),
		"dry_run", uc.dryRun,
	)

	objects, err := uc.storage.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list files: %w", err)
	}

	var (
		errs      []error
		unmatched []string
	)
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report.Scanned++

		if !obj.ModTime.Before(report.Cutoff) {
			report.Kept++
			continue
		}

		location := uc.storage.Location(obj.Name)
		if uc.dryRun {
			uc.logger.Infow("Would delete old backup", "file", location, "modified", obj.ModTime.Format(time.RFC3339))
		} else if err := uc.storage.Delete(ctx, obj.Name); err != nil {
			removeErr := &domain.RemoveError{Name: obj.Name, Cause: err}
			report.Failed = append(report.Failed, removeErr)
			errs = append(errs, removeErr)
			uc.logger.Errorw("Failed to delete old backup", "file", location, "error", err)
			continue
		} else {
			uc.logger.Infow("Deleted old backup", "file", location, "modified", obj.ModTime.Format(time.RFC3339))
		}

		report.Deleted = append(report.Deleted, obj.Name)
		report.FreedBytes += obj.Size
		if !ArtifactPattern.MatchString(obj.Name) {
			unmatched = append(unmatched, obj.Name)
		}
	}

	if len(unmatched) > 0 {
		uc.logger.Warnw("Removed stale files that do not look like backups", "files", unmatched)
	}

	uc.logger.Infow("Cleanup completed",
		"scanned", report.Scanned,
		"deleted", len(report.Deleted),
		"kept", report.Kept,
		"failed", len(report.Failed),
		"freed_mb", fmt.Sprintf("%.2f", float64(report.FreedBytes)/(1024*1024)),
	)

	return report, errors.Join(errs...)
}
