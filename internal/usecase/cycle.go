package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/custos/internal/domain"
)

const notifyTimeout = 30 * time.Second

// Cycle runs one dump followed by one cleanup pass. At most one cycle is in
// flight at a time.
type Cycle struct {
	backup   domain.BackupExecutor
	cleanup  domain.RetentionExecutor
	notifier domain.Notifier
	logger   Logger
	dbType   string
	dbName   string

	mu  sync.Mutex
	now func() time.Time
}

func NewCycle(
	backup domain.BackupExecutor,
	cleanup domain.RetentionExecutor,
	notifier domain.Notifier,
	logger Logger,
	dbType, dbName string,
) *Cycle {
	return &Cycle{
		backup:   backup,
		cleanup:  cleanup,
		notifier: notifier,
		logger:   logger,
		dbType:   dbType,
		dbName:   dbName,
		now:      time.Now,
	}
}

// Run executes the cycle. Cleanup only runs after a successful dump. The
// returned error is the dump error, or the cleanup error when the dump
// succeeded; ErrCycleInProgress means another cycle holds the lock.
func (c *Cycle) Run(ctx context.Context) (domain.CycleEvent, error) {
	if !c.mu.TryLock() {
		c.logger.Warnw("Backup cycle already running, skipping trigger", "database", c.dbName)
		return domain.CycleEvent{Status: domain.CycleSkipped, Err: domain.ErrCycleInProgress}, domain.ErrCycleInProgress
	}
	defer c.mu.Unlock()

	event := domain.CycleEvent{
		ID:           uuid.NewString(),
		DatabaseType: c.dbType,
		DatabaseName: c.dbName,
		StartedAt:    c.now(),
	}
	c.logger.Infow("Backup cycle started", "cycle", event.ID, "database", c.dbName, "type", c.dbType)

	artifact, err := c.backup.Execute(ctx)
	if err != nil {
		event.Err = err
		if errors.Is(err, domain.ErrUnsupportedDatabaseType) {
			event.Status = domain.CycleSkipped
			c.logger.Errorw("Unsupported database type, skipping cycle",
				"cycle", event.ID, "type", c.dbType, "error", err)
		} else {
			event.Status = domain.CycleFailed
			c.logger.Warnw("Dump failed, skipping cleanup",
				"cycle", event.ID, "status", string(event.Status))
		}
		c.finish(ctx, &event)
		return event, err
	}
	event.Artifact = artifact

	report, err := c.cleanup.Execute(ctx)
	event.Cleanup = &report
	event.Status = domain.CycleSucceeded
	if err != nil {
		event.Err = err
		c.logger.Warnw("Cleanup finished with errors", "cycle", event.ID, "error", err)
	}

	c.finish(ctx, &event)
	return event, err
}

func (c *Cycle) finish(ctx context.Context, event *domain.CycleEvent) {
	event.Duration = c.now().Sub(event.StartedAt)
	c.logger.Infow("Backup cycle finished",
		"cycle", event.ID,
		"status", string(event.Status),
		"duration", event.Duration.Round(time.Millisecond).String(),
	)

	// Shutdown should not swallow the report of the cycle it interrupted.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := c.notifier.Notify(nctx, *event); err != nil {
		c.logger.Warnw("Failed to send notification", "cycle", event.ID, "error", err)
	}
}
