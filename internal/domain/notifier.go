package domain

import (
	"context"
	"time"
)

type CycleStatus string

const (
	CycleSucceeded CycleStatus = "success"
	CycleFailed    CycleStatus = "failure"
	CycleSkipped   CycleStatus = "skipped"
)

// CycleEvent describes the outcome of one dump-then-cleanup cycle.
type CycleEvent struct {
	ID           string
	DatabaseType string
	DatabaseName string
	Status       CycleStatus
	StartedAt    time.Time
	Duration     time.Duration
	Artifact     *Artifact
	Cleanup      *CleanupReport
	Err          error
}

type Notifier interface {
	Notify(ctx context.Context, event CycleEvent) error
}
