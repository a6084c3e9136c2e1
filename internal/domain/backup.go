package domain

import (
	"context"
	"time"
)

// Artifact is one compressed dump stored by a Storage.
type Artifact struct {
	Name         string
	Location     string
	Size         int64
	DatabaseType string
	DatabaseName string
	CreatedAt    time.Time
	Duration     time.Duration
}

// CleanupReport summarises one retention pass.
type CleanupReport struct {
	Cutoff     time.Time
	Scanned    int
	Kept       int
	Deleted    []string
	Failed     []*RemoveError
	FreedBytes int64
	DryRun     bool
	Skipped    bool
}

// BackupExecutor produces a single artifact.
type BackupExecutor interface {
	Execute(ctx context.Context) (*Artifact, error)
}

// RetentionExecutor runs one retention pass.
type RetentionExecutor interface {
	Execute(ctx context.Context) (CleanupReport, error)
}
