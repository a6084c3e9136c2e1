package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/semmidev/custos/internal/domain"
)

type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

const timestampLayout = "20060102_150405"

var (
	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

	// ArtifactPattern matches the names produced by ArtifactName.
	ArtifactPattern = regexp.MustCompile(`^[a-z]+_[A-Za-z0-9._-]+_\d{8}_\d{6}\.sql\.gz$`)
)

// ArtifactName returns <type>_<dbname>_<YYYYMMDD_HHMMSS>.sql<ext> with the
// timestamp in local time and anything outside [A-Za-z0-9._-] in the
// database name replaced by an underscore.
func ArtifactName(dbType, dbName string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s.sql%s",
		dbType,
		unsafeNameChars.ReplaceAllString(dbName, "_"),
		at.Local().Format(timestampLayout),
		ext,
	)
}

type Backup struct {
	db         domain.Database
	storage    domain.Storage
	compressor domain.Compressor
	logger     Logger
	timeout    time.Duration
	now        func() time.Time
}

func NewBackup(
	db domain.Database,
	storage domain.Storage,
	compressor domain.Compressor,
	logger Logger,
	timeout time.Duration,
) *Backup {
	return &Backup{
		db:         db,
		storage:    storage,
		compressor: compressor,
		logger:     logger,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Execute streams one dump through the compressor into the store. On any
// failure the partial artifact is discarded and a *domain.DumpError is
// returned.
func (uc *Backup) Execute(ctx context.Context) (*domain.Artifact, error) {
	start := uc.now()
	dbType, dbName := uc.db.GetType(), uc.db.GetName()
	name := ArtifactName(dbType, dbName, start, uc.compressor.Extension())

	fail := func(err error, timedOut bool) (*domain.Artifact, error) {
		dumpErr := &domain.DumpError{
			DatabaseType: dbType,
			DatabaseName: dbName,
			Artifact:     uc.storage.Location(name),
			TimedOut:     timedOut,
			Cause:        err,
		}
		uc.logger.Errorw("Backup failed",
			"database", dbName,
			"type", dbType,
			"artifact", dumpErr.Artifact,
			"timed_out", timedOut,
			"error", err,
		)
		return nil, dumpErr
	}

	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	uc.logger.Infow("Starting backup",
		"database", dbName,
		"type", dbType,
		"tool", uc.db.Binary(),
		"artifact", uc.storage.Location(name),
	)

	w, err := uc.storage.Create(ctx, name)
	if err != nil {
		return fail(fmt.Errorf("create artifact: %w", err), false)
	}

	counter := &countingWriter{w: w}
	zw, err := uc.compressor.NewWriter(counter)
	if err != nil {
		uc.abort(w, name)
		return fail(fmt.Errorf("compression: %w", err), false)
	}

	if err := uc.db.Dump(ctx, zw); err != nil {
		zw.Close()
		uc.abort(w, name)
		return fail(err, errors.Is(ctx.Err(), context.DeadlineExceeded))
	}

	if err := zw.Close(); err != nil {
		uc.abort(w, name)
		return fail(fmt.Errorf("compression: %w", err), false)
	}

	location, err := w.Commit()
	if err != nil {
		return fail(fmt.Errorf("commit artifact: %w", err), false)
	}

	artifact := &domain.Artifact{
		Name:         name,
		Location:     location,
		Size:         counter.n,
		DatabaseType: dbType,
		DatabaseName: dbName,
		CreatedAt:    start,
		Duration:     uc.now().Sub(start),
	}

	uc.logger.Infow("Backup completed",
		"database", dbName,
		"artifact", location,
		"size_mb", fmt.Sprintf("%.2f", float64(artifact.Size)/(1024*1024)),
		"duration", artifact.Duration.Round(time.Millisecond).String(),
	)

	return artifact, nil
}

func (uc *Backup) abort(w domain.ArtifactWriter, name string) {
	if err := w.Abort(); err != nil {
		uc.logger.Errorw("Failed to discard partial artifact", "artifact", uc.storage.Location(name), "error", err)
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// UnsupportedBackup stands in for a dumper when database.type is not
// recognised, so every cycle reports the problem and the daemon keeps
// running.
type UnsupportedBackup struct {
	DatabaseType string
}

func (u UnsupportedBackup) Execute(context.Context) (*domain.Artifact, error) {
	return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedDatabaseType, u.DatabaseType)
}
