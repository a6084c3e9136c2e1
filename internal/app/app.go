package app

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/semmidev/custos/internal/adapter/compressor"
	"github.com/semmidev/custos/internal/adapter/database"
	"github.com/semmidev/custos/internal/adapter/notifier"
	"github.com/semmidev/custos/internal/adapter/storage"
	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/domain"
	"github.com/semmidev/custos/internal/infrastructure/logger"
	"github.com/semmidev/custos/internal/infrastructure/scheduler"
	"github.com/semmidev/custos/internal/usecase"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	ownsLogger bool
	scheduler  *scheduler.Scheduler
	storage    domain.Storage
	db         domain.Database
	cycle      *usecase.Cycle
	cleanupUC  *usecase.Cleanup
}

type options struct {
	logger    *logger.Logger
	dbOptions []database.Option
}

type Option func(*options)

// WithLogger makes the app log through l instead of building its own.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDatabaseOptions is passed through to database.New.
func WithDatabaseOptions(opts ...database.Option) Option {
	return func(o *options) { o.dbOptions = append(o.dbOptions, opts...) }
}

// New wires every component from cfg. It fails when the logger or the
// backup store cannot be set up; an unsupported database type is not fatal.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log, owns := o.logger, false
	if log == nil {
		var err error
		log, err = logger.New(logger.Options{
			Level:      cfg.App.LogLevel,
			File:       cfg.App.LogFile,
			MaxSizeMB:  cfg.App.LogMaxSizeMB,
			MaxBackups: cfg.App.LogMaxBackups,
			MaxAgeDays: cfg.App.LogMaxAgeDays,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		owns = true
	}

	log.Infow("Starting "+cfg.App.Name,
		"database", cfg.Database.Name,
		"type", cfg.Database.Type,
		"destination", cfg.Backup.Destination,
	)

	store, err := initializeStorage(ctx, cfg, log)
	if err != nil {
		log.Errorw("Failed to initialize backup storage", "error", err)
		if owns {
			log.Close()
		}
		return nil, err
	}

	comp := compressor.NewGzip(cfg.Backup.CompressionLevel)

	var backupUC domain.BackupExecutor
	db, err := database.New(cfg.Database, o.dbOptions...)
	switch {
	case errors.Is(err, domain.ErrUnsupportedDatabaseType):
		log.Errorw("Unsupported database type, every cycle will be skipped until the config changes",
			"type", cfg.Database.Type)
		backupUC = usecase.UnsupportedBackup{DatabaseType: cfg.Database.Type}
		db = nil
	case err != nil:
		return nil, err
	default:
		backupUC = usecase.NewBackup(db, store, comp, log.Named("backup"), cfg.Backup.DumpTimeout)
	}

	cleanupUC := usecase.NewCleanup(store, log.Named("cleanup"), cfg.Backup.RetentionDays, cfg.Backup.DryRun)

	dbType := cfg.Database.Type
	if db != nil {
		dbType = db.GetType()
	}
	cycle := usecase.NewCycle(backupUC, cleanupUC, initializeNotifier(cfg, log), log.Named("cycle"), dbType, cfg.Database.Name)

	return &App{
		config:     cfg,
		logger:     log,
		ownsLogger: owns,
		scheduler:  scheduler.New(cfg.Interval(), cfg.Backup.Tick, log),
		storage:    store,
		db:         db,
		cycle:      cycle,
		cleanupUC:  cleanupUC,
	}, nil
}

func initializeStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.Storage, error) {
	switch cfg.Backup.Destination {
	case config.DestinationS3:
		s3, err := storage.NewS3(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3: %w", err)
		}
		log.Infow("✓ AWS S3 storage enabled", "bucket", cfg.Storage.S3.Bucket, "prefix", cfg.Storage.S3.Prefix)
		return s3, nil

	case config.DestinationGDrive:
		gdrive, err := storage.NewGDrive(ctx, cfg.Storage.GDrive)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Drive: %w", err)
		}
		log.Infow("✓ Google Drive storage enabled", "folder", cfg.Storage.GDrive.FolderID)
		return gdrive, nil

	default:
		local, err := storage.NewLocal(cfg.Backup.Directory)
		if err != nil {
			return nil, err
		}
		log.Infow("✓ Backup directory ready", "path", cfg.Backup.Directory, "mode", storage.DirMode.String())
		return local, nil
	}
}

func initializeNotifier(cfg *config.Config, log *logger.Logger) domain.Notifier {
	if !cfg.Notify.Telegram.Enabled {
		return notifier.Nop{}
	}
	tg, err := notifier.NewTelegram(cfg.Notify.Telegram)
	if err != nil {
		log.Errorw("Failed to initialize Telegram, notifications disabled", "error", err)
		return notifier.Nop{}
	}
	log.Infow("✓ Telegram notifications enabled", "on", cfg.Notify.Telegram.On)
	return tg
}

// Run runs one cycle right away when run_on_start is set, then hands over
// to the scheduler until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.config.Backup.RunOnStart {
		a.logger.Infow("=== Running startup backup ===")
		_, _ = a.cycle.Run(ctx)
	}

	return a.scheduler.Run(ctx, func(ctx context.Context) error {
		a.logger.Infow("=== Triggered scheduled backup ===", "database", a.config.Database.Name)
		_, err := a.cycle.Run(ctx)
		return err
	})
}

// RunOnce runs a single cycle. The error is non-nil when the dump failed or
// the database type is unsupported.
func (a *App) RunOnce(ctx context.Context) (domain.CycleEvent, error) {
	return a.cycle.Run(ctx)
}

func (a *App) CleanupOnce(ctx context.Context) (domain.CleanupReport, error) {
	return a.cleanupUC.Execute(ctx)
}

// Check verifies that the dump tool is installed and the database answers.
func (a *App) Check(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedDatabaseType, a.config.Database.Type)
	}

	path, err := exec.LookPath(a.db.Binary())
	if err != nil {
		return fmt.Errorf("dump tool %s not found: %w", a.db.Binary(), err)
	}
	a.logger.Infow("✓ Dump tool found", "path", path)

	if err := a.db.Ping(ctx); err != nil {
		return err
	}
	a.logger.Infow("✓ Connected to database", "database", a.db.GetName(), "type", a.db.GetType())

	if _, err := a.storage.List(ctx); err != nil {
		return fmt.Errorf("backup storage not readable: %w", err)
	}
	a.logger.Infow("✓ Backup storage reachable", "store", a.storage.Type())

	return nil
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

func (a *App) Shutdown() {
	a.logger.Infow("Shutting down application...")
	if a.ownsLogger {
		a.logger.Close()
	}
}
