package database

import (
	"fmt"
	"time"

	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/domain"
)

const (
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
)

// Grace period between killing a timed-out dump tool and forcibly closing
// its output pipes.
const defaultWaitDelay = 5 * time.Second

type options struct {
	binary     string
	pingBinary string
	waitDelay  time.Duration
}

type Option func(*options)

// WithBinary overrides the dump tool that is executed.
func WithBinary(path string) Option {
	return func(o *options) { o.binary = path }
}

// WithPingBinary overrides the readiness tool used by Ping where the
// adapter shells out for it.
func WithPingBinary(path string) Option {
	return func(o *options) { o.pingBinary = path }
}

func WithWaitDelay(d time.Duration) Option {
	return func(o *options) { o.waitDelay = d }
}

// New returns the adapter for cfg.Type. Unknown types yield
// domain.ErrUnsupportedDatabaseType.
func New(cfg config.DatabaseConfig, opts ...Option) (domain.Database, error) {
	o := options{waitDelay: defaultWaitDelay}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Type {
	case TypeMySQL:
		return NewMySQL(cfg, o), nil
	case TypePostgres, "postgresql":
		return NewPostgreSQL(cfg, o), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedDatabaseType, cfg.Type)
	}
}
