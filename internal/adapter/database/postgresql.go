package database

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/semmidev/custos/internal/config"
)

type PostgreSQLDatabase struct {
	config config.DatabaseConfig
	opts   options
}

func NewPostgreSQL(cfg config.DatabaseConfig, opts options) *PostgreSQLDatabase {
	if opts.binary == "" {
		opts.binary = "pg_dump"
	}
	if opts.pingBinary == "" {
		opts.pingBinary = "pg_isready"
	}
	return &PostgreSQLDatabase{config: cfg, opts: opts}
}

func (p *PostgreSQLDatabase) connArgs() []string {
	var args []string
	if p.config.Host != "" {
		args = append(args, fmt.Sprintf("--host=%s", p.config.Host))
	}
	if p.config.Port != 0 {
		args = append(args, fmt.Sprintf("--port=%d", p.config.Port))
	}
	if p.config.User != "" {
		args = append(args, fmt.Sprintf("--username=%s", p.config.User))
	}
	return args
}

func (p *PostgreSQLDatabase) secrets() secretEnv {
	return secretEnv{"PGPASSWORD": p.config.Password}
}

// Dump runs pg_dump with the password in the child's environment only.
// --no-password makes pg_dump fail instead of prompting when it is wrong.
func (p *PostgreSQLDatabase) Dump(ctx context.Context, w io.Writer) error {
	args := append(p.connArgs(), "--no-password", "--format=plain")
	args = append(args, p.config.ExtraArgs...)
	args = append(args, p.config.Name)

	cmd := exec.CommandContext(ctx, p.opts.binary, args...)
	cmd.WaitDelay = p.opts.waitDelay

	p.secrets().apply(cmd)

	if err := runDump(ctx, cmd, w, p.config.Password); err != nil {
		return fmt.Errorf("pg_dump failed: %w", err)
	}
	return nil
}

func (p *PostgreSQLDatabase) GetName() string {
	return p.config.Name
}

func (p *PostgreSQLDatabase) GetType() string {
	return TypePostgres
}

func (p *PostgreSQLDatabase) Binary() string {
	return p.opts.binary
}

// Ping asks pg_isready whether the server accepts connections.
func (p *PostgreSQLDatabase) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	args := append(p.connArgs(), fmt.Sprintf("--dbname=%s", p.config.Name))
	cmd := exec.CommandContext(ctx, p.opts.pingBinary, args...)
	cmd.WaitDelay = p.opts.waitDelay

	p.secrets().apply(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("postgresql ping failed: %w, output: %s", err, mask(string(output), p.config.Password))
	}
	return nil
}
