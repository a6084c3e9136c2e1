package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/semmidev/custos/internal/config"
)

const pingTimeout = 10 * time.Second

type MySQLDatabase struct {
	config config.DatabaseConfig
	opts   options
}

func NewMySQL(cfg config.DatabaseConfig, opts options) *MySQLDatabase {
	if opts.binary == "" {
		opts.binary = "mysqldump"
	}
	return &MySQLDatabase{config: cfg, opts: opts}
}

func (m *MySQLDatabase) args() []string {
	var args []string
	if m.config.Host != "" {
		args = append(args, fmt.Sprintf("--host=%s", m.config.Host))
	}
	if m.config.Port != 0 {
		args = append(args, fmt.Sprintf("--port=%d", m.config.Port))
	}
	if m.config.User != "" {
		args = append(args, fmt.Sprintf("--user=%s", m.config.User))
	}
	if m.config.Password != "" {
		args = append(args, fmt.Sprintf("--password=%s", m.config.Password))
	}
	args = append(args,
		"--single-transaction",
		"--quick",
		"--routines",
		"--triggers",
		"--events",
	)
	args = append(args, m.config.ExtraArgs...)
	return append(args, m.config.Name)
}

// Dump runs mysqldump and streams its output into w. The password travels
// as a flag, so it is masked in any error text.
func (m *MySQLDatabase) Dump(ctx context.Context, w io.Writer) error {
	cmd := exec.CommandContext(ctx, m.opts.binary, m.args()...)
	cmd.WaitDelay = m.opts.waitDelay

	if err := runDump(ctx, cmd, w, m.config.Password); err != nil {
		return fmt.Errorf("mysqldump failed: %w", err)
	}
	return nil
}

func (m *MySQLDatabase) GetName() string {
	return m.config.Name
}

func (m *MySQLDatabase) GetType() string {
	return TypeMySQL
}

func (m *MySQLDatabase) Binary() string {
	return m.opts.binary
}

// Ping opens a short-lived connection through the MySQL driver.
func (m *MySQLDatabase) Ping(ctx context.Context) error {
	db, err := sql.Open("mysql", m.dsn())
	if err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}
	return nil
}

func (m *MySQLDatabase) dsn() string {
	c := mysql.NewConfig()
	c.User = m.config.User
	c.Passwd = m.config.Password
	c.DBName = m.config.Name
	c.Timeout = pingTimeout
	if m.config.Host != "" {
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(m.config.Host, strconv.Itoa(m.config.Port))
	}
	return c.FormatDSN()
}
