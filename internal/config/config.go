package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrConfigNotFound = errors.New("config not found")
	ErrConfigParse    = errors.New("config parse error")
	ErrConfigInvalid  = errors.New("invalid config")
)

const envPrefix = "CUSTOS"

const (
	DestinationLocal  = "local"
	DestinationS3     = "s3"
	DestinationGDrive = "gdrive"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type AppConfig struct {
	Name          string `mapstructure:"name"`
	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`
}

type DatabaseConfig struct {
	Type     string `mapstructure:"type"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// Appended to the vendor dump tool's argv as-is.
	ExtraArgs []string `mapstructure:"extra_args"`
}

type BackupConfig struct {
	Directory        string        `mapstructure:"directory"`
	RetentionDays    int           `mapstructure:"retention_days"`
	IntervalHours    float64       `mapstructure:"interval_hours"`
	Destination      string        `mapstructure:"destination"`
	RunOnStart       bool          `mapstructure:"run_on_start"`
	DumpTimeout      time.Duration `mapstructure:"dump_timeout"`
	CompressionLevel int           `mapstructure:"compression_level"`
	Tick             time.Duration `mapstructure:"tick"`
	DryRun           bool          `mapstructure:"dry_run"`
}

type StorageConfig struct {
	S3     S3Config     `mapstructure:"s3"`
	GDrive GDriveConfig `mapstructure:"gdrive"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type GDriveConfig struct {
	FolderID string `mapstructure:"folder_id"`

	// Service account key. Takes precedence over the OAuth client settings.
	CredentialsFile string `mapstructure:"credentials_file"`

	ClientSecretFile string `mapstructure:"client_secret_file"`
	RefreshToken     string `mapstructure:"refresh_token"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	BotToken string   `mapstructure:"bot_token"`
	ChatID   int64    `mapstructure:"chat_id"`
	On       []string `mapstructure:"on"`
}

// keys lists every leaf key so environment variables are picked up by
// Unmarshal even when the file does not mention them.
var keys = []string{
	"app.name", "app.log_level", "app.log_file", "app.log_max_size_mb",
	"app.log_max_backups", "app.log_max_age_days",
	"database.type", "database.host", "database.port", "database.name",
	"database.user", "database.password", "database.extra_args",
	"backup.directory", "backup.retention_days", "backup.interval_hours",
	"backup.destination", "backup.run_on_start", "backup.dump_timeout",
	"backup.compression_level", "backup.tick", "backup.dry_run",
	"storage.s3.bucket", "storage.s3.region", "storage.s3.endpoint",
	"storage.s3.prefix", "storage.s3.access_key", "storage.s3.secret_key",
	"storage.gdrive.folder_id", "storage.gdrive.credentials_file",
	"storage.gdrive.client_secret_file", "storage.gdrive.refresh_token",
	"notify.telegram.enabled", "notify.telegram.bot_token",
	"notify.telegram.chat_id", "notify.telegram.on",
}

// Load reads and validates the YAML file at path. Every call re-reads the
// file; nothing is cached.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigNotFound, path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "custos")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_max_size_mb", 100)
	v.SetDefault("app.log_max_backups", 3)
	v.SetDefault("app.log_max_age_days", 28)
	v.SetDefault("backup.retention_days", 7)
	v.SetDefault("backup.interval_hours", 24)
	v.SetDefault("backup.destination", DestinationLocal)
	v.SetDefault("backup.run_on_start", true)
	v.SetDefault("backup.dump_timeout", 2*time.Hour)
	v.SetDefault("backup.compression_level", 6)
	v.SetDefault("backup.tick", time.Minute)
	v.SetDefault("notify.telegram.on", []string{"failure"})
}

// normalize lowercases and trims the enum-like keys and fills an unset port
// with the vendor default. These are the only fields that do not round-trip
// verbatim.
func (c *Config) normalize() {
	c.Database.Type = strings.ToLower(strings.TrimSpace(c.Database.Type))
	c.Backup.Destination = strings.ToLower(strings.TrimSpace(c.Backup.Destination))
	if c.Database.Port == 0 {
		c.Database.Port = DefaultPort(c.Database.Type)
	}
}

// DefaultPort returns the vendor default port, or 0 for unknown types.
func DefaultPort(dbType string) int {
	switch dbType {
	case "mysql":
		return 3306
	case "postgres", "postgresql":
		return 5432
	}
	return 0
}

// Validate checks structural constraints. An unknown database.type is
// accepted here; the daemon reports it on every cycle instead.
func (c *Config) Validate() error {
	if c.Database.Type == "" {
		return fmt.Errorf("database.type is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d out of range", c.Database.Port)
	}

	if c.Backup.Directory == "" && c.Backup.Destination == DestinationLocal {
		return fmt.Errorf("backup.directory is required for destination local")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days must be >= 0, got %d", c.Backup.RetentionDays)
	}
	if c.Backup.IntervalHours <= 0 {
		return fmt.Errorf("backup.interval_hours must be > 0, got %v", c.Backup.IntervalHours)
	}
	if c.Backup.DumpTimeout < 0 {
		return fmt.Errorf("backup.dump_timeout must be >= 0, got %s", c.Backup.DumpTimeout)
	}
	if c.Backup.Tick <= 0 {
		return fmt.Errorf("backup.tick must be > 0, got %s", c.Backup.Tick)
	}
	if c.Backup.CompressionLevel < 1 || c.Backup.CompressionLevel > 9 {
		return fmt.Errorf("backup.compression_level must be within 1..9, got %d", c.Backup.CompressionLevel)
	}

	switch c.Backup.Destination {
	case DestinationLocal:
	case DestinationS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for destination s3")
		}
	case DestinationGDrive:
		g := c.Storage.GDrive
		if g.FolderID == "" {
			return fmt.Errorf("storage.gdrive.folder_id is required for destination gdrive")
		}
		if g.CredentialsFile == "" && (g.ClientSecretFile == "" || g.RefreshToken == "") {
			return fmt.Errorf("storage.gdrive needs credentials_file or client_secret_file with refresh_token")
		}
	default:
		return fmt.Errorf("backup.destination %q is not one of local, s3, gdrive", c.Backup.Destination)
	}

	if t := c.Notify.Telegram; t.Enabled {
		if t.BotToken == "" || t.ChatID == 0 {
			return fmt.Errorf("notify.telegram needs bot_token and chat_id when enabled")
		}
		for _, on := range t.On {
			switch strings.ToLower(on) {
			case "success", "failure", "skipped", "all":
			default:
				return fmt.Errorf("notify.telegram.on contains unsupported value %q", on)
			}
		}
	}

	return nil
}

// Interval is backup.interval_hours as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Backup.IntervalHours * float64(time.Hour))
}
