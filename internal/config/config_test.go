package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(dir, body string) string {
	path := filepath.Join(dir, "config.yaml")
	So(os.WriteFile(path, []byte(body), 0600), ShouldBeNil)
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a config file", t, func() {
		tempDir := t.TempDir()

		Convey("When every documented field is set", func() {
			path := writeConfig(tempDir, `
database:
  type: mysql
  host: db.internal
  port: 3307
  name: shop
  user: backup
  password: "s3cr3t;$(rm -rf /)"
backup:
  directory: /var/backups/shop
  retention_days: 7
  interval_hours: 24
`)
			cfg, err := Load(path)

			Convey("It should round-trip every field unchanged", func() {
				So(err, ShouldBeNil)
				So(cfg.Database.Type, ShouldEqual, "mysql")
				So(cfg.Database.Host, ShouldEqual, "db.internal")
				So(cfg.Database.Port, ShouldEqual, 3307)
				So(cfg.Database.Name, ShouldEqual, "shop")
				So(cfg.Database.User, ShouldEqual, "backup")
				So(cfg.Database.Password, ShouldEqual, "s3cr3t;$(rm -rf /)")
				So(cfg.Backup.Directory, ShouldEqual, "/var/backups/shop")
				So(cfg.Backup.RetentionDays, ShouldEqual, 7)
				So(cfg.Backup.IntervalHours, ShouldEqual, 24.0)
				So(cfg.Interval(), ShouldEqual, 24*time.Hour)
			})

			Convey("It should fill in defaults", func() {
				So(cfg.App.Name, ShouldEqual, "custos")
				So(cfg.App.LogLevel, ShouldEqual, "info")
				So(cfg.Backup.Destination, ShouldEqual, DestinationLocal)
				So(cfg.Backup.RunOnStart, ShouldBeTrue)
				So(cfg.Backup.DumpTimeout, ShouldEqual, 2*time.Hour)
				So(cfg.Backup.Tick, ShouldEqual, time.Minute)
				So(cfg.Backup.CompressionLevel, ShouldEqual, 6)
			})
		})

		Convey("When interval_hours is fractional and durations are strings", func() {
			path := writeConfig(tempDir, `
database: {type: postgres, name: app}
backup:
  directory: /tmp/b
  interval_hours: 0.5
  dump_timeout: 45m
  tick: 10s
`)
			cfg, err := Load(path)

			Convey("It should parse them", func() {
				So(err, ShouldBeNil)
				So(cfg.Interval(), ShouldEqual, 30*time.Minute)
				So(cfg.Backup.DumpTimeout, ShouldEqual, 45*time.Minute)
				So(cfg.Backup.Tick, ShouldEqual, 10*time.Second)
				So(cfg.Database.Port, ShouldEqual, 5432)
			})
		})

		Convey("When the password comes from the environment", func() {
			t.Setenv("CUSTOS_DATABASE_PASSWORD", "from-env")
			path := writeConfig(tempDir, `
database: {type: postgres, name: app, user: u}
backup: {directory: /tmp/b}
`)
			cfg, err := Load(path)

			Convey("It should override the file", func() {
				So(err, ShouldBeNil)
				So(cfg.Database.Password, ShouldEqual, "from-env")
			})
		})

		Convey("When enum-like keys are mixed case and the port is zero", func() {
			path := writeConfig(tempDir, `
database: {type: " PostgreSQL ", port: 0, name: shop}
backup: {directory: /tmp/b, destination: LOCAL, retention_days: 0, interval_hours: 24}
`)
			cfg, err := Load(path)

			Convey("It should normalize only the type, destination and port", func() {
				So(err, ShouldBeNil)
				So(cfg.Database.Type, ShouldEqual, "postgresql")
				So(cfg.Backup.Destination, ShouldEqual, DestinationLocal)
				So(cfg.Database.Port, ShouldEqual, 5432)
				So(cfg.Database.Name, ShouldEqual, "shop")
				So(cfg.Backup.RetentionDays, ShouldEqual, 0)
			})
		})

		Convey("When the database type is unsupported", func() {
			path := writeConfig(tempDir, `
database: {type: oracle, name: legacy}
backup: {directory: /tmp/b, retention_days: 7, interval_hours: 24}
`)
			cfg, err := Load(path)

			Convey("It should still load so the daemon can report it per cycle", func() {
				So(err, ShouldBeNil)
				So(cfg.Database.Type, ShouldEqual, "oracle")
				So(cfg.Database.Port, ShouldEqual, 0)
			})
		})

		Convey("When the file does not exist", func() {
			_, err := Load(filepath.Join(tempDir, "missing.yaml"))

			Convey("It should return ErrConfigNotFound", func() {
				So(errors.Is(err, ErrConfigNotFound), ShouldBeTrue)
			})
		})

		Convey("When the YAML is malformed", func() {
			path := writeConfig(tempDir, "database: [type: mysql\n  name: :::\n")
			_, err := Load(path)

			Convey("It should return ErrConfigParse", func() {
				So(errors.Is(err, ErrConfigParse), ShouldBeTrue)
			})
		})

		Convey("When a field has the wrong shape", func() {
			path := writeConfig(tempDir, `
database: {type: mysql, name: shop, port: not-a-port}
backup: {directory: /tmp/b}
`)
			_, err := Load(path)

			Convey("It should return ErrConfigParse", func() {
				So(errors.Is(err, ErrConfigParse), ShouldBeTrue)
			})
		})

		Convey("When values violate constraints", func() {
			cases := map[string]string{
				"negative retention": "database: {type: mysql, name: a}\nbackup: {directory: /b, retention_days: -1}\n",
				"zero interval":      "database: {type: mysql, name: a}\nbackup: {directory: /b, interval_hours: 0}\n",
				"missing directory":  "database: {type: mysql, name: a}\n",
				"missing type":       "database: {name: a}\nbackup: {directory: /b}\n",
				"bad level":          "database: {type: mysql, name: a}\nbackup: {directory: /b, compression_level: 11}\n",
				"s3 without bucket":  "database: {type: mysql, name: a}\nbackup: {directory: /b, destination: s3}\n",
				"unknown dest":       "database: {type: mysql, name: a}\nbackup: {directory: /b, destination: ftp}\n",
			}

			for name, body := range cases {
				path := writeConfig(tempDir, body)
				_, err := Load(path)
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrConfigInvalid), ShouldBeTrue)
				if !errors.Is(err, ErrConfigInvalid) {
					t.Logf("case %q: %v", name, err)
				}
			}
		})

		Convey("When the file changes between calls", func() {
			path := writeConfig(tempDir, "database: {type: mysql, name: a}\nbackup: {directory: /b, retention_days: 3}\n")
			first, err := Load(path)
			So(err, ShouldBeNil)

			writeConfig(tempDir, "database: {type: mysql, name: a}\nbackup: {directory: /b, retention_days: 9}\n")
			second, err := Load(path)

			Convey("It should re-read the source", func() {
				So(err, ShouldBeNil)
				So(first.Backup.RetentionDays, ShouldEqual, 3)
				So(second.Backup.RetentionDays, ShouldEqual, 9)
			})
		})
	})
}
