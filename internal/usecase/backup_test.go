package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/custos/internal/adapter/compressor"
	"github.com/semmidev/custos/internal/adapter/database"
	"github.com/semmidev/custos/internal/adapter/storage"
	"github.com/semmidev/custos/internal/config"
	"github.com/semmidev/custos/internal/domain"
)

func TestArtifactName(t *testing.T) {
	Convey("Given a database and a timestamp", t, func() {
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)

		Convey("It should follow <type>_<name>_<timestamp>.sql.gz", func() {
			name := ArtifactName("mysql", "shop", at, ".gz")
			So(name, ShouldEqual, "mysql_shop_20260102_030405.sql.gz")
			So(ArtifactPattern.MatchString(name), ShouldBeTrue)
		})

		Convey("It should make unsafe database names filesystem-safe", func() {
			name := ArtifactName("postgres", "my db/prod;$(x)", at, ".gz")
			So(name, ShouldEqual, "postgres_my_db_prod___x__20260102_030405.sql.gz")
			So(ArtifactPattern.MatchString(name), ShouldBeTrue)
		})
	})
}

func TestBackup(t *testing.T) {
	Convey("Given a Backup use case writing to a local directory", t, func() {
		dir := t.TempDir()
		store, err := storage.NewLocal(dir)
		So(err, ShouldBeNil)
		log, logs := observedLogger()
		gz := compressor.NewGzip(6)
		ctx := context.Background()

		Convey("When the dump succeeds", func() {
			db := &fakeDatabase{dbType: "mysql", name: "shop", body: "CREATE TABLE t (id int);\n"}
			uc := NewBackup(db, store, gz, log, time.Minute)

			artifact, err := uc.Execute(ctx)

			Convey("It should store a gzip artifact of the dump", func() {
				So(err, ShouldBeNil)
				So(artifact.Name, ShouldStartWith, "mysql_shop_")
				So(ArtifactPattern.MatchString(artifact.Name), ShouldBeTrue)
				So(artifact.Location, ShouldEqual, filepath.Join(dir, artifact.Name))
				So(dirNames(dir), ShouldResemble, []string{artifact.Name})

				info, err := os.Stat(artifact.Location)
				So(err, ShouldBeNil)
				So(artifact.Size, ShouldEqual, info.Size())

				f, err := os.Open(artifact.Location)
				So(err, ShouldBeNil)
				defer f.Close()
				zr, err := gzip.NewReader(f)
				So(err, ShouldBeNil)
				content, err := io.ReadAll(zr)
				So(err, ShouldBeNil)
				So(string(content), ShouldEqual, "CREATE TABLE t (id int);\n")
			})
		})

		Convey("When the dump fails after writing some output", func() {
			db := &fakeDatabase{dbType: "mysql", name: "shop", body: "CREATE TABLE half", err: errors.New("exit status 2")}
			uc := NewBackup(db, store, gz, log, time.Minute)

			artifact, err := uc.Execute(ctx)

			Convey("It should report a DumpFailure and leave no file behind", func() {
				So(artifact, ShouldBeNil)
				So(errors.Is(err, domain.ErrDumpFailure), ShouldBeTrue)

				var dumpErr *domain.DumpError
				So(errors.As(err, &dumpErr), ShouldBeTrue)
				So(dumpErr.TimedOut, ShouldBeFalse)
				So(dumpErr.DatabaseName, ShouldEqual, "shop")

				So(dirNames(dir), ShouldBeEmpty)
				So(logs.FilterMessage("Backup failed").Len(), ShouldEqual, 1)
			})
		})

		Convey("When the dump outlives the timeout", func() {
			db := &fakeDatabase{dbType: "postgres", name: "app", body: "partial", block: true}
			uc := NewBackup(db, store, gz, log, 50*time.Millisecond)

			_, err := uc.Execute(ctx)

			Convey("It should fail as timed out and clean up", func() {
				var dumpErr *domain.DumpError
				So(errors.As(err, &dumpErr), ShouldBeTrue)
				So(dumpErr.TimedOut, ShouldBeTrue)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(dirNames(dir), ShouldBeEmpty)
			})
		})

		Convey("When two dumps land in the same second", func() {
			fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)

			first := NewBackup(&fakeDatabase{dbType: "mysql", name: "shop", body: "first"}, store, gz, log, time.Minute)
			first.now = func() time.Time { return fixed }
			second := NewBackup(&fakeDatabase{dbType: "mysql", name: "shop", body: "second"}, store, gz, log, time.Minute)
			second.now = func() time.Time { return fixed }

			a, err := first.Execute(ctx)
			So(err, ShouldBeNil)
			before, err := os.ReadFile(a.Location)
			So(err, ShouldBeNil)

			_, err = second.Execute(ctx)

			Convey("The second should fail without overwriting the first", func() {
				So(errors.Is(err, domain.ErrDumpFailure), ShouldBeTrue)
				So(errors.Is(err, domain.ErrArtifactExists), ShouldBeTrue)
				So(dirNames(dir), ShouldResemble, []string{"mysql_shop_20260501_120000.sql.gz"})

				after, err := os.ReadFile(a.Location)
				So(err, ShouldBeNil)
				So(after, ShouldResemble, before)
			})
		})

		Convey("When the real dump tool exits non-zero", func() {
			tool := filepath.Join(t.TempDir(), "mysqldump")
			So(os.WriteFile(tool, []byte("#!/bin/sh\necho 'CREATE TABLE broken'\necho 'mysqldump: Got error: 1045' >&2\nexit 2\n"), 0755), ShouldBeNil)

			db, err := database.New(config.DatabaseConfig{Type: "mysql", Name: "shop", Password: "hunter2"}, database.WithBinary(tool))
			So(err, ShouldBeNil)
			uc := NewBackup(db, store, gz, log, time.Minute)

			_, err = uc.Execute(ctx)

			Convey("No truncated artifact should remain", func() {
				So(errors.Is(err, domain.ErrDumpFailure), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "Got error: 1045")
				So(err.Error(), ShouldNotContainSubstring, "hunter2")
				So(dirNames(dir), ShouldBeEmpty)
			})
		})
	})
}

func TestUnsupportedBackup(t *testing.T) {
	Convey("Given an unsupported database type", t, func() {
		_, err := UnsupportedBackup{DatabaseType: "oracle"}.Execute(context.Background())

		Convey("Execute should report it", func() {
			So(errors.Is(err, domain.ErrUnsupportedDatabaseType), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "oracle")
		})
	})
}
