package usecase

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/semmidev/custos/internal/domain"
	"github.com/semmidev/custos/internal/infrastructure/logger"
)

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.Wrap(zap.New(core)), logs
}

// fakeDatabase writes body into the dump stream, then returns err. With
// block set it waits for ctx instead.
type fakeDatabase struct {
	dbType string
	name   string
	body   string
	err    error
	block  bool
}

func (f *fakeDatabase) Dump(ctx context.Context, w io.Writer) error {
	if f.body != "" {
		if _, err := io.WriteString(w, f.body); err != nil {
			return err
		}
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func (f *fakeDatabase) GetName() string            { return f.name }
func (f *fakeDatabase) GetType() string            { return f.dbType }
func (f *fakeDatabase) Binary() string             { return "fake" }
func (f *fakeDatabase) Ping(context.Context) error { return nil }

func dirNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	So(err, ShouldBeNil)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func touch(dir, name string, age time.Duration, now time.Time) string {
	path := filepath.Join(dir, name)
	So(os.WriteFile(path, []byte(name), 0640), ShouldBeNil)
	mtime := now.Add(-age)
	So(os.Chtimes(path, mtime, mtime), ShouldBeNil)
	return path
}

type recordingNotifier struct {
	events []domain.CycleEvent
}

func (r *recordingNotifier) Notify(_ context.Context, event domain.CycleEvent) error {
	r.events = append(r.events, event)
	return nil
}
