package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/semmidev/custos/internal/infrastructure/logger"
)

type Job func(ctx context.Context) error

// Scheduler polls on a short tick and fires the job once interval has
// elapsed since Run started or since the previous job started. Ticks that
// arrive while the job is still running are dropped.
type Scheduler struct {
	interval time.Duration
	tick     time.Duration
	logger   *logger.Logger
	now      func() time.Time

	mu   sync.Mutex
	next time.Time
}

func New(interval, tick time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		tick:     tick,
		logger:   log.Named("scheduler"),
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, then waits for a running job to
// return. The job receives ctx, so it observes the cancellation too.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	cl := s.logger.CronLogger()
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s.setNext(s.now().Add(s.interval))
	// cron.Every rounds the tick down to whole seconds, with a floor of one.
	c.Schedule(cron.Every(s.tick), cron.FuncJob(func() {
		s.poll(ctx, job)
	}))

	s.logger.Infow("Scheduler started",
		"interval", s.interval.String(),
		"tick", s.tick.String(),
		"next_run", s.Next().Format(time.RFC3339),
	)

	c.Start()
	<-ctx.Done()

	s.logger.Infow("Scheduler stopping, waiting for running cycle")
	<-c.Stop().Done()
	s.logger.Infow("Scheduler stopped")
	return nil
}

// poll runs job if it is due and reports whether it did.
func (s *Scheduler) poll(ctx context.Context, job Job) bool {
	if ctx.Err() != nil {
		return false
	}

	start := s.now()
	s.mu.Lock()
	due := !start.Before(s.next)
	if due {
		s.next = start.Add(s.interval)
	}
	s.mu.Unlock()

	if !due {
		return false
	}

	if err := job(ctx); err != nil {
		s.logger.Debugw("Scheduled cycle returned an error", "error", err)
	}
	s.logger.Infow("Next cycle scheduled", "next_run", s.Next().Format(time.RFC3339))
	return true
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.next = t
	s.mu.Unlock()
}

// Next is when the job is next due.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
