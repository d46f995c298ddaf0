package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iliyamo/microwire-quality/internal/config"
)

// Job is a unit of scheduled work.  Run must not panic past its own
// boundary and has no return value: a scheduled run has nobody to report to.
type Job interface {
	Name() string
	Run(ctx context.Context)
}

// DefaultRunTimeout bounds one scheduled run.
const DefaultRunTimeout = 30 * time.Minute

// Scheduler fires registered jobs on cron schedules evaluated in a fixed
// location.  Overlapping runs of the same job are not prevented.
type Scheduler struct {
	cron    *cron.Cron
	log     *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	names   []string
	running bool
}

func NewScheduler(loc *time.Location, log *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		log:     log,
		timeout: DefaultRunTimeout,
	}
}

// Register adds job under a standard five-field cron spec (descriptors such
// as @daily are accepted too).
func (s *Scheduler) Register(spec string, job Job) error {
	name := job.Name()
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		started := time.Now()
		s.log.Debug("job started", "job", name)
		job.Run(ctx)
		s.log.Debug("job finished", "job", name, "duration", time.Since(started).String())
	})
	if err != nil {
		return fmt.Errorf("register %s (%q): %w", name, spec, err)
	}
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	s.log.Info("job registered", "job", name, "schedule", spec)
	return nil
}

// Jobs lists registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.names))
}

// Stop prevents new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterScheduled wires the quality monitor and the daily report onto s
// according to cfg.  A disabled job is not registered at all.
func RegisterScheduled(s *Scheduler, cfg config.ScheduleConfig, monitor, report Job) error {
	if cfg.QualityMonitorEnabled {
		if err := s.Register(cfg.QualityMonitorCron, monitor); err != nil {
			return err
		}
	} else {
		s.log.Info("job disabled", "job", monitor.Name())
	}
	if cfg.DailyReportEnabled {
		if err := s.Register(cfg.DailyReportCron, report); err != nil {
			return err
		}
	} else {
		s.log.Info("job disabled", "job", report.Name())
	}
	return nil
}

// runGuarded calls fn and turns a panic into an Error log line.
func runGuarded(log *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "job", name, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
