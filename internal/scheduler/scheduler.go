package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fitdesk/fitdesk-api/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Stats is the scheduler's operational surface. Counters are process-wide
// and reset on restart; job-level history lives in the queue and the
// delivery log.
type Stats struct {
	IsInitialized  bool  `json:"is_initialized"`
	ActiveJobs     int   `json:"active_jobs"`
	TotalJobs      int64 `json:"total_jobs"`
	SuccessfulJobs int64 `json:"successful_jobs"`
	FailedJobs     int64 `json:"failed_jobs"`
}

// JobFunc is one recurring cycle. The returned error counts the execution
// as failed; per-entry failures inside a cycle are the cycle's own concern.
type JobFunc func(ctx context.Context) error

// Scheduler owns the recurring alert-scan and queue-drain cycles. Each job
// type is wrapped with skip-if-busy so a slow cycle is never overlapped by
// the next tick of the same job.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

func New(logger zerolog.Logger) *Scheduler {
	schedLogger := logger.With().Str("component", "scheduler").Logger()
	adapter := &cronLogAdapter{logger: schedLogger}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(adapter),
			cron.Recover(adapter),
		)),
		logger: schedLogger,
	}
}

// Register schedules job to run every interval. Must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, job JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("interval for job %s must be positive", name)
	}
	_, err := s.cron.AddJob("@every "+interval.String(), cron.FuncJob(func() {
		s.runJob(name, job)
	}))
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.logger.Info().Str("job", name).Dur("interval", interval).Msg("job registered")
	return nil
}

func (s *Scheduler) runJob(name string, job JobFunc) {
	s.mu.Lock()
	s.stats.ActiveJobs++
	s.stats.TotalJobs++
	s.mu.Unlock()

	start := time.Now()
	err := job(context.Background())
	metrics.CycleDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	s.mu.Lock()
	s.stats.ActiveJobs--
	if err != nil {
		s.stats.FailedJobs++
	} else {
		s.stats.SuccessfulJobs++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("job execution failed")
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	s.stats.IsInitialized = true
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop halts future invocations and waits for in-flight cycles to finish;
// a running cycle is never interrupted mid-delivery.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	s.stats.IsInitialized = false
	s.mu.Unlock()
	s.logger.Info().Msg("scheduler stopped")
}

// Snapshot returns a copy of the current stats for the dashboard.
func (s *Scheduler) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// cronLogAdapter bridges robfig/cron's logger to zerolog.
type cronLogAdapter struct {
	logger zerolog.Logger
}

func (a *cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (a *cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
