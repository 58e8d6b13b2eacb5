// Package scheduler owns one recurring job per monitor configuration.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/metrics"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrNotScheduled is returned by RunNow for a key without an active job.
var ErrNotScheduled = errors.New("monitor has no active job")

// ErrStopped is returned once the scheduler has been stopped.
var ErrStopped = errors.New("scheduler stopped")

// State is the lifecycle state of one monitor's job.
type State string

const (
	StateStopped   State = "stopped"
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
)

// TickRunner runs one crawl pipeline pass for a key. It handles its own errors.
type TickRunner interface {
	RunTick(ctx context.Context, key models.MonitorKey)
}

// JobState describes one job for listings and recovery checks.
type JobState struct {
	Key      models.MonitorKey
	Interval time.Duration
	State    State
}

type jobHandle struct {
	key       models.MonitorKey
	interval  time.Duration
	entryID   cron.EntryID
	job       cron.Job
	inFlight  *atomic.Bool
	cancelled atomic.Bool
}

func (h *jobHandle) state() State {
	switch {
	case h.inFlight.Load():
		return StateRunning
	case h.entryID != 0:
		return StateScheduled
	default:
		return StateStopped
	}
}

// Scheduler maps monitor keys to cron entries. Handles live here only and are
// never stored in the configuration record.
type Scheduler struct {
	cfg     config.SchedulerConfig
	runner  TickRunner
	metrics *metrics.Metrics
	logger  zerolog.Logger

	cron  *cron.Cron
	chain cron.Chain

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
	stopped    atomic.Bool

	mu   sync.Mutex
	jobs map[models.MonitorKey]*jobHandle
}

// New creates a scheduler that calls runner on every firing.
func New(cfg config.SchedulerConfig, runner TickRunner, m *metrics.Metrics, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "Scheduler").Logger()
	cl := cronLogger{logger: logger}
	baseCtx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cfg:        cfg,
		runner:     runner,
		metrics:    m,
		logger:     logger,
		cron:       cron.New(cron.WithLogger(cl)),
		chain:      cron.NewChain(cron.Recover(cl)),
		baseCtx:    baseCtx,
		cancelBase: cancel,
		jobs:       make(map[models.MonitorKey]*jobHandle),
	}
}

// SetupJob replaces any job for cfg's key. A config without URL or
// destination is tracked as stopped and never fires.
func (s *Scheduler) SetupJob(cfg models.MonitorConfig) error {
	if s.stopped.Load() {
		return ErrStopped
	}
	key := cfg.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	inFlight := &atomic.Bool{}
	if old, exists := s.jobs[key]; exists {
		s.cancelLocked(old)
		// Ticks of one key stay sequential across a restart of its job.
		inFlight = old.inFlight
	}

	interval := cfg.Interval()
	if interval <= 0 {
		interval = time.Duration(models.DefaultIntervalMillis) * time.Millisecond
	}

	h := &jobHandle{key: key, interval: interval, inFlight: inFlight}
	h.job = s.chain.Then(cron.FuncJob(func() { s.fire(h) }))

	if cfg.Schedulable() {
		h.entryID = s.cron.Schedule(cron.Every(interval), h.job)
		s.logger.Debug().Str("key", key.String()).Dur("interval", interval).Msg("Job scheduled")
	} else {
		s.logger.Warn().Str("key", key.String()).Msg("Monitor has no url or destination, job left stopped")
	}

	s.jobs[key] = h
	s.updateGaugeLocked()
	return nil
}

// CancelJob removes the key's cron entry before returning. A firing that was
// already dequeued will not start the pipeline; a running tick finishes.
func (s *Scheduler) CancelJob(key models.MonitorKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.jobs[key]
	if !exists {
		return
	}
	s.cancelLocked(h)
	delete(s.jobs, key)
	s.updateGaugeLocked()
	s.logger.Debug().Str("key", key.String()).Msg("Job cancelled")
}

// RunNow fires the key's job immediately on its own goroutine, through the
// same overlap guard as timed firings.
func (s *Scheduler) RunNow(key models.MonitorKey) error {
	if s.stopped.Load() {
		return ErrStopped
	}

	s.mu.Lock()
	h, exists := s.jobs[key]
	s.mu.Unlock()
	if !exists || h.entryID == 0 {
		return ErrNotScheduled
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		h.job.Run()
	}()
	return nil
}

// AddMaintenance registers a housekeeping function on a cron spec such as "@daily".
func (s *Scheduler) AddMaintenance(spec, name string, fn func(ctx context.Context)) error {
	_, err := s.cron.AddJob(spec, s.chain.Then(cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(s.baseCtx, s.tickTimeout())
		defer cancel()
		s.logger.Debug().Str("task", name).Msg("Running maintenance task")
		fn(ctx)
	})))
	return err
}

// Snapshot returns every tracked job sorted by tenant then name.
func (s *Scheduler) Snapshot() []JobState {
	s.mu.Lock()
	out := make([]JobState, 0, len(s.jobs))
	for _, h := range s.jobs {
		out = append(out, JobState{Key: h.key, Interval: h.interval, State: h.state()})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.TenantID != out[j].Key.TenantID {
			return out[i].Key.TenantID < out[j].Key.TenantID
		}
		return out[i].Key.Name < out[j].Key.Name
	})
	return out
}

// State returns the state of one key, or false when it has no job.
func (s *Scheduler) State(key models.MonitorKey) (JobState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.jobs[key]
	if !exists {
		return JobState{}, false
	}
	return JobState{Key: h.key, Interval: h.interval, State: h.state()}, true
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.Snapshot())).Msg("Scheduler started")
}

// Stop halts all timers and waits for running ticks. If ctx expires first the
// running ticks are cancelled and ctx's error is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info().Msg("Stopping scheduler")

	cronCtx := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelBase()
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancelBase()
		s.logger.Warn().Msg("Scheduler stop timed out, cancelling running ticks")
		return ctx.Err()
	}
}

func (s *Scheduler) fire(h *jobHandle) {
	if h.cancelled.Load() || s.stopped.Load() {
		return
	}
	if !h.inFlight.CompareAndSwap(false, true) {
		s.metrics.SkippedOverlap()
		s.logger.Warn().Str("key", h.key.String()).Msg("Previous tick still running, skipping this firing")
		return
	}
	defer h.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(s.baseCtx, s.tickTimeout())
	defer cancel()
	s.runner.RunTick(ctx, h.key)
}

func (s *Scheduler) tickTimeout() time.Duration {
	if d := s.cfg.TickTimeout(); d > 0 {
		return d
	}
	return time.Duration(config.DefaultSchedulerTickTimeoutSecs) * time.Second
}

func (s *Scheduler) cancelLocked(h *jobHandle) {
	h.cancelled.Store(true)
	if h.entryID != 0 {
		s.cron.Remove(h.entryID)
	}
}

func (s *Scheduler) updateGaugeLocked() {
	active := 0
	for _, h := range s.jobs {
		if h.entryID != 0 {
			active++
		}
	}
	s.metrics.SetScheduledJobs(active)
}
