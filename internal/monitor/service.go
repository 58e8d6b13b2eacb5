// Package monitor wires the registry, scheduler, fetch strategy and
// dispatcher into the register/remove/list/update/recover operations and the
// per-tick crawl pipeline.
package monitor

import (
	"context"
	"errors"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/metrics"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/aleister1102/postwatch/internal/registry"
	"github.com/aleister1102/postwatch/internal/scheduler"
	"github.com/rs/zerolog"
)

// Crawler fetches a page and returns its candidates in document order.
type Crawler interface {
	Crawl(ctx context.Context, url string) ([]models.Candidate, error)
}

// Notifier sends one new post and reports whether it was delivered.
type Notifier interface {
	Dispatch(ctx context.Context, cfg models.MonitorConfig, candidate models.Candidate, fp string) bool
}

// DestinationResolver checks a destination before it is stored.
type DestinationResolver interface {
	ResolveDestination(ctx context.Context, tenantID, destination string) error
}

// MonitorStatus pairs a config with its job state.
type MonitorStatus struct {
	Config models.MonitorConfig
	Job    scheduler.JobState
}

// Service is the entry point for every monitor operation.
type Service struct {
	cfg       config.SchedulerConfig
	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	crawler   Crawler
	notifier  Notifier
	resolver  DestinationResolver
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewService creates the service and its scheduler. Nothing fires until Start.
func NewService(
	cfg config.SchedulerConfig,
	reg *registry.Registry,
	crawler Crawler,
	notifier Notifier,
	resolver DestinationResolver,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	s := &Service{
		cfg:      cfg,
		registry: reg,
		crawler:  crawler,
		notifier: notifier,
		resolver: resolver,
		metrics:  m,
		logger:   logger.With().Str("component", "MonitorService").Logger(),
	}
	s.scheduler = scheduler.New(cfg, s, m, logger)
	return s
}

// Register validates the input, checks the destination, persists the config,
// adds it to memory and schedules its job.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.MonitorConfig, error) {
	in = in.normalized()
	key := in.key()

	if reason := in.validate(); reason != "" {
		return models.MonitorConfig{}, models.NewConfigError("register", key, models.ErrInvalidInput, reason)
	}
	if _, exists := s.registry.Get(key); exists {
		return models.MonitorConfig{}, models.NewConfigError("register", key, models.ErrDuplicateName, "")
	}
	if err := s.resolveDestination(ctx, "register", key, in.Destination); err != nil {
		return models.MonitorConfig{}, err
	}

	cfg := models.MonitorConfig{
		TenantID:       in.TenantID,
		Name:           in.Name,
		URL:            in.URL,
		Destination:    in.Destination,
		IntervalMillis: in.IntervalMillis,
	}
	stored, err := s.registry.Add(ctx, cfg, true, s.setupJob)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateName) {
			return models.MonitorConfig{}, models.NewConfigError("register", key, models.ErrDuplicateName, "")
		}
		return models.MonitorConfig{}, err
	}

	s.logger.Info().
		Str("tenant_id", key.TenantID).
		Str("name", key.Name).
		Str("url", stored.URL).
		Dur("interval", stored.Interval()).
		Msg("Monitor registered")

	if s.cfg.RunOnRegister {
		if err := s.scheduler.RunNow(key); err != nil {
			s.logger.Debug().Err(err).Str("key", key.String()).Msg("Immediate tick not started")
		}
	}
	return stored, nil
}

// Remove stops the job, then deletes the config from memory and the store.
func (s *Service) Remove(ctx context.Context, tenantID, name string) error {
	key := models.MonitorKey{TenantID: tenantID, Name: name}

	err := s.registry.Remove(ctx, key, func() { s.scheduler.CancelJob(key) })
	if errors.Is(err, models.ErrNotFound) {
		return models.NewConfigError("remove", key, models.ErrNotFound, "")
	}
	if err != nil {
		return err
	}

	s.logger.Info().Str("tenant_id", tenantID).Str("name", name).Msg("Monitor removed")
	return nil
}

// List returns the tenant's configs sorted by name.
func (s *Service) List(tenantID string) []models.MonitorConfig {
	return s.registry.ListTenant(tenantID)
}

// Get returns one config.
func (s *Service) Get(tenantID, name string) (models.MonitorConfig, bool) {
	return s.registry.Get(models.MonitorKey{TenantID: tenantID, Name: name})
}

// Update edits url, destination or interval and restarts the job.
func (s *Service) Update(ctx context.Context, in UpdateInput) (models.MonitorConfig, error) {
	in = in.normalized()
	key := in.key()

	if reason := in.validate(); reason != "" {
		return models.MonitorConfig{}, models.NewConfigError("update", key, models.ErrInvalidInput, reason)
	}
	current, exists := s.registry.Get(key)
	if !exists {
		return models.MonitorConfig{}, models.NewConfigError("update", key, models.ErrNotFound, "")
	}
	if in.Destination != nil && *in.Destination != current.Destination {
		if err := s.resolveDestination(ctx, "update", key, *in.Destination); err != nil {
			return models.MonitorConfig{}, err
		}
	}

	updated, err := s.registry.Update(ctx, key, func(cfg *models.MonitorConfig) error {
		if in.URL != nil {
			cfg.URL = *in.URL
		}
		if in.Destination != nil {
			cfg.Destination = *in.Destination
		}
		if in.IntervalMillis != nil {
			cfg.IntervalMillis = *in.IntervalMillis
		}
		return nil
	}, s.setupJob)
	if errors.Is(err, models.ErrNotFound) {
		return models.MonitorConfig{}, models.NewConfigError("update", key, models.ErrNotFound, "")
	}
	if err != nil {
		return models.MonitorConfig{}, err
	}

	s.logger.Info().
		Str("tenant_id", key.TenantID).
		Str("name", key.Name).
		Str("url", updated.URL).
		Dur("interval", updated.Interval()).
		Msg("Monitor updated")
	return updated, nil
}

// Recover loads every durable config and schedules it through the same
// primitives as a live registration. It returns the number restored.
func (s *Service) Recover(ctx context.Context) (int, error) {
	configs, err := s.registry.LoadDurable(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, cfg := range configs {
		if _, err := s.registry.Add(ctx, cfg, false, s.setupJob); err != nil {
			s.logger.Warn().Err(err).Str("key", cfg.Key().String()).Msg("Skipping durable monitor during recovery")
			continue
		}
		restored++
	}

	s.logger.Info().Int("restored", restored).Int("durable", len(configs)).Msg("Monitors recovered")
	return restored, nil
}

// Status returns the tenant's configs with their job states.
func (s *Service) Status(tenantID string) []MonitorStatus {
	configs := s.registry.ListTenant(tenantID)
	out := make([]MonitorStatus, 0, len(configs))
	for _, cfg := range configs {
		job, ok := s.scheduler.State(cfg.Key())
		if !ok {
			job = scheduler.JobState{Key: cfg.Key(), Interval: cfg.Interval(), State: scheduler.StateStopped}
		}
		out = append(out, MonitorStatus{Config: cfg, Job: job})
	}
	return out
}

// Snapshot returns the scheduler's view of every job.
func (s *Service) Snapshot() []scheduler.JobState {
	return s.scheduler.Snapshot()
}

// ScheduleMaintenance runs fn on a cron spec alongside the monitor jobs.
func (s *Service) ScheduleMaintenance(spec, name string, fn func(ctx context.Context)) error {
	return s.scheduler.AddMaintenance(spec, name, fn)
}

// Start starts the scheduler.
func (s *Service) Start() {
	s.scheduler.Start()
}

// Stop stops the scheduler and waits for running ticks, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	return s.scheduler.Stop(ctx)
}

func (s *Service) setupJob(cfg models.MonitorConfig) {
	if err := s.scheduler.SetupJob(cfg); err != nil {
		s.logger.Error().Err(err).Str("key", cfg.Key().String()).Msg("Failed to schedule monitor")
	}
}

func (s *Service) resolveDestination(ctx context.Context, op string, key models.MonitorKey, destination string) error {
	if s.resolver == nil {
		return nil
	}
	err := s.resolver.ResolveDestination(ctx, key.TenantID, destination)
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrInvalidDestination) {
		return models.NewConfigError(op, key, models.ErrInvalidDestination, "")
	}
	s.logger.Warn().Err(err).Str("key", key.String()).Msg("Could not verify destination")
	return models.NewConfigError(op, key, models.ErrInvalidDestination, errorwrapper.WrapError(err, "destination lookup failed").Error())
}
