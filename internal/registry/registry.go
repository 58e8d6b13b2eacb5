// Package registry keeps the in-memory index of monitor configurations,
// mirrored to the durable store, with every mutation serialized per key.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/rs/zerolog"
)

// Registry is the only shared mutable structure between monitor jobs.
// The RWMutex guards map membership; per-key locks serialize mutations of a
// key and are held across store I/O for that key only.
type Registry struct {
	store   models.MonitorStore
	locks   *KeyMutexManager
	logger  zerolog.Logger
	now     func() time.Time
	mu      sync.RWMutex
	configs map[models.MonitorKey]*models.MonitorConfig
	nextGen uint64
}

// New creates an empty registry backed by store.
func New(store models.MonitorStore, logger zerolog.Logger) *Registry {
	return &Registry{
		store:   store,
		locks:   NewKeyMutexManager(logger),
		logger:  logger.With().Str("component", "Registry").Logger(),
		now:     time.Now,
		configs: make(map[models.MonitorKey]*models.MonitorConfig),
	}
}

// WithClock replaces the time source used for bookkeeping timestamps.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Add inserts cfg under a fresh generation. When persist is set the record is
// written to the store first and nothing changes in memory if that fails.
// onAdded runs while the key is still locked, so a concurrent removal cannot
// slip between the insert and the caller's follow-up (scheduling the job).
func (r *Registry) Add(ctx context.Context, cfg models.MonitorConfig, persist bool, onAdded func(models.MonitorConfig)) (models.MonitorConfig, error) {
	key := cfg.Key()
	unlock := r.locks.Lock(key)
	defer unlock()

	if _, exists := r.get(key); exists {
		return models.MonitorConfig{}, models.ErrDuplicateName
	}

	now := r.now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = now
	}
	cfg.IntervalMillis = models.ClampIntervalMillis(cfg.IntervalMillis)

	if persist {
		if err := r.store.Upsert(ctx, cfg); err != nil {
			return models.MonitorConfig{}, errorwrapper.WrapError(err, "failed to persist monitor "+key.String())
		}
	}

	stored := cfg.Clone()
	r.mu.Lock()
	r.nextGen++
	stored.Generation = r.nextGen
	r.configs[key] = &stored
	r.mu.Unlock()

	out := stored.Clone()
	r.logger.Debug().Str("key", key.String()).Uint64("generation", out.Generation).Bool("persisted", persist).Msg("Monitor added")
	if onAdded != nil {
		onAdded(out)
	}
	return out, nil
}

// Remove runs beforeDelete (cancel the job), deletes the durable record, then
// drops the key from memory. If the store delete fails the config stays
// registered with its job cancelled, so the removal can simply be retried.
func (r *Registry) Remove(ctx context.Context, key models.MonitorKey, beforeDelete func()) error {
	unlock := r.locks.Lock(key)
	defer unlock()

	if _, exists := r.get(key); !exists {
		return models.ErrNotFound
	}

	if beforeDelete != nil {
		beforeDelete()
	}

	if err := r.store.Delete(ctx, key.TenantID, key.Name); err != nil {
		r.logger.Error().Err(err).Str("key", key.String()).Msg("Failed to delete durable monitor record")
		return errorwrapper.WrapError(err, "failed to delete monitor "+key.String())
	}

	r.mu.Lock()
	delete(r.configs, key)
	r.mu.Unlock()

	r.logger.Debug().Str("key", key.String()).Msg("Monitor removed")
	return nil
}

// Update applies mutate to a copy of the config, persists it and swaps it in.
// A URL change clears the fingerprint and starts a new generation so ticks
// still running against the old page cannot write back.
func (r *Registry) Update(ctx context.Context, key models.MonitorKey, mutate func(*models.MonitorConfig) error, onUpdated func(models.MonitorConfig)) (models.MonitorConfig, error) {
	unlock := r.locks.Lock(key)
	defer unlock()

	current, exists := r.get(key)
	if !exists {
		return models.MonitorConfig{}, models.ErrNotFound
	}

	next := current.Clone()
	if err := mutate(&next); err != nil {
		return models.MonitorConfig{}, err
	}
	next.TenantID, next.Name = key.TenantID, key.Name
	next.IntervalMillis = models.ClampIntervalMillis(next.IntervalMillis)
	next.UpdatedAt = r.now().UTC()

	urlChanged := next.URL != current.URL
	if urlChanged {
		next.LastFingerprint = nil
	}

	if err := r.store.Upsert(ctx, next); err != nil {
		return models.MonitorConfig{}, errorwrapper.WrapError(err, "failed to persist monitor "+key.String())
	}

	r.mu.Lock()
	if urlChanged {
		r.nextGen++
		next.Generation = r.nextGen
	}
	r.configs[key] = &next
	r.mu.Unlock()

	out := next.Clone()
	r.logger.Debug().Str("key", key.String()).Bool("url_changed", urlChanged).Msg("Monitor updated")
	if onUpdated != nil {
		onUpdated(out)
	}
	return out, nil
}

// UpdateFingerprint records fp for the config registered under generation gen.
// The durable write happens first; memory is only updated once it succeeded.
func (r *Registry) UpdateFingerprint(ctx context.Context, key models.MonitorKey, gen uint64, fp string) error {
	unlock := r.locks.Lock(key)
	defer unlock()

	current, exists := r.get(key)
	if !exists {
		return models.ErrNotFound
	}
	if current.Generation != gen {
		return models.ErrStaleGeneration
	}

	if err := r.store.UpdateFingerprint(ctx, key.TenantID, key.Name, fp); err != nil {
		return errorwrapper.WrapError(err, "failed to persist fingerprint for "+key.String())
	}

	r.mu.Lock()
	if cfg, ok := r.configs[key]; ok {
		value := fp
		cfg.LastFingerprint = &value
		cfg.UpdatedAt = r.now().UTC()
	}
	r.mu.Unlock()
	return nil
}

// Get returns a copy of the config for key.
func (r *Registry) Get(key models.MonitorKey) (models.MonitorConfig, bool) {
	cfg, ok := r.get(key)
	if !ok {
		return models.MonitorConfig{}, false
	}
	return cfg.Clone(), true
}

// ListTenant returns copies of every config owned by tenantID, sorted by name.
func (r *Registry) ListTenant(tenantID string) []models.MonitorConfig {
	r.mu.RLock()
	out := make([]models.MonitorConfig, 0)
	for key, cfg := range r.configs {
		if key.TenantID == tenantID {
			out = append(out, cfg.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// All returns copies of every config, sorted by tenant then name.
func (r *Registry) All() []models.MonitorConfig {
	r.mu.RLock()
	out := make([]models.MonitorConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		out = append(out, cfg.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TenantID != out[j].TenantID {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the number of registered configs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}

// LoadDurable reads every record from the store.
func (r *Registry) LoadDurable(ctx context.Context) ([]models.MonitorConfig, error) {
	configs, err := r.store.List(ctx)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to load durable monitors")
	}
	return configs, nil
}

func (r *Registry) get(key models.MonitorKey) (models.MonitorConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[key]
	if !ok {
		return models.MonitorConfig{}, false
	}
	return *cfg, true
}
