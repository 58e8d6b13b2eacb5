package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/aleister1102/postwatch/internal/fingerprint"
	"github.com/aleister1102/postwatch/internal/metrics"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunTick runs one crawl pass for key. Every error is handled here; nothing
// escapes to the scheduler.
func (s *Service) RunTick(ctx context.Context, key models.MonitorKey) {
	start := time.Now()
	logger := s.logger.With().
		Str("tenant_id", key.TenantID).
		Str("name", key.Name).
		Str("tick_id", uuid.NewString()).
		Logger()

	result := s.runTick(ctx, key, logger)

	took := time.Since(start)
	s.metrics.ObserveTick(result, took)
	logger.Debug().Str("result", result).Dur("took", took).Msg("Tick finished")
}

func (s *Service) runTick(ctx context.Context, key models.MonitorKey, logger zerolog.Logger) string {
	cfg, ok := s.registry.Get(key)
	if !ok {
		logger.Debug().Msg("Monitor no longer registered, skipping tick")
		return metrics.TickMissing
	}

	candidates, err := s.crawler.Crawl(ctx, cfg.URL)
	if err != nil {
		logger.Warn().Err(err).Str("url", cfg.URL).Msg("Fetch failed, skipping cycle")
		return metrics.TickFetchError
	}

	newest, ok := fingerprint.Newest(candidates)
	if !ok {
		logger.Warn().Err(models.ErrExtractionEmpty).Str("url", cfg.URL).Msg("No usable post found, skipping cycle")
		return metrics.TickEmpty
	}

	fp := fingerprint.Of(newest)
	if !fingerprint.Changed(cfg.LastFingerprint, fp) {
		logger.Trace().Str("fingerprint", fp).Msg("Newest post unchanged")
		return metrics.TickUnchanged
	}

	// The config may have been removed or replaced while the page was fetched.
	current, ok := s.registry.Get(key)
	if !ok {
		logger.Debug().Msg("Monitor removed during tick, discarding result")
		return metrics.TickMissing
	}
	if current.Generation != cfg.Generation {
		logger.Debug().Msg("Monitor replaced during tick, discarding result")
		return metrics.TickStale
	}

	delivered := s.notifier.Dispatch(ctx, current, newest, fp)

	// Advanced even when delivery failed so the same post is not retried forever.
	if err := s.registry.UpdateFingerprint(ctx, key, cfg.Generation, fp); err != nil {
		if errors.Is(err, models.ErrStaleGeneration) || errors.Is(err, models.ErrNotFound) {
			logger.Debug().Err(err).Msg("Monitor changed before fingerprint write, discarding")
			return metrics.TickStale
		}
		logger.Error().Err(err).Str("fingerprint", fp).Msg("Failed to persist fingerprint")
		return metrics.TickPersistErr
	}

	logger.Info().
		Str("title", newest.Title).
		Str("fingerprint", fp).
		Bool("delivered", delivered).
		Msg("New post detected")
	return metrics.TickDispatched
}
