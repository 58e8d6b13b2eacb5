package fetcher

import (
	"context"
	"errors"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/aleister1102/postwatch/internal/metrics"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/rs/zerolog"
)

// Extractor turns a document into candidates.
type Extractor interface {
	Extract(document []byte, baseURL string) []models.Candidate
}

// Strategy runs the phases in order under one retry policy. The next phase
// is tried only when the previous one failed or produced no usable candidate.
type Strategy struct {
	phases    []Phase
	policy    RetryPolicy
	extractor Extractor
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewStrategy creates a strategy over the given phases, in order.
func NewStrategy(extractor Extractor, policy RetryPolicy, m *metrics.Metrics, logger zerolog.Logger, phases ...Phase) *Strategy {
	return &Strategy{
		phases:    phases,
		policy:    policy,
		extractor: extractor,
		metrics:   m,
		logger:    logger.With().Str("component", "FetchStrategy").Logger(),
	}
}

// Crawl fetches url and returns its candidates in document order.
// It returns *models.FetchError when no phase produced a document, and an
// empty slice when documents were fetched but held nothing usable.
func (s *Strategy) Crawl(ctx context.Context, url string) ([]models.Candidate, error) {
	var (
		lastErr   error
		lastPhase string
		fetched   bool
	)

	for _, phase := range s.phases {
		var raw *RawContent
		err := s.policy.Do(ctx, func(ctx context.Context) error {
			content, err := phase.Fetch(ctx, url)
			if err != nil {
				return err
			}
			raw = content
			return nil
		})

		if err != nil {
			lastErr, lastPhase = err, phase.Name()
			s.metrics.FetchPhase(phase.Name(), phaseErrorResult(err))
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &models.FetchError{URL: url, Phase: phase.Name(), Err: ctxErr}
			}
			s.logger.Debug().Err(err).Str("phase", phase.Name()).Str("url", url).Msg("Fetch phase failed, trying next")
			continue
		}

		fetched = true
		baseURL := raw.FinalURL
		if baseURL == "" {
			baseURL = url
		}

		candidates := s.extractor.Extract(raw.Body, baseURL)
		if len(candidates) > 0 {
			s.metrics.FetchPhase(phase.Name(), "ok")
			return candidates, nil
		}
		s.metrics.FetchPhase(phase.Name(), "empty")
		s.logger.Debug().Str("phase", phase.Name()).Str("url", url).Msg("Fetch phase produced no usable candidates")
	}

	if fetched {
		return []models.Candidate{}, nil
	}
	if lastErr == nil {
		lastErr, lastPhase = ErrPhaseUnavailable, "none"
	}
	return nil, &models.FetchError{URL: url, Phase: lastPhase, Err: lastErr}
}

func phaseErrorResult(err error) string {
	var perm *errorwrapper.PermanentError
	if errors.As(err, &perm) {
		return "refused"
	}
	return "error"
}
