// Package extractor turns an HTML document into an ordered list of candidate posts.
package extractor

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/rs/zerolog"
)

// Engine runs the selector groups against a document.
type Engine struct {
	strategies []Strategy
	logger     zerolog.Logger
}

// NewEngine creates an engine. With no strategies the defaults are used.
func NewEngine(logger zerolog.Logger, strategies ...Strategy) *Engine {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Engine{
		strategies: strategies,
		logger:     logger.With().Str("component", "Extractor").Logger(),
	}
}

// Extract returns the usable candidates of the first group that yields any,
// in document order. It never fails; unparsable input yields an empty slice.
func (e *Engine) Extract(document []byte, baseURL string) (out []models.Candidate) {
	out = []models.Candidate{}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("base_url", baseURL).Msg("Extraction panicked")
			out = []models.Candidate{}
		}
	}()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		e.logger.Debug().Err(err).Str("base_url", baseURL).Msg("Failed to parse document")
		return out
	}

	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		base = nil
	}

	for _, strategy := range e.strategies {
		candidates := e.extractGroup(doc, strategy, base)
		if len(candidates) > 0 {
			e.logger.Debug().
				Str("strategy", strategy.Name).
				Int("candidates", len(candidates)).
				Str("base_url", baseURL).
				Msg("Extraction strategy matched")
			return candidates
		}
	}
	return out
}

func (e *Engine) extractGroup(doc *goquery.Document, strategy Strategy, base *url.URL) []models.Candidate {
	var candidates []models.Candidate
	seen := make(map[models.Candidate]struct{})

	doc.Find(strategy.Selector).Each(func(_ int, sel *goquery.Selection) {
		c := models.Candidate{
			Title: resolveTitle(sel),
			Link:  resolveLink(sel, base),
			Image: resolveImage(sel, base),
		}
		if !c.Usable() {
			return
		}
		// Nested matches of the same group often resolve to the same post.
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		candidates = append(candidates, c)
	})
	return candidates
}
