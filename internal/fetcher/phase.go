// Package fetcher retrieves page content with a headless render and a static
// fallback, then hands the document to the extraction engine.
package fetcher

import (
	"context"
	"errors"
)

// ErrPhaseUnavailable is returned by a phase that is disabled or cannot start.
var ErrPhaseUnavailable = errors.New("fetch phase unavailable")

// RawContent is one fetched document.
type RawContent struct {
	Body     []byte
	FinalURL string
	Phase    string
}

// Phase is one way of retrieving a page.
type Phase interface {
	Name() string
	Fetch(ctx context.Context, url string) (*RawContent, error)
}
