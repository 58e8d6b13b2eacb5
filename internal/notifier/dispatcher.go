package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/aleister1102/postwatch/internal/metrics"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/rs/zerolog"
)

// Dispatcher sends one message per detected post. Failures are logged and
// reported as false; they never reach the caller as errors.
type Dispatcher struct {
	channel Channel
	history HistoryRecorder
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewDispatcher creates a dispatcher over channel. history may be nil.
func NewDispatcher(channel Channel, history HistoryRecorder, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		channel: channel,
		history: history,
		metrics: m,
		logger:  logger.With().Str("component", "Dispatcher").Logger(),
		now:     time.Now,
	}
}

// Dispatch sends candidate to cfg's destination and reports whether it was delivered.
// A candidate without a link points at the monitored page instead.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg models.MonitorConfig, candidate models.Candidate, fp string) (delivered bool) {
	msg := Message{Title: candidate.Title, Link: candidate.Link, Image: candidate.Image}
	if msg.Link == "" {
		msg.Link = cfg.URL
	}

	logger := d.logger.With().
		Str("tenant_id", cfg.TenantID).
		Str("name", cfg.Name).
		Str("channel", d.channel.Name()).
		Logger()

	err := d.send(ctx, cfg.Destination, msg)
	delivered = err == nil
	if err != nil {
		dispatchErr := &models.DispatchError{Destination: cfg.Destination, Err: err}
		logger.Error().Err(dispatchErr).Str("title", msg.Title).Msg("Failed to send notification")
	} else {
		logger.Info().Str("title", msg.Title).Str("link", msg.Link).Msg("Notification sent")
	}
	d.metrics.Dispatch(delivered)

	if d.history != nil {
		rec := models.DispatchRecord{
			TenantID:    cfg.TenantID,
			Name:        cfg.Name,
			Fingerprint: fp,
			Title:       msg.Title,
			Link:        msg.Link,
			Image:       msg.Image,
			Delivered:   delivered,
			CreatedAt:   d.now().UTC(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if herr := d.history.RecordDispatch(ctx, rec); herr != nil {
			logger.Warn().Err(herr).Msg("Failed to record dispatch history")
		}
	}
	return delivered
}

func (d *Dispatcher) send(ctx context.Context, destination string, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()
	return d.channel.Send(ctx, destination, msg)
}
