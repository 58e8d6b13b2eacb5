package discord

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/httpclient"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/aleister1102/postwatch/internal/notifier"
	"github.com/rs/zerolog"
)

var webhookHosts = map[string]bool{
	"discord.com":        true,
	"discordapp.com":     true,
	"canary.discord.com": true,
	"ptb.discord.com":    true,
}

// WebhookChannel posts embeds to Discord webhook URLs. The destination is the webhook URL.
type WebhookChannel struct {
	client *httpclient.HTTPClient
	style  Style
	now    func() time.Time
	logger zerolog.Logger
}

var _ notifier.Channel = (*WebhookChannel)(nil)

// NewWebhookChannel creates a webhook channel that retries rate-limited posts.
func NewWebhookChannel(cfg config.NotificationConfig, logger zerolog.Logger) *WebhookChannel {
	logger = logger.With().Str("component", "WebhookChannel").Logger()

	retries := cfg.WebhookRetry.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	client := httpclient.NewHTTPClientBuilder(logger).
		WithTimeout(15 * time.Second).
		WithFollowRedirects(false).
		WithMaxContentSize(64 * 1024).
		WithRetry(httpclient.RetryHandlerConfig{
			MaxRetries:       retries,
			BaseDelay:        cfg.WebhookRetry.BaseDelay(),
			MaxDelay:         cfg.WebhookRetry.MaxDelay(),
			EnableJitter:     cfg.WebhookRetry.EnableJitter,
			RetryStatusCodes: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable},
		}).
		Build()

	return &WebhookChannel{
		client: client,
		style:  Style{Color: cfg.EmbedColor, LinkLabel: cfg.LinkLabel},
		now:    time.Now,
		logger: logger,
	}
}

// Name returns the channel kind.
func (w *WebhookChannel) Name() string { return config.ChannelKindDiscordWebhook }

// Send posts msg as a single embed.
func (w *WebhookChannel) Send(ctx context.Context, destination string, msg notifier.Message) error {
	embed, err := PostEmbed(msg, w.style, w.now())
	if err != nil {
		return err
	}

	payload := WebhookPayload{Embeds: []Embed{embed}}
	if _, err := w.client.PostJSON(ctx, destination, payload); err != nil {
		return err
	}
	w.logger.Debug().Str("title", msg.Title).Msg("Webhook message posted")
	return nil
}

// ResolveDestination accepts only https Discord webhook URLs.
func (w *WebhookChannel) ResolveDestination(_ context.Context, _ string, destination string) error {
	return validateWebhookURL(destination)
}

func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return models.ErrInvalidDestination
	}
	if u.Scheme != "https" || !webhookHosts[strings.ToLower(u.Hostname())] {
		return models.ErrInvalidDestination
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[0] != "api" || parts[1] != "webhooks" || parts[2] == "" || parts[3] == "" {
		return models.ErrInvalidDestination
	}
	return nil
}
