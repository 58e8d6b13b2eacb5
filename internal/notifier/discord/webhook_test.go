package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/aleister1102/postwatch/internal/notifier"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotificationConfig() config.NotificationConfig {
	cfg := config.NewDefaultNotificationConfig()
	cfg.WebhookRetry.BaseDelayMs = 1
	cfg.WebhookRetry.MaxDelayMs = 20
	return cfg
}

func TestWebhookChannel_Send(t *testing.T) {
	var got WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	channel := NewWebhookChannel(testNotificationConfig(), zerolog.Nop())
	err := channel.Send(context.Background(), server.URL+"/api/webhooks/1/abc", notifier.Message{
		Title: "Patch Notes v2",
		Link:  "https://site/posts/2",
		Image: "https://site/img/2.png",
	})

	require.NoError(t, err)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Patch Notes v2", got.Embeds[0].Title)
	assert.Equal(t, "https://site/posts/2", got.Embeds[0].URL)
	require.NotNil(t, got.Embeds[0].Image)
	assert.Equal(t, "https://site/img/2.png", got.Embeds[0].Image.URL)
	require.Len(t, got.Embeds[0].Fields, 1)
	assert.Equal(t, "Open", got.Embeds[0].Fields[0].Name)
}

func TestWebhookChannel_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"You are being rate limited.","retry_after":0.01,"global":false}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	channel := NewWebhookChannel(testNotificationConfig(), zerolog.Nop())
	err := channel.Send(context.Background(), server.URL, notifier.Message{Title: "t", Link: "https://site/1"})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhookChannel_DoesNotRepostAfterDroppedConnection(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.ReadAll(r.Body)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			_ = conn.Close()
		}
	}))
	defer server.Close()

	channel := NewWebhookChannel(testNotificationConfig(), zerolog.Nop())
	err := channel.Send(context.Background(), server.URL, notifier.Message{Title: "t", Link: "https://site/1"})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookChannel_ClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Unknown Webhook","code":10015}`))
	}))
	defer server.Close()

	channel := NewWebhookChannel(testNotificationConfig(), zerolog.Nop())
	err := channel.Send(context.Background(), server.URL, notifier.Message{Title: "t", Link: "https://site/1"})

	var httpErr *errorwrapper.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestWebhookChannel_ResolveDestination(t *testing.T) {
	channel := NewWebhookChannel(testNotificationConfig(), zerolog.Nop())

	valid := []string{
		"https://discord.com/api/webhooks/123/token-abc",
		"https://discordapp.com/api/webhooks/123/token-abc",
		"https://canary.discord.com/api/webhooks/123/token-abc",
	}
	for _, dest := range valid {
		assert.NoError(t, channel.ResolveDestination(context.Background(), "g1", dest), dest)
	}

	invalid := []string{
		"",
		"123456789",
		"http://discord.com/api/webhooks/123/token",
		"https://evil.example.com/api/webhooks/123/token",
		"https://discord.com/api/webhooks/123",
		"https://discord.com/channels/1/2",
		"://bad",
	}
	for _, dest := range invalid {
		assert.ErrorIs(t, channel.ResolveDestination(context.Background(), "g1", dest), models.ErrInvalidDestination, dest)
	}
}
