package config

import "os"

// NotificationConfig defines how new posts are delivered
type NotificationConfig struct {
	Channel      string      `json:"channel,omitempty" yaml:"channel,omitempty" validate:"omitempty,channelkind"`
	DiscordToken string      `json:"discord_token,omitempty" yaml:"discord_token,omitempty"`
	EmbedColor   int         `json:"embed_color,omitempty" yaml:"embed_color,omitempty" validate:"omitempty,min=0,max=16777215"`
	SendsPerSec  float64     `json:"sends_per_sec,omitempty" yaml:"sends_per_sec,omitempty" validate:"omitempty,gt=0"`
	LinkLabel    string      `json:"link_label,omitempty" yaml:"link_label,omitempty"`
	WebhookRetry RetryConfig `json:"webhook_retry,omitempty" yaml:"webhook_retry,omitempty"`
}

// NewDefaultNotificationConfig creates default notification configuration
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		Channel:      DefaultNotificationChannel,
		EmbedColor:   DefaultNotificationEmbedColor,
		SendsPerSec:  DefaultNotificationSendsPerSec,
		LinkLabel:    DefaultNotificationLinkLabel,
		WebhookRetry: NewDefaultRetryConfig(),
	}
}

// Token returns the Discord bot token, preferring the environment
func (nc NotificationConfig) Token() string {
	if token := os.Getenv(EnvDiscordToken); token != "" {
		return token
	}
	return nc.DiscordToken
}
