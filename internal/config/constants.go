package config

const (
	// Fetch Defaults
	DefaultFetchUserAgent         = "postwatch/1.0 (+https://github.com/aleister1102/postwatch) Mozilla/5.0 (compatible)"
	DefaultFetchStaticTimeoutSecs = 10
	DefaultFetchMaxContentSizeMB  = 5
	DefaultRetryMaxAttempts       = 3
	DefaultRetryBaseDelayMs       = 500
	DefaultRetryMaxDelayMs        = 5000

	// Headless Browser Defaults
	DefaultRenderTimeoutSecs     = 20
	DefaultRenderIdleMs          = 500
	DefaultRenderMemoryThreshold = 0.9

	// Storage Defaults
	DefaultStorageSQLitePath       = "data/postwatch.db"
	DefaultStorageBusyTimeoutMs    = 5000
	DefaultDispatchHistoryKeepDays = 30

	// Scheduler Defaults
	DefaultSchedulerStopTimeoutSecs = 30
	DefaultSchedulerTickTimeoutSecs = 120

	// Notification Defaults
	DefaultNotificationChannel     = ChannelKindDiscordBot
	DefaultNotificationEmbedColor  = 0x5865F2
	DefaultNotificationSendsPerSec = 5.0
	DefaultNotificationLinkLabel   = "Open"

	// Command Defaults
	DefaultCommandsPerMinute = 30

	// Metrics Defaults
	DefaultMetricsListenAddr = ":9090"

	// Environment
	EnvConfigPath   = "POSTWATCH_CONFIG_PATH"
	EnvDiscordToken = "POSTWATCH_DISCORD_TOKEN"
)

// Notification channel kinds
const (
	ChannelKindDiscordBot     = "discord_bot"
	ChannelKindDiscordWebhook = "discord_webhook"
)
