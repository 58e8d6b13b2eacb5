package config

import "time"

// RetryConfig bounds how each fetch phase is retried
type RetryConfig struct {
	MaxAttempts  int  `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty" validate:"omitempty,min=1,max=10"`
	BaseDelayMs  int  `json:"base_delay_ms,omitempty" yaml:"base_delay_ms,omitempty" validate:"omitempty,min=1"`
	MaxDelayMs   int  `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty" validate:"omitempty,min=1"`
	EnableJitter bool `json:"enable_jitter" yaml:"enable_jitter"`
}

// NewDefaultRetryConfig creates default retry configuration
func NewDefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultRetryMaxAttempts,
		BaseDelayMs:  DefaultRetryBaseDelayMs,
		MaxDelayMs:   DefaultRetryMaxDelayMs,
		EnableJitter: true,
	}
}

// BaseDelay returns the first backoff step
func (rc RetryConfig) BaseDelay() time.Duration {
	return time.Duration(rc.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff cap
func (rc RetryConfig) MaxDelay() time.Duration {
	return time.Duration(rc.MaxDelayMs) * time.Millisecond
}

// FetchConfig defines the static fetch phase and the shared retry policy
type FetchConfig struct {
	UserAgent             string      `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	StaticTimeoutSecs     int         `json:"static_timeout_secs,omitempty" yaml:"static_timeout_secs,omitempty" validate:"omitempty,min=1,max=120"`
	MaxContentSizeMB      int         `json:"max_content_size_mb,omitempty" yaml:"max_content_size_mb,omitempty" validate:"omitempty,min=1"`
	InsecureSkipTLSVerify bool        `json:"insecure_skip_tls_verify" yaml:"insecure_skip_tls_verify"`
	EnableHTTP2           bool        `json:"enable_http2" yaml:"enable_http2"`
	Retry                 RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// NewDefaultFetchConfig creates default fetch configuration
func NewDefaultFetchConfig() FetchConfig {
	return FetchConfig{
		UserAgent:         DefaultFetchUserAgent,
		StaticTimeoutSecs: DefaultFetchStaticTimeoutSecs,
		MaxContentSizeMB:  DefaultFetchMaxContentSizeMB,
		EnableHTTP2:       true,
		Retry:             NewDefaultRetryConfig(),
	}
}

// StaticTimeout returns the static fetch timeout
func (fc FetchConfig) StaticTimeout() time.Duration {
	return time.Duration(fc.StaticTimeoutSecs) * time.Second
}

// HeadlessBrowserConfig defines the dynamic render phase
type HeadlessBrowserConfig struct {
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	ChromePath        string   `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	RenderTimeoutSecs int      `json:"render_timeout_secs,omitempty" yaml:"render_timeout_secs,omitempty" validate:"omitempty,min=1,max=300"`
	IdleMs            int      `json:"idle_ms,omitempty" yaml:"idle_ms,omitempty" validate:"omitempty,min=0"`
	MemoryThreshold   float64  `json:"memory_threshold,omitempty" yaml:"memory_threshold,omitempty" validate:"omitempty,min=0.1,max=1.0"`
	BrowserArgs       []string `json:"browser_args,omitempty" yaml:"browser_args,omitempty"`
}

// NewDefaultHeadlessBrowserConfig creates default headless browser configuration
func NewDefaultHeadlessBrowserConfig() HeadlessBrowserConfig {
	return HeadlessBrowserConfig{
		Enabled:           true,
		RenderTimeoutSecs: DefaultRenderTimeoutSecs,
		IdleMs:            DefaultRenderIdleMs,
		MemoryThreshold:   DefaultRenderMemoryThreshold,
		BrowserArgs:       []string{"no-sandbox", "disable-dev-shm-usage", "disable-gpu"},
	}
}

// RenderTimeout returns the bound for one render
func (hc HeadlessBrowserConfig) RenderTimeout() time.Duration {
	return time.Duration(hc.RenderTimeoutSecs) * time.Second
}

// Idle returns how long the network must stay quiet before capture
func (hc HeadlessBrowserConfig) Idle() time.Duration {
	return time.Duration(hc.IdleMs) * time.Millisecond
}
