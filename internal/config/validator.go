package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidateConfig performs validation on the GlobalConfig structure.
func ValidateConfig(cfg *GlobalConfig) error {
	validate := validator.New()

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "trace", "debug", "info", "warn", "error", "fatal", "panic":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "console", "text", "json":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("channelkind", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", ChannelKindDiscordBot, ChannelKindDiscordWebhook:
			return true
		default:
			return false
		}
	})

	if err := validate.Struct(cfg); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			messages := make([]string, 0, len(errs))
			for _, e := range errs {
				msg := fmt.Sprintf("Validation failed for '%s': rule '%s'", e.Namespace(), e.Tag())
				if e.Param() != "" {
					msg += fmt.Sprintf(" (expected: %s)", e.Param())
				}
				if e.Value() != nil && e.Value() != "" {
					msg += fmt.Sprintf(", actual: '%v'", e.Value())
				}
				messages = append(messages, msg)
			}
			return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(messages, "\n  "))
		}
		return fmt.Errorf("configuration validation error: %w", err)
	}

	return validateCrossFields(cfg)
}

func validateCrossFields(cfg *GlobalConfig) error {
	retry := cfg.FetchConfig.Retry
	if retry.MaxDelayMs > 0 && retry.BaseDelayMs > retry.MaxDelayMs {
		return fmt.Errorf("configuration validation failed: fetch_config.retry.base_delay_ms (%d) exceeds max_delay_ms (%d)", retry.BaseDelayMs, retry.MaxDelayMs)
	}
	if cfg.NotificationConfig.Channel == ChannelKindDiscordBot || cfg.CommandConfig.Enabled {
		if cfg.NotificationConfig.Token() == "" {
			return fmt.Errorf("configuration validation failed: discord token required (set notification_config.discord_token or %s)", EnvDiscordToken)
		}
	}
	return nil
}
