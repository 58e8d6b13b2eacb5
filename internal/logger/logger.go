package logger

import "github.com/rs/zerolog"

// New builds the process logger from the log_config section
func New(cfg FileLogConfig) (zerolog.Logger, error) {
	return NewLoggerBuilder().WithConfig(cfg).WithService("postwatch").Build()
}

