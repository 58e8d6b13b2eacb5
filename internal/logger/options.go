package logger

import (
	"strings"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
)

// Format selects how records are rendered.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
	FormatText    Format = "text"
)

// FileOptions controls the rotating log file. An empty Path disables it.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Options is the resolved logger setup.
type Options struct {
	Level   zerolog.Level
	Format  Format
	Console bool
	File    FileOptions
}

// DefaultOptions logs info and above to stderr in console format.
func DefaultOptions() Options {
	return Options{
		Level:   zerolog.InfoLevel,
		Format:  FormatConsole,
		Console: true,
		File: FileOptions{
			MaxSizeMB:  DefaultMaxLogSizeMB,
			MaxBackups: DefaultMaxLogBackups,
		},
	}
}

// OptionsFromConfig resolves the log_config section. An unknown level is
// reported and replaced by info so startup can still log the problem.
func OptionsFromConfig(cfg FileLogConfig) (Options, error) {
	opts := DefaultOptions()
	opts.Format = parseFormat(cfg.LogFormat)
	opts.File = FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  positiveOr(cfg.MaxLogSizeMB, DefaultMaxLogSizeMB),
		MaxBackups: positiveOr(cfg.MaxLogBackups, DefaultMaxLogBackups),
		MaxAgeDays: cfg.MaxLogAgeDays,
		Compress:   cfg.Compress,
	}

	if cfg.LogLevel == "" {
		return opts, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return opts, errorwrapper.WrapError(err, "invalid log level")
	}
	opts.Level = level
	return opts, nil
}

func parseFormat(s string) Format {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatText:
		return f
	default:
		return FormatConsole
	}
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
