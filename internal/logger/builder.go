package logger

import (
	"io"
	stdlog "log"
	"os"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
)

// LoggerBuilder assembles the process logger.
type LoggerBuilder struct {
	opts      Options
	optsErr   error
	console   io.Writer
	extra     []io.Writer
	service   string
	setGlobal bool
}

// NewLoggerBuilder starts from DefaultOptions writing console output to stderr.
func NewLoggerBuilder() *LoggerBuilder {
	return &LoggerBuilder{
		opts:      DefaultOptions(),
		console:   os.Stderr,
		setGlobal: true,
	}
}

// WithConfig applies the log_config section.
func (lb *LoggerBuilder) WithConfig(cfg FileLogConfig) *LoggerBuilder {
	lb.opts, lb.optsErr = OptionsFromConfig(cfg)
	return lb
}

// WithOptions replaces the resolved options.
func (lb *LoggerBuilder) WithOptions(opts Options) *LoggerBuilder {
	lb.opts, lb.optsErr = opts, nil
	return lb
}

// WithService tags every record with a service name.
func (lb *LoggerBuilder) WithService(name string) *LoggerBuilder {
	lb.service = name
	return lb
}

// WithWriter adds a raw JSON output.
func (lb *LoggerBuilder) WithWriter(w io.Writer) *LoggerBuilder {
	lb.extra = append(lb.extra, w)
	return lb
}

// WithoutGlobals leaves the zerolog global level and the std log package alone.
func (lb *LoggerBuilder) WithoutGlobals() *LoggerBuilder {
	lb.setGlobal = false
	return lb
}

// Build creates the logger. A bad level in the config is logged as a warning
// on the logger that is returned, not treated as fatal.
func (lb *LoggerBuilder) Build() (zerolog.Logger, error) {
	var writers []io.Writer
	if lb.opts.Console {
		writers = append(writers, render(lb.console, lb.opts.Format, true))
	}
	if lb.opts.File.Path != "" {
		if lb.opts.File.MaxSizeMB <= 0 {
			return zerolog.Nop(), errorwrapper.NewValidationError("max_log_size_mb", lb.opts.File.MaxSizeMB, "max size must be positive")
		}
		file, err := rotatingFile(lb.opts.File)
		if err != nil {
			return zerolog.Nop(), errorwrapper.WrapError(err, "failed to create log directory")
		}
		writers = append(writers, render(file, lb.opts.Format, false))
	}
	writers = append(writers, lb.extra...)
	if len(writers) == 0 {
		return zerolog.Nop(), errorwrapper.NewValidationError("writers", 0, "no output writers configured")
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lb.opts.Level).
		With().
		Timestamp()
	if lb.service != "" {
		ctx = ctx.Str("service", lb.service)
	}
	instance := ctx.Logger()

	if lb.setGlobal {
		zerolog.SetGlobalLevel(lb.opts.Level)
		stdlog.SetOutput(instance)
		stdlog.SetFlags(0)
	}
	if lb.optsErr != nil {
		instance.Warn().Err(lb.optsErr).Msg("Falling back to info level")
	}
	return instance, nil
}
