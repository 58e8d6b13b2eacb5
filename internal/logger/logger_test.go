package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultLogger(t *testing.T) {
	_, err := New(NewDefaultFileLogConfig())
	require.NoError(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(FileLogConfig{LogLevel: "DEBUG", LogFormat: "JSON", LogFile: "logs/app.log"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, opts.Level)
	assert.Equal(t, FormatJSON, opts.Format)
	assert.Equal(t, "logs/app.log", opts.File.Path)
	assert.Equal(t, DefaultMaxLogSizeMB, opts.File.MaxSizeMB)
	assert.Equal(t, DefaultMaxLogBackups, opts.File.MaxBackups)
}

func TestOptionsFromConfig_UnknownValues(t *testing.T) {
	opts, err := OptionsFromConfig(FileLogConfig{LogLevel: "chatty", LogFormat: "xml"})
	assert.Error(t, err)
	assert.Equal(t, zerolog.InfoLevel, opts.Level)
	assert.Equal(t, FormatConsole, opts.Format)
}

func jsonOnly() Options {
	opts := DefaultOptions()
	opts.Console = false
	return opts
}

func TestBuilder_ComponentField(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewLoggerBuilder().
		WithOptions(jsonOnly()).
		WithService("postwatch").
		WithWriter(&buf).
		WithoutGlobals().
		Build()
	require.NoError(t, err)

	schedulerLog := log.With().Str("component", "Scheduler").Logger()
	schedulerLog.Info().Msg("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Scheduler", record["component"])
	assert.Equal(t, "postwatch", record["service"])
	assert.Equal(t, "hello", record["message"])
}

func TestBuilder_LevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	opts := jsonOnly()
	opts.Level = zerolog.WarnLevel

	log, err := NewLoggerBuilder().WithOptions(opts).WithWriter(&buf).WithoutGlobals().Build()
	require.NoError(t, err)

	log.Info().Msg("dropped")
	log.Warn().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestBuilder_NoWriters(t *testing.T) {
	_, err := NewLoggerBuilder().WithOptions(jsonOnly()).WithoutGlobals().Build()
	assert.Error(t, err)
}

func TestBuilder_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "postwatch.log")
	opts := jsonOnly()
	opts.Format = FormatJSON
	opts.File.Path = path

	log, err := NewLoggerBuilder().WithOptions(opts).WithoutGlobals().Build()
	require.NoError(t, err)
	log.Info().Msg("persisted")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "persisted")
}

func TestBuilder_TextFileHasNoColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postwatch.log")
	opts := jsonOnly()
	opts.Format = FormatConsole
	opts.File.Path = path

	log, err := NewLoggerBuilder().WithOptions(opts).WithoutGlobals().Build()
	require.NoError(t, err)
	log.Info().Msg("plain")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "plain")
	assert.False(t, strings.Contains(string(data), "\x1b["), "file output must not contain color codes")
}
