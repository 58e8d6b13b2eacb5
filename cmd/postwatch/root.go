package main

import (
	"fmt"

	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "postwatch",
		Short:         "Watch web pages and post their newest entries to Discord",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML/JSON configuration file (default: "+config.EnvConfigPath+" or ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log_config.log_level")

	cmd.AddCommand(
		newServeCommand(opts),
		newListCommand(opts),
		newCheckCommand(opts),
		newHistoryCommand(opts),
	)
	return cmd
}

// load reads the configuration and builds the process logger.
func (o *rootOptions) load() (*config.GlobalConfig, zerolog.Logger, error) {
	cfg, err := config.LoadGlobalConfig(o.configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("could not load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogConfig.LogLevel = o.logLevel
	}

	log, err := logger.New(cfg.LogConfig)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("could not initialize logger: %w", err)
	}
	return cfg, log, nil
}
