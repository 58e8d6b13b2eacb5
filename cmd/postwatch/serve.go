package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/aleister1102/postwatch/internal/commands"
	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/datastore"
	"github.com/aleister1102/postwatch/internal/extractor"
	"github.com/aleister1102/postwatch/internal/fetcher"
	"github.com/aleister1102/postwatch/internal/metrics"
	"github.com/aleister1102/postwatch/internal/monitor"
	"github.com/aleister1102/postwatch/internal/notifier"
	"github.com/aleister1102/postwatch/internal/notifier/discord"
	"github.com/aleister1102/postwatch/internal/registry"
	"github.com/aleister1102/postwatch/internal/rslimiter"
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const pruneJobName = "prune_dispatch_history"

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, the notification channel and the slash commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if err := config.ValidateConfig(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.GlobalConfig, log zerolog.Logger) error {
	store, err := datastore.NewSQLiteStore(cfg.StorageConfig.SQLitePath, cfg.StorageConfig.BusyTimeoutMs, log)
	if err != nil {
		return fmt.Errorf("could not open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	m := metrics.NewMetrics(nil)
	reg := registry.New(store, log)

	renderer, crawler := newCrawler(cfg, m, log)
	defer renderer.Close()

	var session *discordgo.Session
	if cfg.NotificationConfig.Channel == config.ChannelKindDiscordBot || cfg.CommandConfig.Enabled {
		session, err = discordgo.New("Bot " + cfg.NotificationConfig.Token())
		if err != nil {
			return fmt.Errorf("could not create Discord session: %w", err)
		}
	}

	channel, err := newChannel(cfg.NotificationConfig, session, log)
	if err != nil {
		return err
	}
	dispatcher := notifier.NewDispatcher(channel, store, m, log)
	svc := monitor.NewService(cfg.SchedulerConfig, reg, crawler, dispatcher, channel, m, log)

	if _, err := svc.Recover(ctx); err != nil {
		return fmt.Errorf("could not recover monitors: %w", err)
	}
	if err := schedulePrune(svc, store, cfg.StorageConfig.DispatchHistoryKeepDays, log); err != nil {
		return err
	}
	svc.Start()

	if cfg.MetricsConfig.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsConfig.ListenAddr, nil, log); err != nil {
				log.Error().Err(err).Msg("Metrics listener stopped")
			}
		}()
	}

	if cfg.CommandConfig.Enabled {
		bot := commands.NewBot(session, commands.NewHandler(svc, cfg.CommandConfig, m, log), cfg.CommandConfig, log)
		if err := bot.Open(); err != nil {
			stopService(svc, cfg.SchedulerConfig, log)
			return err
		}
		defer func() {
			if err := bot.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Discord session")
			}
		}()
	}

	log.Info().Int("monitors", len(svc.Snapshot())).Str("channel", channel.Name()).Msg("postwatch is running")
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	stopService(svc, cfg.SchedulerConfig, log)
	return nil
}

func newCrawler(cfg *config.GlobalConfig, m *metrics.Metrics, log zerolog.Logger) (*fetcher.Renderer, *fetcher.Strategy) {
	guard := rslimiter.NewMemoryGuard(cfg.HeadlessBrowserConfig.MemoryThreshold, log)
	renderer := fetcher.NewRenderer(cfg.HeadlessBrowserConfig, cfg.FetchConfig.UserAgent, guard, log)
	static := fetcher.NewStaticFetcher(cfg.FetchConfig, log)

	strategy := fetcher.NewStrategy(
		extractor.NewEngine(log),
		fetcher.NewRetryPolicy(cfg.FetchConfig.Retry),
		m,
		log,
		renderer,
		static,
	)
	return renderer, strategy
}

func newChannel(cfg config.NotificationConfig, session *discordgo.Session, log zerolog.Logger) (notifier.Channel, error) {
	switch cfg.Channel {
	case config.ChannelKindDiscordWebhook:
		return discord.NewWebhookChannel(cfg, log), nil
	case config.ChannelKindDiscordBot, "":
		if session == nil {
			return nil, errors.New("discord_bot channel requires a Discord session")
		}
		return discord.NewBotChannel(session, cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.Channel)
	}
}

func schedulePrune(svc *monitor.Service, store *datastore.SQLiteStore, keepDays int, log zerolog.Logger) error {
	if keepDays <= 0 {
		return nil
	}
	return svc.ScheduleMaintenance("@daily", pruneJobName, func(ctx context.Context) {
		removed, err := store.PruneDispatches(ctx, time.Now().AddDate(0, 0, -keepDays))
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune dispatch history")
			return
		}
		log.Info().Int64("removed", removed).Int("keep_days", keepDays).Msg("Dispatch history pruned")
	})
}

func stopService(svc *monitor.Service, cfg config.SchedulerConfig, log zerolog.Logger) {
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.StopTimeout())
	defer cancel()
	if err := svc.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("Scheduler did not stop cleanly")
		return
	}
	log.Info().Msg("Scheduler stopped")
}
