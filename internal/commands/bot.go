package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/aleister1102/postwatch/internal/config"
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Bot connects the handler to a Discord gateway session.
type Bot struct {
	session *discordgo.Session
	handler *Handler
	cfg     config.CommandConfig
	logger  zerolog.Logger

	mu    sync.Mutex
	appID string
}

// NewBot creates a bot over an unopened session.
func NewBot(session *discordgo.Session, handler *Handler, cfg config.CommandConfig, logger zerolog.Logger) *Bot {
	b := &Bot{
		session: session,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With().Str("component", "CommandBot").Logger(),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteractionCreate)
	return b
}

// Open connects the session. Commands are registered once Discord reports ready.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	b.logger.Info().Msg("Discord session opened")
	return nil
}

// Close optionally unregisters the commands, then closes the session.
func (b *Bot) Close() error {
	b.mu.Lock()
	appID := b.appID
	b.mu.Unlock()

	if b.cfg.UnregisterOnExit && appID != "" {
		if _, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.GuildID, []*discordgo.ApplicationCommand{}); err != nil {
			b.logger.Warn().Err(err).Msg("Failed to unregister commands")
		}
	}
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.mu.Lock()
	b.appID = event.User.ID
	b.mu.Unlock()
	b.logger.Info().Str("username", event.User.Username).Int("guilds", len(event.Guilds)).Msg("Discord bot is ready")

	registered, err := s.ApplicationCommandBulkOverwrite(event.User.ID, b.cfg.GuildID, Definitions(b.cfg.AdminRequired))
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to register commands")
		return
	}
	b.logger.Info().Int("count", len(registered)).Str("guild_id", b.cfg.GuildID).Msg("Registered slash commands")
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to defer interaction response")
		return
	}

	resp := b.handler.Handle(context.Background(), requestFromInteraction(i))

	params := &discordgo.WebhookParams{Content: resp.Content}
	if resp.Ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send follow-up message")
	}
}

func requestFromInteraction(i *discordgo.InteractionCreate) Request {
	data := i.ApplicationCommandData()
	req := Request{
		Command:   data.Name,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Strings:   make(map[string]string),
		Integers:  make(map[string]int64),
	}
	if i.Member != nil {
		req.IsAdmin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
		if i.Member.User != nil {
			req.UserID = i.Member.User.ID
		}
	}

	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			req.Strings[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionChannel:
			if id, ok := opt.Value.(string); ok {
				req.Strings[opt.Name] = id
			}
		case discordgo.ApplicationCommandOptionInteger:
			req.Integers[opt.Name] = opt.IntValue()
		}
	}
	return req
}
