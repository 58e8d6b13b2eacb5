package discord

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/aleister1102/postwatch/internal/notifier"
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Session is the part of *discordgo.Session the bot channel uses.
type Session interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// BotChannel sends embeds through a bot session. The destination is a channel ID.
type BotChannel struct {
	session Session
	limiter *rate.Limiter
	style   Style
	now     func() time.Time
	logger  zerolog.Logger
}

var _ notifier.Channel = (*BotChannel)(nil)

// NewBotChannel creates a bot channel pacing sends at cfg.SendsPerSec.
func NewBotChannel(session Session, cfg config.NotificationConfig, logger zerolog.Logger) *BotChannel {
	perSec := cfg.SendsPerSec
	if perSec <= 0 {
		perSec = config.DefaultNotificationSendsPerSec
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}

	return &BotChannel{
		session: session,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		style:   Style{Color: cfg.EmbedColor, LinkLabel: cfg.LinkLabel},
		now:     time.Now,
		logger:  logger.With().Str("component", "BotChannel").Logger(),
	}
}

// Name returns the channel kind.
func (b *BotChannel) Name() string { return config.ChannelKindDiscordBot }

// Send waits for a send slot and posts msg to the channel.
func (b *BotChannel) Send(ctx context.Context, destination string, msg notifier.Message) error {
	embed, err := PostEmbed(msg, b.style, b.now())
	if err != nil {
		return err
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := b.session.ChannelMessageSendEmbed(destination, toMessageEmbed(embed), discordgo.WithContext(ctx)); err != nil {
		return err
	}
	b.logger.Debug().Str("channel_id", destination).Str("title", msg.Title).Msg("Bot message sent")
	return nil
}

// ResolveDestination checks the channel exists, accepts text messages and
// belongs to the tenant's guild.
func (b *BotChannel) ResolveDestination(ctx context.Context, tenantID, destination string) error {
	if destination == "" {
		return models.ErrInvalidDestination
	}

	channel, err := b.session.Channel(destination, discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil {
			switch restErr.Response.StatusCode {
			case http.StatusNotFound, http.StatusForbidden, http.StatusBadRequest:
				return models.ErrInvalidDestination
			}
		}
		return err
	}

	if channel.Type != discordgo.ChannelTypeGuildText && channel.Type != discordgo.ChannelTypeGuildNews {
		return models.ErrInvalidDestination
	}
	if tenantID != "" && channel.GuildID != tenantID {
		return models.ErrInvalidDestination
	}
	return nil
}

func toMessageEmbed(embed Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Type:      discordgo.EmbedTypeRich,
		Title:     embed.Title,
		URL:       embed.URL,
		Color:     embed.Color,
		Timestamp: embed.Timestamp,
	}
	if embed.Image != nil {
		out.Image = &discordgo.MessageEmbedImage{URL: embed.Image.URL}
	}
	for _, f := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}
