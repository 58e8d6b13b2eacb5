// Package commands exposes monitor management as Discord slash commands.
package commands

import "github.com/bwmarrin/discordgo"

// Command names.
const (
	CommandAdd    = "crawl-add"
	CommandList   = "crawl-list"
	CommandRemove = "crawl-remove"
	CommandEdit   = "crawl-edit"
)

// Option names.
const (
	OptionName     = "name"
	OptionURL      = "url"
	OptionChannel  = "channel"
	OptionWebhook  = "webhook"
	OptionInterval = "interval"
)

// Interval bounds for the interval option, in minutes.
const (
	MinIntervalMinutes     = 1
	MaxIntervalMinutes     = 1440
	DefaultIntervalMinutes = 5
)

var (
	minInterval     = float64(MinIntervalMinutes)
	adminPermission = int64(discordgo.PermissionAdministrator)
	textChannels    = []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews}
)

func nameOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        OptionName,
		Description: "Monitor name, unique in this server",
		Required:    required,
		MaxLength:   100,
	}
}

func intervalOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        OptionInterval,
		Description: description,
		MinValue:    &minInterval,
		MaxValue:    MaxIntervalMinutes,
	}
}

// Definitions returns the slash commands. When adminOnly is set Discord hides
// them from members without the Administrator permission.
func Definitions(adminOnly bool) []*discordgo.ApplicationCommand {
	var perms *int64
	if adminOnly {
		perms = &adminPermission
	}
	dmAllowed := false

	return []*discordgo.ApplicationCommand{
		{
			Name:                     CommandAdd,
			Description:              "Watch a page and post its new entries to a channel",
			DefaultMemberPermissions: perms,
			DMPermission:             &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				nameOption(true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        OptionURL,
					Description: "Page to watch",
					Required:    true,
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         OptionChannel,
					Description:  "Channel to post to (defaults to this channel)",
					ChannelTypes: textChannels,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        OptionWebhook,
					Description: "Webhook URL to post to instead of a channel",
				},
				intervalOption("Check interval in minutes (default 5)"),
			},
		},
		{
			Name:                     CommandList,
			Description:              "List watched pages in this server",
			DefaultMemberPermissions: perms,
			DMPermission:             &dmAllowed,
		},
		{
			Name:                     CommandRemove,
			Description:              "Stop watching a page",
			DefaultMemberPermissions: perms,
			DMPermission:             &dmAllowed,
			Options:                  []*discordgo.ApplicationCommandOption{nameOption(true)},
		},
		{
			Name:                     CommandEdit,
			Description:              "Change the page, channel or interval of a watch",
			DefaultMemberPermissions: perms,
			DMPermission:             &dmAllowed,
			Options: []*discordgo.ApplicationCommandOption{
				nameOption(true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        OptionURL,
					Description: "New page to watch",
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         OptionChannel,
					Description:  "New channel to post to",
					ChannelTypes: textChannels,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        OptionWebhook,
					Description: "New webhook URL to post to",
				},
				intervalOption("New check interval in minutes"),
			},
		},
	}
}
