// Package discord delivers post notifications to Discord, either through a
// bot session or through channel webhooks.
package discord

import (
	"fmt"
	"time"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
)

// Embed limits enforced by Discord.
const (
	maxTitleLength      = 256
	maxFieldNameLength  = 256
	maxFieldValueLength = 1024
	maxFields           = 25
)

// Embed is the webhook representation of a Discord embed.
type Embed struct {
	Title     string       `json:"title,omitempty"`
	URL       string       `json:"url,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
	Color     int          `json:"color,omitempty"`
	Image     *EmbedImage  `json:"image,omitempty"`
	Fields    []EmbedField `json:"fields,omitempty"`
}

// EmbedImage is the large image of an embed.
type EmbedImage struct {
	URL string `json:"url"`
}

// EmbedField is one name/value row of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// WebhookPayload is the JSON body posted to a webhook.
type WebhookPayload struct {
	Content  string  `json:"content,omitempty"`
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// EmbedBuilder helps in constructing Embed objects.
type EmbedBuilder struct {
	embed Embed
}

// NewEmbedBuilder creates a new embed builder
func NewEmbedBuilder() *EmbedBuilder {
	return &EmbedBuilder{}
}

// WithTitle sets the title, truncated to Discord's limit.
func (eb *EmbedBuilder) WithTitle(title string) *EmbedBuilder {
	eb.embed.Title = truncateRunes(title, maxTitleLength)
	return eb
}

// WithURL sets the URL the title links to.
func (eb *EmbedBuilder) WithURL(url string) *EmbedBuilder {
	eb.embed.URL = url
	return eb
}

// WithTimestamp sets the embed timestamp
func (eb *EmbedBuilder) WithTimestamp(timestamp time.Time) *EmbedBuilder {
	eb.embed.Timestamp = timestamp.Format(time.RFC3339)
	return eb
}

// WithColor sets the embed color
func (eb *EmbedBuilder) WithColor(color int) *EmbedBuilder {
	eb.embed.Color = color
	return eb
}

// WithImage sets the image; an empty url leaves it unset.
func (eb *EmbedBuilder) WithImage(url string) *EmbedBuilder {
	if url != "" {
		eb.embed.Image = &EmbedImage{URL: url}
	}
	return eb
}

// AddField adds a field to the embed
func (eb *EmbedBuilder) AddField(name, value string, inline bool) *EmbedBuilder {
	eb.embed.Fields = append(eb.embed.Fields, EmbedField{Name: name, Value: value, Inline: inline})
	return eb
}

// Build validates and returns the embed.
func (eb *EmbedBuilder) Build() (Embed, error) {
	if err := validateEmbed(eb.embed); err != nil {
		return Embed{}, err
	}
	return eb.embed, nil
}

func validateEmbed(embed Embed) error {
	if embed.Title == "" {
		return errorwrapper.NewValidationError("title", embed.Title, "title cannot be empty")
	}
	if len(embed.Fields) > maxFields {
		return errorwrapper.NewValidationError("fields", len(embed.Fields), fmt.Sprintf("cannot have more than %d fields", maxFields))
	}
	for i, field := range embed.Fields {
		if field.Name == "" || len(field.Name) > maxFieldNameLength {
			return errorwrapper.NewValidationError("field_name", field.Name, fmt.Sprintf("field %d name must be 1-%d characters", i, maxFieldNameLength))
		}
		if field.Value == "" || len(field.Value) > maxFieldValueLength {
			return errorwrapper.NewValidationError("field_value", field.Value, fmt.Sprintf("field %d value must be 1-%d characters", i, maxFieldValueLength))
		}
	}
	return nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
