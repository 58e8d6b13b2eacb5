package discord

import (
	"fmt"
	"time"

	"github.com/aleister1102/postwatch/internal/notifier"
)

// Style controls how post embeds look.
type Style struct {
	Color     int
	LinkLabel string
}

// PostEmbed builds the embed for one new post: the title links to the post,
// the image is shown large, and a field repeats the link as a button-like row.
func PostEmbed(msg notifier.Message, style Style, now time.Time) (Embed, error) {
	builder := NewEmbedBuilder().
		WithTitle(msg.Title).
		WithURL(msg.Link).
		WithColor(style.Color).
		WithImage(msg.Image).
		WithTimestamp(now)

	if msg.Link != "" {
		label := style.LinkLabel
		if label == "" {
			label = "Open"
		}
		if value := fmt.Sprintf("[%s](%s)", label, msg.Link); len(value) <= maxFieldValueLength {
			builder.AddField(label, value, false)
		}
	}
	return builder.Build()
}
