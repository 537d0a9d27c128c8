package utils

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
)

const (
	SuccessColor = 0x57F287
	ErrorColor   = 0xED4245
	WarningColor = 0xFEE75C
	InfoColor    = 0x5865F2
)

// ErrorReply sends a short ephemeral error embed.
func ErrorReply(e *handler.CommandEvent, description string) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{
			{
				Title:       "❌ Error",
				Description: description,
				Color:       ErrorColor,
			},
		},
		Flags: discord.MessageFlagEphemeral,
	})
}

// SuccessReply sends a success embed.
func SuccessReply(e *handler.CommandEvent, title, description string) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{
			{
				Title:       title,
				Description: description,
				Color:       SuccessColor,
			},
		},
	})
}
