package commands

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/ellavondegurechaff/levelbot/levelbot"
)

var Version = discord.SlashCommandCreate{
	Name:        "version",
	Description: "Show the bot version",
}

func VersionHandler(b *levelbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("LevelBot %s (%s)", b.Version, b.Commit),
		})
	}
}
