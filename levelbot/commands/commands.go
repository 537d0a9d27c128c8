package commands

import (
	"github.com/disgoorg/disgo/discord"
)

var Commands = []discord.ApplicationCommandCreate{
	XP,
	Badges,
	Quests,
	Lootbox,
	CreateQuest,
	DeleteQuest,
	CompleteQuest,
	Version,
}
