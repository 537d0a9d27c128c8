package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/ellavondegurechaff/levelbot/levelbot"
	"github.com/ellavondegurechaff/levelbot/levelbot/gamification"
	"github.com/ellavondegurechaff/levelbot/levelbot/lootbox"
	"github.com/ellavondegurechaff/levelbot/levelbot/utils"
)

var Lootbox = discord.SlashCommandCreate{
	Name:        "lootbox",
	Description: "Try to open today's lootbox, first one wins!",
}

func LootboxHandler(b *levelbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := b.LootboxResolver.Claim(ctx, e.User().ID.String())
		if err != nil {
			switch {
			case errors.Is(err, lootbox.ErrNoLootbox):
				return utils.ErrorReply(e, "There is no lootbox to open right now.")
			case errors.Is(err, gamification.ErrAlreadyCompleted):
				return utils.ErrorReply(e, "You have already completed today's lootbox quest.")
			case errors.Is(err, gamification.ErrClaimedByOther):
				return utils.ErrorReply(e, "Someone else opened the lootbox before you!")
			case errors.Is(err, gamification.ErrUserNotFound):
				return utils.ErrorReply(e, "You are not registered yet.")
			default:
				return utils.ErrorReply(e, "Something went wrong opening the lootbox. Please try again later.")
			}
		}

		winner := strings.TrimSpace(fmt.Sprintf("%s %s", result.User.FirstName, result.User.LastName))
		if winner == "" {
			winner = e.User().Username
		}

		// Public reply so everyone sees the race is over.
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{
				{
					Title:       "🎁 Lootbox opened!",
					Description: fmt.Sprintf("**%s** opened the lootbox and earned **%d XP**!", winner, result.XPAwarded),
					Color:       utils.SuccessColor,
				},
			},
		})
	}
}
