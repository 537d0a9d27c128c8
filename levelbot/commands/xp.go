package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/ellavondegurechaff/levelbot/levelbot"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/repositories"
	"github.com/ellavondegurechaff/levelbot/levelbot/leveling"
	"github.com/ellavondegurechaff/levelbot/levelbot/utils"
)

var XP = discord.SlashCommandCreate{
	Name:        "xp",
	Description: "Show your level and XP progress",
}

func XPHandler(b *levelbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := b.UserRepository.GetByDiscordID(ctx, e.User().ID.String())
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return utils.ErrorReply(e, "You are not registered yet.")
			}
			return utils.ErrorReply(e, "Failed to load your XP data. Please try again later.")
		}

		totalXP := leveling.TotalXP(user.XPHistory)
		level, intoLevel, needed := b.LevelCalc.Progress(totalXP)

		if err := e.DeferCreateMessage(false); err != nil {
			return err
		}

		message := discord.MessageUpdate{
			Embeds: &[]discord.Embed{
				{
					Title: fmt.Sprintf("Level %d", level),
					Description: fmt.Sprintf("**%d** XP total\n**%d / %d** XP to next level",
						totalXP, intoLevel, needed),
					Color: utils.InfoColor,
				},
			},
		}

		// The rendered card is decoration; fall back to the embed alone when
		// headless Chrome is unavailable.
		if b.LevelCardService != nil {
			card, err := b.LevelCardService.GenerateLevelCard(ctx, e.User().Username, level, totalXP, intoLevel, needed)
			if err != nil {
				slog.Warn("Level card rendering failed",
					slog.String("user_id", e.User().ID.String()),
					slog.Any("error", err))
			} else {
				message.Files = []*discord.File{discord.NewFile("level.png", "", bytes.NewReader(card))}
				message.Embeds = nil
			}
		}

		_, err = e.UpdateInteractionResponse(message)
		return err
	}
}
