package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/ellavondegurechaff/levelbot/levelbot"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/repositories"
	"github.com/ellavondegurechaff/levelbot/levelbot/utils"
)

const badgesPerPage = 10

var Badges = discord.SlashCommandCreate{
	Name:        "badges",
	Description: "Show the badges you have earned",
}

func BadgesHandler(b *levelbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		user, err := b.UserRepository.GetByDiscordID(ctx, e.User().ID.String())
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return utils.ErrorReply(e, "You are not registered yet.")
			}
			return utils.ErrorReply(e, "Failed to load your badges. Please try again later.")
		}

		if len(user.Badges) == 0 {
			return utils.SuccessReply(e, "Badges", "You have not earned any badges yet.")
		}

		ids := make([]int64, len(user.Badges))
		awardedAt := make(map[int64]time.Time, len(user.Badges))
		for i, award := range user.Badges {
			ids[i] = award.BadgeID
			awardedAt[award.BadgeID] = award.AwardedAt
		}

		badges, err := b.BadgeRepository.GetByIDs(ctx, ids)
		if err != nil {
			return utils.ErrorReply(e, "Failed to load your badges. Please try again later.")
		}

		totalPages := (len(badges) + badgesPerPage - 1) / badgesPerPage

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				startIdx := page * badgesPerPage
				endIdx := min(startIdx+badgesPerPage, len(badges))

				var description strings.Builder
				for _, badge := range badges[startIdx:endIdx] {
					description.WriteString(fmt.Sprintf("🏅 **%s** (%s)\n",
						badge.Name, awardedAt[badge.ID].Format("Jan 2, 2006")))
					if badge.Description != "" {
						description.WriteString(fmt.Sprintf("  %s\n", badge.Description))
					}
				}

				embed.
					SetTitle(fmt.Sprintf("Badges (%d)", len(badges))).
					SetDescription(description.String()).
					SetColor(utils.InfoColor)
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}
