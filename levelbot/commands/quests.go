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
	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/repositories"
	"github.com/ellavondegurechaff/levelbot/levelbot/utils"
	"github.com/sahilm/fuzzy"
)

var Quests = discord.SlashCommandCreate{
	Name:        "quests",
	Description: "Show open quests and the ones you have completed",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "search",
			Description: "Filter quests by name",
			Required:    false,
		},
	},
}

func QuestsHandler(b *levelbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		query := strings.TrimSpace(e.SlashCommandInteractionData().String("search"))

		quests, err := b.QuestRepository.GetOpen(ctx)
		if err != nil {
			return utils.ErrorReply(e, "Failed to load quests. Please try again later.")
		}

		if query != "" {
			quests = filterQuests(quests, query)
		}

		completed := map[int64]time.Time{}
		user, err := b.UserRepository.GetByDiscordID(ctx, e.User().ID.String())
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return utils.ErrorReply(e, "Failed to load your quest progress. Please try again later.")
		}
		if user != nil {
			for _, c := range user.CompletedQuests {
				completed[c.QuestID] = c.CompletedAt
			}
		}

		var open, achieved strings.Builder
		for _, quest := range quests {
			if quest.IsLootbox() {
				// The lootbox announces itself; listing it would spoil the race.
				continue
			}
			line := fmt.Sprintf("• **%s** (%d XP)", quest.Name, quest.XPReward)
			if doneAt, ok := completed[quest.ID]; ok {
				achieved.WriteString(fmt.Sprintf("%s, completed %s\n", line, doneAt.Format("Jan 2")))
			} else {
				open.WriteString(line + "\n")
			}
		}

		if open.Len() == 0 {
			open.WriteString("*none*\n")
		}
		if achieved.Len() == 0 {
			achieved.WriteString("*none*\n")
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{
				{
					Title: "Quests",
					Color: utils.InfoColor,
					Fields: []discord.EmbedField{
						{Name: "Open", Value: open.String()},
						{Name: "Achieved", Value: achieved.String()},
					},
				},
			},
		})
	}
}

func filterQuests(quests []*models.Quest, query string) []*models.Quest {
	names := make([]string, len(quests))
	for i, q := range quests {
		names[i] = q.Name
	}

	matches := fuzzy.Find(query, names)
	filtered := make([]*models.Quest, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, quests[m.Index])
	}
	return filtered
}
