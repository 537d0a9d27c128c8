package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/json"
	"github.com/ellavondegurechaff/levelbot/levelbot"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/repositories"
	"github.com/ellavondegurechaff/levelbot/levelbot/gamification"
	"github.com/ellavondegurechaff/levelbot/levelbot/utils"
)

var adminPermissions = json.NewNullablePtr(discord.PermissionManageGuild)

var CreateQuest = discord.SlashCommandCreate{
	Name:                     "createquest",
	Description:              "Create a new quest",
	DefaultMemberPermissions: adminPermissions,
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "name",
			Description: "Quest name",
			Required:    true,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "xp",
			Description: "XP reward (must be positive)",
			Required:    true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "description",
			Description: "Quest description",
			Required:    false,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "badge_id",
			Description: "Badge awarded on completion",
			Required:    false,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "days",
			Description: "Validity window in days from now",
			Required:    false,
		},
		discord.ApplicationCommandOptionBool{
			Name:        "open",
			Description: "Open the quest immediately instead of keeping it a draft",
			Required:    false,
		},
	},
}

var DeleteQuest = discord.SlashCommandCreate{
	Name:                     "deletequest",
	Description:              "Delete a quest and prune it from user records",
	DefaultMemberPermissions: adminPermissions,
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "quest_id",
			Description: "ID of the quest to delete",
			Required:    true,
		},
	},
}

var CompleteQuest = discord.SlashCommandCreate{
	Name:                     "completequest",
	Description:              "Complete a quest on behalf of a user",
	DefaultMemberPermissions: adminPermissions,
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "User to credit",
			Required:    true,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "quest_id",
			Description: "ID of the quest to complete",
			Required:    true,
		},
	},
}

func CreateQuestHandler(b *levelbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		xp := int64(data.Int("xp"))
		if xp <= 0 {
			return utils.ErrorReply(e, "XP reward must be positive.")
		}

		quest := &models.Quest{
			Name:        data.String("name"),
			Description: data.String("description"),
			XPReward:    xp,
			Status:      models.QuestStatusDraft,
		}
		if quest.Name == "" {
			return utils.ErrorReply(e, "Quest name must not be empty.")
		}

		if open := data.Bool("open"); open {
			quest.Status = models.QuestStatusOpen
		}

		if badgeID := int64(data.Int("badge_id")); badgeID != 0 {
			if _, err := b.BadgeRepository.GetByID(ctx, badgeID); err != nil {
				return utils.ErrorReply(e, fmt.Sprintf("Badge %d does not exist.", badgeID))
			}
			quest.BadgeID = &badgeID
		}

		if days := data.Int("days"); days > 0 {
			now := time.Now()
			end := now.AddDate(0, 0, days)
			quest.StartsAt = &now
			quest.EndsAt = &end
		}

		if err := b.QuestRepository.Create(ctx, quest); err != nil {
			return utils.ErrorReply(e, "Failed to create the quest. Please try again later.")
		}

		return utils.SuccessReply(e, "Quest created",
			fmt.Sprintf("**%s** (#%d, %d XP, %s)", quest.Name, quest.ID, quest.XPReward, quest.Status))
	}
}

func DeleteQuestHandler(b *levelbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		questID := int64(e.SlashCommandInteractionData().Int("quest_id"))

		if err := b.QuestRepository.Delete(ctx, questID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return utils.ErrorReply(e, fmt.Sprintf("Quest %d does not exist.", questID))
			}
			return utils.ErrorReply(e, "Failed to delete the quest. Please try again later.")
		}

		return utils.SuccessReply(e, "Quest deleted", fmt.Sprintf("Quest %d was removed.", questID))
	}
}

func CompleteQuestHandler(b *levelbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		target := data.User("user")
		questID := int64(data.Int("quest_id"))

		err := b.Engine.AdminCompleteQuest(ctx, target.ID.String(), questID)
		if err != nil {
			switch {
			case errors.Is(err, gamification.ErrQuestNotFound):
				return utils.ErrorReply(e, fmt.Sprintf("Quest %d does not exist.", questID))
			case errors.Is(err, gamification.ErrUserNotFound):
				return utils.ErrorReply(e, "That user is not registered.")
			case errors.Is(err, gamification.ErrAlreadyCompleted):
				return utils.ErrorReply(e, "That user has already completed this quest.")
			case errors.Is(err, gamification.ErrConcurrencyConflict):
				return utils.ErrorReply(e, "The user record is busy, please retry.")
			default:
				return utils.ErrorReply(e, "Failed to complete the quest. Please try again later.")
			}
		}

		return utils.SuccessReply(e, "Quest completed",
			fmt.Sprintf("Credited quest %d to %s.", questID, target.Username))
	}
}
