package gamification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/repositories"
	"github.com/ellavondegurechaff/levelbot/levelbot/leveling"
	"github.com/uptrace/bun"
)

// maxCompletionRetries bounds the optimistic-lock retry loop of a completion.
const maxCompletionRetries = 3

// Engine is the transactional core of the gamification system. Completing a
// quest appends the completion record, the XP ledger entry and (when declared)
// the badge award in a single versioned write of the user row, so the
// "at most one completion, at most one badge" invariants hold under
// concurrent invocation.
type Engine struct {
	users  repositories.UserRepository
	quests repositories.QuestRepository
	badges repositories.BadgeRepository
	calc   leveling.Config
	bus    *Bus
}

func NewEngine(
	users repositories.UserRepository,
	quests repositories.QuestRepository,
	badges repositories.BadgeRepository,
	calc leveling.Config,
	bus *Bus,
) *Engine {
	return &Engine{
		users:  users,
		quests: quests,
		badges: badges,
		calc:   calc,
		bus:    bus,
	}
}

// CompleteQuest is the player-triggered completion path. It requires the
// quest to be open and inside its validity window.
func (e *Engine) CompleteQuest(ctx context.Context, discordID string, questID int64) error {
	return e.complete(ctx, discordID, questID, true)
}

// AdminCompleteQuest is the administrative completion path. It bypasses the
// status and window checks but keeps every other invariant.
func (e *Engine) AdminCompleteQuest(ctx context.Context, discordID string, questID int64) error {
	return e.complete(ctx, discordID, questID, false)
}

func (e *Engine) complete(ctx context.Context, discordID string, questID int64, enforceStatus bool) error {
	quest, badge, err := e.loadQuest(ctx, questID)
	if err != nil {
		return err
	}
	if enforceStatus && !quest.Completable(time.Now()) {
		return fmt.Errorf("quest %d: %w", questID, ErrQuestNotOpen)
	}

	for attempt := 0; attempt < maxCompletionRetries; attempt++ {
		user, err := e.users.GetByDiscordID(ctx, discordID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("user %s: %w", discordID, ErrUserNotFound)
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		events, err := applyCompletion(user, quest, badge, e.calc, time.Now())
		if err != nil {
			return err
		}

		if err := e.users.Update(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				slog.Debug("Completion hit a version conflict, retrying",
					slog.String("discord_id", discordID),
					slog.Int64("quest_id", questID),
					slog.Int("attempt", attempt+1))
				continue
			}
			return fmt.Errorf("failed to persist completion: %w", err)
		}

		e.publish(events)
		return nil
	}

	return fmt.Errorf("completing quest %d for %s: %w", questID, discordID, ErrConcurrencyConflict)
}

// CompleteInTx applies the completion to an already-loaded user inside a
// caller-supplied transaction and returns the resulting events for
// publication after commit. The lootbox resolver uses this so the quest-level
// claim and the per-user mutation commit or roll back together.
func (e *Engine) CompleteInTx(ctx context.Context, tx bun.IDB, user *models.User, quest *models.Quest) ([]Event, error) {
	var badge *models.Badge
	if quest.BadgeID != nil {
		var err error
		badge, err = e.badges.GetByID(ctx, *quest.BadgeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load badge reward: %w", err)
		}
	}

	events, err := applyCompletion(user, quest, badge, e.calc, time.Now())
	if err != nil {
		return nil, err
	}

	if err := e.users.UpdateTx(ctx, tx, user); err != nil {
		return nil, fmt.Errorf("failed to persist completion: %w", err)
	}

	return events, nil
}

// Publish fans the given events out on the engine's bus.
func (e *Engine) Publish(events []Event) {
	e.publish(events)
}

func (e *Engine) publish(events []Event) {
	for _, ev := range events {
		e.bus.Publish(ev)
	}
}

func (e *Engine) loadQuest(ctx context.Context, questID int64) (*models.Quest, *models.Badge, error) {
	quest, err := e.quests.GetByID(ctx, questID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, fmt.Errorf("quest %d: %w", questID, ErrQuestNotFound)
		}
		return nil, nil, fmt.Errorf("failed to load quest: %w", err)
	}

	var badge *models.Badge
	if quest.BadgeID != nil {
		badge, err = e.badges.GetByID(ctx, *quest.BadgeID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load badge reward: %w", err)
		}
	}

	return quest, badge, nil
}

// applyCompletion mutates the user in memory: completion record, XP ledger
// entry, badge award when missing. It returns the events to publish once the
// write commits.
func applyCompletion(user *models.User, quest *models.Quest, badge *models.Badge, calc leveling.Config, now time.Time) ([]Event, error) {
	if quest.XPReward <= 0 {
		return nil, fmt.Errorf("quest %d has non-positive xp reward: %w", quest.ID, ErrInvalidInput)
	}
	if user.HasCompletedQuest(quest.ID) {
		return nil, fmt.Errorf("quest %d: %w", quest.ID, ErrAlreadyCompleted)
	}

	levelBefore := calc.Level(user.TotalXP())

	user.CompletedQuests = append(user.CompletedQuests, models.QuestCompletion{
		QuestID:     quest.ID,
		CompletedAt: now,
	})

	questID := quest.ID
	user.XPHistory = append(user.XPHistory, models.XPEntry{
		Amount:  quest.XPReward,
		Date:    now,
		Note:    fmt.Sprintf("Completed quest: %s", quest.Name),
		QuestID: &questID,
	})

	completed := QuestCompleted{
		DiscordID: user.DiscordID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		QuestName: quest.Name,
	}

	if badge != nil && !user.HasBadge(badge.ID) {
		user.Badges = append(user.Badges, models.BadgeAward{
			BadgeID:   badge.ID,
			AwardedAt: now,
		})
		completed.BadgeName = &badge.Name
	}

	events := []Event{completed}

	levelAfter := calc.Level(user.TotalXP())
	if levelAfter > levelBefore {
		events = append(events, LevelUp{
			DiscordID: user.DiscordID,
			NewLevel:  levelAfter,
		})
	}

	return events, nil
}
