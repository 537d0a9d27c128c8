package lootbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/repositories"
	"github.com/ellavondegurechaff/levelbot/levelbot/gamification"
	"github.com/uptrace/bun"
)

// ErrNoLootbox is returned when there is nothing claimable right now: no
// lootbox quest exists for today, it has not been announced yet, or its
// window has passed.
var ErrNoLootbox = errors.New("no lootbox to claim")

// TxRunner runs a function inside a database transaction. *bun.DB satisfies
// it; tests supply a fake.
type TxRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

type ClaimResult struct {
	User      *models.User
	Quest     *models.Quest
	XPAwarded int64
}

// Resolver resolves the first-claim-wins race for the daily lootbox quest.
// The quest-level conditional update in ClaimTx and the per-user completion
// run in one transaction, so a lost race leaves nothing half-updated.
type Resolver struct {
	db     TxRunner
	users  repositories.UserRepository
	quests repositories.QuestRepository
	engine *gamification.Engine
	now    func() time.Time
}

func NewResolver(db TxRunner, users repositories.UserRepository, quests repositories.QuestRepository, engine *gamification.Engine) *Resolver {
	return &Resolver{
		db:     db,
		users:  users,
		quests: quests,
		engine: engine,
		now:    time.Now,
	}
}

// Claim attempts to win today's lootbox quest for the given user.
func (r *Resolver) Claim(ctx context.Context, discordID string) (*ClaimResult, error) {
	now := r.now()

	quest, err := r.quests.GetLootboxQuestForToday(ctx, now)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNoLootbox
		}
		return nil, fmt.Errorf("failed to load lootbox quest: %w", err)
	}

	if quest.LootboxHour == nil || now.Hour() < *quest.LootboxHour || !quest.InWindow(now) {
		return nil, ErrNoLootbox
	}

	user, err := r.users.GetByDiscordID(ctx, discordID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", discordID, gamification.ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	// Pre-checks keep the common rejections cheap; the conditional update
	// below is what actually decides the race.
	if user.HasCompletedQuest(quest.ID) {
		return nil, gamification.ErrAlreadyCompleted
	}
	if quest.WinnerID != nil {
		if *quest.WinnerID == discordID {
			return nil, gamification.ErrAlreadyCompleted
		}
		return nil, gamification.ErrClaimedByOther
	}
	if quest.Status != models.QuestStatusOpen {
		return nil, ErrNoLootbox
	}

	var events []gamification.Event
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := r.quests.ClaimTx(ctx, tx, quest.ID, discordID); err != nil {
			return err
		}

		evs, err := r.engine.CompleteInTx(ctx, tx, user, quest)
		if err != nil {
			return err
		}
		events = evs
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrAlreadyClaimed) {
			return nil, gamification.ErrClaimedByOther
		}
		if errors.Is(err, gamification.ErrAlreadyCompleted) {
			return nil, gamification.ErrAlreadyCompleted
		}
		slog.Error("Lootbox claim failed",
			slog.String("type", "db"),
			slog.String("discord_id", discordID),
			slog.Int64("quest_id", quest.ID),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to resolve lootbox claim: %w", err)
	}

	r.engine.Publish(events)

	slog.Info("Lootbox claimed",
		slog.String("discord_id", discordID),
		slog.Int64("quest_id", quest.ID),
		slog.Int64("xp", quest.XPReward))

	return &ClaimResult{
		User:      user,
		Quest:     quest,
		XPAwarded: quest.XPReward,
	}, nil
}
