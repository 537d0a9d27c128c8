package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Quest struct {
	bun.BaseModel `bun:"table:quests,alias:q"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Name        string `bun:"name,notnull"`
	Description string `bun:"description"`
	XPReward    int64  `bun:"xp_reward,notnull"`
	BadgeID     *int64 `bun:"badge_id"`

	Status   string     `bun:"status,notnull,default:'draft'"`
	StartsAt *time.Time `bun:"starts_at"`
	EndsAt   *time.Time `bun:"ends_at"`

	// LootboxHour marks this quest as the day's lootbox instance. WinnerID is
	// the claim CAS column: the conditional update that sets it is the only
	// way a lootbox quest gets won.
	LootboxHour *int    `bun:"lootbox_hour"`
	WinnerID    *string `bun:"winner_id"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// Quest status constants
const (
	QuestStatusDraft  = "draft"
	QuestStatusOpen   = "open"
	QuestStatusClosed = "closed"
)

// IsLootbox reports whether this quest is a daily lootbox instance.
func (q *Quest) IsLootbox() bool {
	return q.LootboxHour != nil
}

// InWindow reports whether now falls inside the quest's validity window.
// A missing bound is treated as unbounded on that side.
func (q *Quest) InWindow(now time.Time) bool {
	if q.StartsAt != nil && now.Before(*q.StartsAt) {
		return false
	}
	if q.EndsAt != nil && !now.Before(*q.EndsAt) {
		return false
	}
	return true
}

// Completable reports whether a player-triggered completion is allowed.
func (q *Quest) Completable(now time.Time) bool {
	return q.Status == QuestStatusOpen && q.InWindow(now)
}
