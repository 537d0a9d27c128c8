package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64  `bun:"id,pk,autoincrement"`
	DiscordID string `bun:"discord_id,unique"`
	Username  string `bun:"username,notnull"`
	FirstName string `bun:"first_name"`
	LastName  string `bun:"last_name"`

	// Arrays stored as JSONB. XPHistory is append-only; entries are never
	// edited or removed once written.
	XPHistory       []XPEntry         `bun:"xp_history,type:jsonb"`
	CompletedQuests []QuestCompletion `bun:"completed_quests,type:jsonb"`
	Badges          []BadgeAward      `bun:"badges,type:jsonb"`

	// Version guards the read-modify-write of the JSONB arrays above.
	Version int64 `bun:"version,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type XPEntry struct {
	Amount  int64     `json:"amount"`
	Date    time.Time `json:"date"`
	Note    string    `json:"note"`
	QuestID *int64    `json:"quest_id,omitempty"`
}

type QuestCompletion struct {
	QuestID     int64     `json:"quest_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type BadgeAward struct {
	BadgeID   int64     `json:"badge_id"`
	AwardedAt time.Time `json:"awarded_at"`
}

// TotalXP sums the XP ledger. A nil ledger counts as zero.
func (u *User) TotalXP() int64 {
	var total int64
	for _, e := range u.XPHistory {
		total += e.Amount
	}
	return total
}

// HasCompletedQuest reports whether the user already holds a completion
// record for the given quest.
func (u *User) HasCompletedQuest(questID int64) bool {
	for _, c := range u.CompletedQuests {
		if c.QuestID == questID {
			return true
		}
	}
	return false
}

// HasBadge reports whether the user already holds the given badge.
func (u *User) HasBadge(badgeID int64) bool {
	for _, b := range u.Badges {
		if b.BadgeID == badgeID {
			return true
		}
	}
	return false
}
