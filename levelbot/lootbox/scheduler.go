package lootbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/repositories"
	"github.com/ellavondegurechaff/levelbot/levelbot/gamification"
)

// Config holds the daily lootbox policy: 20 XP, a drop hour drawn uniformly
// from [7,16] and a quest that opens immediately with a 24-hour window.
type Config struct {
	XPReward int64
	HourMin  int
	HourMax  int
}

func NewDefaultConfig() Config {
	return Config{
		XPReward: 20,
		HourMin:  7,
		HourMax:  16,
	}
}

// Announcer delivers the lootbox drop announcement (message plus image) to
// the external channel.
type Announcer interface {
	AnnounceLootbox(ctx context.Context, quest *models.Quest) error
}

// Scheduler creates one lootbox quest per calendar day and announces it when
// the drop hour arrives.
type Scheduler struct {
	quests    repositories.QuestRepository
	bus       *gamification.Bus
	announcer Announcer
	cfg       Config
	now       func() time.Time

	mu            sync.Mutex
	announcedDay  time.Time
	announcedID   int64
	checkInterval time.Duration
}

func NewScheduler(quests repositories.QuestRepository, bus *gamification.Bus, announcer Announcer, cfg Config) *Scheduler {
	if cfg.XPReward <= 0 {
		cfg.XPReward = 20
	}
	if cfg.HourMin == 0 && cfg.HourMax == 0 {
		cfg.HourMin = 7
		cfg.HourMax = 16
	}
	return &Scheduler{
		quests:        quests,
		bus:           bus,
		announcer:     announcer,
		cfg:           cfg,
		now:           time.Now,
		checkInterval: time.Hour,
	}
}

// Start runs the scheduler loop until ctx is cancelled: one cycle right away,
// then an hourly tick covering both the daily rotation and the drop-hour
// check. Both steps are idempotent so tick frequency is not load-bearing.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		s.tick(ctx)

		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

func (s *Scheduler) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.RunDailyCycle(tickCtx); err != nil {
		slog.Error("Lootbox daily cycle failed",
			slog.String("type", "sys"),
			slog.Any("error", err))
	}
	if err := s.CheckCurrentHour(tickCtx); err != nil {
		slog.Error("Lootbox hour check failed",
			slog.String("type", "sys"),
			slog.Any("error", err))
	}
}

// RunDailyCycle ensures exactly one lootbox quest exists for today, creating
// it when missing. Running it twice a day never creates a second quest.
func (s *Scheduler) RunDailyCycle(ctx context.Context) (*models.Quest, error) {
	now := s.now()

	quest, err := s.quests.GetLootboxQuestForToday(ctx, now)
	if err == nil {
		return quest, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up today's lootbox quest: %w", err)
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)
	hour := s.cfg.HourMin + rand.Intn(s.cfg.HourMax-s.cfg.HourMin+1)

	quest = &models.Quest{
		Name:        "Daily Lootbox",
		Description: "Be the first to open today's lootbox!",
		XPReward:    s.cfg.XPReward,
		Status:      models.QuestStatusOpen,
		StartsAt:    &dayStart,
		EndsAt:      &dayEnd,
		LootboxHour: &hour,
	}

	if err := s.quests.Create(ctx, quest); err != nil {
		return nil, fmt.Errorf("failed to create lootbox quest: %w", err)
	}

	slog.Info("Lootbox quest created",
		slog.Int64("quest_id", quest.ID),
		slog.Int("hour", hour))

	s.bus.Publish(gamification.LootboxSpawned{
		QuestID: quest.ID,
		Hour:    hour,
	})

	return quest, nil
}

// CheckCurrentHour announces today's lootbox once its drop hour has arrived.
// The announcement happens at most once per quest.
func (s *Scheduler) CheckCurrentHour(ctx context.Context) error {
	now := s.now()

	quest, err := s.quests.GetLootboxQuestForToday(ctx, now)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up today's lootbox quest: %w", err)
	}

	if quest.Status != models.QuestStatusOpen || quest.WinnerID != nil {
		return nil
	}
	if quest.LootboxHour == nil || now.Hour() < *quest.LootboxHour {
		return nil
	}

	s.mu.Lock()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	alreadyAnnounced := s.announcedID == quest.ID && s.announcedDay.Equal(day)
	if !alreadyAnnounced {
		s.announcedID = quest.ID
		s.announcedDay = day
	}
	s.mu.Unlock()

	if alreadyAnnounced || s.announcer == nil {
		return nil
	}

	if err := s.announcer.AnnounceLootbox(ctx, quest); err != nil {
		// Announcement is best-effort; the claim window opens regardless.
		slog.Error("Failed to announce lootbox",
			slog.String("type", "sys"),
			slog.Int64("quest_id", quest.ID),
			slog.Any("error", err))
	}

	return nil
}
