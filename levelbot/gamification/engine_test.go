package gamification

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/repositories"
	"github.com/ellavondegurechaff/levelbot/levelbot/leveling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// fakeUserRepo is an in-memory UserRepository with the same optimistic
// versioning semantics as the real one.
type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*models.User
	conflicts int
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		r.users[u.DiscordID] = copyUser(u)
	}
	return r
}

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.XPHistory = append([]models.XPEntry(nil), u.XPHistory...)
	cp.CompletedQuests = append([]models.QuestCompletion(nil), u.CompletedQuests...)
	cp.Badges = append([]models.BadgeAward(nil), u.Badges...)
	return &cp
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.DiscordID] = copyUser(user)
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return copyUser(u), nil
		}
	}
	return nil, fmt.Errorf("user %d: %w", id, repositories.ErrNotFound)
}

func (r *fakeUserRepo) GetByDiscordID(_ context.Context, discordID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[discordID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", discordID, repositories.ErrNotFound)
	}
	return copyUser(u), nil
}

func (r *fakeUserRepo) GetAll(_ context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []*models.User
	for _, u := range r.users {
		users = append(users, copyUser(u))
	}
	return users, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	return r.UpdateTx(ctx, nil, user)
}

func (r *fakeUserRepo) UpdateTx(_ context.Context, _ bun.IDB, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflicts > 0 {
		r.conflicts--
		return fmt.Errorf("user %d: %w", user.ID, repositories.ErrVersionConflict)
	}

	stored, ok := r.users[user.DiscordID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.DiscordID, repositories.ErrNotFound)
	}
	if stored.Version != user.Version {
		return fmt.Errorf("user %d: %w", user.ID, repositories.ErrVersionConflict)
	}

	user.Version++
	r.users[user.DiscordID] = copyUser(user)
	return nil
}

func (r *fakeUserRepo) PruneCompletedQuest(_ context.Context, questID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		pruned := u.CompletedQuests[:0]
		for _, c := range u.CompletedQuests {
			if c.QuestID != questID {
				pruned = append(pruned, c)
			}
		}
		u.CompletedQuests = pruned
	}
}

type fakeQuestRepo struct {
	mu     sync.Mutex
	quests map[int64]*models.Quest
}

func newFakeQuestRepo(quests ...*models.Quest) *fakeQuestRepo {
	r := &fakeQuestRepo{quests: make(map[int64]*models.Quest)}
	for _, q := range quests {
		cp := *q
		r.quests[q.ID] = &cp
	}
	return r
}

func (r *fakeQuestRepo) Create(_ context.Context, quest *models.Quest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if quest.ID == 0 {
		quest.ID = int64(len(r.quests) + 1)
	}
	cp := *quest
	r.quests[quest.ID] = &cp
	return nil
}

func (r *fakeQuestRepo) GetByID(_ context.Context, id int64) (*models.Quest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quests[id]
	if !ok {
		return nil, fmt.Errorf("quest %d: %w", id, repositories.ErrNotFound)
	}
	cp := *q
	return &cp, nil
}

func (r *fakeQuestRepo) GetAll(_ context.Context) ([]*models.Quest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var quests []*models.Quest
	for _, q := range r.quests {
		cp := *q
		quests = append(quests, &cp)
	}
	return quests, nil
}

func (r *fakeQuestRepo) GetOpen(ctx context.Context) ([]*models.Quest, error) {
	all, _ := r.GetAll(ctx)
	now := time.Now()
	var open []*models.Quest
	for _, q := range all {
		if q.Completable(now) {
			open = append(open, q)
		}
	}
	return open, nil
}

func (r *fakeQuestRepo) Update(_ context.Context, quest *models.Quest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *quest
	r.quests[quest.ID] = &cp
	return nil
}

func (r *fakeQuestRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quests[id]; !ok {
		return fmt.Errorf("quest %d: %w", id, repositories.ErrNotFound)
	}
	delete(r.quests, id)
	return nil
}

func (r *fakeQuestRepo) GetLootboxQuestForToday(_ context.Context, now time.Time) (*models.Quest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.quests {
		if q.IsLootbox() && q.InWindow(now) {
			cp := *q
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("lootbox quest for today: %w", repositories.ErrNotFound)
}

func (r *fakeQuestRepo) ClaimTx(_ context.Context, _ bun.IDB, questID int64, winnerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quests[questID]
	if !ok || q.WinnerID != nil || q.Status != models.QuestStatusOpen {
		return fmt.Errorf("quest %d: %w", questID, repositories.ErrAlreadyClaimed)
	}
	q.WinnerID = &winnerID
	q.Status = models.QuestStatusClosed
	return nil
}

type fakeBadgeRepo struct {
	badges map[int64]*models.Badge
}

func newFakeBadgeRepo(badges ...*models.Badge) *fakeBadgeRepo {
	r := &fakeBadgeRepo{badges: make(map[int64]*models.Badge)}
	for _, b := range badges {
		r.badges[b.ID] = b
	}
	return r
}

func (r *fakeBadgeRepo) Create(_ context.Context, badge *models.Badge) error {
	r.badges[badge.ID] = badge
	return nil
}

func (r *fakeBadgeRepo) GetByID(_ context.Context, id int64) (*models.Badge, error) {
	b, ok := r.badges[id]
	if !ok {
		return nil, fmt.Errorf("badge %d: %w", id, repositories.ErrNotFound)
	}
	return b, nil
}

func (r *fakeBadgeRepo) GetByIDs(_ context.Context, ids []int64) ([]*models.Badge, error) {
	var badges []*models.Badge
	for _, id := range ids {
		if b, ok := r.badges[id]; ok {
			badges = append(badges, b)
		}
	}
	return badges, nil
}

func (r *fakeBadgeRepo) GetAll(_ context.Context) ([]*models.Badge, error) {
	var badges []*models.Badge
	for _, b := range r.badges {
		badges = append(badges, b)
	}
	return badges, nil
}

func (r *fakeBadgeRepo) SearchByName(ctx context.Context, _ string) ([]*models.Badge, error) {
	return r.GetAll(ctx)
}

func collectEvents(bus *Bus) *[]Event {
	var events []Event
	var mu sync.Mutex
	bus.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	return &events
}

func badgeID(id int64) *int64 { return &id }

func TestCompleteQuest(t *testing.T) {
	ctx := context.Background()

	quest := &models.Quest{
		ID:       1,
		Name:     "Attend the kickoff",
		XPReward: 100,
		BadgeID:  badgeID(7),
		Status:   models.QuestStatusOpen,
	}
	badge := &models.Badge{ID: 7, Name: "Early Bird"}
	user := &models.User{ID: 1, DiscordID: "100", FirstName: "Ada", LastName: "Lovelace"}

	users := newFakeUserRepo(user)
	quests := newFakeQuestRepo(quest)
	badges := newFakeBadgeRepo(badge)
	bus := NewBus()
	events := collectEvents(bus)

	engine := NewEngine(users, quests, badges, leveling.NewDefaultConfig(), bus)

	require.NoError(t, engine.CompleteQuest(ctx, "100", 1))

	stored, err := users.GetByDiscordID(ctx, "100")
	require.NoError(t, err)
	require.Len(t, stored.XPHistory, 1)
	assert.Equal(t, int64(100), stored.XPHistory[0].Amount)
	assert.Equal(t, "Completed quest: Attend the kickoff", stored.XPHistory[0].Note)
	require.NotNil(t, stored.XPHistory[0].QuestID)
	assert.Equal(t, int64(1), *stored.XPHistory[0].QuestID)

	assert.True(t, stored.HasCompletedQuest(1))
	assert.True(t, stored.HasBadge(7))
	assert.Equal(t, int64(1), stored.Version)

	require.Len(t, *events, 1)
	completed, ok := (*events)[0].(QuestCompleted)
	require.True(t, ok)
	assert.Equal(t, "100", completed.DiscordID)
	assert.Equal(t, "Attend the kickoff", completed.QuestName)
	require.NotNil(t, completed.BadgeName)
	assert.Equal(t, "Early Bird", *completed.BadgeName)
}

func TestCompleteQuestTwice(t *testing.T) {
	ctx := context.Background()

	quest := &models.Quest{ID: 1, Name: "One shot", XPReward: 50, Status: models.QuestStatusOpen}
	users := newFakeUserRepo(&models.User{ID: 1, DiscordID: "100"})
	engine := NewEngine(users, newFakeQuestRepo(quest), newFakeBadgeRepo(), leveling.NewDefaultConfig(), NewBus())

	require.NoError(t, engine.CompleteQuest(ctx, "100", 1))
	assert.ErrorIs(t, engine.CompleteQuest(ctx, "100", 1), ErrAlreadyCompleted)

	stored, err := users.GetByDiscordID(ctx, "100")
	require.NoError(t, err)
	assert.Len(t, stored.XPHistory, 1)
	assert.Len(t, stored.CompletedQuests, 1)
}

func TestCompleteQuestBadgeNotDuplicated(t *testing.T) {
	ctx := context.Background()

	badge := &models.Badge{ID: 7, Name: "Early Bird"}
	quest := &models.Quest{ID: 1, Name: "Second badge quest", XPReward: 50, BadgeID: badgeID(7), Status: models.QuestStatusOpen}
	user := &models.User{
		ID:        1,
		DiscordID: "100",
		Badges:    []models.BadgeAward{{BadgeID: 7, AwardedAt: time.Now()}},
	}

	users := newFakeUserRepo(user)
	bus := NewBus()
	events := collectEvents(bus)
	engine := NewEngine(users, newFakeQuestRepo(quest), newFakeBadgeRepo(badge), leveling.NewDefaultConfig(), bus)

	require.NoError(t, engine.CompleteQuest(ctx, "100", 1))

	stored, err := users.GetByDiscordID(ctx, "100")
	require.NoError(t, err)
	assert.Len(t, stored.Badges, 1)

	require.Len(t, *events, 1)
	completed := (*events)[0].(QuestCompleted)
	assert.Nil(t, completed.BadgeName)
}

func TestCompleteQuestStatusChecks(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name  string
		quest *models.Quest
	}{
		{
			name:  "draft quest",
			quest: &models.Quest{ID: 1, Name: "Draft", XPReward: 50, Status: models.QuestStatusDraft},
		},
		{
			name:  "closed quest",
			quest: &models.Quest{ID: 1, Name: "Closed", XPReward: 50, Status: models.QuestStatusClosed},
		},
		{
			name:  "expired window",
			quest: &models.Quest{ID: 1, Name: "Expired", XPReward: 50, Status: models.QuestStatusOpen, EndsAt: &past},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newFakeUserRepo(&models.User{ID: 1, DiscordID: "100"})
			engine := NewEngine(users, newFakeQuestRepo(tt.quest), newFakeBadgeRepo(), leveling.NewDefaultConfig(), NewBus())

			assert.ErrorIs(t, engine.CompleteQuest(ctx, "100", 1), ErrQuestNotOpen)

			// The administrative path bypasses status and window checks.
			require.NoError(t, engine.AdminCompleteQuest(ctx, "100", 1))
		})
	}
}

func TestCompleteQuestLevelUp(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		existingXP  int64
		reward      int64
		wantLevelUp bool
		wantLevel   int
	}{
		{name: "crosses the first threshold", existingXP: 480, reward: 20, wantLevelUp: true, wantLevel: 2},
		{name: "stays inside the level", existingXP: 100, reward: 30, wantLevelUp: false},
		{name: "jumps two levels at once", existingXP: 0, reward: 1200, wantLevelUp: true, wantLevel: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &models.User{ID: 1, DiscordID: "100"}
			if tt.existingXP > 0 {
				user.XPHistory = []models.XPEntry{{Amount: tt.existingXP, Date: time.Now()}}
			}
			quest := &models.Quest{ID: 1, Name: "Leveller", XPReward: tt.reward, Status: models.QuestStatusOpen}

			bus := NewBus()
			events := collectEvents(bus)
			engine := NewEngine(newFakeUserRepo(user), newFakeQuestRepo(quest), newFakeBadgeRepo(), leveling.NewDefaultConfig(), bus)

			require.NoError(t, engine.CompleteQuest(ctx, "100", 1))

			var levelUps []LevelUp
			for _, e := range *events {
				if lu, ok := e.(LevelUp); ok {
					levelUps = append(levelUps, lu)
				}
			}

			if !tt.wantLevelUp {
				assert.Empty(t, levelUps)
				return
			}
			require.Len(t, levelUps, 1)
			assert.Equal(t, tt.wantLevel, levelUps[0].NewLevel)
			assert.Equal(t, "100", levelUps[0].DiscordID)
		})
	}
}

func TestCompleteQuestRetriesOnConflict(t *testing.T) {
	ctx := context.Background()

	quest := &models.Quest{ID: 1, Name: "Contended", XPReward: 50, Status: models.QuestStatusOpen}
	users := newFakeUserRepo(&models.User{ID: 1, DiscordID: "100"})
	users.conflicts = 2

	engine := NewEngine(users, newFakeQuestRepo(quest), newFakeBadgeRepo(), leveling.NewDefaultConfig(), NewBus())
	require.NoError(t, engine.CompleteQuest(ctx, "100", 1))

	stored, err := users.GetByDiscordID(ctx, "100")
	require.NoError(t, err)
	assert.Len(t, stored.XPHistory, 1)
}

func TestCompleteQuestConflictExhaustion(t *testing.T) {
	ctx := context.Background()

	quest := &models.Quest{ID: 1, Name: "Contended", XPReward: 50, Status: models.QuestStatusOpen}
	users := newFakeUserRepo(&models.User{ID: 1, DiscordID: "100"})
	users.conflicts = 3

	engine := NewEngine(users, newFakeQuestRepo(quest), newFakeBadgeRepo(), leveling.NewDefaultConfig(), NewBus())
	assert.ErrorIs(t, engine.CompleteQuest(ctx, "100", 1), ErrConcurrencyConflict)
}

func TestCompleteQuestErrors(t *testing.T) {
	ctx := context.Background()

	quest := &models.Quest{ID: 1, Name: "Exists", XPReward: 50, Status: models.QuestStatusOpen}
	zeroReward := &models.Quest{ID: 2, Name: "Broken", XPReward: 0, Status: models.QuestStatusOpen}

	users := newFakeUserRepo(&models.User{ID: 1, DiscordID: "100"})
	engine := NewEngine(users, newFakeQuestRepo(quest, zeroReward), newFakeBadgeRepo(), leveling.NewDefaultConfig(), NewBus())

	assert.ErrorIs(t, engine.CompleteQuest(ctx, "100", 99), ErrQuestNotFound)
	assert.ErrorIs(t, engine.CompleteQuest(ctx, "missing", 1), ErrUserNotFound)
	assert.ErrorIs(t, engine.CompleteQuest(ctx, "100", 2), ErrInvalidInput)
}

func TestConcurrentCompletionsAwardOnce(t *testing.T) {
	ctx := context.Background()

	quest := &models.Quest{ID: 1, Name: "Race me", XPReward: 50, Status: models.QuestStatusOpen}
	users := newFakeUserRepo(&models.User{ID: 1, DiscordID: "100"})
	engine := NewEngine(users, newFakeQuestRepo(quest), newFakeBadgeRepo(), leveling.NewDefaultConfig(), NewBus())

	const claimants = 8
	var wg sync.WaitGroup
	errs := make([]error, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = engine.CompleteQuest(ctx, "100", 1)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	stored, err := users.GetByDiscordID(ctx, "100")
	require.NoError(t, err)
	assert.Len(t, stored.XPHistory, 1)
	assert.Len(t, stored.CompletedQuests, 1)
}
