package lootbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/ellavondegurechaff/levelbot/levelbot/gamification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnnouncer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *fakeAnnouncer) AnnounceLootbox(_ context.Context, _ *models.Quest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.err
}

func (a *fakeAnnouncer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newTestScheduler(quests *fakeQuestRepo, announcer Announcer, at time.Time) (*Scheduler, *[]gamification.Event) {
	bus := gamification.NewBus()

	var events []gamification.Event
	var mu sync.Mutex
	bus.Subscribe(func(e gamification.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	s := NewScheduler(quests, bus, announcer, NewDefaultConfig())
	s.now = func() time.Time { return at }
	return s, &events
}

func TestRunDailyCycleCreatesQuest(t *testing.T) {
	ctx := context.Background()

	quests := newFakeQuestRepo()
	s, events := newTestScheduler(quests, &fakeAnnouncer{}, noon)

	quest, err := s.RunDailyCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Daily Lootbox", quest.Name)
	assert.Equal(t, models.QuestStatusOpen, quest.Status)
	assert.Equal(t, int64(20), quest.XPReward)
	assert.Nil(t, quest.WinnerID)

	require.NotNil(t, quest.LootboxHour)
	assert.GreaterOrEqual(t, *quest.LootboxHour, 7)
	assert.LessOrEqual(t, *quest.LootboxHour, 16)

	dayStart := time.Date(noon.Year(), noon.Month(), noon.Day(), 0, 0, 0, 0, noon.Location())
	require.NotNil(t, quest.StartsAt)
	require.NotNil(t, quest.EndsAt)
	assert.True(t, quest.StartsAt.Equal(dayStart))
	assert.True(t, quest.EndsAt.Equal(dayStart.Add(24*time.Hour)))

	require.Len(t, *events, 1)
	spawned, ok := (*events)[0].(gamification.LootboxSpawned)
	require.True(t, ok)
	assert.Equal(t, quest.ID, spawned.QuestID)
	assert.Equal(t, *quest.LootboxHour, spawned.Hour)
}

func TestRunDailyCycleIsIdempotent(t *testing.T) {
	ctx := context.Background()

	quests := newFakeQuestRepo()
	s, events := newTestScheduler(quests, &fakeAnnouncer{}, noon)

	first, err := s.RunDailyCycle(ctx)
	require.NoError(t, err)

	second, err := s.RunDailyCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	all, err := quests.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Len(t, *events, 1)
}

func TestCheckCurrentHourAnnouncesOnce(t *testing.T) {
	ctx := context.Background()

	quests := newFakeQuestRepo(lootboxQuestAt(9, noon))
	announcer := &fakeAnnouncer{}
	s, _ := newTestScheduler(quests, announcer, noon)

	require.NoError(t, s.CheckCurrentHour(ctx))
	require.NoError(t, s.CheckCurrentHour(ctx))

	assert.Equal(t, 1, announcer.callCount())
}

func TestCheckCurrentHourBeforeDrop(t *testing.T) {
	ctx := context.Background()

	quests := newFakeQuestRepo(lootboxQuestAt(15, noon))
	announcer := &fakeAnnouncer{}
	s, _ := newTestScheduler(quests, announcer, noon)

	require.NoError(t, s.CheckCurrentHour(ctx))
	assert.Equal(t, 0, announcer.callCount())
}

func TestCheckCurrentHourSkipsDecidedQuest(t *testing.T) {
	ctx := context.Background()
	winner := "100"

	won := lootboxQuestAt(9, noon)
	won.WinnerID = &winner
	won.Status = models.QuestStatusClosed

	quests := newFakeQuestRepo(won)
	announcer := &fakeAnnouncer{}
	s, _ := newTestScheduler(quests, announcer, noon)

	require.NoError(t, s.CheckCurrentHour(ctx))
	assert.Equal(t, 0, announcer.callCount())
}

func TestCheckCurrentHourNoQuest(t *testing.T) {
	ctx := context.Background()

	s, _ := newTestScheduler(newFakeQuestRepo(), &fakeAnnouncer{}, noon)
	require.NoError(t, s.CheckCurrentHour(ctx))
}

func TestCheckCurrentHourAnnounceFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()

	quests := newFakeQuestRepo(lootboxQuestAt(9, noon))
	announcer := &fakeAnnouncer{err: errors.New("channel unavailable")}
	s, _ := newTestScheduler(quests, announcer, noon)

	require.NoError(t, s.CheckCurrentHour(ctx))
	assert.Equal(t, 1, announcer.callCount())
}
