package gamification

import (
	"log/slog"
	"sync"
)

// Event is a domain event raised by the completion engine or the lootbox
// scheduler. Publication is emit-and-forget: the core never depends on
// anything consuming these.
type Event interface {
	EventName() string
}

type QuestCompleted struct {
	DiscordID string
	FirstName string
	LastName  string
	QuestName string
	BadgeName *string
}

func (QuestCompleted) EventName() string { return "quest_completed" }

type LevelUp struct {
	DiscordID string
	NewLevel  int
}

func (LevelUp) EventName() string { return "level_up" }

type LootboxSpawned struct {
	QuestID int64
	Hour    int
}

func (LootboxSpawned) EventName() string { return "lootbox_spawned" }

// Bus is a synchronous in-process event fan-out. Handler panics and errors
// stay inside the bus; publishers never see them.
type Bus struct {
	mu       sync.RWMutex
	handlers []func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(handler func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]func(Event), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Event handler panicked",
						slog.String("type", "event"),
						slog.String("event", event.EventName()),
						slog.Any("panic", r))
				}
			}()
			handler(event)
		}()
	}
}
