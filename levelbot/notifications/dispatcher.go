package notifications

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/ellavondegurechaff/levelbot/levelbot/gamification"
	"github.com/ellavondegurechaff/levelbot/levelbot/logger"
	"github.com/ellavondegurechaff/levelbot/levelbot/services"
	lru "github.com/hashicorp/golang-lru"
)

const (
	sendTimeout    = 10 * time.Second
	labelCacheSize = 512

	lootboxImageKey = "lootbox.png"
)

// levelSuffixPattern matches a previously applied display-label suffix so a
// new level replaces it instead of stacking.
var levelSuffixPattern = regexp.MustCompile(`\s*\[Lvl \d+\]$`)

// Dispatcher reacts to domain events by sending human-readable messages to
// the announcement channel and keeping members' display labels in sync with
// their level. Everything here is best-effort: a delivery failure is logged
// and never rolls back the completion that triggered it.
type Dispatcher struct {
	messenger Messenger
	spaces    *services.SpacesService
	guildID   snowflake.ID
	channelID snowflake.ID

	// labelCache remembers the last label written per user so repeated
	// level-ups at the same level skip the REST call.
	labelCache *lru.Cache
}

func NewDispatcher(messenger Messenger, spaces *services.SpacesService, guildID, channelID snowflake.ID) *Dispatcher {
	cache, _ := lru.New(labelCacheSize)
	return &Dispatcher{
		messenger:  messenger,
		spaces:     spaces,
		guildID:    guildID,
		channelID:  channelID,
		labelCache: cache,
	}
}

// Register subscribes the dispatcher to the event bus.
func (d *Dispatcher) Register(bus *gamification.Bus) {
	bus.Subscribe(d.Handle)
}

func (d *Dispatcher) Handle(event gamification.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	switch ev := event.(type) {
	case gamification.QuestCompleted:
		d.handleQuestCompleted(ctx, ev)
	case gamification.LevelUp:
		d.handleLevelUp(ctx, ev)
	case gamification.LootboxSpawned:
		logger.LogEvent(ev.EventName(),
			slog.Int64("quest_id", ev.QuestID),
			slog.Int("hour", ev.Hour))
	}
}

func (d *Dispatcher) handleQuestCompleted(ctx context.Context, ev gamification.QuestCompleted) {
	name := strings.TrimSpace(fmt.Sprintf("%s %s", ev.FirstName, ev.LastName))
	if name == "" {
		name = ev.DiscordID
	}

	content := fmt.Sprintf("🎉 **%s** completed the quest **%s**!", name, ev.QuestName)
	if ev.BadgeName != nil {
		content += fmt.Sprintf(" They earned the **%s** badge!", *ev.BadgeName)
	}

	d.send(ctx, discord.MessageCreate{Content: content})
}

func (d *Dispatcher) handleLevelUp(ctx context.Context, ev gamification.LevelUp) {
	d.send(ctx, discord.MessageCreate{
		Content: fmt.Sprintf("⬆️ <@%s> reached **level %d**!", ev.DiscordID, ev.NewLevel),
	})

	d.updateDisplayLabel(ctx, ev.DiscordID, ev.NewLevel)
}

// AnnounceLootbox implements the lootbox scheduler's announcer: drop message
// plus the lootbox image when available.
func (d *Dispatcher) AnnounceLootbox(ctx context.Context, quest *models.Quest) error {
	message := discord.MessageCreate{
		Content: fmt.Sprintf("🎁 **A lootbox has appeared!** First to use `/lootbox` wins %d XP!", quest.XPReward),
	}

	if d.spaces != nil {
		if data, err := d.spaces.FetchAsset(ctx, lootboxImageKey); err == nil {
			message.Files = []*discord.File{discord.NewFile("lootbox.png", "", bytes.NewReader(data))}
		} else {
			slog.Warn("Lootbox image unavailable, announcing without it",
				slog.Any("error", err))
		}
	}

	return d.messenger.SendChannelMessage(ctx, d.channelID, message)
}

func (d *Dispatcher) send(ctx context.Context, message discord.MessageCreate) {
	if err := d.messenger.SendChannelMessage(ctx, d.channelID, message); err != nil {
		logger.LogError("Failed to send notification", err)
	}
}

func (d *Dispatcher) updateDisplayLabel(ctx context.Context, discordID string, level int) {
	userID, err := snowflake.Parse(discordID)
	if err != nil {
		slog.Error("Invalid discord id for display label update",
			slog.String("discord_id", discordID),
			slog.Any("error", err))
		return
	}

	current, err := d.messenger.MemberDisplayName(ctx, d.guildID, userID)
	if err != nil {
		slog.Error("Failed to fetch member for display label update",
			slog.String("discord_id", discordID),
			slog.Any("error", err))
		return
	}

	base := strings.TrimSpace(levelSuffixPattern.ReplaceAllString(current, ""))
	label := fmt.Sprintf("%s [Lvl %d]", base, level)

	if cached, ok := d.labelCache.Get(discordID); ok && cached.(string) == label {
		return
	}

	if err := d.messenger.SetMemberNick(ctx, d.guildID, userID, label); err != nil {
		slog.Error("Failed to update display label",
			slog.String("discord_id", discordID),
			slog.Int("level", level),
			slog.Any("error", err))
		return
	}

	d.labelCache.Add(discordID, label)
}
