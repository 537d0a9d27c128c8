package levelbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"
	"github.com/ellavondegurechaff/levelbot/levelbot/database"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/repositories"
	"github.com/ellavondegurechaff/levelbot/levelbot/gamification"
	"github.com/ellavondegurechaff/levelbot/levelbot/leveling"
	"github.com/ellavondegurechaff/levelbot/levelbot/lootbox"
	"github.com/ellavondegurechaff/levelbot/levelbot/notifications"
	"github.com/ellavondegurechaff/levelbot/levelbot/services"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string
	DB        *database.DB

	UserRepository  repositories.UserRepository
	QuestRepository repositories.QuestRepository
	BadgeRepository repositories.BadgeRepository

	LevelCalc leveling.Config
	Bus       *gamification.Bus
	Engine    *gamification.Engine

	LootboxScheduler *lootbox.Scheduler
	LootboxResolver  *lootbox.Resolver

	Dispatcher       *notifications.Dispatcher
	SpacesService    *services.SpacesService
	LevelCardService *services.LevelCardService
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildMembers)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("LevelBot is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("the XP ledger"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}
