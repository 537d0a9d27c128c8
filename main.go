package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/ellavondegurechaff/levelbot/levelbot"
	"github.com/ellavondegurechaff/levelbot/levelbot/commands"
	"github.com/ellavondegurechaff/levelbot/levelbot/database"
	"github.com/ellavondegurechaff/levelbot/levelbot/database/repositories"
	"github.com/ellavondegurechaff/levelbot/levelbot/gamification"
	"github.com/ellavondegurechaff/levelbot/levelbot/handlers"
	"github.com/ellavondegurechaff/levelbot/levelbot/leveling"
	"github.com/ellavondegurechaff/levelbot/levelbot/logger"
	"github.com/ellavondegurechaff/levelbot/levelbot/lootbox"
	"github.com/ellavondegurechaff/levelbot/levelbot/migration"
	"github.com/ellavondegurechaff/levelbot/levelbot/notifications"
	"github.com/ellavondegurechaff/levelbot/levelbot/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting LevelBot",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	importLegacy := flag.String("import-legacy", "", "Mongo URI of the legacy bot database to import, then exit")
	importLegacyDB := flag.String("import-legacy-db", "legacybot", "Mongo database name for -import-legacy")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := levelbot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dbConfig := database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	}

	db, err := database.New(ctx, dbConfig)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()))
		os.Exit(-1)
	}

	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	if *importLegacy != "" {
		importer := migration.NewImporter(db.BunDB(), *importLegacy, *importLegacyDB)
		stats, err := importer.Run(ctx)
		if err != nil {
			slog.Error("Legacy import failed", slog.Any("error", err))
			os.Exit(-1)
		}
		slog.Info("Legacy import complete",
			slog.Int("users", stats.UsersWritten))
		return
	}

	b := levelbot.New(*cfg, version, commit)
	b.DB = db

	// Repositories
	b.UserRepository = repositories.NewUserRepository(db.BunDB())
	b.QuestRepository = repositories.NewQuestRepository(db.BunDB(), b.UserRepository)
	b.BadgeRepository = repositories.NewBadgeRepository(db.BunDB())

	// Leveling curve + event bus + completion engine
	b.LevelCalc = leveling.Config{
		BaseXP:      cfg.Leveling.BaseXP,
		Coefficient: cfg.Leveling.Coefficient,
	}
	b.Bus = gamification.NewBus()
	b.Engine = gamification.NewEngine(b.UserRepository, b.QuestRepository, b.BadgeRepository, b.LevelCalc, b.Bus)

	// Spaces service for announcement art
	spacesService, err := services.NewSpacesService(
		cfg.Spaces.Key,
		cfg.Spaces.Secret,
		cfg.Spaces.Region,
		cfg.Spaces.Bucket,
		cfg.Spaces.AssetRoot,
	)
	if err != nil {
		slog.Error("Failed to initialize Spaces service", slog.Any("error", err))
		os.Exit(-1)
	}
	b.SpacesService = spacesService
	b.LevelCardService = services.NewLevelCardService()

	h := handler.New()
	h.Command("/version", commands.VersionHandler(b))
	h.Command("/xp", handlers.WrapWithLogging("xp", commands.XPHandler(b)))
	h.Command("/badges", handlers.WrapWithLogging("badges", commands.BadgesHandler(b)))
	h.Command("/quests", handlers.WrapWithLogging("quests", commands.QuestsHandler(b)))
	h.Command("/lootbox", handlers.WrapWithLogging("lootbox", commands.LootboxHandler(b)))
	h.Command("/createquest", handlers.WrapWithLogging("createquest", commands.CreateQuestHandler(b)))
	h.Command("/deletequest", handlers.WrapWithLogging("deletequest", commands.DeleteQuestHandler(b)))
	h.Command("/completequest", handlers.WrapWithLogging("completequest", commands.CompleteQuestHandler(b)))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)))
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	// Notification dispatcher consumes the engine's events
	messenger := notifications.NewDiscordMessenger(b.Client)
	b.Dispatcher = notifications.NewDispatcher(messenger, spacesService, cfg.Bot.GuildID, cfg.Bot.AnnounceChannelID)
	b.Dispatcher.Register(b.Bus)

	// Daily lootbox scheduler + claim resolver
	lootboxCfg := lootbox.Config{
		XPReward: cfg.Lootbox.XPReward,
		HourMin:  cfg.Lootbox.HourMin,
		HourMax:  cfg.Lootbox.HourMax,
	}
	b.LootboxScheduler = lootbox.NewScheduler(b.QuestRepository, b.Bus, b.Dispatcher, lootboxCfg)
	b.LootboxResolver = lootbox.NewResolver(db.BunDB(), b.UserRepository, b.QuestRepository, b.Engine)

	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()
	b.LootboxScheduler.Start(schedulerCtx)

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = b.Client.OpenGateway(ctx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	logger.LogSystem("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}
