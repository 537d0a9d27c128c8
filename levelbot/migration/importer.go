package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultBatchSize = 500

// Importer copies users and their XP ledgers from the legacy bot's MongoDB
// into Postgres. One-shot tool, run via the -import-legacy flag.
type Importer struct {
	pgDB      *bun.DB
	mongoURI  string
	mongoName string
	batchSize int

	stats ImportStats
}

type ImportStats struct {
	UsersRead    int
	UsersWritten int
	Skipped      int
}

// legacyUser mirrors the shape of the old bot's user documents.
type legacyUser struct {
	DiscordID string `bson:"discordId"`
	Username  string `bson:"username"`
	FirstName string `bson:"firstname"`
	LastName  string `bson:"lastname"`
	XPHistory []struct {
		Amount int64     `bson:"amount"`
		Date   time.Time `bson:"date"`
		Note   string    `bson:"note"`
	} `bson:"xpHistory"`
}

func NewImporter(pgDB *bun.DB, mongoURI, mongoName string) *Importer {
	return &Importer{
		pgDB:      pgDB,
		mongoURI:  mongoURI,
		mongoName: mongoName,
		batchSize: defaultBatchSize,
	}
}

func (i *Importer) Run(ctx context.Context) (ImportStats, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(i.mongoURI))
	if err != nil {
		return i.stats, fmt.Errorf("failed to connect to legacy mongo: %w", err)
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			slog.Error("Failed to disconnect from legacy mongo",
				slog.Any("error", err))
		}
	}()

	cursor, err := client.Database(i.mongoName).Collection("users").Find(ctx, bson.M{})
	if err != nil {
		return i.stats, fmt.Errorf("failed to query legacy users: %w", err)
	}
	defer cursor.Close(ctx)

	batch := make([]*models.User, 0, i.batchSize)
	for cursor.Next(ctx) {
		var legacy legacyUser
		if err := cursor.Decode(&legacy); err != nil {
			slog.Warn("Skipping undecodable legacy user", slog.Any("error", err))
			i.stats.Skipped++
			continue
		}
		i.stats.UsersRead++

		user := i.convert(legacy)
		if user == nil {
			i.stats.Skipped++
			continue
		}

		batch = append(batch, user)
		if len(batch) >= i.batchSize {
			if err := i.flush(ctx, batch); err != nil {
				return i.stats, err
			}
			batch = batch[:0]
		}
	}
	if err := cursor.Err(); err != nil {
		return i.stats, fmt.Errorf("legacy user cursor failed: %w", err)
	}

	if len(batch) > 0 {
		if err := i.flush(ctx, batch); err != nil {
			return i.stats, err
		}
	}

	slog.Info("Legacy import finished",
		slog.Int("read", i.stats.UsersRead),
		slog.Int("written", i.stats.UsersWritten),
		slog.Int("skipped", i.stats.Skipped))

	return i.stats, nil
}

func (i *Importer) convert(legacy legacyUser) *models.User {
	if legacy.Username == "" && legacy.DiscordID == "" {
		return nil
	}

	user := &models.User{
		DiscordID: legacy.DiscordID,
		Username:  legacy.Username,
		FirstName: legacy.FirstName,
		LastName:  legacy.LastName,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	for _, entry := range legacy.XPHistory {
		if entry.Amount <= 0 {
			continue
		}
		note := entry.Note
		if note == "" {
			note = "Imported from legacy system"
		}
		user.XPHistory = append(user.XPHistory, models.XPEntry{
			Amount: entry.Amount,
			Date:   entry.Date,
			Note:   note,
		})
	}

	return user
}

func (i *Importer) flush(ctx context.Context, batch []*models.User) error {
	_, err := i.pgDB.NewInsert().
		Model(&batch).
		On("CONFLICT (discord_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert user batch: %w", err)
	}
	i.stats.UsersWritten += len(batch)
	return nil
}
