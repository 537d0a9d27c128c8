package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a versioned update matched no row,
	// meaning another writer got there first.
	ErrVersionConflict = errors.New("version conflict")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByDiscordID(ctx context.Context, discordID string) (*models.User, error)
	GetAll(ctx context.Context) ([]*models.User, error)
	// Update persists the user with an optimistic version check. It returns
	// ErrVersionConflict when the stored version no longer matches.
	Update(ctx context.Context, user *models.User) error
	// UpdateTx is Update running against a caller-supplied transaction.
	UpdateTx(ctx context.Context, tx bun.IDB, user *models.User) error
	// PruneCompletedQuest removes the completion entry for questID from every
	// user holding one. Best-effort: per-user failures are logged, not returned.
	PruneCompletedQuest(ctx context.Context, questID int64)
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("discord_id = ?", discordID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", discordID, ErrNotFound)
		}
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetAll(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := r.db.NewSelect().
		Model(&users).
		Order("id ASC").
		Scan(ctx)

	return users, err
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.UpdateTx(ctx, r.db, user)
}

func (r *userRepository) UpdateTx(ctx context.Context, tx bun.IDB, user *models.User) error {
	oldVersion := user.Version
	user.Version = oldVersion + 1
	user.UpdatedAt = time.Now()

	res, err := tx.NewUpdate().
		Model(user).
		WherePK().
		Where("version = ?", oldVersion).
		Exec(ctx)
	if err != nil {
		user.Version = oldVersion
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		user.Version = oldVersion
		return err
	}
	if rows == 0 {
		user.Version = oldVersion
		return fmt.Errorf("user %d: %w", user.ID, ErrVersionConflict)
	}

	return nil
}

func (r *userRepository) PruneCompletedQuest(ctx context.Context, questID int64) {
	var users []*models.User
	err := r.db.NewSelect().
		Model(&users).
		Where("completed_quests @> ?", fmt.Sprintf(`[{"quest_id": %d}]`, questID)).
		Scan(ctx)
	if err != nil {
		slog.Error("Failed to find users for quest prune",
			slog.String("type", "db"),
			slog.Int64("quest_id", questID),
			slog.Any("error", err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, user := range users {
		user := user
		g.Go(func() error {
			pruned := user.CompletedQuests[:0]
			for _, c := range user.CompletedQuests {
				if c.QuestID != questID {
					pruned = append(pruned, c)
				}
			}
			user.CompletedQuests = pruned

			if err := r.Update(gctx, user); err != nil {
				slog.Error("Failed to prune completed quest from user",
					slog.String("type", "db"),
					slog.Int64("quest_id", questID),
					slog.Int64("user_id", user.ID),
					slog.Any("error", err))
			}
			return nil
		})
	}

	_ = g.Wait()
}
