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
)

// ErrAlreadyClaimed is returned by ClaimTx when the conditional update matched
// no row, meaning another claimant won the race first.
var ErrAlreadyClaimed = errors.New("quest already claimed")

type QuestRepository interface {
	Create(ctx context.Context, quest *models.Quest) error
	GetByID(ctx context.Context, id int64) (*models.Quest, error)
	GetAll(ctx context.Context) ([]*models.Quest, error)
	GetOpen(ctx context.Context) ([]*models.Quest, error)
	Update(ctx context.Context, quest *models.Quest) error
	// Delete removes the quest and prunes completion entries referencing it
	// from every user. The prune is best-effort and never blocks deletion.
	Delete(ctx context.Context, id int64) error
	// GetLootboxQuestForToday returns the lootbox quest whose validity window
	// covers now, regardless of status. When duplicates exist the most
	// recently created wins; the scheduler is expected to prevent that case.
	GetLootboxQuestForToday(ctx context.Context, now time.Time) (*models.Quest, error)
	// ClaimTx atomically marks the quest as won by winnerID and closes it.
	// The single conditional update is the serialization point for the
	// first-claim-wins race: it only succeeds while winner_id is still NULL.
	ClaimTx(ctx context.Context, tx bun.IDB, questID int64, winnerID string) error
}

type questRepository struct {
	db    *bun.DB
	users UserRepository
}

func NewQuestRepository(db *bun.DB, users UserRepository) QuestRepository {
	return &questRepository{db: db, users: users}
}

func (r *questRepository) Create(ctx context.Context, quest *models.Quest) error {
	quest.CreatedAt = time.Now()
	quest.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(quest).Exec(ctx)
	return err
}

func (r *questRepository) GetByID(ctx context.Context, id int64) (*models.Quest, error) {
	quest := new(models.Quest)
	err := r.db.NewSelect().
		Model(quest).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("quest %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	return quest, nil
}

func (r *questRepository) GetAll(ctx context.Context) ([]*models.Quest, error) {
	var quests []*models.Quest
	err := r.db.NewSelect().
		Model(&quests).
		Order("created_at DESC").
		Scan(ctx)

	return quests, err
}

func (r *questRepository) GetOpen(ctx context.Context) ([]*models.Quest, error) {
	now := time.Now()
	var quests []*models.Quest
	err := r.db.NewSelect().
		Model(&quests).
		Where("status = ?", models.QuestStatusOpen).
		Where("(starts_at IS NULL OR starts_at <= ?)", now).
		Where("(ends_at IS NULL OR ends_at > ?)", now).
		Order("created_at DESC").
		Scan(ctx)

	return quests, err
}

func (r *questRepository) Update(ctx context.Context, quest *models.Quest) error {
	quest.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(quest).
		WherePK().
		Exec(ctx)
	return err
}

func (r *questRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*models.Quest)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("quest %d: %w", id, ErrNotFound)
	}

	r.users.PruneCompletedQuest(ctx, id)

	slog.Info("Quest deleted",
		slog.String("type", "db"),
		slog.Int64("quest_id", id))
	return nil
}

func (r *questRepository) GetLootboxQuestForToday(ctx context.Context, now time.Time) (*models.Quest, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	quest := new(models.Quest)
	err := r.db.NewSelect().
		Model(quest).
		Where("lootbox_hour IS NOT NULL").
		Where("starts_at < ?", dayEnd).
		Where("ends_at > ?", dayStart).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lootbox quest for today: %w", ErrNotFound)
		}
		return nil, err
	}

	return quest, nil
}

func (r *questRepository) ClaimTx(ctx context.Context, tx bun.IDB, questID int64, winnerID string) error {
	res, err := tx.NewUpdate().
		Model((*models.Quest)(nil)).
		Set("winner_id = ?", winnerID).
		Set("status = ?", models.QuestStatusClosed).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", questID).
		Where("winner_id IS NULL").
		Where("status = ?", models.QuestStatusOpen).
		Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("quest %d: %w", questID, ErrAlreadyClaimed)
	}

	return nil
}
