package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
	"github.com/sahilm/fuzzy"
	"github.com/uptrace/bun"
)

type BadgeRepository interface {
	Create(ctx context.Context, badge *models.Badge) error
	GetByID(ctx context.Context, id int64) (*models.Badge, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Badge, error)
	GetAll(ctx context.Context) ([]*models.Badge, error)
	// SearchByName fuzzy-matches badge names, best match first.
	SearchByName(ctx context.Context, query string) ([]*models.Badge, error)
}

type badgeRepository struct {
	db *bun.DB
}

func NewBadgeRepository(db *bun.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

func (r *badgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	badge.CreatedAt = time.Now()
	_, err := r.db.NewInsert().Model(badge).Exec(ctx)
	return err
}

func (r *badgeRepository) GetByID(ctx context.Context, id int64) (*models.Badge, error) {
	badge := new(models.Badge)
	err := r.db.NewSelect().
		Model(badge).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("badge %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	return badge, nil
}

func (r *badgeRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.Badge, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var badges []*models.Badge
	err := r.db.NewSelect().
		Model(&badges).
		Where("id IN (?)", bun.In(ids)).
		Order("id ASC").
		Scan(ctx)

	return badges, err
}

func (r *badgeRepository) GetAll(ctx context.Context) ([]*models.Badge, error) {
	var badges []*models.Badge
	err := r.db.NewSelect().
		Model(&badges).
		Order("name ASC").
		Scan(ctx)

	return badges, err
}

func (r *badgeRepository) SearchByName(ctx context.Context, query string) ([]*models.Badge, error) {
	badges, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(badges))
	for i, b := range badges {
		names[i] = b.Name
	}

	matches := fuzzy.Find(query, names)
	results := make([]*models.Badge, 0, len(matches))
	for _, m := range matches {
		results = append(results, badges[m.Index])
	}

	return results, nil
}
