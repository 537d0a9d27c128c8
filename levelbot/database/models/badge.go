package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Badge struct {
	bun.BaseModel `bun:"table:badges,alias:b"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Name        string `bun:"name,notnull,unique"`
	Description string `bun:"description"`

	// ImageKey is the object key of the badge art in Spaces.
	ImageKey string `bun:"image_key"`

	CreatedAt time.Time `bun:"created_at,notnull"`
}
