package leveling

import (
	"math"

	"github.com/ellavondegurechaff/levelbot/levelbot/database/models"
)

// Config holds the parameters of the geometric leveling curve. Level is never
// stored; it is always recomputed from the XP ledger through this config.
type Config struct {
	BaseXP      int64
	Coefficient float64
}

func NewDefaultConfig() Config {
	return Config{
		BaseXP:      500,
		Coefficient: 1.3,
	}
}

func (c Config) normalized() Config {
	if c.BaseXP <= 0 {
		c.BaseXP = 500
	}
	if c.Coefficient <= 0 {
		c.Coefficient = 1.3
	}
	return c
}

// ThresholdFor returns the XP required to advance from the given level to the
// next one: floor(baseXP * coefficient^(level-1)).
func (c Config) ThresholdFor(level int) int64 {
	c = c.normalized()
	return int64(math.Floor(float64(c.BaseXP) * math.Pow(c.Coefficient, float64(level-1))))
}

// Level computes the level reached with totalXP. An empty ledger is level 1.
func (c Config) Level(totalXP int64) int {
	level, _, _ := c.Progress(totalXP)
	return level
}

// Progress computes the current level, the XP carried into that level, and the
// threshold needed to reach the next one.
func (c Config) Progress(totalXP int64) (level int, intoLevel int64, needed int64) {
	c = c.normalized()

	level = 1
	remaining := totalXP
	threshold := c.ThresholdFor(level)

	for remaining >= threshold {
		remaining -= threshold
		level++
		threshold = c.ThresholdFor(level)
	}

	return level, remaining, threshold
}

// TotalXP sums an XP ledger. Nil or empty ledgers count as zero.
func TotalXP(entries []models.XPEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Amount
	}
	return total
}

// UserLevel computes the derived level for a user.
func (c Config) UserLevel(user *models.User) int {
	if user == nil {
		return 1
	}
	return c.Level(TotalXP(user.XPHistory))
}
