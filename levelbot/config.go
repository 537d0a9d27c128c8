package levelbot

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log      LogConfig      `toml:"log"`
	Bot      BotConfig      `toml:"bot"`
	DB       DBConfig       `toml:"db"`
	Leveling LevelingConfig `toml:"leveling"`
	Lootbox  LootboxConfig  `toml:"lootbox"`
	Spaces   SpacesConfig   `toml:"spaces"`
}

type BotConfig struct {
	DevGuilds         []snowflake.ID `toml:"dev_guilds"`
	Token             string         `toml:"token"`
	GuildID           snowflake.ID   `toml:"guild_id"`
	AnnounceChannelID snowflake.ID   `toml:"announce_channel_id"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	PoolSize int    `toml:"pool_size"`
}

type LevelingConfig struct {
	BaseXP      int64   `toml:"base_xp"`
	Coefficient float64 `toml:"coefficient"`
}

type LootboxConfig struct {
	XPReward int64 `toml:"xp_reward"`
	HourMin  int   `toml:"hour_min"`
	HourMax  int   `toml:"hour_max"`
}

type SpacesConfig struct {
	Key       string `toml:"key"`
	Secret    string `toml:"secret"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	AssetRoot string `toml:"asset_root"`
}

func (c *Config) applyDefaults() {
	if c.Leveling.BaseXP <= 0 {
		c.Leveling.BaseXP = 500
	}
	if c.Leveling.Coefficient <= 0 {
		c.Leveling.Coefficient = 1.3
	}
	if c.Lootbox.XPReward <= 0 {
		c.Lootbox.XPReward = 20
	}
	if c.Lootbox.HourMin == 0 && c.Lootbox.HourMax == 0 {
		c.Lootbox.HourMin = 7
		c.Lootbox.HourMax = 16
	}
}
