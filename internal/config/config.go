package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken  string `yaml:"telegram_token" env:"TELEGRAM_TOKEN"`
	DatabaseURL    string `yaml:"database_url" env:"DATABASE_URL" env-default:"study_garden.db"`
	ReportHours    int    `yaml:"report_interval_hours" env:"REPORT_INTERVAL_HOURS" env-default:"5"`
	QuestResetTime string `yaml:"quest_reset_time" env:"QUEST_RESET_TIME" env-default:"00:00"`
	Timezone       string `yaml:"timezone" env:"TIMEZONE" env-default:"Local"`
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// ReportInterval is derived from ReportHours and may be changed at runtime.
	ReportInterval time.Duration `yaml:"-"`
}

// Load reads a .env file if present, then the optional YAML file at path, then
// the environment. Environment values win over the file.
func Load(path string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	if cfg.ReportHours < 0 {
		return cfg, fmt.Errorf("REPORT_INTERVAL_HOURS must not be negative")
	}
	cfg.ReportInterval = time.Duration(cfg.ReportHours) * time.Hour
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RequireToken fails when the bot token is missing; only serving needs it.
func (c Config) RequireToken() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
