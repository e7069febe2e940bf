package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Core
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	Env         string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Database pool
	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"5"`

	// Server
	Port            int           `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	// Sweeps
	SweepEnabled   bool          `env:"SWEEP_ENABLED" envDefault:"true"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"15m"`
	SweepBatchSize int           `env:"SWEEP_BATCH_SIZE" envDefault:"500"`
	TierCacheTTL   time.Duration `env:"TIER_CACHE_TTL" envDefault:"1m"`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"true"`

	// Program defaults, overridable per tenant
	WelcomeBonus             int64  `env:"LOYALTY_WELCOME_BONUS" envDefault:"100"`
	BirthdayBonus            int64  `env:"LOYALTY_BIRTHDAY_BONUS" envDefault:"50"`
	ReferralBonus            int64  `env:"LOYALTY_REFERRAL_BONUS" envDefault:"200"`
	PointsPerCurrencyUnit    string `env:"LOYALTY_POINTS_PER_UNIT" envDefault:"1"`
	TierUpgradeBonusPerLevel int64  `env:"LOYALTY_TIER_BONUS_PER_LEVEL" envDefault:"100"`
	EarnedPointsTTLDays      int    `env:"LOYALTY_EARNED_TTL_DAYS" envDefault:"365"`
	RedemptionTTLDays        int    `env:"LOYALTY_REDEMPTION_TTL_DAYS" envDefault:"30"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.ProgramDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProgramDefaults returns the earning constants every tenant starts from.
func (c *Config) ProgramDefaults() (domain.ProgramSettings, error) {
	rate, err := decimal.NewFromString(c.PointsPerCurrencyUnit)
	if err != nil {
		return domain.ProgramSettings{}, fmt.Errorf("parse LOYALTY_POINTS_PER_UNIT: %w", err)
	}
	if rate.IsNegative() {
		return domain.ProgramSettings{}, fmt.Errorf("LOYALTY_POINTS_PER_UNIT must not be negative")
	}
	if c.EarnedPointsTTLDays <= 0 || c.RedemptionTTLDays <= 0 {
		return domain.ProgramSettings{}, fmt.Errorf("LOYALTY_EARNED_TTL_DAYS and LOYALTY_REDEMPTION_TTL_DAYS must be positive")
	}
	return domain.ProgramSettings{
		WelcomeBonus:             c.WelcomeBonus,
		BirthdayBonus:            c.BirthdayBonus,
		ReferralBonus:            c.ReferralBonus,
		PointsPerCurrencyUnit:    rate,
		TierUpgradeBonusPerLevel: c.TierUpgradeBonusPerLevel,
		EarnedPointsTTL:          time.Duration(c.EarnedPointsTTLDays) * 24 * time.Hour,
		RedemptionTTL:            time.Duration(c.RedemptionTTLDays) * 24 * time.Hour,
	}, nil
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
