package config

import (
	"time"

	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// Unique code generation
	LoyaltyNumberPrefix    = "LY"
	LoyaltyNumberLength    = 10
	LoyaltyNumberAttempts  = 10
	RedemptionCodeLength   = 12
	RedemptionCodeAttempts = 10

	// History paging
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500

	// MaxOrderTotal is the largest order amount accepted, in currency units. It keeps
	// point arithmetic inside int64 and totals inside the NUMERIC(14,2) columns.
	MaxOrderTotal = 9_999_999_999
)

// DefaultProgramSettings mirrors the envDefault values of Config and is used where
// no environment has been parsed (tests, the admin CLI without overrides).
func DefaultProgramSettings() domain.ProgramSettings {
	return domain.ProgramSettings{
		WelcomeBonus:             100,
		BirthdayBonus:            50,
		ReferralBonus:            200,
		PointsPerCurrencyUnit:    decimal.NewFromInt(1),
		TierUpgradeBonusPerLevel: 100,
		EarnedPointsTTL:          365 * 24 * time.Hour,
		RedemptionTTL:            30 * 24 * time.Hour,
	}
}
