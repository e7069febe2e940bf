package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProgramSettings are the tenant-level earning constants. Defaults come from
// configuration; tenants override individual fields.
type ProgramSettings struct {
	WelcomeBonus             int64
	BirthdayBonus            int64
	ReferralBonus            int64
	PointsPerCurrencyUnit    decimal.Decimal
	TierUpgradeBonusPerLevel int64
	EarnedPointsTTL          time.Duration
	RedemptionTTL            time.Duration
}

// SettingsOverride holds a tenant's explicit overrides; nil fields inherit.
type SettingsOverride struct {
	TenantID                 string
	WelcomeBonus             *int64
	BirthdayBonus            *int64
	ReferralBonus            *int64
	PointsPerCurrencyUnit    *decimal.Decimal
	TierUpgradeBonusPerLevel *int64
	EarnedPointsTTLDays      *int
	RedemptionTTLDays        *int
}

func (s ProgramSettings) Merge(o *SettingsOverride) ProgramSettings {
	if o == nil {
		return s
	}
	if o.WelcomeBonus != nil {
		s.WelcomeBonus = *o.WelcomeBonus
	}
	if o.BirthdayBonus != nil {
		s.BirthdayBonus = *o.BirthdayBonus
	}
	if o.ReferralBonus != nil {
		s.ReferralBonus = *o.ReferralBonus
	}
	if o.PointsPerCurrencyUnit != nil {
		s.PointsPerCurrencyUnit = *o.PointsPerCurrencyUnit
	}
	if o.TierUpgradeBonusPerLevel != nil {
		s.TierUpgradeBonusPerLevel = *o.TierUpgradeBonusPerLevel
	}
	if o.EarnedPointsTTLDays != nil {
		s.EarnedPointsTTL = time.Duration(*o.EarnedPointsTTLDays) * 24 * time.Hour
	}
	if o.RedemptionTTLDays != nil {
		s.RedemptionTTL = time.Duration(*o.RedemptionTTLDays) * 24 * time.Hour
	}
	return s
}
