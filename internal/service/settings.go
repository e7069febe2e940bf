package service

import (
	"context"
	"fmt"

	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/repository"
)

// Settings resolves a tenant's effective program constants: configured defaults
// with the tenant's stored overrides applied on top.
type Settings struct {
	defaults domain.ProgramSettings
}

func NewSettings(defaults domain.ProgramSettings) *Settings {
	return &Settings{defaults: defaults}
}

func (s *Settings) Defaults() domain.ProgramSettings {
	return s.defaults
}

func (s *Settings) Resolve(ctx context.Context, q repository.Querier, tenantID string) (domain.ProgramSettings, error) {
	override, err := q.GetSettingsOverride(ctx, tenantID)
	if err != nil {
		return domain.ProgramSettings{}, fmt.Errorf("get tenant settings: %w", err)
	}
	merged := s.defaults.Merge(override)
	if merged.PointsPerCurrencyUnit.IsNegative() {
		return domain.ProgramSettings{}, domain.ConfigError("tenant_settings", tenantID, "negative points per currency unit")
	}
	if merged.WelcomeBonus < 0 || merged.BirthdayBonus < 0 || merged.ReferralBonus < 0 || merged.TierUpgradeBonusPerLevel < 0 {
		return domain.ProgramSettings{}, domain.ConfigError("tenant_settings", tenantID, "negative bonus amount")
	}
	if merged.EarnedPointsTTL <= 0 || merged.RedemptionTTL <= 0 {
		return domain.ProgramSettings{}, domain.ConfigError("tenant_settings", tenantID, "expiry periods must be positive")
	}
	return merged, nil
}
