package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activePromotion(now time.Time, typ domain.PromotionType) domain.Promotion {
	return domain.Promotion{
		ID:        uuid.New(),
		TenantID:  tenant,
		Name:      string(typ),
		Type:      typ,
		Status:    domain.PromotionActive,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
	}
}

func TestComputeBonus(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	order := domain.Order{ID: "o-1", TenantID: tenant, TotalAmount: decimalInt(50)}
	acc := &domain.Account{TierLevel: 1}

	multiplier := activePromotion(now, domain.PromotionPointsMultiplier)
	multiplier.Multiplier = decimal.RequireFromString("1.2")

	bonus := activePromotion(now, domain.PromotionBonusPoints)
	bonus.BonusPoints = 25

	paused := activePromotion(now, domain.PromotionBonusPoints)
	paused.BonusPoints = 500
	paused.Status = domain.PromotionPaused

	goldOnly := activePromotion(now, domain.PromotionBonusPoints)
	goldOnly.BonusPoints = 40
	goldOnly.EligibleTierLevels = []int{3}

	bigSpend := activePromotion(now, domain.PromotionBonusPoints)
	bigSpend.BonusPoints = 40
	bigSpend.MinimumSpend = decimalInt(100)

	usedUp := activePromotion(now, domain.PromotionBonusPoints)
	usedUp.BonusPoints = 40
	usedUp.MaxUsesPerCustomer = 2

	otherTenant := activePromotion(now, domain.PromotionBonusPoints)
	otherTenant.BonusPoints = 40
	otherTenant.TenantID = "shop-2"

	tests := []struct {
		name   string
		promos []domain.Promotion
		want   int64
		count  int
	}{
		{"none", nil, 0, 0},
		{"multiplier adds the excess over base", []domain.Promotion{multiplier}, 10, 1},
		{"promotions stack", []domain.Promotion{multiplier, bonus}, 35, 2},
		{"ineligible are skipped", []domain.Promotion{paused, goldOnly, bigSpend, usedUp, otherTenant}, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ComputeBonus(PromotionInput{
				Order:      order,
				Account:    acc,
				BasePoints: 50,
				Promotions: tc.promos,
				Uses:       map[uuid.UUID]int64{usedUp.ID: 2},
			}, now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.BonusPoints)
			assert.Len(t, res.Applied, tc.count)
		})
	}
}

func TestComputeBonusSkipsZeroPointResults(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := activePromotion(now, domain.PromotionPointsMultiplier)
	p.Multiplier = decimal.RequireFromString("1.1")

	res, err := ComputeBonus(PromotionInput{
		Order:      domain.Order{TenantID: tenant, TotalAmount: decimalInt(5)},
		Account:    &domain.Account{},
		BasePoints: 5,
		Promotions: []domain.Promotion{p},
	}, now)
	require.NoError(t, err)
	assert.Zero(t, res.BonusPoints)
	assert.Empty(t, res.Applied)
}

func TestComputeBonusRejectsMalformedPromotions(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	shrink := activePromotion(now, domain.PromotionPointsMultiplier)
	shrink.Multiplier = decimal.RequireFromString("0.5")

	negative := activePromotion(now, domain.PromotionBonusPoints)
	negative.BonusPoints = -10

	unknown := activePromotion(now, domain.PromotionType("FREE_SHIPPING"))

	for _, p := range []domain.Promotion{shrink, negative, unknown} {
		_, err := ComputeBonus(PromotionInput{
			Order:      domain.Order{TenantID: tenant, TotalAmount: decimalInt(50)},
			Account:    &domain.Account{},
			BasePoints: 50,
			Promotions: []domain.Promotion{p},
		}, now)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig, p.Name)
	}
}
