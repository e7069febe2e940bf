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

func ladder() []domain.Tier {
	return []domain.Tier{
		{ID: uuid.New(), Name: "Gold", Level: 3, PointsRequired: 5000, SpendRequired: decimalInt(1000), Multiplier: decimal.RequireFromString("2")},
		{ID: uuid.New(), Name: "Bronze", Level: 1, PointsRequired: 0, Multiplier: decimal.RequireFromString("1")},
		{ID: uuid.New(), Name: "Silver", Level: 2, PointsRequired: 1000, OrdersRequired: 5, Multiplier: decimal.RequireFromString("1.5")},
	}
}

func TestEvaluateTier(t *testing.T) {
	tiers := ladder()

	tests := []struct {
		name string
		acc  domain.Account
		want string
	}{
		{"entry tier", domain.Account{}, "Bronze"},
		{"points without orders", domain.Account{LifetimePoints: 2000, TotalOrders: 4}, "Bronze"},
		{"silver", domain.Account{LifetimePoints: 2000, TotalOrders: 5}, "Silver"},
		{"gold needs spend too", domain.Account{LifetimePoints: 6000, TotalOrders: 9, TotalSpent: decimalInt(999)}, "Silver"},
		{"gold", domain.Account{LifetimePoints: 6000, TotalOrders: 9, TotalSpent: decimalInt(1000)}, "Gold"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EvaluateTier(&tc.acc, tiers)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.Name)
		})
	}
}

func TestEvaluateTierNoQualifyingTier(t *testing.T) {
	got, err := EvaluateTier(&domain.Account{}, []domain.Tier{
		{ID: uuid.New(), Level: 1, PointsRequired: 10, Multiplier: decimalInt(1)},
	})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = EvaluateTier(&domain.Account{}, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEvaluateTierRejectsMalformedLadder(t *testing.T) {
	dup := ladder()
	dup[0].Level = 1
	_, err := EvaluateTier(&domain.Account{}, dup)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	zero := ladder()
	zero[1].Multiplier = decimal.Zero
	_, err = EvaluateTier(&domain.Account{}, zero)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	level := ladder()
	level[2].Level = 0
	_, err = EvaluateTier(&domain.Account{}, level)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	negative := ladder()
	negative[2].PointsRequired = -1
	_, err = EvaluateTier(&domain.Account{}, negative)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestTierMultiplier(t *testing.T) {
	tiers := ladder()
	silver := tiers[2]

	assert.True(t, tierMultiplier(&domain.Account{}, tiers).Equal(decimalInt(1)))
	assert.True(t, tierMultiplier(&domain.Account{TierID: &silver.ID, TierLevel: 2}, tiers).Equal(decimal.RequireFromString("1.5")))
	assert.True(t, tierMultiplier(&domain.Account{TierLevel: 3}, tiers).Equal(decimalInt(2)), "falls back to the level")
}

func TestTierCache(t *testing.T) {
	c := NewTierCache(time.Minute)
	_, ok := c.Get(tenant)
	assert.False(t, ok)

	tiers := ladder()
	c.Set(tenant, tiers)
	got, ok := c.Get(tenant)
	require.True(t, ok)
	assert.Len(t, got, 3)

	got[0].Name = "mutated"
	again, _ := c.Get(tenant)
	assert.Equal(t, "Gold", again[0].Name)

	c.Invalidate(tenant)
	_, ok = c.Get(tenant)
	assert.False(t, ok)

	disabled := NewTierCache(0)
	disabled.Set(tenant, tiers)
	_, ok = disabled.Get(tenant)
	assert.False(t, ok)
}
