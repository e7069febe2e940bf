package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestErrorClasses(t *testing.T) {
	assert.ErrorIs(t, ErrInsufficientBalance, ErrBusinessRule)
	assert.ErrorIs(t, ErrAlreadyAwarded, ErrBusinessRule)
	assert.ErrorIs(t, ErrAccountNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrCodeGeneration, ErrConflict)
	assert.False(t, errors.Is(ErrRewardNotFound, ErrBusinessRule))

	err := ConfigError("tier", "gold", "multiplier must be positive")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "tier gold: multiplier must be positive")
}

func TestRedemptionTransitions(t *testing.T) {
	cases := []struct {
		from, to RedemptionStatus
		ok       bool
	}{
		{RedemptionPending, RedemptionApproved, true},
		{RedemptionPending, RedemptionDenied, true},
		{RedemptionPending, RedemptionExpired, true},
		{RedemptionPending, RedemptionRedeemed, false},
		{RedemptionApproved, RedemptionRedeemed, true},
		{RedemptionApproved, RedemptionExpired, true},
		{RedemptionApproved, RedemptionDenied, false},
		{RedemptionRedeemed, RedemptionExpired, false},
		{RedemptionDenied, RedemptionApproved, false},
		{RedemptionExpired, RedemptionPending, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to))
		})
	}

	assert.True(t, RedemptionPending.Refundable())
	assert.True(t, RedemptionApproved.Refundable())
	assert.False(t, RedemptionRedeemed.Refundable())
}

func TestRewardAvailableAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	two := int64(2)

	assert.True(t, (&Reward{Active: true}).AvailableAt(now))
	assert.False(t, (&Reward{}).AvailableAt(now))
	assert.False(t, (&Reward{Active: true, ValidFrom: &future}).AvailableAt(now))
	assert.False(t, (&Reward{Active: true, ValidUntil: &now}).AvailableAt(now))
	assert.True(t, (&Reward{Active: true, ValidFrom: &past, ValidUntil: &future}).AvailableAt(now))
	assert.True(t, (&Reward{Active: true, TotalQuantity: &two, RedeemedCount: 1}).AvailableAt(now))
	assert.False(t, (&Reward{Active: true, TotalQuantity: &two, RedeemedCount: 2}).AvailableAt(now))
}

func TestEligibleTierLevels(t *testing.T) {
	r := Reward{}
	assert.True(t, r.EligibleTier(0))

	r.EligibleTierLevels = []int{2, 3}
	assert.False(t, r.EligibleTier(1))
	assert.True(t, r.EligibleTier(3))
}

func TestTierQualifiedBy(t *testing.T) {
	tier := Tier{PointsRequired: 500, SpendRequired: decimal.NewFromInt(200), OrdersRequired: 3}

	acc := &Account{LifetimePoints: 500, TotalSpent: decimal.NewFromInt(200), TotalOrders: 3}
	assert.True(t, tier.QualifiedBy(acc))

	acc.TotalOrders = 2
	assert.False(t, tier.QualifiedBy(acc), "every threshold must be met")
}

func TestRecordOrderRollsYearWindow(t *testing.T) {
	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	acc := &Account{YearStartedAt: start, YearSpent: decimal.NewFromInt(90), TotalSpent: decimal.NewFromInt(90), TotalOrders: 1}

	acc.RecordOrder(decimal.NewFromInt(10), start.AddDate(0, 6, 0))
	assert.True(t, acc.YearSpent.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, start, acc.YearStartedAt)

	later := start.AddDate(1, 0, 1)
	acc.RecordOrder(decimal.NewFromInt(5), later)
	assert.True(t, acc.YearSpent.Equal(decimal.NewFromInt(5)))
	assert.True(t, acc.TotalSpent.Equal(decimal.NewFromInt(105)))
	assert.Equal(t, later, acc.YearStartedAt)
	assert.EqualValues(t, 3, acc.TotalOrders)
}

func TestBalanceConsistent(t *testing.T) {
	assert.True(t, (&Account{CurrentPoints: 60, LifetimePoints: 100, PointsRedeemed: 40}).BalanceConsistent())
	assert.False(t, (&Account{CurrentPoints: 70, LifetimePoints: 100, PointsRedeemed: 40}).BalanceConsistent())
}

func TestSettingsMerge(t *testing.T) {
	base := ProgramSettings{WelcomeBonus: 100, BirthdayBonus: 50, PointsPerCurrencyUnit: decimal.NewFromInt(1), EarnedPointsTTL: time.Hour}
	assert.Equal(t, base, base.Merge(nil))

	welcome := int64(0)
	rate := decimal.NewFromInt(2)
	days := 7
	got := base.Merge(&SettingsOverride{WelcomeBonus: &welcome, PointsPerCurrencyUnit: &rate, EarnedPointsTTLDays: &days})
	assert.Zero(t, got.WelcomeBonus)
	assert.EqualValues(t, 50, got.BirthdayBonus)
	assert.True(t, got.PointsPerCurrencyUnit.Equal(rate))
	assert.Equal(t, 7*24*time.Hour, got.EarnedPointsTTL)
}

func TestPromotionActiveAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Promotion{Status: PromotionActive, StartDate: start, EndDate: start.AddDate(0, 1, 0)}

	assert.True(t, p.ActiveAt(start))
	assert.False(t, p.ActiveAt(p.EndDate))
	p.Status = PromotionPaused
	assert.False(t, p.ActiveAt(start))
}

func TestTxKindValid(t *testing.T) {
	assert.True(t, TxKindExpired.Valid())
	assert.False(t, TxKind("GIFT").Valid())
}
