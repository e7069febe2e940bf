package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/repository/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	p, err := LoadFile("testdata/program.yaml")
	require.NoError(t, err)

	assert.Equal(t, "shop-1", p.Tenant)
	require.NotNil(t, p.Settings)
	assert.EqualValues(t, 150, *p.Settings.WelcomeBonus)
	assert.Len(t, p.Tiers, 2)
	assert.Len(t, p.Promotions, 2)
	require.Len(t, p.Challenges, 1)
	assert.Equal(t, []domain.Milestone{{Target: 3, Points: 50}}, p.Challenges[0].Milestones)
	assert.Len(t, p.Rewards, 2)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("tenant: shop-1\ntiers:\n  - name: Silver\n    levle: 1\n"))
	assert.Error(t, err)
}

func TestParseRequiresTenant(t *testing.T) {
	_, err := Parse(strings.NewReader("rewards: []\n"))
	assert.ErrorContains(t, err, "tenant is required")
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	p, err := LoadFile("testdata/program.yaml")
	require.NoError(t, err)
	store := memstore.New()

	sum, err := Apply(ctx, store, p)
	require.NoError(t, err)
	assert.Equal(t, Summary{Settings: true, Tiers: 2, Promotions: 2, Challenges: 1, Rewards: 2}, sum)

	override, err := store.GetSettingsOverride(ctx, "shop-1")
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.Equal(t, "1.5", override.PointsPerCurrencyUnit.String())
	assert.Nil(t, override.BirthdayBonus, "unset keys inherit")

	tiers, err := store.ListTiers(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, "Silver", tiers[0].Name)
	assert.True(t, tiers[0].SpendRequired.IsZero())
	assert.Equal(t, "1.5", tiers[1].Multiplier.String())
	assert.Equal(t, []string{"free shipping", "early access"}, tiers[1].Benefits)

	coffee, err := store.GetReward(ctx, uuid.MustParse("6f1c2a8e-3a4b-4c55-9a0f-2d9b8e7c6a51"))
	require.NoError(t, err)
	assert.True(t, coffee.Active, "active defaults to true")
	assert.Equal(t, "3.5", coffee.CashValue.String())

	rewards, err := store.ListRewards(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	lounge := rewards[1]
	assert.True(t, lounge.RequiresApproval)
	require.NotNil(t, lounge.TotalQuantity)
	assert.EqualValues(t, 20, *lounge.TotalQuantity)
}

func TestApplyIsRepeatable(t *testing.T) {
	ctx := context.Background()
	p, err := LoadFile("testdata/program.yaml")
	require.NoError(t, err)
	store := memstore.New()

	_, err = Apply(ctx, store, p)
	require.NoError(t, err)
	p.Tiers[0].Multiplier = "1.3"
	_, err = Apply(ctx, store, p)
	require.NoError(t, err)

	tiers, err := store.ListTiers(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, tiers, 2, "derived ids update rows in place")
	assert.Equal(t, "1.3", tiers[0].Multiplier.String())
}

func TestApplyValidatesBeforeWriting(t *testing.T) {
	store := memstore.New()
	p := &Program{
		Tenant:  "shop-1",
		Tiers:   []TierEntry{{Name: "Silver", Level: 1}},
		Rewards: []RewardEntry{{Name: "Coffee", CashValue: "three"}},
	}

	_, err := Apply(context.Background(), store, p)
	assert.ErrorContains(t, err, "cash_value")

	tiers, err := store.ListTiers(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Empty(t, tiers)
}

func TestEntityID(t *testing.T) {
	p := &Program{Tenant: "shop-1"}

	a, err := p.entityID("tier", "", "Gold")
	require.NoError(t, err)
	b, err := p.entityID("tier", "", "Gold")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other := &Program{Tenant: "shop-2"}
	c, err := other.entityID("tier", "", "Gold")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = p.entityID("tier", "not-a-uuid", "Gold")
	assert.Error(t, err)
	_, err = p.entityID("reward", "", "")
	assert.Error(t, err)
}
