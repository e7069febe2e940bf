package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/config"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeemInsufficientBalanceWritesNothing(t *testing.T) {
	f := newFixture(t, func(s *domain.ProgramSettings) { s.WelcomeBonus = 40 })
	acc := f.account(t, "alice")
	reward := f.reward(t, domain.Reward{Name: "Coffee", PointsCost: 50})

	_, err := f.engine.Loyalty.OnRedemptionRequested(context.Background(), acc.ID, reward.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assert.Equal(t, []domain.TxKind{domain.TxKindBonus}, f.kinds(acc.ID))
	assert.Empty(t, f.store.Redemptions())
	stored, err := f.store.GetReward(context.Background(), reward.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.RedeemedCount)
	assert.EqualValues(t, 40, f.reload(t, acc.ID).CurrentPoints)
}

func TestRedeemDebitsAndIssuesCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "alice")
	reward := f.reward(t, domain.Reward{Name: "Coffee", PointsCost: 60})

	r, err := f.engine.Redemptions.Redeem(ctx, acc.ID, reward.ID, RedeemOptions{OrderID: ptr("o-9"), Notes: "counter 2"})
	require.NoError(t, err)
	assert.Equal(t, domain.RedemptionApproved, r.Status)
	assert.Len(t, r.Code, config.RedemptionCodeLength)
	assert.EqualValues(t, 60, r.PointsSpent)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), r.ExpiresAt)
	assert.Nil(t, r.ResolvedAt)

	txns := f.store.Transactions()
	debit := txns[len(txns)-1]
	assert.Equal(t, domain.TxKindRedeemed, debit.Kind)
	assert.EqualValues(t, -60, debit.Delta)
	assert.Equal(t, r.TransactionID, debit.ID)
	assert.Equal(t, r.ID.String(), *debit.ReferenceID)
	assert.Equal(t, "o-9", *debit.OrderID)

	got := f.reload(t, acc.ID)
	assert.EqualValues(t, 40, got.CurrentPoints)
	assert.EqualValues(t, 60, got.PointsRedeemed)
	stored, err := f.store.GetReward(ctx, reward.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.RedeemedCount)

	list, err := f.engine.Loyalty.Redemptions(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].ID)
	f.requireBalanced(t, acc.ID)
}

func TestRedeemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "alice")
	now := f.clock.Now()

	_, err := f.engine.Redemptions.Redeem(ctx, acc.ID, uuid.New(), RedeemOptions{})
	assert.ErrorIs(t, err, domain.ErrRewardNotFound)

	foreign := domain.Reward{ID: uuid.New(), TenantID: "shop-2", Name: "Elsewhere", PointsCost: 1, Active: true}
	require.NoError(t, f.store.UpsertReward(ctx, foreign))
	_, err = f.engine.Redemptions.Redeem(ctx, acc.ID, foreign.ID, RedeemOptions{})
	assert.ErrorIs(t, err, domain.ErrRewardNotFound)

	ended := f.reward(t, domain.Reward{Name: "Last season", PointsCost: 1, ValidUntil: ptr(now.Add(-time.Hour))})
	_, err = f.engine.Redemptions.Redeem(ctx, acc.ID, ended.ID, RedeemOptions{})
	assert.ErrorIs(t, err, domain.ErrRewardUnavailable)

	lounge := f.reward(t, domain.Reward{Name: "Lounge", PointsCost: 1, EligibleTierLevels: []int{3}})
	_, err = f.engine.Redemptions.Redeem(ctx, acc.ID, lounge.ID, RedeemOptions{})
	assert.ErrorIs(t, err, domain.ErrTierNotEligible)

	_, err = f.engine.Redemptions.Redeem(ctx, uuid.New(), lounge.ID, RedeemOptions{})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = f.engine.Accounts.Deactivate(ctx, acc.ID)
	require.NoError(t, err)
	coffee := f.reward(t, domain.Reward{Name: "Coffee", PointsCost: 1})
	_, err = f.engine.Redemptions.Redeem(ctx, acc.ID, coffee.ID, RedeemOptions{})
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	assert.Empty(t, f.store.Redemptions())
	assert.EqualValues(t, 100, f.reload(t, acc.ID).CurrentPoints)
}

func TestRedeemStockAndPerUserCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.account(t, "alice")
	bob := f.account(t, "bob")
	one := int64(1)
	limited := f.reward(t, domain.Reward{Name: "Signed poster", PointsCost: 10, TotalQuantity: &one})
	capped := f.reward(t, domain.Reward{Name: "Coffee", PointsCost: 10, MaxPerUser: 1})

	_, err := f.engine.Redemptions.Redeem(ctx, alice.ID, limited.ID, RedeemOptions{})
	require.NoError(t, err)
	_, err = f.engine.Redemptions.Redeem(ctx, bob.ID, limited.ID, RedeemOptions{})
	assert.ErrorIs(t, err, domain.ErrRewardUnavailable)

	r, err := f.engine.Redemptions.Redeem(ctx, alice.ID, capped.ID, RedeemOptions{})
	require.NoError(t, err)
	// Only handed-over redemptions count toward the cap.
	_, err = f.engine.Redemptions.Redeem(ctx, alice.ID, capped.ID, RedeemOptions{})
	require.NoError(t, err)

	_, err = f.engine.Redemptions.Fulfill(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.engine.Redemptions.Redeem(ctx, alice.ID, capped.ID, RedeemOptions{})
	assert.ErrorIs(t, err, domain.ErrRedemptionCapExceeded)
	f.requireBalanced(t, alice.ID)
}

func TestApprovalFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "alice")
	reward := f.reward(t, domain.Reward{Name: "Spa day", PointsCost: 80, RequiresApproval: true})

	r, err := f.engine.Redemptions.Redeem(ctx, acc.ID, reward.ID, RedeemOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.RedemptionPending, r.Status)

	_, err = f.engine.Redemptions.Fulfill(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	approved, err := f.engine.Redemptions.Approve(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RedemptionApproved, approved.Status)
	assert.Nil(t, approved.ResolvedAt)

	done, err := f.engine.Redemptions.Fulfill(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RedemptionRedeemed, done.Status)
	require.NotNil(t, done.ResolvedAt)

	_, err = f.engine.Redemptions.Deny(ctx, r.ID, "too late")
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	assert.EqualValues(t, 20, f.reload(t, acc.ID).CurrentPoints, "no refund after fulfilment")

	_, err = f.engine.Redemptions.Approve(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrRedemptionNotFound)
}

func TestDenyRefundsPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "alice")
	reward := f.reward(t, domain.Reward{Name: "Spa day", PointsCost: 80, RequiresApproval: true})

	r, err := f.engine.Redemptions.Redeem(ctx, acc.ID, reward.ID, RedeemOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 20, f.reload(t, acc.ID).CurrentPoints)

	denied, err := f.engine.Redemptions.Deny(ctx, r.ID, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, domain.RedemptionDenied, denied.Status)
	assert.Equal(t, "out of stock", denied.Notes)
	require.NotNil(t, denied.ResolvedAt)

	got := f.reload(t, acc.ID)
	assert.EqualValues(t, 100, got.CurrentPoints)
	assert.EqualValues(t, 100, got.LifetimePoints, "refund is not an earning")
	assert.Zero(t, got.PointsRedeemed)

	txns := f.store.Transactions()
	refund := txns[len(txns)-1]
	assert.Equal(t, domain.TxKindAdjustment, refund.Kind)
	assert.EqualValues(t, 80, refund.Delta)
	require.NotNil(t, refund.Metadata.Redemption)
	assert.True(t, refund.Metadata.Redemption.Refund)

	stored, err := f.store.GetReward(ctx, reward.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.RedeemedCount)

	_, err = f.engine.Redemptions.Deny(ctx, r.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	assert.EqualValues(t, 100, f.reload(t, acc.ID).CurrentPoints, "refund is paid once")
	f.requireBalanced(t, acc.ID)
}

func TestRefundDoesNotQualifyForTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tier(t, domain.Tier{Name: "Silver", Level: 1, PointsRequired: 150, Multiplier: decimal.NewFromInt(1)})
	acc := f.account(t, "alice")
	reward := f.reward(t, domain.Reward{Name: "Cake", PointsCost: 50, RequiresApproval: true})

	r, err := f.engine.Redemptions.Redeem(ctx, acc.ID, reward.ID, RedeemOptions{})
	require.NoError(t, err)
	_, err = f.engine.Redemptions.Deny(ctx, r.ID, "")
	require.NoError(t, err)

	got := f.reload(t, acc.ID)
	assert.EqualValues(t, 100, got.CurrentPoints)
	assert.EqualValues(t, 100, got.LifetimePoints)
	assert.Zero(t, got.PointsRedeemed)

	res := f.order(t, "o-1", "alice", 0)
	assert.Nil(t, res.TierUpgrade)
	assert.Zero(t, res.Account.TierLevel)
	f.requireBalanced(t, acc.ID)
}

func TestReversalBoundedByRedeemedPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "alice")

	_, _, err := f.engine.Ledger.AppendTransaction(ctx, acc.ID, 10, domain.TxKindAdjustment, AppendOptions{Reversal: true})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Equal(t, []domain.TxKind{domain.TxKindBonus}, f.kinds(acc.ID))
}

func TestExpireStaleRedemptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "alice")
	pending := f.reward(t, domain.Reward{Name: "Spa day", PointsCost: 30, RequiresApproval: true})
	instant := f.reward(t, domain.Reward{Name: "Coffee", PointsCost: 20})
	handed := f.reward(t, domain.Reward{Name: "Tea", PointsCost: 10})

	_, err := f.engine.Redemptions.Redeem(ctx, acc.ID, pending.ID, RedeemOptions{})
	require.NoError(t, err)
	_, err = f.engine.Redemptions.Redeem(ctx, acc.ID, instant.ID, RedeemOptions{})
	require.NoError(t, err)
	done, err := f.engine.Redemptions.Redeem(ctx, acc.ID, handed.ID, RedeemOptions{})
	require.NoError(t, err)
	_, err = f.engine.Redemptions.Fulfill(ctx, done.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 40, f.reload(t, acc.ID).CurrentPoints)

	n, err := f.engine.Redemptions.ExpireStale(ctx, f.clock.Now().Add(29*24*time.Hour), 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.engine.Redemptions.ExpireStale(ctx, f.clock.Now().Add(30*24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got := f.reload(t, acc.ID)
	assert.EqualValues(t, 90, got.CurrentPoints)
	assert.EqualValues(t, 100, got.LifetimePoints)
	assert.EqualValues(t, 10, got.PointsRedeemed)

	for _, r := range f.store.Redemptions() {
		if r.ID == done.ID {
			assert.Equal(t, domain.RedemptionRedeemed, r.Status)
			continue
		}
		assert.Equal(t, domain.RedemptionExpired, r.Status)
	}

	n, err = f.engine.Redemptions.ExpireStale(ctx, f.clock.Now().Add(60*24*time.Hour), 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	f.requireBalanced(t, acc.ID)
}
