package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/domain"
)

var (
	// ErrNoRows is returned by single-row reads that match nothing.
	ErrNoRows = errors.New("no rows in result set")
	// ErrLoyaltyNumberTaken is returned by InsertAccount when the generated loyalty
	// number collides with an existing one.
	ErrLoyaltyNumberTaken = errors.New("loyalty number already taken")
	// ErrRedemptionCodeTaken is returned by InsertRedemption on a code collision.
	ErrRedemptionCodeTaken = errors.New("redemption code already taken")
	// ErrDuplicateEarned is returned by InsertTransaction when an EARNED row for the
	// same (tenant, order) already exists.
	ErrDuplicateEarned = errors.New("earned transaction already exists for order")
)

// Querier is the full set of reads and writes the loyalty services issue. Writes
// are only valid inside Store.InTx; the *ForUpdate reads take a row lock there.
type Querier interface {
	// Accounts
	GetAccount(ctx context.Context, id uuid.UUID) (domain.Account, error)
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (domain.Account, error)
	GetAccountByUser(ctx context.Context, tenantID, userID string) (domain.Account, error)
	LoyaltyNumberExists(ctx context.Context, number string) (bool, error)
	// InsertAccount reports created=false when an account already exists for the
	// (tenant, user) pair; nothing is written in that case.
	InsertAccount(ctx context.Context, acc domain.Account) (created bool, err error)
	UpdateAccount(ctx context.Context, acc domain.Account) error

	// Ledger
	InsertTransaction(ctx context.Context, txn domain.Transaction) (domain.Transaction, error)
	GetEarnedByOrder(ctx context.Context, tenantID, orderID string) (domain.Transaction, error)
	GetTransactionByReference(ctx context.Context, accountID uuid.UUID, kind domain.TxKind, referenceID string) (domain.Transaction, error)
	CountTransactionsByReference(ctx context.Context, accountID uuid.UUID, kind domain.TxKind, referenceID string) (int64, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	SumDeltas(ctx context.Context, accountID uuid.UUID) (int64, error)
	SumCreditsAfter(ctx context.Context, accountID uuid.UUID, seq int64) (int64, error)
	ListExpiringEarned(ctx context.Context, before time.Time, limit int) ([]domain.Transaction, error)

	// Configuration (read-only for the engine)
	GetSettingsOverride(ctx context.Context, tenantID string) (*domain.SettingsOverride, error)
	ListTiers(ctx context.Context, tenantID string) ([]domain.Tier, error)
	ListActivePromotions(ctx context.Context, tenantID string, now time.Time) ([]domain.Promotion, error)
	ListActiveChallenges(ctx context.Context, tenantID string, now time.Time) ([]domain.Challenge, error)
	GetReward(ctx context.Context, id uuid.UUID) (domain.Reward, error)
	GetRewardForUpdate(ctx context.Context, id uuid.UUID) (domain.Reward, error)
	ListRewards(ctx context.Context, tenantID string) ([]domain.Reward, error)
	IncrementRewardRedeemed(ctx context.Context, id uuid.UUID, delta int64) error

	// Redemptions
	RedemptionCodeExists(ctx context.Context, code string) (bool, error)
	InsertRedemption(ctx context.Context, r domain.Redemption) error
	GetRedemption(ctx context.Context, id uuid.UUID) (domain.Redemption, error)
	GetRedemptionForUpdate(ctx context.Context, id uuid.UUID) (domain.Redemption, error)
	UpdateRedemption(ctx context.Context, r domain.Redemption) error
	CountRedemptions(ctx context.Context, accountID, rewardID uuid.UUID, status domain.RedemptionStatus) (int64, error)
	ListRedemptionsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Redemption, error)
	ListStaleRedemptions(ctx context.Context, now time.Time, limit int) ([]domain.Redemption, error)

	// Challenge progress
	GetChallengeProgress(ctx context.Context, accountID, challengeID uuid.UUID) (domain.ChallengeProgress, error)
	// InsertChallengeProgress is a no-op when the row already exists.
	InsertChallengeProgress(ctx context.Context, p domain.ChallengeProgress) error
	UpdateChallengeProgress(ctx context.Context, p domain.ChallengeProgress) error
	ListChallengeProgress(ctx context.Context, accountID uuid.UUID) ([]domain.ChallengeProgress, error)
}

// Store runs units of work. fn's writes commit together or not at all.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// Seeder writes tenant configuration. It is used by the admin tooling only.
type Seeder interface {
	UpsertSettingsOverride(ctx context.Context, o domain.SettingsOverride) error
	UpsertTier(ctx context.Context, t domain.Tier) error
	UpsertPromotion(ctx context.Context, p domain.Promotion) error
	UpsertChallenge(ctx context.Context, c domain.Challenge) error
	UpsertReward(ctx context.Context, r domain.Reward) error
}
