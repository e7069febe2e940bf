package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the per-(user, tenant) loyalty record. Point counters are only ever
// changed together with a ledger transaction.
type Account struct {
	ID             uuid.UUID
	LoyaltyNumber  string
	UserID         string
	TenantID       string
	CurrentPoints  int64
	LifetimePoints int64
	PointsRedeemed int64
	TotalSpent     decimal.Decimal
	YearSpent      decimal.Decimal
	YearStartedAt  time.Time
	TotalOrders    int64
	TierID         *uuid.UUID
	TierLevel      int
	TierAchievedAt *time.Time
	TierExpiresAt  *time.Time
	Active         bool
	Notifications  NotificationPreferences
	Progress       []ChallengeProgress
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type NotificationPreferences struct {
	Email          bool `json:"email"`
	SMS            bool `json:"sms"`
	Push           bool `json:"push"`
	PointsExpiring bool `json:"pointsExpiring"`
	Promotions     bool `json:"promotions"`
}

func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Email:          true,
		Push:           true,
		PointsExpiring: true,
		Promotions:     true,
	}
}

// BalanceConsistent reports whether the stored counters satisfy the ledger invariant.
func (a *Account) BalanceConsistent() bool {
	return a.CurrentPoints >= 0 && a.CurrentPoints == a.LifetimePoints-a.PointsRedeemed
}

// RecordOrder folds a completed order into the spend and order counters, rolling the
// yearly spend window forward when it has lapsed.
func (a *Account) RecordOrder(amount decimal.Decimal, now time.Time) {
	if a.YearStartedAt.IsZero() || !now.Before(a.YearStartedAt.AddDate(1, 0, 0)) {
		a.YearStartedAt = now
		a.YearSpent = decimal.Zero
	}
	a.TotalSpent = a.TotalSpent.Add(amount)
	a.YearSpent = a.YearSpent.Add(amount)
	a.TotalOrders++
}

// Order is the completed-order event delivered by the ordering system.
type Order struct {
	ID          string
	TenantID    string
	CustomerID  string
	TotalAmount decimal.Decimal
}
