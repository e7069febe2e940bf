package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Reward struct {
	ID                 uuid.UUID
	TenantID           string
	Name               string
	PointsCost         int64
	CashValue          decimal.Decimal
	DiscountPercent    decimal.Decimal
	Active             bool
	ValidFrom          *time.Time
	ValidUntil         *time.Time
	EligibleTierLevels []int
	TotalQuantity      *int64
	RedeemedCount      int64
	MaxPerUser         int
	RequiresApproval   bool
}

// AvailableAt reports whether the reward can be redeemed at all right now,
// independent of who is redeeming it.
func (r *Reward) AvailableAt(now time.Time) bool {
	if !r.Active {
		return false
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && !now.Before(*r.ValidUntil) {
		return false
	}
	if r.TotalQuantity != nil && r.RedeemedCount >= *r.TotalQuantity {
		return false
	}
	return true
}

func (r *Reward) EligibleTier(level int) bool {
	return containsLevel(r.EligibleTierLevels, level)
}

type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "PENDING"
	RedemptionApproved RedemptionStatus = "APPROVED"
	RedemptionRedeemed RedemptionStatus = "REDEEMED"
	RedemptionDenied   RedemptionStatus = "DENIED"
	RedemptionExpired  RedemptionStatus = "EXPIRED"
)

var redemptionTransitions = map[RedemptionStatus][]RedemptionStatus{
	RedemptionPending:  {RedemptionApproved, RedemptionDenied, RedemptionExpired},
	RedemptionApproved: {RedemptionRedeemed, RedemptionExpired},
}

// CanTransition reports whether the redemption lifecycle allows from -> to.
func (s RedemptionStatus) CanTransition(to RedemptionStatus) bool {
	for _, next := range redemptionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Refundable statuses hand the debited points back when left.
func (s RedemptionStatus) Refundable() bool {
	return s == RedemptionPending || s == RedemptionApproved
}

type Redemption struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	TenantID      string
	RewardID      uuid.UUID
	TransactionID uuid.UUID
	Code          string
	PointsSpent   int64
	Status        RedemptionStatus
	OrderID       *string
	Notes         string
	ExpiresAt     time.Time
	ResolvedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
