package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PromotionType string

const (
	PromotionBonusPoints      PromotionType = "BONUS_POINTS"
	PromotionPointsMultiplier PromotionType = "POINTS_MULTIPLIER"
)

type PromotionStatus string

const (
	PromotionDraft  PromotionStatus = "DRAFT"
	PromotionActive PromotionStatus = "ACTIVE"
	PromotionPaused PromotionStatus = "PAUSED"
	PromotionEnded  PromotionStatus = "ENDED"
)

type Promotion struct {
	ID                 uuid.UUID
	TenantID           string
	Name               string
	Type               PromotionType
	Status             PromotionStatus
	StartDate          time.Time
	EndDate            time.Time
	BonusPoints        int64
	Multiplier         decimal.Decimal
	MinimumSpend       decimal.Decimal
	EligibleTierLevels []int
	MaxUsesPerCustomer int
	Priority           int
}

// ActiveAt reports whether the promotion is ACTIVE and now falls in [StartDate, EndDate).
func (p *Promotion) ActiveAt(now time.Time) bool {
	return p.Status == PromotionActive && !now.Before(p.StartDate) && now.Before(p.EndDate)
}

func (p *Promotion) EligibleTier(level int) bool {
	return containsLevel(p.EligibleTierLevels, level)
}
