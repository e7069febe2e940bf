package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type ChallengeType string

const (
	ChallengeOrderCount   ChallengeType = "ORDER_COUNT"
	ChallengeSpendAmount  ChallengeType = "SPEND_AMOUNT"
	ChallengePointsEarned ChallengeType = "POINTS_EARNED"
)

type Milestone struct {
	Target int64 `json:"target" yaml:"target"`
	Points int64 `json:"points" yaml:"points"`
}

type Challenge struct {
	ID               uuid.UUID
	TenantID         string
	Name             string
	Type             ChallengeType
	Target           int64
	CompletionPoints int64
	Milestones       []Milestone
	Active           bool
	StartDate        time.Time
	EndDate          time.Time
}

func (c *Challenge) ActiveAt(now time.Time) bool {
	return c.Active && !now.Before(c.StartDate) && now.Before(c.EndDate)
}

// ChallengeProgress is unique per (account, challenge).
type ChallengeProgress struct {
	AccountID         uuid.UUID
	ChallengeID       uuid.UUID
	Current           int64
	MilestonesReached []int64
	CompletedAt       *time.Time
	UpdatedAt         time.Time
}

func (p *ChallengeProgress) Completed() bool {
	return p.CompletedAt != nil
}

func (p *ChallengeProgress) ReachedMilestone(target int64) bool {
	return slices.Contains(p.MilestonesReached, target)
}
