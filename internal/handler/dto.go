package handler

import (
	"time"

	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/service"
	"github.com/shopspring/decimal"
)

type accountResponse struct {
	ID             string                         `json:"id"`
	LoyaltyNumber  string                         `json:"loyaltyNumber"`
	UserID         string                         `json:"userId"`
	TenantID       string                         `json:"tenantId"`
	CurrentPoints  int64                          `json:"currentPoints"`
	LifetimePoints int64                          `json:"lifetimePoints"`
	PointsRedeemed int64                          `json:"pointsRedeemed"`
	TotalSpent     decimal.Decimal                `json:"totalSpent"`
	YearSpent      decimal.Decimal                `json:"yearSpent"`
	TotalOrders    int64                          `json:"totalOrders"`
	TierID         *string                        `json:"tierId,omitempty"`
	TierLevel      int                            `json:"tierLevel"`
	TierAchievedAt *time.Time                     `json:"tierAchievedAt,omitempty"`
	TierExpiresAt  *time.Time                     `json:"tierExpiresAt,omitempty"`
	Active         bool                           `json:"active"`
	Notifications  domain.NotificationPreferences `json:"notifications"`
	Progress       []progressResponse             `json:"progress,omitempty"`
	CreatedAt      time.Time                      `json:"createdAt"`
}

type progressResponse struct {
	ChallengeID       string     `json:"challengeId"`
	Current           int64      `json:"current"`
	MilestonesReached []int64    `json:"milestonesReached"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

func toAccount(a *domain.Account) accountResponse {
	resp := accountResponse{
		ID:             a.ID.String(),
		LoyaltyNumber:  a.LoyaltyNumber,
		UserID:         a.UserID,
		TenantID:       a.TenantID,
		CurrentPoints:  a.CurrentPoints,
		LifetimePoints: a.LifetimePoints,
		PointsRedeemed: a.PointsRedeemed,
		TotalSpent:     a.TotalSpent,
		YearSpent:      a.YearSpent,
		TotalOrders:    a.TotalOrders,
		TierLevel:      a.TierLevel,
		TierAchievedAt: a.TierAchievedAt,
		TierExpiresAt:  a.TierExpiresAt,
		Active:         a.Active,
		Notifications:  a.Notifications,
		CreatedAt:      a.CreatedAt,
	}
	if a.TierID != nil {
		id := a.TierID.String()
		resp.TierID = &id
	}
	for _, p := range a.Progress {
		resp.Progress = append(resp.Progress, progressResponse{
			ChallengeID:       p.ChallengeID.String(),
			Current:           p.Current,
			MilestonesReached: p.MilestonesReached,
			CompletedAt:       p.CompletedAt,
		})
	}
	return resp
}

type transactionResponse struct {
	ID           string          `json:"id"`
	Kind         domain.TxKind   `json:"kind"`
	Delta        int64           `json:"delta"`
	BalanceAfter int64           `json:"balanceAfter"`
	OrderID      *string         `json:"orderId,omitempty"`
	ReferenceID  *string         `json:"referenceId,omitempty"`
	ExpiresAt    *time.Time      `json:"expiresAt,omitempty"`
	Metadata     domain.Metadata `json:"metadata"`
	Status       domain.TxStatus `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func toTransaction(t *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID.String(),
		Kind:         t.Kind,
		Delta:        t.Delta,
		BalanceAfter: t.BalanceAfter,
		OrderID:      t.OrderID,
		ReferenceID:  t.ReferenceID,
		ExpiresAt:    t.ExpiresAt,
		Metadata:     t.Metadata,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
	}
}

func toTransactions(txns []*domain.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransaction(t))
	}
	return out
}

type tierUpgradeResponse struct {
	FromLevel int                   `json:"fromLevel"`
	ToLevel   int                   `json:"toLevel"`
	TierID    string                `json:"tierId"`
	TierName  string                `json:"tierName"`
	Bonuses   []transactionResponse `json:"bonuses,omitempty"`
}

type awardResponse struct {
	Account     accountResponse       `json:"account"`
	Earned      transactionResponse   `json:"earned"`
	Promotions  []transactionResponse `json:"promotions"`
	TierUpgrade *tierUpgradeResponse  `json:"tierUpgrade,omitempty"`
	Challenges  []transactionResponse `json:"challenges"`
	Replayed    bool                  `json:"replayed"`
}

func toAward(res *service.AwardResult) awardResponse {
	resp := awardResponse{
		Account:    toAccount(res.Account),
		Earned:     toTransaction(res.Earned),
		Promotions: toTransactions(res.Promotions),
		Challenges: toTransactions(res.Challenges),
		Replayed:   res.Replayed,
	}
	if u := res.TierUpgrade; u != nil {
		resp.TierUpgrade = &tierUpgradeResponse{
			FromLevel: u.FromLevel,
			ToLevel:   u.Tier.Level,
			TierID:    u.Tier.ID.String(),
			TierName:  u.Tier.Name,
			Bonuses:   toTransactions(u.Bonuses),
		}
	}
	return resp
}

type rewardResponse struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	PointsCost        int64           `json:"pointsCost"`
	CashValue         decimal.Decimal `json:"cashValue"`
	DiscountPercent   decimal.Decimal `json:"discountPercent"`
	RemainingQuantity *int64          `json:"remainingQuantity,omitempty"`
	RequiresApproval  bool            `json:"requiresApproval"`
	ValidUntil        *time.Time      `json:"validUntil,omitempty"`
}

func toReward(r domain.Reward) rewardResponse {
	resp := rewardResponse{
		ID:               r.ID.String(),
		Name:             r.Name,
		PointsCost:       r.PointsCost,
		CashValue:        r.CashValue,
		DiscountPercent:  r.DiscountPercent,
		RequiresApproval: r.RequiresApproval,
		ValidUntil:       r.ValidUntil,
	}
	if r.TotalQuantity != nil {
		left := *r.TotalQuantity - r.RedeemedCount
		resp.RemainingQuantity = &left
	}
	return resp
}

type redemptionResponse struct {
	ID            string                  `json:"id"`
	AccountID     string                  `json:"accountId"`
	RewardID      string                  `json:"rewardId"`
	TransactionID string                  `json:"transactionId"`
	Code          string                  `json:"code"`
	PointsSpent   int64                   `json:"pointsSpent"`
	Status        domain.RedemptionStatus `json:"status"`
	OrderID       *string                 `json:"orderId,omitempty"`
	Notes         string                  `json:"notes,omitempty"`
	ExpiresAt     time.Time               `json:"expiresAt"`
	ResolvedAt    *time.Time              `json:"resolvedAt,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
}

func toRedemption(r *domain.Redemption) redemptionResponse {
	return redemptionResponse{
		ID:            r.ID.String(),
		AccountID:     r.AccountID.String(),
		RewardID:      r.RewardID.String(),
		TransactionID: r.TransactionID.String(),
		Code:          r.Code,
		PointsSpent:   r.PointsSpent,
		Status:        r.Status,
		OrderID:       r.OrderID,
		Notes:         r.Notes,
		ExpiresAt:     r.ExpiresAt,
		ResolvedAt:    r.ResolvedAt,
		CreatedAt:     r.CreatedAt,
	}
}
