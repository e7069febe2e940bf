package domain

// Metadata is attached to ledger transactions and redemptions. At most one of the
// typed variants is set, matching the transaction kind; Notes carries free-form
// operator text only.
type Metadata struct {
	Welcome     *WelcomeMeta      `json:"welcome,omitempty"`
	Order       *OrderMeta        `json:"order,omitempty"`
	TierUpgrade *TierUpgradeMeta  `json:"tierUpgrade,omitempty"`
	Promotion   *PromotionMeta    `json:"promotion,omitempty"`
	Challenge   *ChallengeMeta    `json:"challenge,omitempty"`
	Redemption  *RedemptionMeta   `json:"redemption,omitempty"`
	Expiry      *ExpiryMeta       `json:"expiry,omitempty"`
	Referral    *ReferralMeta     `json:"referral,omitempty"`
	Notes       map[string]string `json:"notes,omitempty"`
}

type WelcomeMeta struct {
	LoyaltyNumber string `json:"loyaltyNumber"`
}

type OrderMeta struct {
	TotalAmount    string `json:"totalAmount"`
	BasePoints     int64  `json:"basePoints"`
	TierMultiplier string `json:"tierMultiplier"`
}

type TierUpgradeMeta struct {
	FromLevel int    `json:"fromLevel"`
	ToLevel   int    `json:"toLevel"`
	TierID    string `json:"tierId"`
	TierName  string `json:"tierName"`
}

type PromotionMeta struct {
	PromotionID string `json:"promotionId"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	OrderID     string `json:"orderId,omitempty"`
}

type ChallengeMeta struct {
	ChallengeID string `json:"challengeId"`
	Name        string `json:"name"`
	Milestone   int64  `json:"milestone,omitempty"`
}

type RedemptionMeta struct {
	RedemptionID string `json:"redemptionId"`
	RewardID     string `json:"rewardId"`
	Code         string `json:"code"`
	Refund       bool   `json:"refund,omitempty"`
}

type ExpiryMeta struct {
	ExpiredTransactionID string `json:"expiredTransactionId"`
	OriginalPoints       int64  `json:"originalPoints"`
}

type ReferralMeta struct {
	ReferredUserID string `json:"referredUserId"`
}
