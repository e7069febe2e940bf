package domain

import (
	"time"

	"github.com/google/uuid"
)

type TxKind string

const (
	TxKindEarned     TxKind = "EARNED"
	TxKindRedeemed   TxKind = "REDEEMED"
	TxKindBonus      TxKind = "BONUS"
	TxKindBirthday   TxKind = "BIRTHDAY"
	TxKindReferral   TxKind = "REFERRAL"
	TxKindChallenge  TxKind = "CHALLENGE"
	TxKindPromotion  TxKind = "PROMOTION"
	TxKindExpired    TxKind = "EXPIRED"
	TxKindAdjustment TxKind = "ADJUSTMENT"
)

func (k TxKind) Valid() bool {
	switch k {
	case TxKindEarned, TxKindRedeemed, TxKindBonus, TxKindBirthday, TxKindReferral,
		TxKindChallenge, TxKindPromotion, TxKindExpired, TxKindAdjustment:
		return true
	}
	return false
}

type TxStatus string

const (
	TxStatusCompleted TxStatus = "COMPLETED"
	// Reserved for asynchronous settlement.
	TxStatusPending TxStatus = "PENDING"
	TxStatusFailed  TxStatus = "FAILED"
)

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID           uuid.UUID
	Seq          int64
	AccountID    uuid.UUID
	TenantID     string
	Delta        int64
	Kind         TxKind
	BalanceAfter int64
	OrderID      *string
	ReferenceID  *string
	ExpiresAt    *time.Time
	Metadata     Metadata
	Status       TxStatus
	CreatedAt    time.Time
}
