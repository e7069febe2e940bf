package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/repository"
	"github.com/shopspring/decimal"
)

type PromotionInput struct {
	Order      domain.Order
	Account    *domain.Account
	BasePoints int64
	// Promotions are candidates in evaluation order.
	Promotions []domain.Promotion
	// Uses counts the account's prior PROMOTION entries per promotion id.
	Uses map[uuid.UUID]int64
}

type AppliedPromotion struct {
	Promotion domain.Promotion
	Points    int64
}

type PromotionResult struct {
	BonusPoints int64
	Applied     []AppliedPromotion
}

// ComputeBonus sums the bonus of every eligible promotion. Promotions stack; there
// is no early exit on the first match.
func ComputeBonus(in PromotionInput, now time.Time) (PromotionResult, error) {
	var res PromotionResult
	for _, p := range in.Promotions {
		if p.TenantID != in.Order.TenantID || !p.ActiveAt(now) {
			continue
		}
		if !p.EligibleTier(in.Account.TierLevel) {
			continue
		}
		if in.Order.TotalAmount.LessThan(p.MinimumSpend) {
			continue
		}
		if p.MaxUsesPerCustomer > 0 && in.Uses[p.ID] >= int64(p.MaxUsesPerCustomer) {
			continue
		}

		var points int64
		switch p.Type {
		case domain.PromotionBonusPoints:
			if p.BonusPoints < 0 {
				return PromotionResult{}, domain.ConfigError("promotion", p.ID.String(), "negative bonus points")
			}
			points = p.BonusPoints
		case domain.PromotionPointsMultiplier:
			if p.Multiplier.LessThan(decimal.NewFromInt(1)) {
				return PromotionResult{}, domain.ConfigError("promotion", p.ID.String(), "multiplier below 1")
			}
			points = decimal.NewFromInt(in.BasePoints).
				Mul(p.Multiplier.Sub(decimal.NewFromInt(1))).
				Floor().
				IntPart()
		default:
			return PromotionResult{}, domain.ConfigError("promotion", p.ID.String(), fmt.Sprintf("unknown type %q", p.Type))
		}
		if points == 0 {
			continue
		}
		res.BonusPoints += points
		res.Applied = append(res.Applied, AppliedPromotion{Promotion: p, Points: points})
	}
	return res, nil
}

// promotionUses counts prior uses of the capped candidates.
func promotionUses(ctx context.Context, q repository.Querier, accountID uuid.UUID, promos []domain.Promotion) (map[uuid.UUID]int64, error) {
	uses := make(map[uuid.UUID]int64)
	for _, p := range promos {
		if p.MaxUsesPerCustomer <= 0 {
			continue
		}
		n, err := q.CountTransactionsByReference(ctx, accountID, domain.TxKindPromotion, p.ID.String())
		if err != nil {
			return nil, fmt.Errorf("count promotion uses: %w", err)
		}
		uses[p.ID] = n
	}
	return uses, nil
}
