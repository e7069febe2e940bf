package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/config"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/metrics"
	"github.com/set-night/loyaltyledger/internal/repository"
	"github.com/shopspring/decimal"
)

var maxOrderTotal = decimal.NewFromInt(config.MaxOrderTotal)

// AwardResult is the outcome of one order completion.
type AwardResult struct {
	Account     *domain.Account
	Earned      *domain.Transaction
	Promotions  []*domain.Transaction
	TierUpgrade *TierUpgrade
	Challenges  []*domain.Transaction
	// Replayed is set when the order had already been awarded; nothing was written.
	Replayed bool
}

// LoyaltyService is the inbound boundary of the engine: order, redemption,
// birthday and referral triggers plus the account read surface.
type LoyaltyService struct {
	store       repository.Store
	accounts    *AccountService
	ledger      *Ledger
	tiers       *TierService
	challenges  *ChallengeTracker
	redemptions *RedemptionService
	settings    *Settings
	metrics     *metrics.Metrics
	now         func() time.Time
}

type LoyaltyDeps struct {
	Store       repository.Store
	Accounts    *AccountService
	Ledger      *Ledger
	Tiers       *TierService
	Challenges  *ChallengeTracker
	Redemptions *RedemptionService
	Settings    *Settings
	Metrics     *metrics.Metrics
}

func NewLoyaltyService(d LoyaltyDeps) *LoyaltyService {
	return &LoyaltyService{
		store:       d.Store,
		accounts:    d.Accounts,
		ledger:      d.Ledger,
		tiers:       d.Tiers,
		challenges:  d.Challenges,
		redemptions: d.Redemptions,
		settings:    d.Settings,
		metrics:     d.Metrics,
		now:         time.Now,
	}
}

// OnOrderCompleted awards the points for a completed order. Delivering the same
// order again returns the original award with Replayed set.
func (s *LoyaltyService) OnOrderCompleted(ctx context.Context, order domain.Order) (*AwardResult, error) {
	if order.ID == "" || order.TenantID == "" || order.CustomerID == "" {
		return nil, fmt.Errorf("%w: order id, tenant and customer are required", domain.ErrBusinessRule)
	}
	if order.TotalAmount.IsNegative() || order.TotalAmount.GreaterThan(maxOrderTotal) {
		return nil, domain.ErrInvalidAmount
	}

	acc, err := s.accounts.GetOrCreate(ctx, order.CustomerID, order.TenantID)
	if err != nil {
		return nil, err
	}

	res, err := s.award(ctx, acc.ID, order)
	if errors.Is(err, repository.ErrDuplicateEarned) {
		// A concurrent delivery committed first; the retry takes the replay path.
		res, err = s.award(ctx, acc.ID, order)
	}
	if err != nil {
		if errors.Is(err, domain.ErrBusinessRule) || errors.Is(err, domain.ErrInvalidConfig) {
			s.metrics.OrderAward("rejected")
		}
		return nil, err
	}

	if res.Replayed {
		s.metrics.OrderAward("replayed")
		slog.Info("order award replayed", "order_id", order.ID, "account_id", acc.ID)
		return res, nil
	}
	s.metrics.OrderAward("awarded")
	slog.Info("order awarded",
		"order_id", order.ID,
		"account_id", acc.ID,
		"earned", res.Earned.Delta,
		"promotions", len(res.Promotions),
		"balance", res.Account.CurrentPoints,
	)
	return res, nil
}

func (s *LoyaltyService) award(ctx context.Context, accountID uuid.UUID, order domain.Order) (*AwardResult, error) {
	res := &AwardResult{}
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		acc, err := q.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		if !acc.Active {
			return domain.ErrAccountInactive
		}

		existing, err := q.GetEarnedByOrder(ctx, order.TenantID, order.ID)
		if err == nil {
			if existing.AccountID != acc.ID {
				return domain.ErrOrderCreditedElsewhere
			}
			res.Account = &acc
			res.Earned = &existing
			res.Replayed = true
			return nil
		}
		if !errors.Is(err, repository.ErrNoRows) {
			return fmt.Errorf("get earned transaction: %w", err)
		}

		now := s.now()
		settings, err := s.settings.Resolve(ctx, q, order.TenantID)
		if err != nil {
			return err
		}
		tiers, err := s.tiers.Tiers(ctx, q, order.TenantID)
		if err != nil {
			return err
		}
		if err := validateTiers(tiers); err != nil {
			return err
		}
		multiplier := tierMultiplier(&acc, tiers)

		acc.RecordOrder(order.TotalAmount, now)
		acc.UpdatedAt = now
		if err := q.UpdateAccount(ctx, acc); err != nil {
			return fmt.Errorf("update account counters: %w", err)
		}

		raw := order.TotalAmount.Mul(settings.PointsPerCurrencyUnit)
		basePoints, err := wholePoints(raw)
		if err != nil {
			return err
		}
		earned, err := wholePoints(raw.Mul(multiplier))
		if err != nil {
			return err
		}

		orderID := order.ID
		res.Earned, _, err = s.ledger.Append(ctx, q, acc.ID, earned, domain.TxKindEarned, AppendOptions{
			OrderID: &orderID,
			Metadata: domain.Metadata{Order: &domain.OrderMeta{
				TotalAmount:    order.TotalAmount.String(),
				BasePoints:     basePoints,
				TierMultiplier: multiplier.String(),
			}},
		})
		if err != nil {
			return err
		}

		promos, err := q.ListActivePromotions(ctx, order.TenantID, now)
		if err != nil {
			return fmt.Errorf("list promotions: %w", err)
		}
		uses, err := promotionUses(ctx, q, acc.ID, promos)
		if err != nil {
			return err
		}
		bonus, err := ComputeBonus(PromotionInput{
			Order:      order,
			Account:    &acc,
			BasePoints: basePoints,
			Promotions: promos,
			Uses:       uses,
		}, now)
		if err != nil {
			return err
		}
		for _, applied := range bonus.Applied {
			ref := applied.Promotion.ID.String()
			txn, _, err := s.ledger.Append(ctx, q, acc.ID, applied.Points, domain.TxKindPromotion, AppendOptions{
				OrderID:     &orderID,
				ReferenceID: &ref,
				Metadata: domain.Metadata{Promotion: &domain.PromotionMeta{
					PromotionID: ref,
					Name:        applied.Promotion.Name,
					Type:        string(applied.Promotion.Type),
					OrderID:     orderID,
				}},
			})
			if err != nil {
				return fmt.Errorf("award promotion: %w", err)
			}
			res.Promotions = append(res.Promotions, txn)
		}

		if acc, err = q.GetAccount(ctx, acc.ID); err != nil {
			return fmt.Errorf("reload account: %w", err)
		}
		challenges, err := q.ListActiveChallenges(ctx, order.TenantID, now)
		if err != nil {
			return fmt.Errorf("list challenges: %w", err)
		}
		// Tier and challenge bonuses feed each other; both pay at most once per
		// level or milestone, so this settles.
		for {
			up, err := s.tiers.Settle(ctx, q, &acc, tiers)
			if err != nil {
				return err
			}
			res.TierUpgrade = res.TierUpgrade.merge(up)

			paid, err := s.challenges.UpdateProgress(ctx, q, &acc, order, challenges)
			if err != nil {
				return err
			}
			if len(paid) == 0 {
				break
			}
			res.Challenges = append(res.Challenges, paid...)
		}
		res.Account = &acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// OnRedemptionRequested runs the redemption workflow.
func (s *LoyaltyService) OnRedemptionRequested(ctx context.Context, accountID, rewardID uuid.UUID, orderID *string) (*domain.Redemption, error) {
	return s.redemptions.Redeem(ctx, accountID, rewardID, RedeemOptions{OrderID: orderID})
}

// OnBirthday pays the tenant's birthday bonus once per account and year.
func (s *LoyaltyService) OnBirthday(ctx context.Context, accountID uuid.UUID, year int) (*domain.Transaction, error) {
	ref := "birthday:" + strconv.Itoa(year)
	return s.awardOnce(ctx, accountID, domain.TxKindBirthday, ref, domain.Metadata{
		Notes: map[string]string{"year": strconv.Itoa(year)},
	}, func(p domain.ProgramSettings) int64 { return p.BirthdayBonus }, nil)
}

// OnReferral pays the referrer once per referred user.
func (s *LoyaltyService) OnReferral(ctx context.Context, referrerAccountID uuid.UUID, referredUserID string) (*domain.Transaction, error) {
	if referredUserID == "" {
		return nil, fmt.Errorf("%w: referred user is required", domain.ErrBusinessRule)
	}
	ref := "referral:" + referredUserID
	return s.awardOnce(ctx, referrerAccountID, domain.TxKindReferral, ref, domain.Metadata{
		Referral: &domain.ReferralMeta{ReferredUserID: referredUserID},
	}, func(p domain.ProgramSettings) int64 { return p.ReferralBonus }, func(acc *domain.Account) error {
		if acc.UserID == referredUserID {
			return fmt.Errorf("%w: self referral", domain.ErrBusinessRule)
		}
		return nil
	})
}

func (s *LoyaltyService) awardOnce(
	ctx context.Context,
	accountID uuid.UUID,
	kind domain.TxKind,
	ref string,
	meta domain.Metadata,
	amount func(domain.ProgramSettings) int64,
	check func(*domain.Account) error,
) (*domain.Transaction, error) {
	var txn *domain.Transaction
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		acc, err := q.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		if !acc.Active {
			return domain.ErrAccountInactive
		}
		if check != nil {
			if err := check(&acc); err != nil {
				return err
			}
		}
		n, err := q.CountTransactionsByReference(ctx, acc.ID, kind, ref)
		if err != nil {
			return fmt.Errorf("count transactions: %w", err)
		}
		if n > 0 {
			return domain.ErrAlreadyAwarded
		}

		settings, err := s.settings.Resolve(ctx, q, acc.TenantID)
		if err != nil {
			return err
		}
		points := amount(settings)
		if points <= 0 {
			return fmt.Errorf("%w: %s bonus is disabled for tenant", domain.ErrBusinessRule, kind)
		}
		txn, _, err = s.ledger.Append(ctx, q, acc.ID, points, kind, AppendOptions{ReferenceID: &ref, Metadata: meta})
		if err != nil {
			return err
		}

		if acc, err = q.GetAccount(ctx, acc.ID); err != nil {
			return fmt.Errorf("reload account: %w", err)
		}
		tiers, err := s.tiers.Tiers(ctx, q, acc.TenantID)
		if err != nil {
			return err
		}
		_, err = s.tiers.Settle(ctx, q, &acc, tiers)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("bonus awarded", "account_id", accountID, "kind", kind, "reference", ref, "points", txn.Delta)
	return txn, nil
}

func (s *LoyaltyService) GetAccount(ctx context.Context, userID, tenantID string) (*domain.Account, error) {
	return s.accounts.GetByUser(ctx, userID, tenantID)
}

// AvailableRewards lists the rewards the account could redeem right now: within
// their window, in stock, tier-eligible and affordable.
func (s *LoyaltyService) AvailableRewards(ctx context.Context, accountID uuid.UUID) ([]domain.Reward, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "get account")
	}
	rewards, err := s.store.ListRewards(ctx, acc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	now := s.now()
	available := make([]domain.Reward, 0, len(rewards))
	for _, r := range rewards {
		if r.AvailableAt(now) && r.PointsCost <= acc.CurrentPoints && r.EligibleTier(acc.TierLevel) {
			available = append(available, r)
		}
	}
	return available, nil
}

func (s *LoyaltyService) History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	return s.ledger.History(ctx, accountID, limit, offset)
}

func (s *LoyaltyService) Redemptions(ctx context.Context, accountID uuid.UUID) ([]domain.Redemption, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "get account")
	}
	out, err := s.store.ListRedemptionsByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	return out, nil
}

var maxPoints = decimal.NewFromInt(math.MaxInt64)

// wholePoints floors d to a point amount, rejecting values outside int64.
func wholePoints(d decimal.Decimal) (int64, error) {
	d = d.Floor()
	if d.GreaterThan(maxPoints) {
		return 0, fmt.Errorf("%w: points out of range", domain.ErrInvalidAmount)
	}
	return d.IntPart(), nil
}
