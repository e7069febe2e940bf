package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/config"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/metrics"
	"github.com/set-night/loyaltyledger/internal/repository"
)

var errCodeTaken = errors.New("redemption code taken")

type RedeemOptions struct {
	OrderID *string
	Notes   string
}

type RedemptionService struct {
	store    repository.Store
	ledger   *Ledger
	settings *Settings
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewRedemptionService(store repository.Store, ledger *Ledger, settings *Settings, m *metrics.Metrics) *RedemptionService {
	return &RedemptionService{store: store, ledger: ledger, settings: settings, metrics: m, now: time.Now}
}

// Redeem exchanges points for a reward. The debit, the redemption record and the
// reward counter are written together or not at all.
func (s *RedemptionService) Redeem(ctx context.Context, accountID, rewardID uuid.UUID, opts RedeemOptions) (*domain.Redemption, error) {
	for range config.RedemptionCodeAttempts {
		r, err := s.redeemOnce(ctx, accountID, rewardID, opts)
		if errors.Is(err, errCodeTaken) || errors.Is(err, repository.ErrRedemptionCodeTaken) {
			s.metrics.CodeCollision("redemption_code")
			continue
		}
		if err != nil {
			return nil, err
		}
		s.metrics.RedemptionStatus(string(r.Status))
		slog.Info("reward redeemed",
			"account_id", accountID,
			"reward_id", rewardID,
			"redemption_id", r.ID,
			"points", r.PointsSpent,
			"status", r.Status,
		)
		return r, nil
	}
	return nil, domain.ErrCodeGeneration
}

func (s *RedemptionService) redeemOnce(ctx context.Context, accountID, rewardID uuid.UUID, opts RedeemOptions) (*domain.Redemption, error) {
	var out domain.Redemption
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		// Lock order: account, then reward.
		acc, err := q.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		if !acc.Active {
			return domain.ErrAccountInactive
		}
		reward, err := q.GetRewardForUpdate(ctx, rewardID)
		if err != nil {
			return notFound(err, domain.ErrRewardNotFound, "lock reward")
		}
		if reward.TenantID != acc.TenantID {
			return domain.ErrRewardNotFound
		}

		now := s.now()
		if !reward.AvailableAt(now) {
			return domain.ErrRewardUnavailable
		}
		if acc.CurrentPoints < reward.PointsCost {
			return domain.ErrInsufficientBalance
		}
		if !reward.EligibleTier(acc.TierLevel) {
			return domain.ErrTierNotEligible
		}
		if reward.MaxPerUser > 0 {
			n, err := q.CountRedemptions(ctx, acc.ID, reward.ID, domain.RedemptionRedeemed)
			if err != nil {
				return fmt.Errorf("count redemptions: %w", err)
			}
			if n >= int64(reward.MaxPerUser) {
				return domain.ErrRedemptionCapExceeded
			}
		}

		code, taken, err := candidateCode(ctx, generateRedemptionCode, q.RedemptionCodeExists)
		if err != nil {
			return fmt.Errorf("generate redemption code: %w", err)
		}
		if taken {
			return errCodeTaken
		}

		settings, err := s.settings.Resolve(ctx, q, acc.TenantID)
		if err != nil {
			return err
		}

		id := uuid.New()
		ref := id.String()
		txn, _, err := s.ledger.Append(ctx, q, acc.ID, -reward.PointsCost, domain.TxKindRedeemed, AppendOptions{
			OrderID:     opts.OrderID,
			ReferenceID: &ref,
			Metadata: domain.Metadata{Redemption: &domain.RedemptionMeta{
				RedemptionID: ref,
				RewardID:     reward.ID.String(),
				Code:         code,
			}},
		})
		if err != nil {
			return err
		}

		status := domain.RedemptionApproved
		if reward.RequiresApproval {
			status = domain.RedemptionPending
		}
		out = domain.Redemption{
			ID:            id,
			AccountID:     acc.ID,
			TenantID:      acc.TenantID,
			RewardID:      reward.ID,
			TransactionID: txn.ID,
			Code:          code,
			PointsSpent:   reward.PointsCost,
			Status:        status,
			OrderID:       opts.OrderID,
			Notes:         opts.Notes,
			ExpiresAt:     now.Add(settings.RedemptionTTL),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := q.InsertRedemption(ctx, out); err != nil {
			if errors.Is(err, repository.ErrRedemptionCodeTaken) {
				return err
			}
			return fmt.Errorf("insert redemption: %w", err)
		}
		if err := q.IncrementRewardRedeemed(ctx, reward.ID, 1); err != nil {
			return fmt.Errorf("increment reward counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Approve releases a PENDING redemption.
func (s *RedemptionService) Approve(ctx context.Context, id uuid.UUID) (*domain.Redemption, error) {
	return s.transition(ctx, id, domain.RedemptionApproved, "")
}

// Fulfill marks an APPROVED redemption as handed over.
func (s *RedemptionService) Fulfill(ctx context.Context, id uuid.UUID) (*domain.Redemption, error) {
	return s.transition(ctx, id, domain.RedemptionRedeemed, "")
}

// Deny rejects a PENDING redemption and refunds its points.
func (s *RedemptionService) Deny(ctx context.Context, id uuid.UUID, reason string) (*domain.Redemption, error) {
	return s.transition(ctx, id, domain.RedemptionDenied, reason)
}

// ExpireStale expires up to batch PENDING or APPROVED redemptions whose expiry is
// at or before now, refunding each. It returns how many were expired.
func (s *RedemptionService) ExpireStale(ctx context.Context, now time.Time, batch int) (int, error) {
	stale, err := s.store.ListStaleRedemptions(ctx, now, batch)
	if err != nil {
		return 0, fmt.Errorf("list stale redemptions: %w", err)
	}
	var (
		expired int
		errs    []error
	)
	for _, r := range stale {
		_, err := s.transition(ctx, r.ID, domain.RedemptionExpired, "")
		switch {
		case errors.Is(err, domain.ErrInvalidStatusTransition):
			// Resolved between listing and locking.
		case err != nil:
			slog.Error("failed to expire redemption", "error", err, "redemption_id", r.ID)
			errs = append(errs, err)
		default:
			expired++
		}
	}
	s.metrics.SweepProcessed("redemptions", "expired", expired)
	s.metrics.SweepProcessed("redemptions", "failed", len(errs))
	return expired, errors.Join(errs...)
}

func (s *RedemptionService) transition(ctx context.Context, id uuid.UUID, to domain.RedemptionStatus, reason string) (*domain.Redemption, error) {
	var out domain.Redemption
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		peek, err := q.GetRedemption(ctx, id)
		if err != nil {
			return notFound(err, domain.ErrRedemptionNotFound, "get redemption")
		}
		// Same lock order as Redeem: account first.
		if _, err := q.GetAccountForUpdate(ctx, peek.AccountID); err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		r, err := q.GetRedemptionForUpdate(ctx, id)
		if err != nil {
			return notFound(err, domain.ErrRedemptionNotFound, "lock redemption")
		}
		if !r.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidStatusTransition, r.Status, to)
		}

		now := s.now()
		refund := r.Status.Refundable() && (to == domain.RedemptionDenied || to == domain.RedemptionExpired)
		r.Status = to
		r.UpdatedAt = now
		if reason != "" {
			r.Notes = reason
		}
		if to != domain.RedemptionApproved {
			r.ResolvedAt = &now
		}
		if err := q.UpdateRedemption(ctx, r); err != nil {
			return fmt.Errorf("update redemption: %w", err)
		}

		if refund {
			ref := r.ID.String()
			_, _, err := s.ledger.Append(ctx, q, r.AccountID, r.PointsSpent, domain.TxKindAdjustment, AppendOptions{
				ReferenceID: &ref,
				Reversal:    true,
				Metadata: domain.Metadata{Redemption: &domain.RedemptionMeta{
					RedemptionID: ref,
					RewardID:     r.RewardID.String(),
					Code:         r.Code,
					Refund:       true,
				}},
			})
			if err != nil {
				return fmt.Errorf("refund redemption: %w", err)
			}
			if err := q.IncrementRewardRedeemed(ctx, r.RewardID, -1); err != nil {
				return fmt.Errorf("decrement reward counter: %w", err)
			}
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RedemptionStatus(string(to))
	return &out, nil
}
