package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/repository"
)

// ChallengeTracker keeps per-account progress against the tenant's active
// challenges and pays milestone and completion bonuses at most once each.
type ChallengeTracker struct {
	ledger *Ledger
	now    func() time.Time
}

func NewChallengeTracker(ledger *Ledger) *ChallengeTracker {
	return &ChallengeTracker{ledger: ledger, now: time.Now}
}

// UpdateProgress evaluates every active challenge of the order's tenant against the
// account's cumulative counters. It returns the bonus entries it appended.
func (t *ChallengeTracker) UpdateProgress(ctx context.Context, q repository.Querier, account *domain.Account, order domain.Order, challenges []domain.Challenge) ([]*domain.Transaction, error) {
	now := t.now()
	var paid []*domain.Transaction
	for _, c := range challenges {
		if c.TenantID != order.TenantID || !c.ActiveAt(now) {
			continue
		}
		current, err := challengeValue(account, c)
		if err != nil {
			return nil, err
		}
		if c.Target <= 0 {
			return nil, domain.ConfigError("challenge", c.ID.String(), "target must be positive")
		}

		progress, err := t.progress(ctx, q, account, c, now)
		if err != nil {
			return nil, err
		}
		if progress.Completed() {
			continue
		}
		progress.Current = current
		progress.UpdatedAt = now

		milestones := slices.Clone(c.Milestones)
		slices.SortFunc(milestones, func(a, b domain.Milestone) int { return cmp.Compare(a.Target, b.Target) })
		for _, m := range milestones {
			if current < m.Target || progress.ReachedMilestone(m.Target) {
				continue
			}
			progress.MilestonesReached = append(progress.MilestonesReached, m.Target)
			if m.Points <= 0 {
				continue
			}
			ref := fmt.Sprintf("%s:%d", c.ID, m.Target)
			txn, _, err := t.ledger.Append(ctx, q, account.ID, m.Points, domain.TxKindChallenge, AppendOptions{
				ReferenceID: &ref,
				Metadata: domain.Metadata{Challenge: &domain.ChallengeMeta{
					ChallengeID: c.ID.String(),
					Name:        c.Name,
					Milestone:   m.Target,
				}},
			})
			if err != nil {
				return nil, fmt.Errorf("award milestone: %w", err)
			}
			paid = append(paid, txn)
		}

		if current >= c.Target {
			progress.CompletedAt = &now
			if c.CompletionPoints > 0 {
				ref := c.ID.String()
				txn, _, err := t.ledger.Append(ctx, q, account.ID, c.CompletionPoints, domain.TxKindChallenge, AppendOptions{
					ReferenceID: &ref,
					Metadata: domain.Metadata{Challenge: &domain.ChallengeMeta{
						ChallengeID: ref,
						Name:        c.Name,
					}},
				})
				if err != nil {
					return nil, fmt.Errorf("award challenge completion: %w", err)
				}
				paid = append(paid, txn)
			}
			slog.Info("challenge completed", "account_id", account.ID, "challenge_id", c.ID, "name", c.Name)
		}

		if err := q.UpdateChallengeProgress(ctx, progress); err != nil {
			return nil, fmt.Errorf("update challenge progress: %w", err)
		}
	}

	if len(paid) > 0 {
		acc, err := q.GetAccount(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("reload account: %w", err)
		}
		*account = acc
	}
	return paid, nil
}

// challengeValue selects the cumulative counter the challenge type measures.
func challengeValue(a *domain.Account, c domain.Challenge) (int64, error) {
	switch c.Type {
	case domain.ChallengeOrderCount:
		return a.TotalOrders, nil
	case domain.ChallengeSpendAmount:
		return a.TotalSpent.Floor().IntPart(), nil
	case domain.ChallengePointsEarned:
		return a.LifetimePoints, nil
	}
	return 0, domain.ConfigError("challenge", c.ID.String(), fmt.Sprintf("unknown type %q", c.Type))
}

// progress finds the account's record for c, creating it on first evaluation.
func (t *ChallengeTracker) progress(ctx context.Context, q repository.Querier, account *domain.Account, c domain.Challenge, now time.Time) (domain.ChallengeProgress, error) {
	p, err := q.GetChallengeProgress(ctx, account.ID, c.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrNoRows) {
		return domain.ChallengeProgress{}, fmt.Errorf("get challenge progress: %w", err)
	}
	if err := q.InsertChallengeProgress(ctx, domain.ChallengeProgress{
		AccountID:   account.ID,
		ChallengeID: c.ID,
		UpdatedAt:   now,
	}); err != nil {
		return domain.ChallengeProgress{}, err
	}
	p, err = q.GetChallengeProgress(ctx, account.ID, c.ID)
	if err != nil {
		return domain.ChallengeProgress{}, fmt.Errorf("get challenge progress: %w", err)
	}
	return p, nil
}
