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
	"github.com/shopspring/decimal"
)

const welcomeReference = "welcome"

type AccountService struct {
	store    repository.Store
	ledger   *Ledger
	settings *Settings
	tiers    *TierService
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewAccountService(store repository.Store, ledger *Ledger, settings *Settings, tiers *TierService, m *metrics.Metrics) *AccountService {
	return &AccountService{store: store, ledger: ledger, settings: settings, tiers: tiers, metrics: m, now: time.Now}
}

// GetOrCreate returns the account of userID at tenantID, opening it with the
// tenant's welcome bonus on first contact. Concurrent first calls converge on a
// single account.
func (s *AccountService) GetOrCreate(ctx context.Context, userID, tenantID string) (*domain.Account, error) {
	if userID == "" || tenantID == "" {
		return nil, fmt.Errorf("%w: user and tenant are required", domain.ErrBusinessRule)
	}

	acc, err := s.store.GetAccountByUser(ctx, tenantID, userID)
	if err == nil {
		return &acc, nil
	}
	if !errors.Is(err, repository.ErrNoRows) {
		return nil, fmt.Errorf("get account: %w", err)
	}

	for range config.LoyaltyNumberAttempts {
		number, taken, err := candidateCode(ctx, generateLoyaltyNumber, s.store.LoyaltyNumberExists)
		if err != nil {
			return nil, fmt.Errorf("generate loyalty number: %w", err)
		}
		if taken {
			s.metrics.CodeCollision("loyalty_number")
			continue
		}

		acc, err := s.open(ctx, userID, tenantID, number)
		if errors.Is(err, repository.ErrLoyaltyNumberTaken) {
			s.metrics.CodeCollision("loyalty_number")
			continue
		}
		if err != nil {
			return nil, err
		}
		return acc, nil
	}
	return nil, domain.ErrCodeGeneration
}

func (s *AccountService) open(ctx context.Context, userID, tenantID, number string) (*domain.Account, error) {
	now := s.now()
	acc := domain.Account{
		ID:            uuid.New(),
		LoyaltyNumber: number,
		UserID:        userID,
		TenantID:      tenantID,
		TotalSpent:    decimal.Zero,
		YearSpent:     decimal.Zero,
		YearStartedAt: now,
		Active:        true,
		Notifications: domain.DefaultNotificationPreferences(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var out domain.Account
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		created, err := q.InsertAccount(ctx, acc)
		if err != nil {
			return err
		}
		if !created {
			// Lost the creation race; the winner's row is committed.
			out, err = q.GetAccountByUser(ctx, tenantID, userID)
			if err != nil {
				return fmt.Errorf("reread account: %w", err)
			}
			return nil
		}

		settings, err := s.settings.Resolve(ctx, q, tenantID)
		if err != nil {
			return err
		}
		if settings.WelcomeBonus > 0 {
			ref := welcomeReference
			_, _, err := s.ledger.Append(ctx, q, acc.ID, settings.WelcomeBonus, domain.TxKindBonus, AppendOptions{
				ReferenceID: &ref,
				Metadata:    domain.Metadata{Welcome: &domain.WelcomeMeta{LoyaltyNumber: number}},
			})
			if err != nil {
				return fmt.Errorf("award welcome bonus: %w", err)
			}
		}

		out, err = q.GetAccount(ctx, acc.ID)
		if err != nil {
			return fmt.Errorf("get account: %w", err)
		}
		if settings.WelcomeBonus > 0 {
			tiers, err := s.tiers.Tiers(ctx, q, tenantID)
			if err != nil {
				return err
			}
			if _, err := s.tiers.Settle(ctx, q, &out, tiers); err != nil {
				return err
			}
		}
		slog.Info("loyalty account opened",
			"account_id", acc.ID,
			"tenant_id", tenantID,
			"user_id", userID,
			"loyalty_number", number,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Get returns the account with its challenge progress.
func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	acc, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "get account")
	}
	return s.withProgress(ctx, acc)
}

func (s *AccountService) GetByUser(ctx context.Context, userID, tenantID string) (*domain.Account, error) {
	acc, err := s.store.GetAccountByUser(ctx, tenantID, userID)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "get account")
	}
	return s.withProgress(ctx, acc)
}

func (s *AccountService) withProgress(ctx context.Context, acc domain.Account) (*domain.Account, error) {
	progress, err := s.store.ListChallengeProgress(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("list challenge progress: %w", err)
	}
	acc.Progress = progress
	return &acc, nil
}

func (s *AccountService) ListProgress(ctx context.Context, accountID uuid.UUID) ([]domain.ChallengeProgress, error) {
	acc, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return acc.Progress, nil
}

// Deactivate soft-closes the account. Balances are kept; new awards are refused.
func (s *AccountService) Deactivate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.update(ctx, id, func(a *domain.Account) { a.Active = false })
}

func (s *AccountService) Reactivate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.update(ctx, id, func(a *domain.Account) { a.Active = true })
}

func (s *AccountService) UpdateNotificationPreferences(ctx context.Context, id uuid.UUID, prefs domain.NotificationPreferences) (*domain.Account, error) {
	return s.update(ctx, id, func(a *domain.Account) { a.Notifications = prefs })
}

func (s *AccountService) update(ctx context.Context, id uuid.UUID, mutate func(*domain.Account)) (*domain.Account, error) {
	var out domain.Account
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		acc, err := q.GetAccountForUpdate(ctx, id)
		if err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		mutate(&acc)
		acc.UpdatedAt = s.now()
		if err := q.UpdateAccount(ctx, acc); err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		out = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
