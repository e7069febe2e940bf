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

// AppendOptions carries the optional attributes of a ledger entry.
type AppendOptions struct {
	OrderID     *string
	ReferenceID *string
	ExpiresAt   *time.Time
	Metadata    domain.Metadata
	// Reversal marks a credit that gives back previously debited points. It lowers
	// PointsRedeemed instead of counting as lifetime earnings.
	Reversal bool
}

// Ledger is the only writer of transactions and of the account point counters.
type Ledger struct {
	store    repository.Store
	settings *Settings
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewLedger(store repository.Store, settings *Settings, m *metrics.Metrics) *Ledger {
	return &Ledger{store: store, settings: settings, metrics: m, now: time.Now}
}

// Append writes one entry inside the caller's unit of work. The account row is
// locked first, so the balance snapshot and counter update cannot race with other
// writers of the same account. An EARNED entry for an order that already has one
// returns the existing entry with replayed set.
func (l *Ledger) Append(ctx context.Context, q repository.Querier, accountID uuid.UUID, delta int64, kind domain.TxKind, opts AppendOptions) (*domain.Transaction, bool, error) {
	if !kind.Valid() {
		return nil, false, fmt.Errorf("append transaction: unknown kind %q", kind)
	}

	acc, err := q.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return nil, false, notFound(err, domain.ErrAccountNotFound, "lock account")
	}

	if kind == domain.TxKindEarned && opts.OrderID != nil {
		existing, err := q.GetEarnedByOrder(ctx, acc.TenantID, *opts.OrderID)
		if err == nil {
			if existing.AccountID != acc.ID {
				return nil, false, domain.ErrOrderCreditedElsewhere
			}
			return &existing, true, nil
		}
		if !errors.Is(err, repository.ErrNoRows) {
			return nil, false, fmt.Errorf("get earned transaction: %w", err)
		}
	}

	balance := acc.CurrentPoints + delta
	if balance < 0 {
		return nil, false, domain.ErrInsufficientBalance
	}
	if opts.Reversal && (delta <= 0 || delta > acc.PointsRedeemed) {
		return nil, false, fmt.Errorf("%w: reversal of %d exceeds redeemed points", domain.ErrInvalidAmount, delta)
	}

	now := l.now()
	expiresAt := opts.ExpiresAt
	if kind == domain.TxKindEarned && expiresAt == nil {
		settings, err := l.settings.Resolve(ctx, q, acc.TenantID)
		if err != nil {
			return nil, false, err
		}
		t := now.Add(settings.EarnedPointsTTL)
		expiresAt = &t
	}

	saved, err := q.InsertTransaction(ctx, domain.Transaction{
		ID:           uuid.New(),
		AccountID:    acc.ID,
		TenantID:     acc.TenantID,
		Delta:        delta,
		Kind:         kind,
		BalanceAfter: balance,
		OrderID:      opts.OrderID,
		ReferenceID:  opts.ReferenceID,
		ExpiresAt:    expiresAt,
		Metadata:     opts.Metadata,
		Status:       domain.TxStatusCompleted,
		CreatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEarned) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("insert transaction: %w", err)
	}

	acc.CurrentPoints = balance
	switch {
	case opts.Reversal:
		acc.PointsRedeemed -= delta
	case delta > 0:
		acc.LifetimePoints += delta
	default:
		acc.PointsRedeemed -= delta
	}
	acc.UpdatedAt = now
	if err := q.UpdateAccount(ctx, acc); err != nil {
		return nil, false, fmt.Errorf("update account balance: %w", err)
	}

	l.metrics.TransactionAppended(string(kind), delta)
	slog.Debug("ledger entry appended",
		"account_id", acc.ID,
		"kind", kind,
		"delta", delta,
		"balance", balance,
	)
	return &saved, false, nil
}

// AppendTransaction runs Append in its own unit of work.
func (l *Ledger) AppendTransaction(ctx context.Context, accountID uuid.UUID, delta int64, kind domain.TxKind, opts AppendOptions) (*domain.Transaction, bool, error) {
	var (
		txn      *domain.Transaction
		replayed bool
	)
	err := l.store.InTx(ctx, func(q repository.Querier) error {
		var err error
		txn, replayed, err = l.Append(ctx, q, accountID, delta, kind, opts)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return txn, replayed, nil
}

// History returns the account's entries, newest first.
func (l *Ledger) History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "get account")
	}
	if limit <= 0 {
		limit = config.DefaultHistoryLimit
	}
	limit = min(limit, config.MaxHistoryLimit)
	offset = max(offset, 0)

	txns, err := l.store.ListTransactions(ctx, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// BalanceCheck compares the stored counters of an account with its ledger.
type BalanceCheck struct {
	Stored     int64
	Ledger     int64
	Consistent bool
}

// VerifyBalance folds the account's ledger and compares it with the stored balance
// and the counter invariant.
func (l *Ledger) VerifyBalance(ctx context.Context, accountID uuid.UUID) (BalanceCheck, error) {
	var check BalanceCheck
	err := l.store.InTx(ctx, func(q repository.Querier) error {
		acc, err := q.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		sum, err := q.SumDeltas(ctx, accountID)
		if err != nil {
			return fmt.Errorf("sum deltas: %w", err)
		}
		check = BalanceCheck{
			Stored:     acc.CurrentPoints,
			Ledger:     sum,
			Consistent: sum == acc.CurrentPoints && acc.BalanceConsistent(),
		}
		return nil
	})
	if err != nil {
		return BalanceCheck{}, err
	}
	if !check.Consistent {
		slog.Error("ledger balance drift", "account_id", accountID, "stored", check.Stored, "ledger", check.Ledger)
	}
	return check, nil
}

// notFound maps a missing row to the domain sentinel and wraps anything else.
func notFound(err error, sentinel error, what string) error {
	if errors.Is(err, repository.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", what, err)
}
