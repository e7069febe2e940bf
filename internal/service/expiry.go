package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/metrics"
	"github.com/set-night/loyaltyledger/internal/repository"
)

// ExpiryService retires EARNED points once their expiry passes.
type ExpiryService struct {
	store   repository.Store
	ledger  *Ledger
	metrics *metrics.Metrics
}

func NewExpiryService(store repository.Store, ledger *Ledger, m *metrics.Metrics) *ExpiryService {
	return &ExpiryService{store: store, ledger: ledger, metrics: m}
}

// ExpirePoints writes an EXPIRED entry for up to batch EARNED entries whose expiry
// is at or before now. Points are consumed oldest first, so only the part of an
// entry not yet spent is removed: the balance minus every credit that arrived
// after the entry, clamped to [0, entry delta]. Entries fully consumed still get
// a zero marker so they are not revisited.
func (s *ExpiryService) ExpirePoints(ctx context.Context, now time.Time, batch int) (int, error) {
	entries, err := s.store.ListExpiringEarned(ctx, now, batch)
	if err != nil {
		return 0, fmt.Errorf("list expiring transactions: %w", err)
	}

	var (
		processed int
		removed   int64
		errs      []error
	)
	for _, entry := range entries {
		points, err := s.expire(ctx, entry)
		if err != nil {
			slog.Error("failed to expire points", "error", err, "transaction_id", entry.ID, "account_id", entry.AccountID)
			errs = append(errs, err)
			continue
		}
		processed++
		removed += points
	}
	s.metrics.SweepProcessed("points", "expired", processed)
	s.metrics.SweepProcessed("points", "failed", len(errs))
	if processed > 0 {
		slog.Info("points expired", "entries", processed, "points", removed)
	}
	return processed, errors.Join(errs...)
}

func (s *ExpiryService) expire(ctx context.Context, entry domain.Transaction) (int64, error) {
	var portion int64
	err := s.store.InTx(ctx, func(q repository.Querier) error {
		acc, err := q.GetAccountForUpdate(ctx, entry.AccountID)
		if err != nil {
			return notFound(err, domain.ErrAccountNotFound, "lock account")
		}
		ref := entry.ID.String()
		n, err := q.CountTransactionsByReference(ctx, acc.ID, domain.TxKindExpired, ref)
		if err != nil {
			return fmt.Errorf("count expiry markers: %w", err)
		}
		if n > 0 {
			return nil
		}
		later, err := q.SumCreditsAfter(ctx, acc.ID, entry.Seq)
		if err != nil {
			return fmt.Errorf("sum later credits: %w", err)
		}
		portion = min(max(acc.CurrentPoints-later, 0), entry.Delta)

		_, _, err = s.ledger.Append(ctx, q, acc.ID, -portion, domain.TxKindExpired, AppendOptions{
			ReferenceID: &ref,
			Metadata: domain.Metadata{Expiry: &domain.ExpiryMeta{
				ExpiredTransactionID: ref,
				OriginalPoints:       entry.Delta,
			}},
		})
		return err
	})
	return portion, err
}
