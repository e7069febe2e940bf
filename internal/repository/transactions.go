package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/set-night/loyaltyledger/internal/domain"
)

const transactionColumns = `id, seq, account_id, tenant_id, delta, kind, balance_after, order_id,
	reference_id, expires_at, metadata, status, created_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		t       domain.Transaction
		expires pgtype.Timestamptz
	)
	err := row.Scan(
		&t.ID,
		&t.Seq,
		&t.AccountID,
		&t.TenantID,
		&t.Delta,
		&t.Kind,
		&t.BalanceAfter,
		&t.OrderID,
		&t.ReferenceID,
		&expires,
		&t.Metadata,
		&t.Status,
		&t.CreatedAt,
	)
	if err != nil {
		return domain.Transaction{}, noRows(err)
	}
	t.ExpiresAt = pgTimestamptzToTimePtr(expires)
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTransaction writes the row and returns it with its storage sequence.
func (q *Queries) InsertTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO transactions (id, account_id, tenant_id, delta, kind, balance_after, order_id,
			reference_id, expires_at, metadata, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+transactionColumns,
		t.ID,
		t.AccountID,
		t.TenantID,
		t.Delta,
		t.Kind,
		t.BalanceAfter,
		t.OrderID,
		t.ReferenceID,
		timePtrToPgTimestamptz(t.ExpiresAt),
		t.Metadata,
		t.Status,
		t.CreatedAt,
	)
	saved, err := scanTransaction(row)
	if err != nil {
		if isUniqueViolation(err, "transactions_earned_order_key") {
			return domain.Transaction{}, ErrDuplicateEarned
		}
		return domain.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return saved, nil
}

func (q *Queries) GetEarnedByOrder(ctx context.Context, tenantID, orderID string) (domain.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE tenant_id = $1 AND order_id = $2 AND kind = 'EARNED'`, tenantID, orderID))
}

func (q *Queries) GetTransactionByReference(ctx context.Context, accountID uuid.UUID, kind domain.TxKind, referenceID string) (domain.Transaction, error) {
	return scanTransaction(q.db.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = $1 AND kind = $2 AND reference_id = $3
		ORDER BY seq LIMIT 1`, accountID, kind, referenceID))
}

func (q *Queries) CountTransactionsByReference(ctx context.Context, accountID uuid.UUID, kind domain.TxKind, referenceID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM transactions
		WHERE account_id = $1 AND kind = $2 AND reference_id = $3`, accountID, kind, referenceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (q *Queries) ListTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE account_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (q *Queries) SumDeltas(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var sum int64
	err := q.db.QueryRow(ctx, `SELECT COALESCE(sum(delta), 0)::bigint FROM transactions WHERE account_id = $1`, accountID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum deltas: %w", err)
	}
	return sum, nil
}

func (q *Queries) SumCreditsAfter(ctx context.Context, accountID uuid.UUID, seq int64) (int64, error) {
	var sum int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(sum(delta), 0)::bigint FROM transactions
		WHERE account_id = $1 AND seq > $2 AND delta > 0`, accountID, seq).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum credits: %w", err)
	}
	return sum, nil
}

// ListExpiringEarned returns EARNED rows past expiry that no EXPIRED row references yet.
func (q *Queries) ListExpiringEarned(ctx context.Context, before time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE t.kind = 'EARNED' AND t.expires_at IS NOT NULL AND t.expires_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM transactions e
			WHERE e.account_id = t.account_id AND e.kind = 'EXPIRED' AND e.reference_id = t.id::text)
		ORDER BY t.expires_at, t.seq
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list expiring transactions: %w", err)
	}
	return collectTransactions(rows)
}
