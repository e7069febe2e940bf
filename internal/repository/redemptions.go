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

const redemptionColumns = `id, account_id, tenant_id, reward_id, transaction_id, code, points_spent, status,
	order_id, notes, expires_at, resolved_at, created_at, updated_at`

func scanRedemption(row pgx.Row) (domain.Redemption, error) {
	var (
		r        domain.Redemption
		resolved pgtype.Timestamptz
	)
	err := row.Scan(&r.ID, &r.AccountID, &r.TenantID, &r.RewardID, &r.TransactionID, &r.Code, &r.PointsSpent,
		&r.Status, &r.OrderID, &r.Notes, &r.ExpiresAt, &resolved, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.Redemption{}, noRows(err)
	}
	r.ResolvedAt = pgTimestamptzToTimePtr(resolved)
	return r, nil
}

func collectRedemptions(rows pgx.Rows) ([]domain.Redemption, error) {
	defer rows.Close()
	var out []domain.Redemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) RedemptionCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM redemptions WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check redemption code: %w", err)
	}
	return exists, nil
}

func (q *Queries) InsertRedemption(ctx context.Context, r domain.Redemption) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO redemptions (id, account_id, tenant_id, reward_id, transaction_id, code, points_spent,
			status, order_id, notes, expires_at, resolved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.AccountID, r.TenantID, r.RewardID, r.TransactionID, r.Code, r.PointsSpent, r.Status,
		r.OrderID, r.Notes, r.ExpiresAt, timePtrToPgTimestamptz(r.ResolvedAt), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "redemptions_code_key") {
			return ErrRedemptionCodeTaken
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

func (q *Queries) GetRedemption(ctx context.Context, id uuid.UUID) (domain.Redemption, error) {
	return scanRedemption(q.db.QueryRow(ctx, `SELECT `+redemptionColumns+` FROM redemptions WHERE id = $1`, id))
}

func (q *Queries) GetRedemptionForUpdate(ctx context.Context, id uuid.UUID) (domain.Redemption, error) {
	return scanRedemption(q.db.QueryRow(ctx, `SELECT `+redemptionColumns+` FROM redemptions WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) UpdateRedemption(ctx context.Context, r domain.Redemption) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE redemptions SET status = $2, notes = $3, resolved_at = $4, updated_at = $5
		WHERE id = $1`,
		r.ID, r.Status, r.Notes, timePtrToPgTimestamptz(r.ResolvedAt), r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update redemption: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (q *Queries) CountRedemptions(ctx context.Context, accountID, rewardID uuid.UUID, status domain.RedemptionStatus) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM redemptions
		WHERE account_id = $1 AND reward_id = $2 AND status = $3`, accountID, rewardID, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return n, nil
}

func (q *Queries) ListRedemptionsByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Redemption, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+redemptionColumns+` FROM redemptions
		WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	return collectRedemptions(rows)
}

// ListStaleRedemptions returns PENDING or APPROVED redemptions whose expiry has passed.
func (q *Queries) ListStaleRedemptions(ctx context.Context, now time.Time, limit int) ([]domain.Redemption, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+redemptionColumns+` FROM redemptions
		WHERE status IN ('PENDING', 'APPROVED') AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale redemptions: %w", err)
	}
	return collectRedemptions(rows)
}
