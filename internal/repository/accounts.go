package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/set-night/loyaltyledger/internal/domain"
)

const accountColumns = `id, loyalty_number, user_id, tenant_id, current_points, lifetime_points,
	points_redeemed, total_spent, year_spent, year_started_at, total_orders, tier_id, tier_level,
	tier_achieved_at, tier_expires_at, active, notifications, created_at, updated_at`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a                 domain.Account
		achieved, expires pgtype.Timestamptz
	)
	err := row.Scan(
		&a.ID,
		&a.LoyaltyNumber,
		&a.UserID,
		&a.TenantID,
		&a.CurrentPoints,
		&a.LifetimePoints,
		&a.PointsRedeemed,
		&a.TotalSpent,
		&a.YearSpent,
		&a.YearStartedAt,
		&a.TotalOrders,
		&a.TierID,
		&a.TierLevel,
		&achieved,
		&expires,
		&a.Active,
		&a.Notifications,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, noRows(err)
	}
	a.TierAchievedAt = pgTimestamptzToTimePtr(achieved)
	a.TierExpiresAt = pgTimestamptzToTimePtr(expires)
	return a, nil
}

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (q *Queries) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) GetAccountByUser(ctx context.Context, tenantID, userID string) (domain.Account, error) {
	return scanAccount(q.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID))
}

func (q *Queries) LoyaltyNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE loyalty_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check loyalty number: %w", err)
	}
	return exists, nil
}

func (q *Queries) InsertAccount(ctx context.Context, a domain.Account) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO accounts (id, loyalty_number, user_id, tenant_id, current_points, lifetime_points,
			points_redeemed, total_spent, year_spent, year_started_at, total_orders, tier_id, tier_level,
			tier_achieved_at, tier_expires_at, active, notifications, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
		ON CONFLICT ON CONSTRAINT accounts_tenant_user_key DO NOTHING`,
		a.ID,
		a.LoyaltyNumber,
		a.UserID,
		a.TenantID,
		a.CurrentPoints,
		a.LifetimePoints,
		a.PointsRedeemed,
		a.TotalSpent,
		a.YearSpent,
		a.YearStartedAt,
		a.TotalOrders,
		a.TierID,
		a.TierLevel,
		timePtrToPgTimestamptz(a.TierAchievedAt),
		timePtrToPgTimestamptz(a.TierExpiresAt),
		a.Active,
		a.Notifications,
		a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "accounts_loyalty_number_key") {
			return false, ErrLoyaltyNumberTaken
		}
		return false, fmt.Errorf("insert account: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) UpdateAccount(ctx context.Context, a domain.Account) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE accounts SET
			current_points = $2,
			lifetime_points = $3,
			points_redeemed = $4,
			total_spent = $5,
			year_spent = $6,
			year_started_at = $7,
			total_orders = $8,
			tier_id = $9,
			tier_level = $10,
			tier_achieved_at = $11,
			tier_expires_at = $12,
			active = $13,
			notifications = $14,
			updated_at = $15
		WHERE id = $1`,
		a.ID,
		a.CurrentPoints,
		a.LifetimePoints,
		a.PointsRedeemed,
		a.TotalSpent,
		a.YearSpent,
		a.YearStartedAt,
		a.TotalOrders,
		a.TierID,
		a.TierLevel,
		timePtrToPgTimestamptz(a.TierAchievedAt),
		timePtrToPgTimestamptz(a.TierExpiresAt),
		a.Active,
		a.Notifications,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}
