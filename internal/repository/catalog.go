package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/shopspring/decimal"
)

func (q *Queries) GetSettingsOverride(ctx context.Context, tenantID string) (*domain.SettingsOverride, error) {
	var (
		o                                  = domain.SettingsOverride{TenantID: tenantID}
		welcome, birthday, referral, bonus pgtype.Int8
		earnedTTL, redemptionTTL           pgtype.Int4
		rate                               decimal.NullDecimal
	)
	err := q.db.QueryRow(ctx, `
		SELECT welcome_bonus, birthday_bonus, referral_bonus, points_per_currency_unit,
			tier_upgrade_bonus_per_level, earned_points_ttl_days, redemption_ttl_days
		FROM tenant_settings WHERE tenant_id = $1`, tenantID).
		Scan(&welcome, &birthday, &referral, &rate, &bonus, &earnedTTL, &redemptionTTL)
	if err != nil {
		if noRows(err) == ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant settings: %w", err)
	}
	o.WelcomeBonus = int8PtrToInt64Ptr(welcome)
	o.BirthdayBonus = int8PtrToInt64Ptr(birthday)
	o.ReferralBonus = int8PtrToInt64Ptr(referral)
	o.TierUpgradeBonusPerLevel = int8PtrToInt64Ptr(bonus)
	o.EarnedPointsTTLDays = int4PtrToIntPtr(earnedTTL)
	o.RedemptionTTLDays = int4PtrToIntPtr(redemptionTTL)
	if rate.Valid {
		o.PointsPerCurrencyUnit = &rate.Decimal
	}
	return &o, nil
}

func (q *Queries) ListTiers(ctx context.Context, tenantID string) ([]domain.Tier, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tenant_id, name, level, points_required, spend_required, orders_required,
			multiplier, validity_days, benefits
		FROM tiers WHERE tenant_id = $1 ORDER BY level`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []domain.Tier
	for rows.Next() {
		var t domain.Tier
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.Level, &t.PointsRequired, &t.SpendRequired,
			&t.OrdersRequired, &t.Multiplier, &t.ValidityDays, &t.Benefits); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// ListActivePromotions returns ACTIVE promotions whose window contains now, in
// evaluation order.
func (q *Queries) ListActivePromotions(ctx context.Context, tenantID string, now time.Time) ([]domain.Promotion, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tenant_id, name, type, status, start_date, end_date, bonus_points, multiplier,
			minimum_spend, eligible_tier_levels, max_uses_per_customer, priority
		FROM promotions
		WHERE tenant_id = $1 AND status = 'ACTIVE' AND start_date <= $2 AND end_date > $2
		ORDER BY priority DESC, start_date, id`, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var promos []domain.Promotion
	for rows.Next() {
		var p domain.Promotion
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Type, &p.Status, &p.StartDate, &p.EndDate,
			&p.BonusPoints, &p.Multiplier, &p.MinimumSpend, &p.EligibleTierLevels, &p.MaxUsesPerCustomer,
			&p.Priority); err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

func (q *Queries) ListActiveChallenges(ctx context.Context, tenantID string, now time.Time) ([]domain.Challenge, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tenant_id, name, type, target, completion_points, milestones, active, start_date, end_date
		FROM challenges
		WHERE tenant_id = $1 AND active AND start_date <= $2 AND end_date > $2
		ORDER BY start_date, id`, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []domain.Challenge
	for rows.Next() {
		var c domain.Challenge
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Type, &c.Target, &c.CompletionPoints,
			&c.Milestones, &c.Active, &c.StartDate, &c.EndDate); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

const rewardColumns = `id, tenant_id, name, points_cost, cash_value, discount_percent, active, valid_from,
	valid_until, eligible_tier_levels, total_quantity, redeemed_count, max_per_user, requires_approval`

func scanReward(row pgx.Row) (domain.Reward, error) {
	var (
		r          domain.Reward
		from, till pgtype.Timestamptz
		quantity   pgtype.Int8
	)
	err := row.Scan(&r.ID, &r.TenantID, &r.Name, &r.PointsCost, &r.CashValue, &r.DiscountPercent, &r.Active,
		&from, &till, &r.EligibleTierLevels, &quantity, &r.RedeemedCount, &r.MaxPerUser, &r.RequiresApproval)
	if err != nil {
		return domain.Reward{}, noRows(err)
	}
	r.ValidFrom = pgTimestamptzToTimePtr(from)
	r.ValidUntil = pgTimestamptzToTimePtr(till)
	r.TotalQuantity = int8PtrToInt64Ptr(quantity)
	return r, nil
}

func (q *Queries) GetReward(ctx context.Context, id uuid.UUID) (domain.Reward, error) {
	return scanReward(q.db.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, id))
}

func (q *Queries) GetRewardForUpdate(ctx context.Context, id uuid.UUID) (domain.Reward, error) {
	return scanReward(q.db.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) ListRewards(ctx context.Context, tenantID string) ([]domain.Reward, error) {
	rows, err := q.db.Query(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE tenant_id = $1 ORDER BY points_cost, name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []domain.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

func (q *Queries) IncrementRewardRedeemed(ctx context.Context, id uuid.UUID, delta int64) error {
	if _, err := q.db.Exec(ctx, `UPDATE rewards SET redeemed_count = redeemed_count + $2 WHERE id = $1`, id, delta); err != nil {
		return fmt.Errorf("update reward counters: %w", err)
	}
	return nil
}

func (q *Queries) UpsertSettingsOverride(ctx context.Context, o domain.SettingsOverride) error {
	var rate decimal.NullDecimal
	if o.PointsPerCurrencyUnit != nil {
		rate = decimal.NewNullDecimal(*o.PointsPerCurrencyUnit)
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO tenant_settings (tenant_id, welcome_bonus, birthday_bonus, referral_bonus,
			points_per_currency_unit, tier_upgrade_bonus_per_level, earned_points_ttl_days, redemption_ttl_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id) DO UPDATE SET
			welcome_bonus = EXCLUDED.welcome_bonus,
			birthday_bonus = EXCLUDED.birthday_bonus,
			referral_bonus = EXCLUDED.referral_bonus,
			points_per_currency_unit = EXCLUDED.points_per_currency_unit,
			tier_upgrade_bonus_per_level = EXCLUDED.tier_upgrade_bonus_per_level,
			earned_points_ttl_days = EXCLUDED.earned_points_ttl_days,
			redemption_ttl_days = EXCLUDED.redemption_ttl_days,
			updated_at = now()`,
		o.TenantID,
		int64PtrToInt8(o.WelcomeBonus),
		int64PtrToInt8(o.BirthdayBonus),
		int64PtrToInt8(o.ReferralBonus),
		rate,
		int64PtrToInt8(o.TierUpgradeBonusPerLevel),
		intPtrToInt4(o.EarnedPointsTTLDays),
		intPtrToInt4(o.RedemptionTTLDays),
	)
	if err != nil {
		return fmt.Errorf("upsert tenant settings: %w", err)
	}
	return nil
}

func (q *Queries) UpsertTier(ctx context.Context, t domain.Tier) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO tiers (id, tenant_id, name, level, points_required, spend_required, orders_required,
			multiplier, validity_days, benefits)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			level = EXCLUDED.level,
			points_required = EXCLUDED.points_required,
			spend_required = EXCLUDED.spend_required,
			orders_required = EXCLUDED.orders_required,
			multiplier = EXCLUDED.multiplier,
			validity_days = EXCLUDED.validity_days,
			benefits = EXCLUDED.benefits`,
		t.ID, t.TenantID, t.Name, t.Level, t.PointsRequired, t.SpendRequired, t.OrdersRequired,
		t.Multiplier, t.ValidityDays, nonNilStrings(t.Benefits))
	if err != nil {
		return fmt.Errorf("upsert tier: %w", err)
	}
	return nil
}

func (q *Queries) UpsertPromotion(ctx context.Context, p domain.Promotion) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO promotions (id, tenant_id, name, type, status, start_date, end_date, bonus_points,
			multiplier, minimum_spend, eligible_tier_levels, max_uses_per_customer, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			bonus_points = EXCLUDED.bonus_points,
			multiplier = EXCLUDED.multiplier,
			minimum_spend = EXCLUDED.minimum_spend,
			eligible_tier_levels = EXCLUDED.eligible_tier_levels,
			max_uses_per_customer = EXCLUDED.max_uses_per_customer,
			priority = EXCLUDED.priority`,
		p.ID, p.TenantID, p.Name, p.Type, p.Status, p.StartDate, p.EndDate, p.BonusPoints,
		p.Multiplier, p.MinimumSpend, nonNilInts(p.EligibleTierLevels), p.MaxUsesPerCustomer, p.Priority)
	if err != nil {
		return fmt.Errorf("upsert promotion: %w", err)
	}
	return nil
}

func (q *Queries) UpsertChallenge(ctx context.Context, c domain.Challenge) error {
	milestones := c.Milestones
	if milestones == nil {
		milestones = []domain.Milestone{}
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO challenges (id, tenant_id, name, type, target, completion_points, milestones, active,
			start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			target = EXCLUDED.target,
			completion_points = EXCLUDED.completion_points,
			milestones = EXCLUDED.milestones,
			active = EXCLUDED.active,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date`,
		c.ID, c.TenantID, c.Name, c.Type, c.Target, c.CompletionPoints, milestones, c.Active,
		c.StartDate, c.EndDate)
	if err != nil {
		return fmt.Errorf("upsert challenge: %w", err)
	}
	return nil
}

func (q *Queries) UpsertReward(ctx context.Context, r domain.Reward) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO rewards (id, tenant_id, name, points_cost, cash_value, discount_percent, active,
			valid_from, valid_until, eligible_tier_levels, total_quantity, redeemed_count, max_per_user,
			requires_approval)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			points_cost = EXCLUDED.points_cost,
			cash_value = EXCLUDED.cash_value,
			discount_percent = EXCLUDED.discount_percent,
			active = EXCLUDED.active,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			eligible_tier_levels = EXCLUDED.eligible_tier_levels,
			total_quantity = EXCLUDED.total_quantity,
			max_per_user = EXCLUDED.max_per_user,
			requires_approval = EXCLUDED.requires_approval`,
		r.ID, r.TenantID, r.Name, r.PointsCost, r.CashValue, r.DiscountPercent, r.Active,
		timePtrToPgTimestamptz(r.ValidFrom), timePtrToPgTimestamptz(r.ValidUntil), nonNilInts(r.EligibleTierLevels),
		int64PtrToInt8(r.TotalQuantity), r.RedeemedCount, r.MaxPerUser, r.RequiresApproval)
	if err != nil {
		return fmt.Errorf("upsert reward: %w", err)
	}
	return nil
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
