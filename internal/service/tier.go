package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/repository"
	"github.com/shopspring/decimal"
)

// EvaluateTier returns the highest tier whose thresholds the account meets, or nil
// when it qualifies for none. Malformed tier configuration is an error.
func EvaluateTier(account *domain.Account, tiers []domain.Tier) (*domain.Tier, error) {
	if err := validateTiers(tiers); err != nil {
		return nil, err
	}
	sorted := slices.Clone(tiers)
	slices.SortFunc(sorted, func(a, b domain.Tier) int { return cmp.Compare(a.Level, b.Level) })

	var best *domain.Tier
	for i := range sorted {
		if sorted[i].QualifiedBy(account) {
			best = &sorted[i]
		}
	}
	return best, nil
}

func validateTiers(tiers []domain.Tier) error {
	seen := make(map[int]bool, len(tiers))
	for _, t := range tiers {
		id := t.ID.String()
		if t.Level <= 0 {
			return domain.ConfigError("tier", id, "level must be positive")
		}
		if seen[t.Level] {
			return domain.ConfigError("tier", id, "duplicate level "+strconv.Itoa(t.Level))
		}
		seen[t.Level] = true
		if !t.Multiplier.IsPositive() {
			return domain.ConfigError("tier", id, "multiplier must be positive")
		}
		if t.PointsRequired < 0 || t.OrdersRequired < 0 || t.SpendRequired.IsNegative() {
			return domain.ConfigError("tier", id, "negative threshold")
		}
	}
	return nil
}

// tierMultiplier is the earning multiplier of the account's current tier; 1 when
// it holds none.
func tierMultiplier(account *domain.Account, tiers []domain.Tier) decimal.Decimal {
	for _, t := range tiers {
		if account.TierID != nil && t.ID == *account.TierID {
			return t.Multiplier
		}
	}
	for _, t := range tiers {
		if account.TierLevel > 0 && t.Level == account.TierLevel {
			return t.Multiplier
		}
	}
	return decimal.NewFromInt(1)
}

// TierUpgrade describes an applied promotion of an account to a higher tier.
type TierUpgrade struct {
	FromLevel int
	Tier      domain.Tier
	Bonuses   []*domain.Transaction
}

// merge folds a later upgrade of the same unit of work into u.
func (u *TierUpgrade) merge(next *TierUpgrade) *TierUpgrade {
	if u == nil {
		return next
	}
	if next != nil {
		u.Tier = next.Tier
		u.Bonuses = append(u.Bonuses, next.Bonuses...)
	}
	return u
}

type TierService struct {
	ledger   *Ledger
	settings *Settings
	cache    *TierCache
	now      func() time.Time
}

func NewTierService(ledger *Ledger, settings *Settings, cache *TierCache) *TierService {
	return &TierService{ledger: ledger, settings: settings, cache: cache, now: time.Now}
}

// Tiers returns the tenant's tier ladder, served from the cache when fresh.
func (s *TierService) Tiers(ctx context.Context, q repository.Querier, tenantID string) ([]domain.Tier, error) {
	if tiers, ok := s.cache.Get(tenantID); ok {
		return tiers, nil
	}
	tiers, err := q.ListTiers(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	s.cache.Set(tenantID, tiers)
	return tiers, nil
}

// ApplyUpgradeIfDue moves the account up to the highest tier it qualifies for and
// pays the upgrade bonus. It never lowers a tier. account is refreshed in place.
func (s *TierService) ApplyUpgradeIfDue(ctx context.Context, q repository.Querier, account *domain.Account, tiers []domain.Tier) (*TierUpgrade, error) {
	qualified, err := EvaluateTier(account, tiers)
	if err != nil {
		return nil, err
	}
	if qualified == nil || qualified.Level <= account.TierLevel {
		return nil, nil
	}

	acc, err := q.GetAccountForUpdate(ctx, account.ID)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound, "lock account")
	}
	from := acc.TierLevel
	now := s.now()
	tierID := qualified.ID
	acc.TierID = &tierID
	acc.TierLevel = qualified.Level
	acc.TierAchievedAt = &now
	acc.TierExpiresAt = nil
	if qualified.ValidityDays > 0 {
		expires := now.AddDate(0, 0, qualified.ValidityDays)
		acc.TierExpiresAt = &expires
	}
	acc.UpdatedAt = now
	if err := q.UpdateAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("update account tier: %w", err)
	}

	upgrade := &TierUpgrade{FromLevel: from, Tier: *qualified}
	settings, err := s.settings.Resolve(ctx, q, acc.TenantID)
	if err != nil {
		return nil, err
	}
	if bonus := settings.TierUpgradeBonusPerLevel * int64(qualified.Level); bonus > 0 {
		ref := qualified.ID.String()
		txn, _, err := s.ledger.Append(ctx, q, acc.ID, bonus, domain.TxKindBonus, AppendOptions{
			ReferenceID: &ref,
			Metadata: domain.Metadata{TierUpgrade: &domain.TierUpgradeMeta{
				FromLevel: from,
				ToLevel:   qualified.Level,
				TierID:    ref,
				TierName:  qualified.Name,
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("award tier bonus: %w", err)
		}
		upgrade.Bonuses = append(upgrade.Bonuses, txn)
	}

	if *account, err = q.GetAccount(ctx, acc.ID); err != nil {
		return nil, fmt.Errorf("reload account: %w", err)
	}
	slog.Info("tier upgraded",
		"account_id", acc.ID,
		"from_level", from,
		"to_level", qualified.Level,
		"tier", qualified.Name,
	)
	return upgrade, nil
}

// Settle applies upgrades until no higher tier qualifies. An upgrade bonus is
// earned points too and can carry the account further up the ladder.
func (s *TierService) Settle(ctx context.Context, q repository.Querier, account *domain.Account, tiers []domain.Tier) (*TierUpgrade, error) {
	var out *TierUpgrade
	for {
		up, err := s.ApplyUpgradeIfDue(ctx, q, account, tiers)
		if err != nil {
			return nil, err
		}
		if up == nil {
			return out, nil
		}
		out = out.merge(up)
	}
}
