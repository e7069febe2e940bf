// Package seed loads a tenant's loyalty program (settings, tiers, promotions,
// challenges, rewards) from a YAML file and upserts it. Entities without an
// explicit id get one derived from tenant, kind and name, so re-seeding a file
// updates rows in place.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/repository"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Program struct {
	Tenant     string           `yaml:"tenant"`
	Settings   *SettingsEntry   `yaml:"settings,omitempty"`
	Tiers      []TierEntry      `yaml:"tiers"`
	Promotions []PromotionEntry `yaml:"promotions"`
	Challenges []ChallengeEntry `yaml:"challenges"`
	Rewards    []RewardEntry    `yaml:"rewards"`
}

type SettingsEntry struct {
	WelcomeBonus             *int64  `yaml:"welcome_bonus,omitempty"`
	BirthdayBonus            *int64  `yaml:"birthday_bonus,omitempty"`
	ReferralBonus            *int64  `yaml:"referral_bonus,omitempty"`
	PointsPerCurrencyUnit    *string `yaml:"points_per_currency_unit,omitempty"`
	TierUpgradeBonusPerLevel *int64  `yaml:"tier_upgrade_bonus_per_level,omitempty"`
	EarnedPointsTTLDays      *int    `yaml:"earned_points_ttl_days,omitempty"`
	RedemptionTTLDays        *int    `yaml:"redemption_ttl_days,omitempty"`
}

type TierEntry struct {
	ID             string   `yaml:"id,omitempty"`
	Name           string   `yaml:"name"`
	Level          int      `yaml:"level"`
	PointsRequired int64    `yaml:"points_required"`
	SpendRequired  string   `yaml:"spend_required"`
	OrdersRequired int64    `yaml:"orders_required"`
	Multiplier     string   `yaml:"multiplier"`
	ValidityDays   int      `yaml:"validity_days"`
	Benefits       []string `yaml:"benefits,omitempty"`
}

type PromotionEntry struct {
	ID                 string    `yaml:"id,omitempty"`
	Name               string    `yaml:"name"`
	Type               string    `yaml:"type"`
	Status             string    `yaml:"status"`
	StartDate          time.Time `yaml:"start_date"`
	EndDate            time.Time `yaml:"end_date"`
	BonusPoints        int64     `yaml:"bonus_points,omitempty"`
	Multiplier         string    `yaml:"multiplier,omitempty"`
	MinimumSpend       string    `yaml:"minimum_spend,omitempty"`
	EligibleTierLevels []int     `yaml:"eligible_tier_levels,omitempty"`
	MaxUsesPerCustomer int       `yaml:"max_uses_per_customer,omitempty"`
	Priority           int       `yaml:"priority,omitempty"`
}

type ChallengeEntry struct {
	ID               string             `yaml:"id,omitempty"`
	Name             string             `yaml:"name"`
	Type             string             `yaml:"type"`
	Target           int64              `yaml:"target"`
	CompletionPoints int64              `yaml:"completion_points"`
	Milestones       []domain.Milestone `yaml:"milestones,omitempty"`
	Active           *bool              `yaml:"active,omitempty"`
	StartDate        time.Time          `yaml:"start_date"`
	EndDate          time.Time          `yaml:"end_date"`
}

type RewardEntry struct {
	ID                 string     `yaml:"id,omitempty"`
	Name               string     `yaml:"name"`
	PointsCost         int64      `yaml:"points_cost"`
	CashValue          string     `yaml:"cash_value,omitempty"`
	DiscountPercent    string     `yaml:"discount_percent,omitempty"`
	Active             *bool      `yaml:"active,omitempty"`
	ValidFrom          *time.Time `yaml:"valid_from,omitempty"`
	ValidUntil         *time.Time `yaml:"valid_until,omitempty"`
	EligibleTierLevels []int      `yaml:"eligible_tier_levels,omitempty"`
	TotalQuantity      *int64     `yaml:"total_quantity,omitempty"`
	MaxPerUser         int        `yaml:"max_per_user,omitempty"`
	RequiresApproval   bool       `yaml:"requires_approval,omitempty"`
}

// LoadFile reads and parses a program file.
func LoadFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a program, rejecting unknown keys.
func Parse(r io.Reader) (*Program, error) {
	var p Program
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if p.Tenant == "" {
		return nil, fmt.Errorf("invalid program: tenant is required")
	}
	return &p, nil
}

// Summary counts the entities written by Apply.
type Summary struct {
	Settings   bool
	Tiers      int
	Promotions int
	Challenges int
	Rewards    int
}

// Apply converts and upserts every entity of the program. Conversion errors are
// reported before anything is written.
func Apply(ctx context.Context, s repository.Seeder, p *Program) (Summary, error) {
	c, err := p.convert()
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	if c.settings != nil {
		if err := s.UpsertSettingsOverride(ctx, *c.settings); err != nil {
			return sum, err
		}
		sum.Settings = true
	}
	for _, t := range c.tiers {
		if err := s.UpsertTier(ctx, t); err != nil {
			return sum, fmt.Errorf("tier %q: %w", t.Name, err)
		}
		sum.Tiers++
	}
	for _, pr := range c.promotions {
		if err := s.UpsertPromotion(ctx, pr); err != nil {
			return sum, fmt.Errorf("promotion %q: %w", pr.Name, err)
		}
		sum.Promotions++
	}
	for _, ch := range c.challenges {
		if err := s.UpsertChallenge(ctx, ch); err != nil {
			return sum, fmt.Errorf("challenge %q: %w", ch.Name, err)
		}
		sum.Challenges++
	}
	for _, r := range c.rewards {
		if err := s.UpsertReward(ctx, r); err != nil {
			return sum, fmt.Errorf("reward %q: %w", r.Name, err)
		}
		sum.Rewards++
	}
	return sum, nil
}

type converted struct {
	settings   *domain.SettingsOverride
	tiers      []domain.Tier
	promotions []domain.Promotion
	challenges []domain.Challenge
	rewards    []domain.Reward
}

func (p *Program) convert() (*converted, error) {
	c := &converted{}
	if st := p.Settings; st != nil {
		o := domain.SettingsOverride{
			TenantID:                 p.Tenant,
			WelcomeBonus:             st.WelcomeBonus,
			BirthdayBonus:            st.BirthdayBonus,
			ReferralBonus:            st.ReferralBonus,
			TierUpgradeBonusPerLevel: st.TierUpgradeBonusPerLevel,
			EarnedPointsTTLDays:      st.EarnedPointsTTLDays,
			RedemptionTTLDays:        st.RedemptionTTLDays,
		}
		if st.PointsPerCurrencyUnit != nil {
			rate, err := decimal.NewFromString(*st.PointsPerCurrencyUnit)
			if err != nil {
				return nil, fmt.Errorf("settings: points_per_currency_unit: %w", err)
			}
			o.PointsPerCurrencyUnit = &rate
		}
		c.settings = &o
	}

	for _, t := range p.Tiers {
		id, err := p.entityID("tier", t.ID, t.Name)
		if err != nil {
			return nil, err
		}
		spend, err := decimalOr(t.SpendRequired, decimal.Zero)
		if err != nil {
			return nil, fmt.Errorf("tier %q: spend_required: %w", t.Name, err)
		}
		mult, err := decimalOr(t.Multiplier, decimal.NewFromInt(1))
		if err != nil {
			return nil, fmt.Errorf("tier %q: multiplier: %w", t.Name, err)
		}
		c.tiers = append(c.tiers, domain.Tier{
			ID:             id,
			TenantID:       p.Tenant,
			Name:           t.Name,
			Level:          t.Level,
			PointsRequired: t.PointsRequired,
			SpendRequired:  spend,
			OrdersRequired: t.OrdersRequired,
			Multiplier:     mult,
			ValidityDays:   t.ValidityDays,
			Benefits:       t.Benefits,
		})
	}

	for _, pr := range p.Promotions {
		id, err := p.entityID("promotion", pr.ID, pr.Name)
		if err != nil {
			return nil, err
		}
		mult, err := decimalOr(pr.Multiplier, decimal.NewFromInt(1))
		if err != nil {
			return nil, fmt.Errorf("promotion %q: multiplier: %w", pr.Name, err)
		}
		minSpend, err := decimalOr(pr.MinimumSpend, decimal.Zero)
		if err != nil {
			return nil, fmt.Errorf("promotion %q: minimum_spend: %w", pr.Name, err)
		}
		status := domain.PromotionStatus(pr.Status)
		if status == "" {
			status = domain.PromotionActive
		}
		c.promotions = append(c.promotions, domain.Promotion{
			ID:                 id,
			TenantID:           p.Tenant,
			Name:               pr.Name,
			Type:               domain.PromotionType(pr.Type),
			Status:             status,
			StartDate:          pr.StartDate,
			EndDate:            pr.EndDate,
			BonusPoints:        pr.BonusPoints,
			Multiplier:         mult,
			MinimumSpend:       minSpend,
			EligibleTierLevels: pr.EligibleTierLevels,
			MaxUsesPerCustomer: pr.MaxUsesPerCustomer,
			Priority:           pr.Priority,
		})
	}

	for _, ch := range p.Challenges {
		id, err := p.entityID("challenge", ch.ID, ch.Name)
		if err != nil {
			return nil, err
		}
		c.challenges = append(c.challenges, domain.Challenge{
			ID:               id,
			TenantID:         p.Tenant,
			Name:             ch.Name,
			Type:             domain.ChallengeType(ch.Type),
			Target:           ch.Target,
			CompletionPoints: ch.CompletionPoints,
			Milestones:       ch.Milestones,
			Active:           ch.Active == nil || *ch.Active,
			StartDate:        ch.StartDate,
			EndDate:          ch.EndDate,
		})
	}

	for _, r := range p.Rewards {
		id, err := p.entityID("reward", r.ID, r.Name)
		if err != nil {
			return nil, err
		}
		cash, err := decimalOr(r.CashValue, decimal.Zero)
		if err != nil {
			return nil, fmt.Errorf("reward %q: cash_value: %w", r.Name, err)
		}
		discount, err := decimalOr(r.DiscountPercent, decimal.Zero)
		if err != nil {
			return nil, fmt.Errorf("reward %q: discount_percent: %w", r.Name, err)
		}
		c.rewards = append(c.rewards, domain.Reward{
			ID:                 id,
			TenantID:           p.Tenant,
			Name:               r.Name,
			PointsCost:         r.PointsCost,
			CashValue:          cash,
			DiscountPercent:    discount,
			Active:             r.Active == nil || *r.Active,
			ValidFrom:          r.ValidFrom,
			ValidUntil:         r.ValidUntil,
			EligibleTierLevels: r.EligibleTierLevels,
			TotalQuantity:      r.TotalQuantity,
			MaxPerUser:         r.MaxPerUser,
			RequiresApproval:   r.RequiresApproval,
		})
	}
	return c, nil
}

// entityID parses an explicit id or derives a stable one.
func (p *Program) entityID(kind, explicit, name string) (uuid.UUID, error) {
	if explicit != "" {
		id, err := uuid.Parse(explicit)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%s %q: id: %w", kind, name, err)
		}
		return id, nil
	}
	if name == "" {
		return uuid.Nil, fmt.Errorf("%s: name is required", kind)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.Tenant+"/"+kind+"/"+name)), nil
}

func decimalOr(raw string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if raw == "" {
		return fallback, nil
	}
	return decimal.NewFromString(raw)
}
