package memstore

import (
	"context"

	"github.com/set-night/loyaltyledger/internal/domain"
)

func (s *Store) UpsertSettingsOverride(_ context.Context, o domain.SettingsOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.settings[o.TenantID] = o
	return nil
}

func (s *Store) UpsertTier(_ context.Context, t domain.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.st.tiers {
		if existing.ID != t.ID && existing.TenantID == t.TenantID && existing.Level == t.Level {
			return errUniqueViolation
		}
	}
	s.st.tiers[t.ID] = cloneTier(t)
	return nil
}

func (s *Store) UpsertPromotion(_ context.Context, p domain.Promotion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.promotions[p.ID] = clonePromotion(p)
	return nil
}

func (s *Store) UpsertChallenge(_ context.Context, c domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.challenges[c.ID] = cloneChallenge(c)
	return nil
}

// UpsertReward keeps the stored redeemed count, as the SQL upsert does.
func (s *Store) UpsertReward(_ context.Context, r domain.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.st.rewards[r.ID]; ok {
		r.RedeemedCount = existing.RedeemedCount
	}
	s.st.rewards[r.ID] = cloneReward(r)
	return nil
}
