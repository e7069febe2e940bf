// Package memstore is an in-memory repository.Store used by tests and local runs.
// A unit of work holds a store-wide lock and restores a snapshot when it fails, so
// it gives the same all-or-nothing and same-account serialisation guarantees as the
// Postgres store, without cross-account parallelism.
package memstore

import (
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/domain"
)

type state struct {
	settings    map[string]domain.SettingsOverride
	tiers       map[uuid.UUID]domain.Tier
	promotions  map[uuid.UUID]domain.Promotion
	challenges  map[uuid.UUID]domain.Challenge
	rewards     map[uuid.UUID]domain.Reward
	accounts    map[uuid.UUID]domain.Account
	txns        []domain.Transaction
	redemptions map[uuid.UUID]domain.Redemption
	progress    map[progressKey]domain.ChallengeProgress
	seq         int64
}

type progressKey struct {
	account   uuid.UUID
	challenge uuid.UUID
}

func newState() *state {
	return &state{
		settings:    make(map[string]domain.SettingsOverride),
		tiers:       make(map[uuid.UUID]domain.Tier),
		promotions:  make(map[uuid.UUID]domain.Promotion),
		challenges:  make(map[uuid.UUID]domain.Challenge),
		rewards:     make(map[uuid.UUID]domain.Reward),
		accounts:    make(map[uuid.UUID]domain.Account),
		redemptions: make(map[uuid.UUID]domain.Redemption),
		progress:    make(map[progressKey]domain.ChallengeProgress),
	}
}

// clone copies the mutable tables. Stored values never share slices with callers,
// so a shallow map copy is a full snapshot.
func (s *state) clone() *state {
	return &state{
		settings:    maps.Clone(s.settings),
		tiers:       maps.Clone(s.tiers),
		promotions:  maps.Clone(s.promotions),
		challenges:  maps.Clone(s.challenges),
		rewards:     maps.Clone(s.rewards),
		accounts:    maps.Clone(s.accounts),
		txns:        slices.Clone(s.txns),
		redemptions: maps.Clone(s.redemptions),
		progress:    maps.Clone(s.progress),
		seq:         s.seq,
	}
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// Transactions returns every ledger row in write order. Test helper.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.txns)
}

// Accounts returns every account. Test helper.
func (s *Store) Accounts() []domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.st.accounts))
}

// Redemptions returns every redemption. Test helper.
func (s *Store) Redemptions() []domain.Redemption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.st.redemptions))
}
