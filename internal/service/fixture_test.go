package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/config"
	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/repository/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const tenant = "shop-1"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store  *memstore.Store
	engine *Engine
	clock  *clock
}

func newFixture(t *testing.T, tweak ...func(*domain.ProgramSettings)) *fixture {
	t.Helper()
	defaults := config.DefaultProgramSettings()
	for _, fn := range tweak {
		fn(&defaults)
	}

	store := memstore.New()
	e := NewEngine(store, EngineOptions{Defaults: defaults})
	c := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	e.Ledger.now = c.Now
	e.Accounts.now = c.Now
	e.Tiers.now = c.Now
	e.Challenges.now = c.Now
	e.Redemptions.now = c.Now
	e.Loyalty.now = c.Now
	return &fixture{store: store, engine: e, clock: c}
}

func (f *fixture) order(t *testing.T, id, customer string, amount int64) *AwardResult {
	t.Helper()
	res, err := f.engine.Loyalty.OnOrderCompleted(context.Background(), domain.Order{
		ID:          id,
		TenantID:    tenant,
		CustomerID:  customer,
		TotalAmount: decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) account(t *testing.T, customer string) *domain.Account {
	t.Helper()
	acc, err := f.engine.Accounts.GetOrCreate(context.Background(), customer, tenant)
	require.NoError(t, err)
	return acc
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *domain.Account {
	t.Helper()
	acc, err := f.engine.Accounts.Get(context.Background(), id)
	require.NoError(t, err)
	return acc
}

func (f *fixture) reward(t *testing.T, r domain.Reward) domain.Reward {
	t.Helper()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.TenantID = tenant
	r.Active = true
	require.NoError(t, f.store.UpsertReward(context.Background(), r))
	return r
}

func (f *fixture) tier(t *testing.T, tr domain.Tier) domain.Tier {
	t.Helper()
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	tr.TenantID = tenant
	require.NoError(t, f.store.UpsertTier(context.Background(), tr))
	return tr
}

// requireBalanced checks the stored counters against the folded ledger.
func (f *fixture) requireBalanced(t *testing.T, id uuid.UUID) {
	t.Helper()
	check, err := f.engine.Ledger.VerifyBalance(context.Background(), id)
	require.NoError(t, err)
	require.True(t, check.Consistent, "stored %d, ledger %d", check.Stored, check.Ledger)
}

func (f *fixture) kinds(id uuid.UUID) []domain.TxKind {
	var out []domain.TxKind
	for _, txn := range f.store.Transactions() {
		if txn.AccountID == id {
			out = append(out, txn.Kind)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func decimalInt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
