package service

import (
	"time"

	"github.com/set-night/loyaltyledger/internal/domain"
	"github.com/set-night/loyaltyledger/internal/metrics"
	"github.com/set-night/loyaltyledger/internal/repository"
)

// Engine is the wired set of loyalty services over one store.
type Engine struct {
	Settings    *Settings
	Ledger      *Ledger
	Accounts    *AccountService
	Tiers       *TierService
	Challenges  *ChallengeTracker
	Redemptions *RedemptionService
	Loyalty     *LoyaltyService
	Expiry      *ExpiryService
}

type EngineOptions struct {
	Defaults     domain.ProgramSettings
	TierCacheTTL time.Duration
	Metrics      *metrics.Metrics
}

func NewEngine(store repository.Store, opts EngineOptions) *Engine {
	settings := NewSettings(opts.Defaults)
	ledger := NewLedger(store, settings, opts.Metrics)
	tiers := NewTierService(ledger, settings, NewTierCache(opts.TierCacheTTL))
	accounts := NewAccountService(store, ledger, settings, tiers, opts.Metrics)
	challenges := NewChallengeTracker(ledger)
	redemptions := NewRedemptionService(store, ledger, settings, opts.Metrics)

	return &Engine{
		Settings:    settings,
		Ledger:      ledger,
		Accounts:    accounts,
		Tiers:       tiers,
		Challenges:  challenges,
		Redemptions: redemptions,
		Loyalty: NewLoyaltyService(LoyaltyDeps{
			Store:       store,
			Accounts:    accounts,
			Ledger:      ledger,
			Tiers:       tiers,
			Challenges:  challenges,
			Redemptions: redemptions,
			Settings:    settings,
			Metrics:     opts.Metrics,
		}),
		Expiry: NewExpiryService(store, ledger, opts.Metrics),
	}
}
