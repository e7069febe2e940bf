package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tier is tenant configuration; the engine never writes it.
type Tier struct {
	ID             uuid.UUID
	TenantID       string
	Name           string
	Level          int
	PointsRequired int64
	SpendRequired  decimal.Decimal
	OrdersRequired int64
	Multiplier     decimal.Decimal
	ValidityDays   int
	Benefits       []string
}

// QualifiedBy reports whether all three thresholds are met by the account.
func (t *Tier) QualifiedBy(a *Account) bool {
	return a.LifetimePoints >= t.PointsRequired &&
		a.TotalSpent.GreaterThanOrEqual(t.SpendRequired) &&
		a.TotalOrders >= t.OrdersRequired
}

// containsLevel treats an empty restriction list as "all levels".
func containsLevel(levels []int, level int) bool {
	if len(levels) == 0 {
		return true
	}
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}
