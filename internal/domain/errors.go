package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every specific error below wraps exactly one of them, so callers
// can branch on the class with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrBusinessRule  = errors.New("business rule violation")
	ErrConflict      = errors.New("conflict")
	ErrInvalidConfig = errors.New("invalid configuration")
)

var (
	ErrAccountNotFound    = fmt.Errorf("account %w", ErrNotFound)
	ErrRewardNotFound     = fmt.Errorf("reward %w", ErrNotFound)
	ErrRedemptionNotFound = fmt.Errorf("redemption %w", ErrNotFound)
	ErrChallengeNotFound  = fmt.Errorf("challenge %w", ErrNotFound)
	ErrPromotionNotFound  = fmt.Errorf("promotion %w", ErrNotFound)
	ErrTierNotFound       = fmt.Errorf("tier %w", ErrNotFound)

	ErrInsufficientBalance     = fmt.Errorf("%w: insufficient balance", ErrBusinessRule)
	ErrRewardUnavailable       = fmt.Errorf("%w: reward unavailable", ErrBusinessRule)
	ErrTierNotEligible         = fmt.Errorf("%w: tier not eligible", ErrBusinessRule)
	ErrRedemptionCapExceeded   = fmt.Errorf("%w: redemption cap exceeded", ErrBusinessRule)
	ErrAccountInactive         = fmt.Errorf("%w: account inactive", ErrBusinessRule)
	ErrInvalidStatusTransition = fmt.Errorf("%w: invalid status transition", ErrBusinessRule)
	ErrInvalidAmount           = fmt.Errorf("%w: invalid amount", ErrBusinessRule)
	ErrAlreadyAwarded          = fmt.Errorf("%w: bonus already awarded", ErrBusinessRule)
	ErrOrderCreditedElsewhere  = fmt.Errorf("%w: order already credited to another account", ErrBusinessRule)

	ErrCodeGeneration = fmt.Errorf("%w: unique code generation exhausted", ErrConflict)
)

// ConfigError reports a malformed tenant configuration entity.
func ConfigError(entity, id, reason string) error {
	return fmt.Errorf("%w: %s %s: %s", ErrInvalidConfig, entity, id, reason)
}
