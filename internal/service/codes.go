package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/set-night/loyaltyledger/internal/config"
)

const (
	loyaltyNumberCharset = "0123456789"
	// No 0/O or 1/I, codes are read aloud at the till.
	redemptionCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

func randomString(charset string, length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("random int: %w", err)
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}

func generateLoyaltyNumber() (string, error) {
	digits, err := randomString(loyaltyNumberCharset, config.LoyaltyNumberLength)
	if err != nil {
		return "", err
	}
	return config.LoyaltyNumberPrefix + digits, nil
}

func generateRedemptionCode() (string, error) {
	return randomString(redemptionCodeCharset, config.RedemptionCodeLength)
}

// candidateCode draws one code and reports whether it is already in use.
func candidateCode(ctx context.Context, generate func() (string, error), exists func(context.Context, string) (bool, error)) (string, bool, error) {
	code, err := generate()
	if err != nil {
		return "", false, err
	}
	taken, err := exists(ctx, code)
	if err != nil {
		return "", false, fmt.Errorf("check code: %w", err)
	}
	return code, taken, nil
}
