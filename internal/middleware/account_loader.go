package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/set-night/loyaltyledger/internal/domain"
)

type ctxKey string

const AccountKey ctxKey = "account"

// GetAccount extracts the account loaded by AccountLoader.
func GetAccount(ctx context.Context) *domain.Account {
	a, ok := ctx.Value(AccountKey).(*domain.Account)
	if !ok {
		return nil
	}
	return a
}

// AccountGetter is the part of the account service the loader needs.
type AccountGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// AccountLoader resolves the {accountId} path parameter into the request context.
// Lookup failures are handed to onError.
func AccountLoader(accounts AccountGetter, onError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "accountId"))
			if err != nil {
				onError(w, domain.ErrAccountNotFound)
				return
			}
			acc, err := accounts.Get(r.Context(), id)
			if err != nil {
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), AccountKey, acc)))
		})
	}
}
