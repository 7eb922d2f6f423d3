package middleware

import (
	"context"
	"errors"
	"net/http"
)

// AccountIDHeader carries the calling account.
// Authentication happens upstream; this service trusts the header.
const AccountIDHeader = "X-Account-ID"

// AccountIDKey is the context key for the calling account.
const AccountIDKey contextKey = "account_id"

const accountHolderKey contextKey = "account_holder"

// accountHolder lets an outer middleware see the account resolved further in.
type accountHolder struct {
	id string
}

func withAccountHolder(ctx context.Context, h *accountHolder) context.Context {
	return context.WithValue(ctx, accountHolderKey, h)
}

// Account requires a valid X-Account-ID header and stores it in the request context.
func Account(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := r.Header.Get(AccountIDHeader)
		if err := ValidateAccountID(accountID); err != nil {
			if errors.Is(err, ErrAccountIDMissing) {
				writeError(w, http.StatusUnauthorized, "ACCOUNT_REQUIRED", "X-Account-ID header is required")
				return
			}
			writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT_ID", err.Error())
			return
		}

		if holder, ok := r.Context().Value(accountHolderKey).(*accountHolder); ok {
			holder.id = accountID
		}
		ctx := WithAccountID(r.Context(), accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithAccountID returns a context carrying accountID.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountIDKey, accountID)
}

// GetAccountID retrieves the calling account from context.
func GetAccountID(ctx context.Context) string {
	if id, ok := ctx.Value(AccountIDKey).(string); ok {
		return id
	}
	return ""
}
