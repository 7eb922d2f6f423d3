// Package ledger tracks per-account generation credits.
//
// Every generation takes a reservation before the provider is called and
// either keeps it (an artifact was persisted) or releases it. A reservation
// is the only way credits leave an account, and a release is the only way
// they come back outside of a period reset.
package ledger

import (
	"context"
	"errors"

	"github.com/recast/recast/internal/model"
)

var (
	// ErrInsufficientCredits is returned when the balance cannot cover a reservation.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrAccountNotFound is returned for accounts the ledger has never seen.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidAmount is returned for reservations of less than one credit.
	ErrInvalidAmount = errors.New("reservation amount must be at least 1")
	// ErrInvalidPlan is returned when resetting an account to an unknown plan.
	ErrInvalidPlan = errors.New("invalid plan")
)

// Ledger is the credit accounting contract shared by all backends.
//
// Reserve and Release on the same account are linearizable. Operations on
// different accounts never contend.
type Ledger interface {
	// Reserve atomically checks and decrements the balance.
	// On ErrInsufficientCredits the balance is unchanged.
	Reserve(ctx context.Context, accountID string, amount int64) (*model.Reservation, error)
	// Release refunds a reservation. Releasing an unknown or already
	// released reservation is a no-op.
	Release(ctx context.Context, res *model.Reservation) error
	// Commit finalizes a reservation whose credits were consumed.
	// A committed reservation can no longer be released.
	Commit(ctx context.Context, res *model.Reservation) error
	// Balance returns the current account state.
	Balance(ctx context.Context, accountID string) (*model.Account, error)
	// Open creates the account on plan if it does not exist and returns its
	// current state. An existing account is returned unchanged.
	Open(ctx context.Context, accountID string, plan model.Plan) (*model.Account, error)
	// ResetPeriod starts a new billing period on plan, creating the account if needed.
	ResetPeriod(ctx context.Context, accountID string, plan model.Plan) (*model.Account, error)
}

// ValidateReserve checks the arguments common to every Reserve implementation.
func ValidateReserve(accountID string, amount int64) error {
	if accountID == "" {
		return ErrAccountNotFound
	}
	if amount < 1 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateOpen checks the arguments common to Open and ResetPeriod.
func ValidateOpen(accountID string, plan model.Plan) error {
	if accountID == "" {
		return ErrAccountNotFound
	}
	if !plan.IsValid() {
		return ErrInvalidPlan
	}
	return nil
}

// ClampRefund returns the balance after refunding amount, never exceeding total.
// A reservation taken before a period reset may otherwise push the balance
// past the new allowance.
func ClampRefund(remaining, amount, total int64) int64 {
	if remaining+amount > total {
		return total
	}
	return remaining + amount
}
