// Package model defines domain entities for the application.
package model

import "time"

// Plan identifies a subscription tier.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// PlanCredits maps each plan to its per-period credit allowance.
var PlanCredits = map[Plan]int64{
	PlanFree:     5,
	PlanPro:      500,
	PlanBusiness: 2500,
}

// IsValid checks if the plan is one of the known tiers.
func (p Plan) IsValid() bool {
	_, ok := PlanCredits[p]
	return ok
}

// Credits returns the per-period allowance for the plan.
// Unknown plans get the free allowance.
func (p Plan) Credits() int64 {
	if credits, ok := PlanCredits[p]; ok {
		return credits
	}
	return PlanCredits[PlanFree]
}

// Account holds the quota state of a credit-holding account.
// CreditsRemaining is written only by the credit ledger.
type Account struct {
	ID               string    `json:"id"`
	Plan             Plan      `json:"plan"`
	CreditsTotal     int64     `json:"credits_total"`
	CreditsRemaining int64     `json:"credits_remaining"`
	PeriodStart      time.Time `json:"period_start"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UsagePercent returns the share of the period allowance already consumed.
func (a *Account) UsagePercent() float64 {
	if a.CreditsTotal <= 0 {
		return 0
	}
	return float64(a.CreditsTotal-a.CreditsRemaining) / float64(a.CreditsTotal) * 100
}

// Reservation is the token handed out by a successful credit reservation.
// Releasing it refunds Amount to the account.
type Reservation struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
