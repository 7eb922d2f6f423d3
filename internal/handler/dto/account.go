package dto

import (
	"time"

	"github.com/recast/recast/internal/model"
)

// AccountResponse represents an account's quota state.
type AccountResponse struct {
	ID               string    `json:"id"`
	Plan             string    `json:"plan"`
	CreditsTotal     int64     `json:"credits_total"`
	CreditsRemaining int64     `json:"credits_remaining"`
	CreditsUsed      int64     `json:"credits_used"`
	UsagePercent     float64   `json:"usage_percent"`
	PeriodStart      time.Time `json:"period_start"`
}

// ChangePlanRequest represents the request body for switching plans.
type ChangePlanRequest struct {
	Plan string `json:"plan"`
}

// ToAccountResponse converts an Account model to AccountResponse DTO.
func ToAccountResponse(a *model.Account) *AccountResponse {
	return &AccountResponse{
		ID:               a.ID,
		Plan:             string(a.Plan),
		CreditsTotal:     a.CreditsTotal,
		CreditsRemaining: a.CreditsRemaining,
		CreditsUsed:      a.CreditsTotal - a.CreditsRemaining,
		UsagePercent:     a.UsagePercent(),
		PeriodStart:      a.PeriodStart,
	}
}
