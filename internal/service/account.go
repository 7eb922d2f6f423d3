package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/recast/recast/internal/ledger"
	"github.com/recast/recast/internal/model"
)

// AccountService exposes credit balances and plan changes.
type AccountService struct {
	ledger      ledger.Ledger
	defaultPlan model.Plan
}

// NewAccountService creates a new AccountService.
// Accounts seen for the first time are provisioned on defaultPlan.
func NewAccountService(l ledger.Ledger, defaultPlan model.Plan) *AccountService {
	if !defaultPlan.IsValid() {
		defaultPlan = model.PlanFree
	}
	return &AccountService{ledger: l, defaultPlan: defaultPlan}
}

// Ensure returns the account, provisioning it on the default plan if it does not exist.
// Provisioning never touches the balance of an account that already exists.
func (s *AccountService) Ensure(ctx context.Context, accountID string) (*model.Account, error) {
	acc, err := s.ledger.Open(ctx, accountID, s.defaultPlan)
	if err != nil {
		return nil, fmt.Errorf("failed to provision account: %w", err)
	}
	return acc, nil
}

// ChangePlan moves the account to plan and starts a fresh billing period.
func (s *AccountService) ChangePlan(ctx context.Context, accountID string, plan model.Plan) (*model.Account, error) {
	acc, err := s.ledger.ResetPeriod(ctx, accountID, plan)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidPlan) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to change plan: %w", err)
	}
	return acc, nil
}
