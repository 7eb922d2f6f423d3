package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/recast/recast/internal/model"
)

// Memory is an in-process ledger.
// Each account carries its own lock; the outer lock only guards the account map.
type Memory struct {
	mu           sync.RWMutex
	accounts     map[string]*memoryAccount
	reservations sync.Map // reservation id -> *model.Reservation
	now          func() time.Time
}

type memoryAccount struct {
	mu    sync.Mutex
	state model.Account
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*memoryAccount),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) account(id string) (*memoryAccount, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[id]
	return acc, ok
}

// Reserve implements Ledger.
func (m *Memory) Reserve(ctx context.Context, accountID string, amount int64) (*model.Reservation, error) {
	if err := ValidateReserve(accountID, amount); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc, ok := m.account(accountID)
	if !ok {
		return nil, ErrAccountNotFound
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	if acc.state.CreditsRemaining < amount {
		return nil, ErrInsufficientCredits
	}
	now := m.now()
	acc.state.CreditsRemaining -= amount
	acc.state.UpdatedAt = now

	res := &model.Reservation{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		Amount:    amount,
		CreatedAt: now,
	}
	m.reservations.Store(res.ID, res)
	return res, nil
}

// Release implements Ledger.
func (m *Memory) Release(_ context.Context, res *model.Reservation) error {
	if res == nil || res.ID == "" {
		return nil
	}
	// LoadAndDelete makes the second of two concurrent releases a no-op.
	v, loaded := m.reservations.LoadAndDelete(res.ID)
	if !loaded {
		return nil
	}
	stored := v.(*model.Reservation)

	acc, ok := m.account(stored.AccountID)
	if !ok {
		return nil
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()
	acc.state.CreditsRemaining = ClampRefund(acc.state.CreditsRemaining, stored.Amount, acc.state.CreditsTotal)
	acc.state.UpdatedAt = m.now()
	return nil
}

// Commit implements Ledger.
func (m *Memory) Commit(_ context.Context, res *model.Reservation) error {
	if res == nil {
		return nil
	}
	m.reservations.Delete(res.ID)
	return nil
}

// Balance implements Ledger.
func (m *Memory) Balance(_ context.Context, accountID string) (*model.Account, error) {
	acc, ok := m.account(accountID)
	if !ok {
		return nil, ErrAccountNotFound
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	snapshot := acc.state
	return &snapshot, nil
}

// Open implements Ledger.
func (m *Memory) Open(_ context.Context, accountID string, plan model.Plan) (*model.Account, error) {
	if err := ValidateOpen(accountID, plan); err != nil {
		return nil, err
	}

	m.mu.Lock()
	acc, ok := m.accounts[accountID]
	if !ok {
		now := m.now()
		acc = &memoryAccount{state: model.Account{
			ID:               accountID,
			Plan:             plan,
			CreditsTotal:     plan.Credits(),
			CreditsRemaining: plan.Credits(),
			PeriodStart:      now,
			UpdatedAt:        now,
		}}
		m.accounts[accountID] = acc
	}
	m.mu.Unlock()

	acc.mu.Lock()
	defer acc.mu.Unlock()
	snapshot := acc.state
	return &snapshot, nil
}

// ResetPeriod implements Ledger.
func (m *Memory) ResetPeriod(_ context.Context, accountID string, plan model.Plan) (*model.Account, error) {
	if err := ValidateOpen(accountID, plan); err != nil {
		return nil, err
	}

	m.mu.Lock()
	acc, ok := m.accounts[accountID]
	if !ok {
		acc = &memoryAccount{state: model.Account{ID: accountID}}
		m.accounts[accountID] = acc
	}
	m.mu.Unlock()

	acc.mu.Lock()
	defer acc.mu.Unlock()
	now := m.now()
	acc.state.Plan = plan
	acc.state.CreditsTotal = plan.Credits()
	acc.state.CreditsRemaining = plan.Credits()
	acc.state.PeriodStart = now
	acc.state.UpdatedAt = now
	snapshot := acc.state
	return &snapshot, nil
}

// Outstanding returns the number of reservations neither released nor committed.
func (m *Memory) Outstanding() int {
	n := 0
	m.reservations.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
