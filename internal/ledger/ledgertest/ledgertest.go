// Package ledgertest holds behaviour tests shared by every ledger backend.
package ledgertest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/recast/recast/internal/ledger"
	"github.com/recast/recast/internal/model"
)

// Factory returns a fresh, empty ledger for one subtest.
type Factory func(t *testing.T) ledger.Ledger

// Run exercises the full Ledger contract against the backend built by newLedger.
// Account ids are unique per subtest so backends may share storage.
func Run(t *testing.T, newLedger Factory) {
	t.Helper()

	t.Run("ResetCreatesAccount", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		acc, err := l.ResetPeriod(ctx, accountID(t), model.PlanPro)
		if err != nil {
			t.Fatalf("ResetPeriod() error = %v", err)
		}
		if acc.Plan != model.PlanPro || acc.CreditsTotal != 500 || acc.CreditsRemaining != 500 {
			t.Errorf("account = %+v, want pro 500/500", acc)
		}
	})

	t.Run("ResetRejectsUnknownPlan", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.ResetPeriod(context.Background(), accountID(t), model.Plan("platinum"))
		if !errors.Is(err, ledger.ErrInvalidPlan) {
			t.Errorf("ResetPeriod() error = %v, want ErrInvalidPlan", err)
		}
	})

	t.Run("OpenCreatesAccount", func(t *testing.T) {
		l := newLedger(t)
		acc, err := l.Open(context.Background(), accountID(t), model.PlanFree)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if acc.Plan != model.PlanFree || acc.CreditsTotal != 5 || acc.CreditsRemaining != 5 {
			t.Errorf("account = %+v, want free 5/5", acc)
		}
	})

	t.Run("OpenKeepsExistingBalance", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := seed(t, l, model.PlanFree)
		mustReserve(t, l, id)

		acc, err := l.Open(ctx, id, model.PlanBusiness)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if acc.Plan != model.PlanFree || acc.CreditsRemaining != 4 {
			t.Errorf("account = %+v, want free with 4 remaining", acc)
		}
		assertRemaining(t, l, id, 4)
	})

	t.Run("OpenRejectsInvalidArguments", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		if _, err := l.Open(ctx, accountID(t), model.Plan("platinum")); !errors.Is(err, ledger.ErrInvalidPlan) {
			t.Errorf("Open(platinum) error = %v, want ErrInvalidPlan", err)
		}
		if _, err := l.Open(ctx, "", model.PlanFree); !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Errorf("Open(\"\") error = %v, want ErrAccountNotFound", err)
		}
	})

	t.Run("ConcurrentOpenNeverRefills", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := accountID(t)

		const workers = 10
		var wg sync.WaitGroup
		var granted atomic.Int64
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.Open(ctx, id, model.PlanFree); err != nil {
					t.Errorf("Open() error = %v", err)
					return
				}
				if _, err := l.Reserve(ctx, id, 1); err == nil {
					granted.Add(1)
				} else if !errors.Is(err, ledger.ErrInsufficientCredits) {
					t.Errorf("Reserve() error = %v", err)
				}
			}()
		}
		wg.Wait()

		if granted.Load() != 5 {
			t.Errorf("granted = %d, want 5", granted.Load())
		}
		assertRemaining(t, l, id, 0)
	})

	t.Run("ReserveDecrements", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := seed(t, l, model.PlanFree)

		res, err := l.Reserve(ctx, id, 1)
		if err != nil {
			t.Fatalf("Reserve() error = %v", err)
		}
		if res.ID == "" || res.AccountID != id || res.Amount != 1 {
			t.Errorf("reservation = %+v", res)
		}
		assertRemaining(t, l, id, 4)
	})

	t.Run("ReserveInsufficientLeavesBalance", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := seed(t, l, model.PlanFree)

		if _, err := l.Reserve(ctx, id, 6); !errors.Is(err, ledger.ErrInsufficientCredits) {
			t.Fatalf("Reserve(6) error = %v, want ErrInsufficientCredits", err)
		}
		assertRemaining(t, l, id, 5)
	})

	t.Run("ReserveUnknownAccount", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Reserve(context.Background(), accountID(t), 1)
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Errorf("Reserve() error = %v, want ErrAccountNotFound", err)
		}
	})

	t.Run("ReserveInvalidAmount", func(t *testing.T) {
		l := newLedger(t)
		id := seed(t, l, model.PlanFree)
		for _, amount := range []int64{0, -1} {
			if _, err := l.Reserve(context.Background(), id, amount); !errors.Is(err, ledger.ErrInvalidAmount) {
				t.Errorf("Reserve(%d) error = %v, want ErrInvalidAmount", amount, err)
			}
		}
		assertRemaining(t, l, id, 5)
	})

	t.Run("ReleaseRefunds", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := seed(t, l, model.PlanFree)

		res := mustReserve(t, l, id)
		if err := l.Release(ctx, res); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		assertRemaining(t, l, id, 5)
	})

	t.Run("ReleaseIsIdempotent", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := seed(t, l, model.PlanFree)

		res := mustReserve(t, l, id)
		for i := 0; i < 3; i++ {
			if err := l.Release(ctx, res); err != nil {
				t.Fatalf("Release() #%d error = %v", i, err)
			}
		}
		assertRemaining(t, l, id, 5)
	})

	t.Run("ReleaseUnknownIsNoop", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := seed(t, l, model.PlanFree)
		mustReserve(t, l, id)

		bogus := &model.Reservation{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", AccountID: id, Amount: 3}
		if err := l.Release(ctx, bogus); err != nil {
			t.Fatalf("Release(unknown) error = %v", err)
		}
		if err := l.Release(ctx, nil); err != nil {
			t.Fatalf("Release(nil) error = %v", err)
		}
		assertRemaining(t, l, id, 4)
	})

	t.Run("CommitPreventsRelease", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := seed(t, l, model.PlanFree)

		res := mustReserve(t, l, id)
		if err := l.Commit(ctx, res); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if err := l.Release(ctx, res); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		assertRemaining(t, l, id, 4)
	})

	t.Run("RefundClampedAfterReset", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := seed(t, l, model.PlanFree)

		res := mustReserve(t, l, id)
		if _, err := l.ResetPeriod(ctx, id, model.PlanFree); err != nil {
			t.Fatalf("ResetPeriod() error = %v", err)
		}
		if err := l.Release(ctx, res); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		assertRemaining(t, l, id, 5)
	})

	t.Run("ConcurrentReservesConserveQuota", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := seed(t, l, model.PlanFree)

		const workers = 20
		var granted atomic.Int64
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Reserve(ctx, id, 1)
				switch {
				case err == nil:
					granted.Add(1)
				case errors.Is(err, ledger.ErrInsufficientCredits):
				default:
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("Reserve() unexpected error = %v", err)
		}

		if granted.Load() != 5 {
			t.Errorf("granted = %d, want 5", granted.Load())
		}
		assertRemaining(t, l, id, 0)
	})

	t.Run("ConcurrentReleaseRefundsOnce", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		id := seed(t, l, model.PlanFree)
		res := mustReserve(t, l, id)
		mustReserve(t, l, id)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := l.Release(ctx, res); err != nil {
					t.Errorf("Release() error = %v", err)
				}
			}()
		}
		wg.Wait()
		assertRemaining(t, l, id, 4)
	})

	t.Run("AccountsAreIndependent", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		a := seed(t, l, model.PlanFree)
		b := seed(t, l, model.PlanFree)

		for i := 0; i < 5; i++ {
			mustReserve(t, l, a)
		}
		if _, err := l.Reserve(ctx, a, 1); !errors.Is(err, ledger.ErrInsufficientCredits) {
			t.Fatalf("Reserve(a) error = %v, want ErrInsufficientCredits", err)
		}
		assertRemaining(t, l, b, 5)
	})
}

var seq atomic.Int64

func accountID(t *testing.T) string {
	t.Helper()
	return "acct-" + t.Name() + "-" + strconv.FormatInt(seq.Add(1), 10)
}

func seed(t *testing.T, l ledger.Ledger, plan model.Plan) string {
	t.Helper()
	id := accountID(t)
	if _, err := l.ResetPeriod(context.Background(), id, plan); err != nil {
		t.Fatalf("ResetPeriod() error = %v", err)
	}
	return id
}

func mustReserve(t *testing.T, l ledger.Ledger, id string) *model.Reservation {
	t.Helper()
	res, err := l.Reserve(context.Background(), id, 1)
	if err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	return res
}

func assertRemaining(t *testing.T, l ledger.Ledger, id string, want int64) {
	t.Helper()
	acc, err := l.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if acc.CreditsRemaining != want {
		t.Errorf("CreditsRemaining = %d, want %d", acc.CreditsRemaining, want)
	}
}
