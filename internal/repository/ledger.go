package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/recast/recast/internal/ledger"
	"github.com/recast/recast/internal/model"
)

// CreditLedger is a PostgreSQL-backed ledger.Ledger.
// Balance changes are single-row conditional UPDATEs, so the row lock on
// the account serializes concurrent reservations for it.
type CreditLedger struct {
	pool *pgxpool.Pool
}

// Credits returns a ledger sharing this repository's pool.
func (r *Repository) Credits() *CreditLedger {
	return &CreditLedger{pool: r.pool}
}

// Reserve implements ledger.Ledger.
func (l *CreditLedger) Reserve(ctx context.Context, accountID string, amount int64) (*model.Reservation, error) {
	if err := ledger.ValidateReserve(accountID, amount); err != nil {
		return nil, err
	}

	res := &model.Reservation{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		Amount:    amount,
	}

	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE accounts
			SET credits_remaining = credits_remaining - $2, updated_at = NOW()
			WHERE id = $1 AND credits_remaining >= $2
		`, accountID, amount)
		if err != nil {
			return fmt.Errorf("failed to decrement credits: %w", err)
		}

		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check account existence: %w", err)
			}
			if !exists {
				return ledger.ErrAccountNotFound
			}
			return ledger.ErrInsufficientCredits
		}

		return tx.QueryRow(ctx, `
			INSERT INTO credit_reservations (id, account_id, amount)
			VALUES ($1, $2, $3)
			RETURNING created_at
		`, res.ID, accountID, amount).Scan(&res.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) || errors.Is(err, ledger.ErrInsufficientCredits) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to reserve credits: %w", err)
	}

	return res, nil
}

// Release implements ledger.Ledger.
func (l *CreditLedger) Release(ctx context.Context, res *model.Reservation) error {
	if res == nil || res.ID == "" {
		return nil
	}

	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		var (
			accountID string
			amount    int64
		)
		err := tx.QueryRow(ctx, `
			UPDATE credit_reservations
			SET released_at = NOW()
			WHERE id = $1 AND released_at IS NULL AND committed_at IS NULL
			RETURNING account_id, amount
		`, res.ID).Scan(&accountID, &amount)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to mark reservation released: %w", err)
		}

		// Clamped so a reservation taken before a period reset cannot exceed the new total.
		_, err = tx.Exec(ctx, `
			UPDATE accounts
			SET credits_remaining = LEAST(credits_total, credits_remaining + $2), updated_at = NOW()
			WHERE id = $1
		`, accountID, amount)
		if err != nil {
			return fmt.Errorf("failed to refund credits: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	return nil
}

// Commit implements ledger.Ledger.
func (l *CreditLedger) Commit(ctx context.Context, res *model.Reservation) error {
	if res == nil || res.ID == "" {
		return nil
	}

	_, err := l.pool.Exec(ctx, `
		UPDATE credit_reservations
		SET committed_at = NOW()
		WHERE id = $1 AND released_at IS NULL AND committed_at IS NULL
	`, res.ID)
	if err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// Balance implements ledger.Ledger.
func (l *CreditLedger) Balance(ctx context.Context, accountID string) (*model.Account, error) {
	acc, err := scanAccount(l.pool.QueryRow(ctx, `
		SELECT id, plan, credits_total, credits_remaining, period_start, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// Open implements ledger.Ledger.
func (l *CreditLedger) Open(ctx context.Context, accountID string, plan model.Plan) (*model.Account, error) {
	if err := ledger.ValidateOpen(accountID, plan); err != nil {
		return nil, err
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO accounts (id, plan, credits_total, credits_remaining, period_start, updated_at)
		VALUES ($1, $2, $3, $3, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`, accountID, string(plan), plan.Credits())
	if err != nil {
		return nil, fmt.Errorf("failed to open account: %w", err)
	}
	return l.Balance(ctx, accountID)
}

// ResetPeriod implements ledger.Ledger.
func (l *CreditLedger) ResetPeriod(ctx context.Context, accountID string, plan model.Plan) (*model.Account, error) {
	if err := ledger.ValidateOpen(accountID, plan); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	acc, err := scanAccount(l.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, plan, credits_total, credits_remaining, period_start, updated_at)
		VALUES ($1, $2, $3, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET plan = EXCLUDED.plan,
		    credits_total = EXCLUDED.credits_total,
		    credits_remaining = EXCLUDED.credits_remaining,
		    period_start = EXCLUDED.period_start,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, plan, credits_total, credits_remaining, period_start, updated_at
	`, accountID, string(plan), plan.Credits(), now))
	if err != nil {
		return nil, fmt.Errorf("failed to reset period: %w", err)
	}
	return acc, nil
}

// OpenReservations returns the reservations of an account that are neither released nor committed.
func (l *CreditLedger) OpenReservations(ctx context.Context, accountID string) ([]*model.Reservation, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, account_id, amount, created_at
		FROM credit_reservations
		WHERE account_id = $1 AND released_at IS NULL AND committed_at IS NULL
		ORDER BY created_at
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open reservations: %w", err)
	}
	defer rows.Close()

	var out []*model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.AccountID, &res.Amount, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}
	return out, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		acc  model.Account
		plan string
	)
	if err := row.Scan(&acc.ID, &plan, &acc.CreditsTotal, &acc.CreditsRemaining, &acc.PeriodStart, &acc.UpdatedAt); err != nil {
		return nil, err
	}
	acc.Plan = model.Plan(plan)
	return &acc, nil
}
