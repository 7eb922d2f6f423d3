package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/recast/recast/internal/ledger"
	"github.com/recast/recast/internal/model"
)

const (
	// creditsPrefix is the Redis key prefix for ledger state.
	creditsPrefix = "credits:"
	// reservationTTL bounds how long an unreleased reservation stays refundable.
	reservationTTL = 24 * time.Hour
)

// Hash-tagging on the account id keeps an account and its reservations in one slot.
func accountKey(accountID string) string {
	return creditsPrefix + "{" + accountID + "}:account"
}

func reservationKey(accountID, reservationID string) string {
	return creditsPrefix + "{" + accountID + "}:res:" + reservationID
}

// reserveScript decrements the balance if it covers the amount and records the reservation.
// Returns -1 for a missing account, -2 for insufficient credits, otherwise the new balance.
var reserveScript = redis.NewScript(`
	local account = KEYS[1]
	local reservation = KEYS[2]
	local amount = tonumber(ARGV[1])
	local now = ARGV[2]
	local ttl = tonumber(ARGV[3])

	if redis.call('EXISTS', account) == 0 then
		return -1
	end

	local remaining = tonumber(redis.call('HGET', account, 'remaining')) or 0
	if remaining < amount then
		return -2
	end

	remaining = redis.call('HINCRBY', account, 'remaining', -amount)
	redis.call('HSET', account, 'updated_at', now)
	redis.call('HSET', reservation, 'amount', amount, 'created_at', now)
	redis.call('EXPIRE', reservation, ttl)

	return remaining
`)

// releaseScript deletes the reservation and refunds it, capped at the period total.
// Returns 1 when credits were refunded, 0 when the reservation was unknown.
var releaseScript = redis.NewScript(`
	local account = KEYS[1]
	local reservation = KEYS[2]
	local now = ARGV[1]

	local amount = tonumber(redis.call('HGET', reservation, 'amount'))
	if not amount then
		return 0
	end
	redis.call('DEL', reservation)

	if redis.call('EXISTS', account) == 0 then
		return 0
	end

	local total = tonumber(redis.call('HGET', account, 'total')) or 0
	local remaining = tonumber(redis.call('HGET', account, 'remaining')) or 0
	local refunded = math.min(total, remaining + amount)
	redis.call('HSET', account, 'remaining', refunded, 'updated_at', now)

	return 1
`)

// openScript creates the account hash only when it is absent and returns its fields.
var openScript = redis.NewScript(`
	local account = KEYS[1]
	if redis.call('EXISTS', account) == 0 then
		redis.call('HSET', account,
			'plan', ARGV[1],
			'total', ARGV[2],
			'remaining', ARGV[2],
			'period_start', ARGV[3],
			'updated_at', ARGV[3])
	end
	return redis.call('HGETALL', account)
`)

// CreditLedger is a Redis-backed ledger.Ledger.
// All balance mutation happens inside Lua scripts, so each account is linearized by Redis itself.
type CreditLedger struct {
	client *redis.Client
	now    func() time.Time
}

// Credits returns a ledger sharing this cache's client.
func (c *Cache) Credits() *CreditLedger {
	return NewCreditLedger(c.client)
}

// NewCreditLedger creates a ledger on an existing Redis client.
func NewCreditLedger(client *redis.Client) *CreditLedger {
	return &CreditLedger{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Reserve implements ledger.Ledger.
func (l *CreditLedger) Reserve(ctx context.Context, accountID string, amount int64) (*model.Reservation, error) {
	if err := ledger.ValidateReserve(accountID, amount); err != nil {
		return nil, err
	}

	now := l.now()
	res := &model.Reservation{
		ID:        ulid.Make().String(),
		AccountID: accountID,
		Amount:    amount,
		CreatedAt: now,
	}

	result, err := reserveScript.Run(ctx, l.client,
		[]string{accountKey(accountID), reservationKey(accountID, res.ID)},
		amount, now.Unix(), int(reservationTTL.Seconds()),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("reserve credits: %w", err)
	}

	switch result {
	case -1:
		return nil, ledger.ErrAccountNotFound
	case -2:
		return nil, ledger.ErrInsufficientCredits
	}
	return res, nil
}

// Release implements ledger.Ledger.
func (l *CreditLedger) Release(ctx context.Context, res *model.Reservation) error {
	if res == nil || res.ID == "" || res.AccountID == "" {
		return nil
	}
	err := releaseScript.Run(ctx, l.client,
		[]string{accountKey(res.AccountID), reservationKey(res.AccountID, res.ID)},
		l.now().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("release credits: %w", err)
	}
	return nil
}

// Commit implements ledger.Ledger.
func (l *CreditLedger) Commit(ctx context.Context, res *model.Reservation) error {
	if res == nil || res.ID == "" || res.AccountID == "" {
		return nil
	}
	if err := l.client.Del(ctx, reservationKey(res.AccountID, res.ID)).Err(); err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}
	return nil
}

// Balance implements ledger.Ledger.
func (l *CreditLedger) Balance(ctx context.Context, accountID string) (*model.Account, error) {
	fields, err := l.client.HGetAll(ctx, accountKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if len(fields) == 0 {
		return nil, ledger.ErrAccountNotFound
	}
	return decodeAccount(accountID, fields)
}

// Open implements ledger.Ledger.
func (l *CreditLedger) Open(ctx context.Context, accountID string, plan model.Plan) (*model.Account, error) {
	if err := ledger.ValidateOpen(accountID, plan); err != nil {
		return nil, err
	}

	pairs, err := openScript.Run(ctx, l.client,
		[]string{accountKey(accountID)},
		string(plan), plan.Credits(), l.now().Unix(),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("open account: %w", err)
	}

	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields[pairs[i]] = pairs[i+1]
	}
	return decodeAccount(accountID, fields)
}

// ResetPeriod implements ledger.Ledger.
func (l *CreditLedger) ResetPeriod(ctx context.Context, accountID string, plan model.Plan) (*model.Account, error) {
	if err := ledger.ValidateOpen(accountID, plan); err != nil {
		return nil, err
	}

	now := l.now()
	credits := plan.Credits()
	err := l.client.HSet(ctx, accountKey(accountID),
		"plan", string(plan),
		"total", credits,
		"remaining", credits,
		"period_start", now.Unix(),
		"updated_at", now.Unix(),
	).Err()
	if err != nil {
		return nil, fmt.Errorf("reset period: %w", err)
	}

	return &model.Account{
		ID:               accountID,
		Plan:             plan,
		CreditsTotal:     credits,
		CreditsRemaining: credits,
		PeriodStart:      time.Unix(now.Unix(), 0).UTC(),
		UpdatedAt:        time.Unix(now.Unix(), 0).UTC(),
	}, nil
}

var errCorruptAccount = errors.New("corrupt account hash")

func decodeAccount(accountID string, fields map[string]string) (*model.Account, error) {
	total, err := strconv.ParseInt(fields["total"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: total: %v", errCorruptAccount, err)
	}
	remaining, err := strconv.ParseInt(fields["remaining"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: remaining: %v", errCorruptAccount, err)
	}

	acc := &model.Account{
		ID:               accountID,
		Plan:             model.Plan(fields["plan"]),
		CreditsTotal:     total,
		CreditsRemaining: remaining,
	}
	if ts, err := strconv.ParseInt(fields["period_start"], 10, 64); err == nil {
		acc.PeriodStart = time.Unix(ts, 0).UTC()
	}
	if ts, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		acc.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	return acc, nil
}
