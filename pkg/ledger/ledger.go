package ledger

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Ledger is the user/limit bookkeeping collaborator. The reconciliation core
// only touches the few mutations its side effects require; the full CRUD
// surface lives elsewhere.
type Ledger interface {
	MarkUserVerified(ctx context.Context, userID string) error
	ApplyBaselineLimits(ctx context.Context, userID string) error
	ResetDailyLimits(ctx context.Context) (int64, error)
}

type pgLedger struct {
	pool          *pgxpool.Pool
	baselineLimit decimal.Decimal
}

func NewLedger(pool *pgxpool.Pool, baselineLimit decimal.Decimal) Ledger {
	return &pgLedger{
		pool:          pool,
		baselineLimit: baselineLimit,
	}
}

func (l *pgLedger) MarkUserVerified(ctx context.Context, userID string) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO bridge_users (id, verified)
		VALUES ($1, true)
		ON CONFLICT (id) DO UPDATE SET verified = true
	`, userID)
	return err
}

func (l *pgLedger) ApplyBaselineLimits(ctx context.Context, userID string) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE bridge_users SET daily_limit = $2
		WHERE id = $1 AND daily_limit < $2
	`, userID, l.baselineLimit)
	return err
}

func (l *pgLedger) ResetDailyLimits(ctx context.Context) (int64, error) {
	tag, err := l.pool.Exec(ctx, `UPDATE bridge_users SET daily_spent = 0 WHERE daily_spent <> 0`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
