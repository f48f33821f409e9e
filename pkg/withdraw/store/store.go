package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAwaitingPayment     = Status("AWAITING_PAYMENT")
	StatusInsufficientPayment = Status("INSUFFICIENT_PAYMENT")
	StatusPaymentDetected     = Status("PAYMENT_DETECTED")
	StatusProcessing          = Status("PROCESSING")
	StatusCompleted           = Status("COMPLETED")
	StatusExpired             = Status("EXPIRED")
	StatusCancelled           = Status("CANCELLED")
)

// ActiveStatuses are the states counted against the one-active-withdrawal-
// per-user invariant.
var ActiveStatuses = []Status{
	StatusAwaitingPayment,
	StatusPaymentDetected,
	StatusProcessing,
}

var transitions = map[Status][]Status{
	StatusAwaitingPayment:     {StatusInsufficientPayment, StatusPaymentDetected, StatusExpired, StatusCancelled},
	StatusInsufficientPayment: {StatusPaymentDetected},
	StatusPaymentDetected:     {StatusProcessing, StatusCompleted},
	StatusProcessing:          {StatusCompleted},
}

// CanTransition reports whether from -> to follows the state machine. The
// machine is monotonic: nothing ever returns to AWAITING_PAYMENT.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Withdrawal struct {
	ID              string
	UserID          string
	Amount          decimal.Decimal
	FeeAmount       decimal.Decimal
	NetworkFee      decimal.Decimal
	TotalRequired   decimal.Decimal
	Currency        string
	PayoutKeyType   string
	PayoutKey       string
	DepositAddress  string
	DerivationIndex uint64
	TxID            string
	PaidAmount      decimal.Decimal
	Confirmations   uint32
	ExcessAmount    decimal.Decimal
	Status          Status
	CreatedAt       time.Time
	ExpiresAt       time.Time
	EstimatedAt     time.Time
	CompletedAt     *time.Time
}

var ErrActiveExists = errors.New("user already has an active withdrawal")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const withdrawalColumns = `
	id, user_id, amount::text, fee_amount::text, network_fee::text,
	total_required::text, currency, payout_key_type, payout_key,
	deposit_address, derivation_index, txid, paid_amount::text,
	confirmations, excess_amount::text, status,
	created_at, expires_at, estimated_at, completed_at
`

func scanWithdrawal(row pgx.Row) (*Withdrawal, error) {
	w := &Withdrawal{}
	var amount, feeAmount, networkFee, totalRequired, paidAmount, excess string
	var status string

	if err := row.Scan(
		&w.ID, &w.UserID, &amount, &feeAmount, &networkFee,
		&totalRequired, &w.Currency, &w.PayoutKeyType, &w.PayoutKey,
		&w.DepositAddress, &w.DerivationIndex, &w.TxID, &paidAmount,
		&w.Confirmations, &excess, &status,
		&w.CreatedAt, &w.ExpiresAt, &w.EstimatedAt, &w.CompletedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if w.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if w.FeeAmount, err = decimal.NewFromString(feeAmount); err != nil {
		return nil, err
	}
	if w.NetworkFee, err = decimal.NewFromString(networkFee); err != nil {
		return nil, err
	}
	if w.TotalRequired, err = decimal.NewFromString(totalRequired); err != nil {
		return nil, err
	}
	if w.PaidAmount, err = decimal.NewFromString(paidAmount); err != nil {
		return nil, err
	}
	if w.ExcessAmount, err = decimal.NewFromString(excess); err != nil {
		return nil, err
	}
	w.Status = Status(status)
	return w, nil
}

func (s *Store) Create(ctx context.Context, w *Withdrawal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO withdrawals (
			id, user_id, amount, fee_amount, network_fee, total_required,
			currency, payout_key_type, payout_key, deposit_address,
			derivation_index, status, created_at, expires_at, estimated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		w.ID, w.UserID, w.Amount.String(), w.FeeAmount.String(),
		w.NetworkFee.String(), w.TotalRequired.String(), w.Currency,
		w.PayoutKeyType, w.PayoutKey, w.DepositAddress, w.DerivationIndex,
		string(w.Status), w.CreatedAt, w.ExpiresAt, w.EstimatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 on the partial unique index means a concurrent creation won.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveExists
		}
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Withdrawal, error) {
	w, err := scanWithdrawal(s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %v FROM withdrawals WHERE id = $1`, withdrawalColumns), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (s *Store) GetActive(ctx context.Context, userID string) (*Withdrawal, error) {
	w, err := scanWithdrawal(s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %v FROM withdrawals
		WHERE user_id = $1 AND status = ANY($2)
	`, withdrawalColumns), userID, statusStrings(ActiveStatuses)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

// ScanPayable returns rows the payment detector should look at: unexpired
// awaiting rows plus insufficient rows young enough for a top-up to arrive.
func (s *Store) ScanPayable(ctx context.Context, topUpWindow time.Duration, offset, limit int32) ([]*Withdrawal, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %v FROM withdrawals
		WHERE (status = $1 AND expires_at > now())
		   OR (status = $2 AND created_at > now() - $3::interval)
		ORDER BY created_at
		OFFSET $4 LIMIT $5
	`, withdrawalColumns),
		string(StatusAwaitingPayment), string(StatusInsufficientPayment),
		topUpWindow.String(), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	withdrawals := []*Withdrawal{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

// UpdatePayment applies the payment-observation transition conditionally: the
// row must still be in one of from. Returns false when a concurrent sweep or
// detector won the row.
func (s *Store) UpdatePayment(ctx context.Context, id string, from []Status, to Status, txid string, paid decimal.Decimal, confirmations uint32, excess decimal.Decimal) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE withdrawals
		SET status = $3, txid = $4, paid_amount = $5, confirmations = $6, excess_amount = $7
		WHERE id = $1 AND status = ANY($2)
	`, id, statusStrings(from), string(to), txid, paid.String(), confirmations, excess.String())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireDue terminalizes awaiting rows past their expiry and returns them for
// notification. Only AWAITING_PAYMENT rows qualify, so a payment observed in
// the same instant keeps the row.
func (s *Store) ExpireDue(ctx context.Context) ([]*Withdrawal, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		UPDATE withdrawals
		SET status = $2
		WHERE status = $1 AND expires_at <= now()
		RETURNING %v
	`, withdrawalColumns), string(StatusAwaitingPayment), string(StatusExpired))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expired := []*Withdrawal{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, w)
	}
	return expired, rows.Err()
}

// Complete transitions a payment-confirmed row to COMPLETED. Rejecting any
// other source state is the double-payout defense.
func (s *Store) Complete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE withdrawals
		SET status = $3, completed_at = now()
		WHERE id = $1 AND status = ANY($2)
	`, id, statusStrings([]Status{StatusPaymentDetected, StatusProcessing}), string(StatusCompleted))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Cancel(ctx context.Context, id, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE withdrawals
		SET status = $3
		WHERE id = $1 AND user_id = $2 AND status = $4
	`, id, userID, string(StatusCancelled), string(StatusAwaitingPayment))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func statusStrings(statuses []Status) []string {
	ss := make([]string, 0, len(statuses))
	for _, status := range statuses {
		ss = append(ss, string(status))
	}
	return ss
}
