package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	"github.com/pixbridge/bridge-scheduler/pkg/notifier"
	"github.com/pixbridge/bridge-scheduler/pkg/signer"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/store"
)

var (
	ErrAmountOutOfRange = errors.New("amount outside allowed band")
	ErrActiveWithdrawal = errors.New("user already has an active withdrawal; complete or cancel it first")
	ErrNotCancelable    = errors.New("withdrawal not cancelable in its current state")
	ErrNotCompletable   = errors.New("withdrawal not in a payment-confirmed state")
)

type Store interface {
	Create(ctx context.Context, w *store.Withdrawal) error
	Get(ctx context.Context, id string) (*store.Withdrawal, error)
	GetActive(ctx context.Context, userID string) (*store.Withdrawal, error)
	ExpireDue(ctx context.Context) ([]*store.Withdrawal, error)
	Complete(ctx context.Context, id string) (bool, error)
	Cancel(ctx context.Context, id, userID string) (bool, error)
}

type IndexSource interface {
	NextIndex(ctx context.Context) (uint64, error)
}

// Rand is the randomness source for the network-fee draw and the completion
// delay. Injected so tests can pin it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

type Config struct {
	MinAmount     decimal.Decimal
	MaxAmount     decimal.Decimal
	FeePercent    decimal.Decimal
	NetworkFeeMin decimal.Decimal
	NetworkFeeMax decimal.Decimal
	Expiry        time.Duration
	Currency      string
}

type Ledger struct {
	store     Store
	indexes   IndexSource
	signer    signer.Signer
	notifier  notifier.Notifier
	timetable *Timetable
	cfg       Config

	rand  Rand
	mutex sync.Mutex
}

func New(s Store, indexes IndexSource, sig signer.Signer, ntf notifier.Notifier, timetable *Timetable, cfg Config, options ...func(*Ledger)) *Ledger {
	l := &Ledger{
		store:     s,
		indexes:   indexes,
		signer:    sig,
		notifier:  ntf,
		timetable: timetable,
		cfg:       cfg,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func WithRand(r Rand) func(*Ledger) {
	return func(l *Ledger) {
		l.rand = r
	}
}

// Fees computes the fee breakdown for a requested payout. The network fee is
// drawn once at creation time and frozen on the row.
func (l *Ledger) Fees(amount decimal.Decimal) (fee, networkFee, total decimal.Decimal) {
	fee = amount.Mul(l.cfg.FeePercent).Div(decimal.NewFromInt(100)).Round(2)
	networkFee = l.drawNetworkFee()
	total = amount.Add(fee).Add(networkFee).Round(2)
	return fee, networkFee, total
}

func (l *Ledger) drawNetworkFee() decimal.Decimal {
	l.mutex.Lock()
	r := l.rand.Float64()
	l.mutex.Unlock()

	span := l.cfg.NetworkFeeMax.Sub(l.cfg.NetworkFeeMin)
	return l.cfg.NetworkFeeMin.Add(span.Mul(decimal.NewFromFloat(r))).Round(2)
}

// EstimateCompletion is advisory only; nothing in the state machine consults
// it.
func (l *Ledger) EstimateCompletion(now time.Time) time.Time {
	l.mutex.Lock()
	delay := time.Duration(30+l.rand.Intn(91)) * time.Minute
	l.mutex.Unlock()

	if l.timetable.InWindow(now) {
		return now.Add(delay)
	}
	return l.timetable.NextStart(now).Add(delay)
}

func (l *Ledger) Create(ctx context.Context, userID string, amount decimal.Decimal, payoutKeyType, payoutKey string) (*store.Withdrawal, error) {
	if amount.Cmp(l.cfg.MinAmount) < 0 || amount.Cmp(l.cfg.MaxAmount) > 0 {
		return nil, fmt.Errorf("%w: %v not in [%v, %v]",
			ErrAmountOutOfRange, amount, l.cfg.MinAmount, l.cfg.MaxAmount)
	}

	active, err := l.store.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrActiveWithdrawal
	}

	index, err := l.indexes.NextIndex(ctx)
	if err != nil {
		return nil, err
	}
	address, err := l.signer.Derive(ctx, index)
	if err != nil {
		return nil, err
	}

	fee, networkFee, total := l.Fees(amount)
	now := time.Now()

	w := &store.Withdrawal{
		ID:              uuid.NewString(),
		UserID:          userID,
		Amount:          amount,
		FeeAmount:       fee,
		NetworkFee:      networkFee,
		TotalRequired:   total,
		Currency:        l.cfg.Currency,
		PayoutKeyType:   payoutKeyType,
		PayoutKey:       payoutKey,
		DepositAddress:  address,
		DerivationIndex: index,
		Status:          store.StatusAwaitingPayment,
		CreatedAt:       now,
		ExpiresAt:       now.Add(l.cfg.Expiry),
		EstimatedAt:     l.EstimateCompletion(now),
	}

	if err := l.store.Create(ctx, w); err != nil {
		if errors.Is(err, store.ErrActiveExists) {
			return nil, ErrActiveWithdrawal
		}
		return nil, err
	}
	return w, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*store.Withdrawal, error) {
	return l.store.Get(ctx, id)
}

func (l *Ledger) Cancel(ctx context.Context, id, userID string) error {
	ok, err := l.store.Cancel(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotCancelable
	}
	return nil
}

// Complete is the operator action that releases the payout.
func (l *Ledger) Complete(ctx context.Context, id string) error {
	ok, err := l.store.Complete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		// Name the state that blocked the payout so the operator sees why.
		if w, gerr := l.store.Get(ctx, id); gerr == nil && w != nil &&
			!store.CanTransition(w.Status, store.StatusCompleted) {
			return fmt.Errorf("%w: status %v", ErrNotCompletable, w.Status)
		}
		return ErrNotCompletable
	}

	w, err := l.store.Get(ctx, id)
	if err != nil || w == nil {
		return err
	}
	if err := l.notifier.NotifyUser(ctx, w.UserID,
		fmt.Sprintf("Your withdrawal of %v %v was paid out.", w.Amount, w.Currency)); err != nil {
		logger.Sugar().Infow(
			"Complete",
			"WithdrawalID", id,
			"Error", err,
		)
	}
	return nil
}

// SweepExpired terminalizes overdue awaiting rows. Per-row notification
// failures are logged and counted, never aborting the sweep.
func (l *Ledger) SweepExpired(ctx context.Context) (int, error) {
	expired, err := l.store.ExpireDue(ctx)
	if err != nil {
		return 0, err
	}

	for _, w := range expired {
		if err := l.notifier.NotifyUser(ctx, w.UserID,
			fmt.Sprintf("Your withdrawal request expired without payment. Deposit address %v is no longer watched.", w.DepositAddress)); err != nil {
			logger.Sugar().Infow(
				"SweepExpired",
				"WithdrawalID", w.ID,
				"Error", err,
			)
		}
	}
	return len(expired), nil
}
