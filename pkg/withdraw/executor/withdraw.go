package executor

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	asyncfeed "github.com/pixbridge/bridge-scheduler/pkg/base/asyncfeed"
	baseexecutor "github.com/pixbridge/bridge-scheduler/pkg/base/executor"
	"github.com/pixbridge/bridge-scheduler/pkg/matcher"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/withdraw/types"
)

// A movement of at most one cent is treated as the same observation; the user
// is not notified again.
var changeEpsilon = decimal.NewFromFloat(0.01)

type Matcher interface {
	CheckPayment(ctx context.Context, index uint64, expected, tolerancePercent decimal.Decimal) (*matcher.Result, error)
}

type withdrawalHandler struct {
	*store.Withdrawal
	matcher    Matcher
	tolerance  decimal.Decimal
	persistent chan interface{}
	notif      chan interface{}
	done       chan interface{}
	newStatus  store.Status
	result     *matcher.Result
}

func (h *withdrawalHandler) checkPayment(ctx context.Context) error {
	result, err := h.matcher.CheckPayment(ctx, h.DerivationIndex, h.TotalRequired, h.tolerance)
	if err != nil {
		return err
	}
	h.result = result
	if !result.Found {
		return nil
	}

	switch result.Status {
	case matcher.StatusCorrect, matcher.StatusExcess:
		h.newStatus = store.StatusPaymentDetected
	case matcher.StatusInsufficient:
		h.newStatus = store.StatusInsufficientPayment
	}
	return nil
}

func (h *withdrawalHandler) amountChanged() bool {
	if h.result == nil || !h.result.Found {
		return false
	}
	return h.result.Amount.Sub(h.PaidAmount).Abs().Cmp(changeEpsilon) > 0
}

func (h *withdrawalHandler) final(ctx context.Context, err *error) {
	changed := h.amountChanged()
	if h.newStatus == h.Status && !changed && *err == nil {
		asyncfeed.AsyncFeed(ctx, h.Withdrawal, h.done)
		return
	}

	persistentWithdrawal := &types.PersistentWithdrawal{
		Withdrawal:    h.Withdrawal,
		NewStatus:     h.newStatus,
		AmountChanged: changed,
		Error:         *err,
	}
	if h.result != nil && h.result.Found {
		persistentWithdrawal.NewTxID = h.result.TxID
		persistentWithdrawal.NewPaidAmount = h.result.Amount
		persistentWithdrawal.NewConfirmations = h.result.Confirmations
		persistentWithdrawal.Difference = h.result.Difference
		if h.result.Status == matcher.StatusExcess {
			persistentWithdrawal.Excess = h.result.Difference
		}
	}

	if *err != nil {
		asyncfeed.AsyncFeed(ctx, persistentWithdrawal, h.notif)
		asyncfeed.AsyncFeed(ctx, h.Withdrawal, h.done)
		return
	}
	asyncfeed.AsyncFeed(ctx, persistentWithdrawal, h.persistent)
}

func (h *withdrawalHandler) exec(ctx context.Context) error {
	h.newStatus = h.Status

	var err error
	defer h.final(ctx, &err)

	if err = h.checkPayment(ctx); err != nil {
		return err
	}
	return nil
}

type exec struct {
	matcher   Matcher
	tolerance decimal.Decimal
}

func NewExecutor(m Matcher, tolerance decimal.Decimal) baseexecutor.Exec {
	return &exec{
		matcher:   m,
		tolerance: tolerance,
	}
}

func (e *exec) Exec(ctx context.Context, ent interface{}, persistent, notif, done chan interface{}) error {
	withdrawal, ok := ent.(*store.Withdrawal)
	if !ok {
		return fmt.Errorf("invalid withdrawal")
	}

	h := &withdrawalHandler{
		Withdrawal: withdrawal,
		matcher:    e.matcher,
		tolerance:  e.tolerance,
		persistent: persistent,
		notif:      notif,
		done:       done,
	}
	return h.exec(ctx)
}
