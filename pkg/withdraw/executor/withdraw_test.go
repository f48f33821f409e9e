package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixbridge/bridge-scheduler/pkg/matcher"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/withdraw/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeMatcher struct {
	result *matcher.Result
	err    error
}

func (m *fakeMatcher) CheckPayment(ctx context.Context, index uint64, expected, tolerancePercent decimal.Decimal) (*matcher.Result, error) {
	return m.result, m.err
}

func awaiting() *store.Withdrawal {
	return &store.Withdrawal{
		ID:              "w-1",
		UserID:          "user-1",
		TotalRequired:   dec("512.90"),
		DerivationIndex: 7,
		Status:          store.StatusAwaitingPayment,
		PaidAmount:      decimal.Zero,
	}
}

func runExec(t *testing.T, m Matcher, w *store.Withdrawal) (persistent, notif, done chan interface{}, err error) {
	t.Helper()
	persistent = make(chan interface{}, 1)
	notif = make(chan interface{}, 1)
	done = make(chan interface{}, 1)
	err = NewExecutor(m, dec("0.1")).Exec(context.Background(), w, persistent, notif, done)
	return persistent, notif, done, err
}

// Exactly one entity is fed per execution, so receiving from the expected
// channel also proves the others stayed empty.
func recv(t *testing.T, ch chan interface{}) interface{} {
	t.Helper()
	select {
	case ent := <-ch:
		return ent
	case <-time.After(2 * time.Second):
		t.Fatal("no entity fed")
		return nil
	}
}

func TestExecNoPayment(t *testing.T) {
	m := &fakeMatcher{result: &matcher.Result{Status: matcher.StatusNotFound}}
	_, _, done, err := runExec(t, m, awaiting())
	require.NoError(t, err)

	w := recv(t, done).(*store.Withdrawal)
	assert.Equal(t, store.StatusAwaitingPayment, w.Status)
}

func TestExecCorrectPayment(t *testing.T) {
	m := &fakeMatcher{result: &matcher.Result{
		Found:         true,
		Status:        matcher.StatusCorrect,
		TxID:          "tx1",
		Amount:        dec("512.90"),
		Confirmations: 2,
	}}
	persistent, _, _, err := runExec(t, m, awaiting())
	require.NoError(t, err)

	p := recv(t, persistent).(*types.PersistentWithdrawal)
	assert.Equal(t, store.StatusPaymentDetected, p.NewStatus)
	assert.Equal(t, "tx1", p.NewTxID)
	assert.True(t, p.NewPaidAmount.Equal(dec("512.90")))
	assert.Equal(t, uint32(2), p.NewConfirmations)
	assert.True(t, p.Excess.IsZero())
}

func TestExecExcessPayment(t *testing.T) {
	m := &fakeMatcher{result: &matcher.Result{
		Found:      true,
		Status:     matcher.StatusExcess,
		TxID:       "tx1",
		Amount:     dec("520.00"),
		Difference: dec("7.10"),
	}}
	persistent, _, _, err := runExec(t, m, awaiting())
	require.NoError(t, err)

	p := recv(t, persistent).(*types.PersistentWithdrawal)
	// An overpaid row still advances; the excess is recorded for manual refund.
	assert.Equal(t, store.StatusPaymentDetected, p.NewStatus)
	assert.True(t, p.Excess.Equal(dec("7.10")))
}

func TestExecInsufficientPayment(t *testing.T) {
	m := &fakeMatcher{result: &matcher.Result{
		Found:      true,
		Status:     matcher.StatusInsufficient,
		TxID:       "tx1",
		Amount:     dec("500.00"),
		Difference: dec("-12.90"),
	}}
	persistent, _, _, err := runExec(t, m, awaiting())
	require.NoError(t, err)

	p := recv(t, persistent).(*types.PersistentWithdrawal)
	assert.Equal(t, store.StatusInsufficientPayment, p.NewStatus)
	assert.True(t, p.Difference.Equal(dec("-12.90")))
}

func TestExecTopUpObserved(t *testing.T) {
	w := awaiting()
	w.Status = store.StatusInsufficientPayment
	w.PaidAmount = dec("500.00")

	m := &fakeMatcher{result: &matcher.Result{
		Found:  true,
		Status: matcher.StatusCorrect,
		TxID:   "tx2",
		Amount: dec("512.90"),
	}}
	persistent, _, _, err := runExec(t, m, w)
	require.NoError(t, err)

	p := recv(t, persistent).(*types.PersistentWithdrawal)
	assert.Equal(t, store.StatusPaymentDetected, p.NewStatus)
	assert.True(t, p.AmountChanged)
}

func TestExecUnchangedInsufficientIsQuiet(t *testing.T) {
	// Same insufficient total observed again: no new persist, no new message.
	w := awaiting()
	w.Status = store.StatusInsufficientPayment
	w.PaidAmount = dec("500.00")

	m := &fakeMatcher{result: &matcher.Result{
		Found:  true,
		Status: matcher.StatusInsufficient,
		TxID:   "tx1",
		Amount: dec("500.00"),
	}}
	_, _, done, err := runExec(t, m, w)
	require.NoError(t, err)
	recv(t, done)
}

func TestExecSubCentMovementIgnored(t *testing.T) {
	w := awaiting()
	w.Status = store.StatusInsufficientPayment
	w.PaidAmount = dec("500.00")

	m := &fakeMatcher{result: &matcher.Result{
		Found:  true,
		Status: matcher.StatusInsufficient,
		TxID:   "tx1",
		Amount: dec("500.01"),
	}}
	_, _, done, err := runExec(t, m, w)
	require.NoError(t, err)
	recv(t, done)
}

func TestExecMatcherError(t *testing.T) {
	m := &fakeMatcher{err: errors.New("signer down")}
	_, notif, _, err := runExec(t, m, awaiting())
	assert.Error(t, err)

	p := recv(t, notif).(*types.PersistentWithdrawal)
	assert.Error(t, p.Error)
}

func TestExecRejectsWrongType(t *testing.T) {
	err := NewExecutor(&fakeMatcher{}, dec("0.1")).Exec(context.Background(), "nope",
		make(chan interface{}, 1), make(chan interface{}, 1), make(chan interface{}, 1))
	assert.Error(t, err)
}
