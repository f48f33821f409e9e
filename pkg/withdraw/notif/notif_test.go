package notif

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type fakeNotifier struct {
	user     []string
	operator []string
}

func (n *fakeNotifier) NotifyUser(ctx context.Context, userID, message string) error {
	n.user = append(n.user, message)
	return nil
}

func (n *fakeNotifier) NotifyOperator(ctx context.Context, message string) error {
	n.operator = append(n.operator, message)
	return nil
}

func ent() *types.PersistentWithdrawal {
	return &types.PersistentWithdrawal{
		Withdrawal: &store.Withdrawal{
			ID:             "w-1",
			UserID:         "user-1",
			Currency:       "BRL",
			TotalRequired:  dec("512.90"),
			DepositAddress: "lq1addr",
			Status:         store.StatusAwaitingPayment,
		},
	}
}

func TestNotifyDetected(t *testing.T) {
	ntf := &fakeNotifier{}
	h := NewNotify(ntf)

	e := ent()
	e.NewStatus = store.StatusPaymentDetected
	e.NewPaidAmount = dec("512.90")
	e.NewConfirmations = 2

	require.NoError(t, h.Notify(context.Background(), e))
	require.Len(t, ntf.user, 1)
	assert.Contains(t, ntf.user[0], "512.9")
	assert.Contains(t, ntf.user[0], "2 confirmations")
	assert.Empty(t, ntf.operator)
}

func TestNotifyExcessAlertsOperator(t *testing.T) {
	ntf := &fakeNotifier{}
	h := NewNotify(ntf)

	e := ent()
	e.NewStatus = store.StatusPaymentDetected
	e.NewPaidAmount = dec("520.00")
	e.Excess = dec("7.10")

	require.NoError(t, h.Notify(context.Background(), e))
	require.Len(t, ntf.user, 1)
	assert.Contains(t, ntf.user[0], "refunded manually")
	require.Len(t, ntf.operator, 1)
	assert.Contains(t, ntf.operator[0], "manual refund")
}

func TestNotifyInsufficientNamesShortfall(t *testing.T) {
	ntf := &fakeNotifier{}
	h := NewNotify(ntf)

	e := ent()
	e.NewStatus = store.StatusInsufficientPayment
	e.NewPaidAmount = dec("500.00")
	e.Difference = dec("-12.90")

	require.NoError(t, h.Notify(context.Background(), e))
	require.Len(t, ntf.user, 1)
	assert.Contains(t, ntf.user[0], "12.9")
	assert.Contains(t, ntf.user[0], "lq1addr")
}

func TestNotifyErrorOnlyLogs(t *testing.T) {
	ntf := &fakeNotifier{}
	h := NewNotify(ntf)

	e := ent()
	e.Error = errors.New("signer down")

	require.NoError(t, h.Notify(context.Background(), e))
	assert.Empty(t, ntf.user)
	assert.Empty(t, ntf.operator)
}

func TestNotifyRejectsWrongType(t *testing.T) {
	h := NewNotify(&fakeNotifier{})
	assert.Error(t, h.Notify(context.Background(), struct{}{}))
}
