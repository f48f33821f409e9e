package persistent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/withdraw/types"
)

type fakeStore struct {
	updated bool
	err     error
	calls   int
	from    []store.Status
	to      store.Status
}

func (s *fakeStore) UpdatePayment(ctx context.Context, id string, from []store.Status, to store.Status, txid string, paid decimal.Decimal, confirmations uint32, excess decimal.Decimal) (bool, error) {
	s.calls++
	s.from = from
	s.to = to
	return s.updated, s.err
}

func detectedEnt() *types.PersistentWithdrawal {
	return &types.PersistentWithdrawal{
		Withdrawal: &store.Withdrawal{
			ID:            "w-1",
			UserID:        "user-1",
			TotalRequired: decimal.RequireFromString("512.90"),
			Status:        store.StatusAwaitingPayment,
			CreatedAt:     time.Now(),
		},
		NewStatus:        store.StatusPaymentDetected,
		NewTxID:          "txid-1",
		NewPaidAmount:    decimal.RequireFromString("512.90"),
		NewConfirmations: 2,
	}
}

func recv(t *testing.T, ch chan interface{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no entity fed")
	}
}

func TestUpdateWinsTransition(t *testing.T) {
	s := &fakeStore{updated: true}
	p := NewPersistent(s)

	notif := make(chan interface{}, 1)
	done := make(chan interface{}, 1)
	require.NoError(t, p.Update(context.Background(), detectedEnt(), notif, done))
	recv(t, done)
	recv(t, notif)

	assert.Equal(t, 1, s.calls)
	assert.Equal(t, []store.Status{store.StatusAwaitingPayment}, s.from)
	assert.Equal(t, store.StatusPaymentDetected, s.to)
}

func TestUpdateLostRaceToExpirySweep(t *testing.T) {
	// The sweep terminalized the row between scan and write; the conditional
	// update is a no-op and the user must not hear about a detected payment.
	s := &fakeStore{updated: false}
	p := NewPersistent(s)

	notif := make(chan interface{}, 1)
	done := make(chan interface{}, 1)
	require.NoError(t, p.Update(context.Background(), detectedEnt(), notif, done))
	recv(t, done)

	assert.Equal(t, 1, s.calls)
	assert.Empty(t, notif)
}

func TestUpdateConditionsOnScannedStatus(t *testing.T) {
	// A top-up advances from INSUFFICIENT_PAYMENT, never from AWAITING_PAYMENT.
	s := &fakeStore{updated: true}
	p := NewPersistent(s)

	ent := detectedEnt()
	ent.Status = store.StatusInsufficientPayment
	ent.AmountChanged = true

	notif := make(chan interface{}, 1)
	done := make(chan interface{}, 1)
	require.NoError(t, p.Update(context.Background(), ent, notif, done))
	recv(t, done)
	recv(t, notif)

	assert.Equal(t, []store.Status{store.StatusInsufficientPayment}, s.from)
}

func TestUpdateStoreError(t *testing.T) {
	p := NewPersistent(&fakeStore{err: errors.New("connection refused")})

	notif := make(chan interface{}, 1)
	done := make(chan interface{}, 1)
	assert.Error(t, p.Update(context.Background(), detectedEnt(), notif, done))
	recv(t, done)
	assert.Empty(t, notif)
}

func TestUpdateRejectsWrongType(t *testing.T) {
	p := NewPersistent(&fakeStore{})
	assert.Error(t, p.Update(context.Background(), "nope",
		make(chan interface{}, 1), make(chan interface{}, 1)))
}
