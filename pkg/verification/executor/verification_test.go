package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixbridge/bridge-scheduler/pkg/payprovider"
	"github.com/pixbridge/bridge-scheduler/pkg/verification/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/verification/types"
)

type fakeProvider struct {
	status payprovider.Status
	err    error
}

func (p *fakeProvider) PaymentStatus(ctx context.Context, ref string) (payprovider.Status, error) {
	return p.status, p.err
}

func pending(age time.Duration) *store.Verification {
	now := time.Now()
	return &store.Verification{
		ID:          "v-1",
		UserID:      "user-1",
		ExternalRef: "ref-1",
		Status:      store.StatusPending,
		CreatedAt:   now.Add(-age),
		ExpiresAt:   now.Add(time.Hour),
	}
}

func runExec(t *testing.T, p Provider, v *store.Verification) (persistent, notif, done chan interface{}, err error) {
	t.Helper()
	persistent = make(chan interface{}, 1)
	notif = make(chan interface{}, 1)
	done = make(chan interface{}, 1)
	err = NewExecutor(p, 30*time.Minute).Exec(context.Background(), v, persistent, notif, done)
	return persistent, notif, done, err
}

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

func TestExecStillPending(t *testing.T) {
	_, _, done, err := runExec(t, &fakeProvider{status: payprovider.StatusPending}, pending(5*time.Minute))
	require.NoError(t, err)
	recv(t, done)
}

func TestExecCompleted(t *testing.T) {
	persistent, _, _, err := runExec(t, &fakeProvider{status: payprovider.StatusCompleted}, pending(5*time.Minute))
	require.NoError(t, err)

	p := recv(t, persistent).(*types.PersistentVerification)
	assert.Equal(t, store.StatusCompleted, p.NewStatus)
	assert.Empty(t, p.Reason)
}

func TestExecTerminalFailure(t *testing.T) {
	for _, status := range []payprovider.Status{
		payprovider.StatusCanceled,
		payprovider.StatusExpired,
		payprovider.StatusRefunded,
		payprovider.StatusError,
	} {
		persistent, _, _, err := runExec(t, &fakeProvider{status: status}, pending(5*time.Minute))
		require.NoError(t, err)

		p := recv(t, persistent).(*types.PersistentVerification)
		assert.Equal(t, store.StatusFailed, p.NewStatus, string(status))
		assert.Contains(t, p.Reason, string(status))
	}
}

func TestExecNotFoundFresh(t *testing.T) {
	// A reference the provider has not indexed yet stays pending.
	_, _, done, err := runExec(t, &fakeProvider{err: payprovider.ErrNotFound}, pending(5*time.Minute))
	require.NoError(t, err)
	recv(t, done)
}

func TestExecNotFoundStale(t *testing.T) {
	persistent, _, _, err := runExec(t, &fakeProvider{err: payprovider.ErrNotFound}, pending(45*time.Minute))
	require.NoError(t, err)

	p := recv(t, persistent).(*types.PersistentVerification)
	assert.Equal(t, store.StatusExpired, p.NewStatus)
}

func TestExecProviderError(t *testing.T) {
	_, notif, _, err := runExec(t, &fakeProvider{err: errors.New("timeout")}, pending(5*time.Minute))
	assert.Error(t, err)

	p := recv(t, notif).(*types.PersistentVerification)
	assert.Error(t, p.Error)
}

func TestExecNonPendingSkipped(t *testing.T) {
	v := pending(5 * time.Minute)
	v.Status = store.StatusCompleted

	// A manually triggered terminal row is never re-examined.
	_, _, done, err := runExec(t, &fakeProvider{status: payprovider.StatusCompleted}, v)
	require.NoError(t, err)
	recv(t, done)
}

func TestExecRejectsWrongType(t *testing.T) {
	err := NewExecutor(&fakeProvider{}, 30*time.Minute).Exec(context.Background(), 42,
		make(chan interface{}, 1), make(chan interface{}, 1), make(chan interface{}, 1))
	assert.Error(t, err)
}
