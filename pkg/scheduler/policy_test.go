package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zeroIntervalPolicy() RetryPolicy {
	return RetryPolicy{
		Cycles:           5,
		AttemptsPerCycle: 3,
	}
}

func TestRetryPolicyExhaustion(t *testing.T) {
	calls := 0
	attempts, err := zeroIntervalPolicy().Run(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, 15, attempts)
	assert.Equal(t, 15, calls)
	assert.Equal(t, 15, zeroIntervalPolicy().MaxAttempts())
}

func TestRetryPolicyFirstSuccess(t *testing.T) {
	calls := 0
	attempts, err := zeroIntervalPolicy().Run(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyRecoversMidCycle(t *testing.T) {
	calls := 0
	attempts, err := zeroIntervalPolicy().Run(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 5 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, attempts)
}

func TestRetryPolicyLastErrorWins(t *testing.T) {
	calls := 0
	_, err := zeroIntervalPolicy().Run(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("failure " + string(rune('a'+calls-1)))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failure o")
}

func TestRetryPolicyPanicCounted(t *testing.T) {
	attempts, err := zeroIntervalPolicy().Run(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 15, attempts)
	assert.Contains(t, err.Error(), "boom")
}

func TestRetryPolicyCanceledContext(t *testing.T) {
	policy := DefaultRetryPolicy()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	attempts, _ := policy.Run(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("broken")
	})
	// The sleep before attempt two observes the canceled context.
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}
