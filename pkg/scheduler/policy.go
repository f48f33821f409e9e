package scheduler

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is the bounded multi-cycle backoff applied to critical jobs:
// each cycle makes up to AttemptsPerCycle attempts AttemptInterval apart;
// exhausted cycles are CycleInterval apart. The loop exits on first success.
type RetryPolicy struct {
	Cycles           int
	AttemptsPerCycle int
	AttemptInterval  time.Duration
	CycleInterval    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Cycles:           5,
		AttemptsPerCycle: 3,
		AttemptInterval:  30 * time.Second,
		CycleInterval:    5 * time.Minute,
	}
}

func (p RetryPolicy) MaxAttempts() int {
	return p.Cycles * p.AttemptsPerCycle
}

// Run drives body through the full retry state machine within a single
// firing. It returns the attempt count together with the last error, or nil
// on success.
func (p RetryPolicy) Run(ctx context.Context, body JobFunc) (int, error) {
	attempts := 0
	var lastErr error

	for cycle := 0; cycle < p.Cycles; cycle++ {
		if cycle > 0 {
			if err := sleep(ctx, p.CycleInterval); err != nil {
				return attempts, lastErr
			}
		}
		for attempt := 0; attempt < p.AttemptsPerCycle; attempt++ {
			if attempt > 0 {
				if err := sleep(ctx, p.AttemptInterval); err != nil {
					return attempts, lastErr
				}
			}
			attempts++
			if err := safeCall(ctx, body); err != nil {
				lastErr = err
				continue
			}
			return attempts, nil
		}
	}
	return attempts, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func safeCall(ctx context.Context, body JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job paniced: %v", r)
		}
	}()
	return body(ctx)
}
