package action

import (
	"context"

	"github.com/pixbridge/bridge-scheduler/pkg/logger"
)

// Watch runs fn and cancels the whole watch tree if fn panics. One panicing
// subsystem must not take the process down silently.
func Watch(ctx context.Context, cancel context.CancelFunc, fn func(ctx context.Context)) {
	defer func() {
		if err := recover(); err != nil {
			logger.Sugar().Errorw(
				"Watch",
				"State", "Panic",
				"Error", err,
			)
			cancel()
		}
	}()
	fn(ctx)
}
