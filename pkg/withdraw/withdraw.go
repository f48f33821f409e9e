package withdraw

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pixbridge/bridge-scheduler/pkg/base"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	"github.com/pixbridge/bridge-scheduler/pkg/notifier"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/executor"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/notif"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/persistent"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/sentinel"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/store"
)

const Subsystem = "withdraw"

type Deps struct {
	Store       *store.Store
	Matcher     executor.Matcher
	Notifier    notifier.Notifier
	Tolerance   decimal.Decimal
	TopUpWindow time.Duration
}

var (
	h       *base.Handler
	running sync.Map
)

func Initialize(ctx context.Context, cancel context.CancelFunc, deps *Deps) {
	_h, err := base.NewHandler(
		ctx,
		cancel,
		base.WithSubsystem(Subsystem),
		base.WithScanInterval(30*time.Second),
		base.WithScanner(sentinel.NewSentinel(deps.Store, deps.TopUpWindow)),
		base.WithExec(executor.NewExecutor(deps.Matcher, deps.Tolerance)),
		base.WithExecutorNumber(4),
		base.WithPersistenter(persistent.NewPersistent(deps.Store)),
		base.WithNotify(notif.NewNotify(deps.Notifier)),
		base.WithRunningMap(&running),
	)
	if err != nil || _h == nil {
		if err != nil {
			logger.Sugar().Errorw(
				"Initialize",
				"Subsystem", Subsystem,
				"Error", err,
			)
		}
		return
	}

	h = _h
	go h.Run(ctx, cancel)
}

// Trigger re-checks one withdrawal outside the scan interval, e.g. right
// after creation.
func Trigger(id string) {
	if h != nil {
		h.Trigger(id)
	}
}

func Finalize(ctx context.Context) {
	if h != nil {
		h.Finalize(ctx)
	}
}
