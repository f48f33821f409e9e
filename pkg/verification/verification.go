package verification

import (
	"context"
	"sync"
	"time"

	"github.com/pixbridge/bridge-scheduler/pkg/base"
	"github.com/pixbridge/bridge-scheduler/pkg/ledger"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	"github.com/pixbridge/bridge-scheduler/pkg/notifier"
	"github.com/pixbridge/bridge-scheduler/pkg/verification/executor"
	"github.com/pixbridge/bridge-scheduler/pkg/verification/notif"
	"github.com/pixbridge/bridge-scheduler/pkg/verification/persistent"
	"github.com/pixbridge/bridge-scheduler/pkg/verification/sentinel"
	"github.com/pixbridge/bridge-scheduler/pkg/verification/store"
)

const Subsystem = "verification"

type Deps struct {
	Store          *store.Store
	Provider       executor.Provider
	Ledger         ledger.Ledger
	Notifier       notifier.Notifier
	Grace          time.Duration
	MaxAge         time.Duration
	NotFoundExpiry time.Duration
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
		base.WithScanInterval(time.Minute),
		base.WithScanner(sentinel.NewSentinel(deps.Store, deps.Grace, deps.MaxAge)),
		base.WithExec(executor.NewExecutor(deps.Provider, deps.NotFoundExpiry)),
		base.WithPersistenter(persistent.NewPersistent(deps.Store, deps.Ledger, deps.Notifier)),
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

// SweepAged terminalizes PENDING requests past the age ceiling. They already
// left the poller's scan set; the sweep makes the abandonment visible to the
// user. Per-row notification failures never abort the sweep.
func SweepAged(ctx context.Context, s *store.Store, ntf notifier.Notifier, maxAge time.Duration) (int, error) {
	expired, err := s.ExpireAged(ctx, maxAge)
	if err != nil {
		return 0, err
	}

	for _, verification := range expired {
		if err := ntf.NotifyUser(ctx, verification.UserID,
			"Your verification request expired. Please start a new verification."); err != nil {
			logger.Sugar().Infow(
				"SweepAged",
				"VerificationID", verification.ID,
				"Error", err,
			)
		}
	}
	return len(expired), nil
}
