package persistent

import (
	"context"
	"fmt"

	asyncfeed "github.com/pixbridge/bridge-scheduler/pkg/base/asyncfeed"
	basepersistent "github.com/pixbridge/bridge-scheduler/pkg/base/persistent"
	"github.com/pixbridge/bridge-scheduler/pkg/ledger"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	"github.com/pixbridge/bridge-scheduler/pkg/notifier"
	"github.com/pixbridge/bridge-scheduler/pkg/verification/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/verification/types"
)

type Store interface {
	UpdateFromPending(ctx context.Context, id string, to store.Status) (bool, error)
}

type handler struct {
	store    Store
	ledger   ledger.Ledger
	notifier notifier.Notifier
}

func NewPersistent(s Store, l ledger.Ledger, ntf notifier.Notifier) basepersistent.Persistenter {
	return &handler{
		store:    s,
		ledger:   l,
		notifier: ntf,
	}
}

func (p *handler) Update(ctx context.Context, ent interface{}, notif, done chan interface{}) error {
	_verification, ok := ent.(*types.PersistentVerification)
	if !ok {
		return fmt.Errorf("invalid verification")
	}
	defer asyncfeed.AsyncFeed(ctx, _verification, done)

	// Winning the PENDING -> terminal transition is the side-effect guard: a
	// webhook landing concurrently leaves this a no-op.
	updated, err := p.store.UpdateFromPending(ctx, _verification.ID, _verification.NewStatus)
	if err != nil {
		return err
	}
	if !updated {
		return nil
	}

	if _verification.NewStatus == store.StatusCompleted {
		if err := p.applyCompletion(ctx, _verification.UserID); err != nil {
			// The transition is already durable; only the bookkeeping lagged.
			logger.Sugar().Errorw(
				"Update",
				"VerificationID", _verification.ID,
				"UserID", _verification.UserID,
				"State", "ApplyCompletion",
				"Error", err,
			)
		}
	}

	asyncfeed.AsyncFeed(ctx, _verification, notif)
	return nil
}

func (p *handler) applyCompletion(ctx context.Context, userID string) error {
	if err := p.ledger.MarkUserVerified(ctx, userID); err != nil {
		return err
	}
	return p.ledger.ApplyBaselineLimits(ctx, userID)
}
