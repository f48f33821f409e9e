package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	asyncfeed "github.com/pixbridge/bridge-scheduler/pkg/base/asyncfeed"
	baseexecutor "github.com/pixbridge/bridge-scheduler/pkg/base/executor"
	"github.com/pixbridge/bridge-scheduler/pkg/payprovider"
	"github.com/pixbridge/bridge-scheduler/pkg/verification/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/verification/types"
)

type Provider interface {
	PaymentStatus(ctx context.Context, ref string) (payprovider.Status, error)
}

type verificationHandler struct {
	*store.Verification
	provider        Provider
	notFoundExpiry  time.Duration
	persistent      chan interface{}
	notif           chan interface{}
	done            chan interface{}
	newStatus       store.Status
	reason          string
}

func (h *verificationHandler) checkStatus(ctx context.Context) error {
	status, err := h.provider.PaymentStatus(ctx, h.ExternalRef)
	if err != nil {
		if errors.Is(err, payprovider.ErrNotFound) {
			// The provider never saw it; age it out once it is clearly stale.
			if time.Since(h.CreatedAt) > h.notFoundExpiry {
				h.newStatus = store.StatusExpired
				h.reason = "reference unknown to provider"
			}
			return nil
		}
		return err
	}

	switch {
	case status == payprovider.StatusCompleted:
		h.newStatus = store.StatusCompleted
	case status.Terminal():
		h.newStatus = store.StatusFailed
		h.reason = fmt.Sprintf("provider status %v", status)
	}
	return nil
}

func (h *verificationHandler) final(ctx context.Context, err *error) {
	if h.newStatus == h.Status && *err == nil {
		asyncfeed.AsyncFeed(ctx, h.Verification, h.done)
		return
	}

	persistentVerification := &types.PersistentVerification{
		Verification: h.Verification,
		NewStatus:    h.newStatus,
		Reason:       h.reason,
		Error:        *err,
	}
	if *err != nil {
		asyncfeed.AsyncFeed(ctx, persistentVerification, h.notif)
		asyncfeed.AsyncFeed(ctx, h.Verification, h.done)
		return
	}
	asyncfeed.AsyncFeed(ctx, persistentVerification, h.persistent)
}

func (h *verificationHandler) exec(ctx context.Context) error {
	h.newStatus = h.Status

	var err error
	defer h.final(ctx, &err)

	// Idempotent against re-observation: terminal rows never come back from
	// the sentinel, but a manual trigger may still hand one in.
	if h.Status != store.StatusPending {
		return nil
	}

	if err = h.checkStatus(ctx); err != nil {
		return err
	}
	return nil
}

type exec struct {
	provider       Provider
	notFoundExpiry time.Duration
}

func NewExecutor(provider Provider, notFoundExpiry time.Duration) baseexecutor.Exec {
	return &exec{
		provider:       provider,
		notFoundExpiry: notFoundExpiry,
	}
}

func (e *exec) Exec(ctx context.Context, ent interface{}, persistent, notif, done chan interface{}) error {
	verification, ok := ent.(*store.Verification)
	if !ok {
		return fmt.Errorf("invalid verification")
	}

	h := &verificationHandler{
		Verification:   verification,
		provider:       e.provider,
		notFoundExpiry: e.notFoundExpiry,
		persistent:     persistent,
		notif:          notif,
		done:           done,
	}
	return h.exec(ctx)
}
