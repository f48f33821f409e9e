package notif

import (
	"context"
	"fmt"

	basenotif "github.com/pixbridge/bridge-scheduler/pkg/base/notif"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	"github.com/pixbridge/bridge-scheduler/pkg/notifier"
	"github.com/pixbridge/bridge-scheduler/pkg/verification/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/verification/types"
)

type handler struct {
	notifier notifier.Notifier
}

func NewNotify(ntf notifier.Notifier) basenotif.Notify {
	return &handler{notifier: ntf}
}

func (h *handler) Notify(ctx context.Context, ent interface{}) error {
	_verification, ok := ent.(*types.PersistentVerification)
	if !ok {
		return fmt.Errorf("invalid verification")
	}

	if _verification.Error != nil {
		logger.Sugar().Errorw(
			"Notify",
			"VerificationID", _verification.ID,
			"ExternalRef", _verification.ExternalRef,
			"Error", _verification.Error,
		)
		return nil
	}

	switch _verification.NewStatus {
	case store.StatusCompleted:
		return h.notifier.NotifyUser(ctx, _verification.UserID,
			"Your verification payment was confirmed. Your account is now verified.")
	case store.StatusFailed:
		return h.notifier.NotifyUser(ctx, _verification.UserID, fmt.Sprintf(
			"Your verification payment did not complete (%v). Please start a new verification.",
			_verification.Reason,
		))
	case store.StatusExpired:
		return h.notifier.NotifyUser(ctx, _verification.UserID,
			"Your verification request expired. Please start a new verification.")
	}
	return nil
}
