package notif

import (
	"context"
	"fmt"

	basenotif "github.com/pixbridge/bridge-scheduler/pkg/base/notif"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	"github.com/pixbridge/bridge-scheduler/pkg/notifier"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/withdraw/types"
)

type handler struct {
	notifier notifier.Notifier
}

func NewNotify(ntf notifier.Notifier) basenotif.Notify {
	return &handler{notifier: ntf}
}

func (h *handler) Notify(ctx context.Context, ent interface{}) error {
	_withdrawal, ok := ent.(*types.PersistentWithdrawal)
	if !ok {
		return fmt.Errorf("invalid withdrawal")
	}

	if _withdrawal.Error != nil {
		logger.Sugar().Errorw(
			"Notify",
			"WithdrawalID", _withdrawal.ID,
			"Status", _withdrawal.Status,
			"Error", _withdrawal.Error,
		)
		return nil
	}

	switch _withdrawal.NewStatus {
	case store.StatusPaymentDetected:
		if _withdrawal.Excess.IsPositive() {
			if err := h.notifier.NotifyUser(ctx, _withdrawal.UserID, fmt.Sprintf(
				"Payment of %v %v detected for your withdrawal. The excess of %v %v will be refunded manually.",
				_withdrawal.NewPaidAmount, _withdrawal.Currency,
				_withdrawal.Excess, _withdrawal.Currency,
			)); err != nil {
				return err
			}
			return h.notifier.NotifyOperator(ctx, fmt.Sprintf(
				"Withdrawal %v overpaid by %v %v; manual refund required.",
				_withdrawal.ID, _withdrawal.Excess, _withdrawal.Currency,
			))
		}
		return h.notifier.NotifyUser(ctx, _withdrawal.UserID, fmt.Sprintf(
			"Payment of %v %v detected (%v confirmations). Your withdrawal is being processed.",
			_withdrawal.NewPaidAmount, _withdrawal.Currency, _withdrawal.NewConfirmations,
		))
	case store.StatusInsufficientPayment:
		shortfall := _withdrawal.Difference.Neg()
		return h.notifier.NotifyUser(ctx, _withdrawal.UserID, fmt.Sprintf(
			"Payment received but %v %v short of the required %v %v. Send the remainder to the same address %v.",
			shortfall, _withdrawal.Currency,
			_withdrawal.TotalRequired, _withdrawal.Currency,
			_withdrawal.DepositAddress,
		))
	}
	return nil
}
