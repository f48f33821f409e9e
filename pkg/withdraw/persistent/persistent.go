package persistent

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	asyncfeed "github.com/pixbridge/bridge-scheduler/pkg/base/asyncfeed"
	basepersistent "github.com/pixbridge/bridge-scheduler/pkg/base/persistent"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/withdraw/types"
)

type Store interface {
	UpdatePayment(ctx context.Context, id string, from []store.Status, to store.Status, txid string, paid decimal.Decimal, confirmations uint32, excess decimal.Decimal) (bool, error)
}

type handler struct {
	store Store
}

func NewPersistent(s Store) basepersistent.Persistenter {
	return &handler{store: s}
}

func (p *handler) Update(ctx context.Context, ent interface{}, notif, done chan interface{}) error {
	_withdrawal, ok := ent.(*types.PersistentWithdrawal)
	if !ok {
		return fmt.Errorf("invalid withdrawal")
	}
	defer asyncfeed.AsyncFeed(ctx, _withdrawal, done)

	// Conditional on the status we scanned: if the expiry sweep or another
	// detector already moved the row, this is a no-op.
	updated, err := p.store.UpdatePayment(
		ctx,
		_withdrawal.ID,
		[]store.Status{_withdrawal.Status},
		_withdrawal.NewStatus,
		_withdrawal.NewTxID,
		_withdrawal.NewPaidAmount,
		_withdrawal.NewConfirmations,
		_withdrawal.Excess,
	)
	if err != nil {
		return err
	}
	if !updated {
		logger.Sugar().Infow(
			"Update",
			"WithdrawalID", _withdrawal.ID,
			"Status", _withdrawal.Status,
			"NewStatus", _withdrawal.NewStatus,
			"State", "Lost race",
		)
		return nil
	}

	asyncfeed.AsyncFeed(ctx, _withdrawal, notif)
	return nil
}
