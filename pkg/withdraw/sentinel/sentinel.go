package sentinel

import (
	"context"
	"fmt"
	"time"

	cancelablefeed "github.com/pixbridge/bridge-scheduler/pkg/base/cancelablefeed"
	basesentinel "github.com/pixbridge/bridge-scheduler/pkg/base/sentinel"
	constant "github.com/pixbridge/bridge-scheduler/pkg/const"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/withdraw/types"
)

type handler struct {
	store       *store.Store
	topUpWindow time.Duration
}

func NewSentinel(s *store.Store, topUpWindow time.Duration) basesentinel.Scanner {
	return &handler{
		store:       s,
		topUpWindow: topUpWindow,
	}
}

func (h *handler) Scan(ctx context.Context, exec chan interface{}) error {
	offset := int32(0)
	limit := constant.DefaultRowLimit

	for {
		withdrawals, err := h.store.ScanPayable(ctx, h.topUpWindow, offset, limit)
		if err != nil {
			return err
		}
		if len(withdrawals) == 0 {
			return nil
		}

		for _, withdrawal := range withdrawals {
			cancelablefeed.CancelableFeed(ctx, withdrawal, exec)
		}

		offset += limit
	}
}

func (h *handler) InitScan(ctx context.Context, exec chan interface{}) error {
	return nil
}

func (h *handler) TriggerScan(ctx context.Context, cond interface{}, exec chan interface{}) error {
	id, ok := cond.(string)
	if !ok {
		return fmt.Errorf("invalid trigger condition")
	}
	withdrawal, err := h.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if withdrawal == nil {
		return fmt.Errorf("invalid withdrawal")
	}
	cancelablefeed.CancelableFeed(ctx, withdrawal, exec)
	return nil
}

func (h *handler) ObjectID(ent interface{}) string {
	if withdrawal, ok := ent.(*types.PersistentWithdrawal); ok {
		return withdrawal.ID
	}
	return ent.(*store.Withdrawal).ID
}
