package sentinel

import (
	"context"
	"fmt"
	"time"

	cancelablefeed "github.com/pixbridge/bridge-scheduler/pkg/base/cancelablefeed"
	basesentinel "github.com/pixbridge/bridge-scheduler/pkg/base/sentinel"
	constant "github.com/pixbridge/bridge-scheduler/pkg/const"
	"github.com/pixbridge/bridge-scheduler/pkg/verification/store"
	types "github.com/pixbridge/bridge-scheduler/pkg/verification/types"
)

type handler struct {
	store  *store.Store
	grace  time.Duration
	maxAge time.Duration
}

func NewSentinel(s *store.Store, grace, maxAge time.Duration) basesentinel.Scanner {
	return &handler{
		store:  s,
		grace:  grace,
		maxAge: maxAge,
	}
}

func (h *handler) Scan(ctx context.Context, exec chan interface{}) error {
	offset := int32(0)
	limit := constant.DefaultRowLimit

	for {
		verifications, err := h.store.ScanPending(ctx, h.grace, h.maxAge, offset, limit)
		if err != nil {
			return err
		}
		if len(verifications) == 0 {
			return nil
		}

		for _, verification := range verifications {
			cancelablefeed.CancelableFeed(ctx, verification, exec)
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
	verification, err := h.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if verification == nil {
		return fmt.Errorf("invalid verification")
	}
	cancelablefeed.CancelableFeed(ctx, verification, exec)
	return nil
}

func (h *handler) ObjectID(ent interface{}) string {
	if verification, ok := ent.(*types.PersistentVerification); ok {
		return verification.ID
	}
	return ent.(*store.Verification).ID
}
