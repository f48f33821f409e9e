package matcher

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	"github.com/pixbridge/bridge-scheduler/pkg/signer"
)

type Status string

const (
	StatusNotFound     = Status("NOT_FOUND")
	StatusInsufficient = Status("INSUFFICIENT")
	StatusCorrect      = Status("CORRECT")
	StatusExcess       = Status("EXCESS")
)

type Result struct {
	Found         bool
	Status        Status
	TxID          string
	Amount        decimal.Decimal
	Confirmations uint32
	Difference    decimal.Decimal
}

// HeightSource resolves confirmation depth. It is best effort only; payment
// detection itself never depends on it.
type HeightSource interface {
	TipHeight(ctx context.Context) (uint64, error)
	TxHeight(ctx context.Context, txid string) (uint64, bool, error)
}

type Matcher struct {
	signer  signer.Signer
	heights HeightSource
	asset   string
}

func NewMatcher(sig signer.Signer, heights HeightSource, asset string) *Matcher {
	return &Matcher{
		signer:  sig,
		heights: heights,
		asset:   asset,
	}
}

// Classify places amount against expected within tolerancePercent. The band
// is inclusive on both edges.
func Classify(amount, expected, tolerancePercent decimal.Decimal) Status {
	tolerance := expected.Mul(tolerancePercent).Div(decimal.NewFromInt(100))
	low := expected.Sub(tolerance)
	high := expected.Add(tolerance)

	switch {
	case amount.Cmp(low) < 0:
		return StatusInsufficient
	case amount.Cmp(high) > 0:
		return StatusExcess
	}
	return StatusCorrect
}

func (m *Matcher) CheckPayment(ctx context.Context, index uint64, expected, tolerancePercent decimal.Decimal) (*Result, error) {
	info, err := m.signer.CheckPayment(ctx, index, m.asset)
	if err != nil {
		return nil, err
	}
	if !info.Found {
		return &Result{Status: StatusNotFound}, nil
	}

	result := &Result{
		Found:         true,
		Status:        Classify(info.TotalAmount, expected, tolerancePercent),
		TxID:          info.TxID,
		Amount:        info.TotalAmount,
		Difference:    info.TotalAmount.Sub(expected),
		Confirmations: m.confirmations(ctx, info),
	}
	return result, nil
}

func (m *Matcher) confirmations(ctx context.Context, info *signer.PaymentInfo) uint32 {
	height := inclusionHeight(info)
	if height == 0 {
		var confirmed bool
		var err error
		height, confirmed, err = m.heights.TxHeight(ctx, info.TxID)
		if err != nil || !confirmed {
			return 0
		}
	}

	tip, err := m.heights.TipHeight(ctx)
	if err != nil {
		// Inclusion is certain, only depth is unknown.
		logger.Sugar().Infow(
			"confirmations",
			"TxID", info.TxID,
			"Error", err,
		)
		return 1
	}
	if tip < height {
		return 0
	}
	return uint32(tip - height + 1)
}

func inclusionHeight(info *signer.PaymentInfo) uint64 {
	height := uint64(0)
	for _, utxo := range info.UTXOs {
		if utxo.Height == 0 {
			continue
		}
		if height == 0 || utxo.Height < height {
			height = utxo.Height
		}
	}
	return height
}
