package types

import (
	"github.com/shopspring/decimal"

	"github.com/pixbridge/bridge-scheduler/pkg/withdraw/store"
)

type PersistentWithdrawal struct {
	*store.Withdrawal
	NewStatus        store.Status
	NewTxID          string
	NewPaidAmount    decimal.Decimal
	NewConfirmations uint32
	Excess           decimal.Decimal
	Difference       decimal.Decimal
	AmountChanged    bool
	Error            error
}
