package signer

import (
	"context"

	"github.com/shopspring/decimal"
)

type UTXO struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Height uint64 `json:"height"`
}

type PaymentInfo struct {
	Found       bool
	TotalAmount decimal.Decimal
	TxID        string
	UTXOs       []UTXO
}

// Signer wraps the external signing process that derives receiving addresses
// by index and decrypts confidential output amounts. Implementations report
// protocol failures as errors; they never panic on malformed gateway output.
type Signer interface {
	Derive(ctx context.Context, index uint64) (string, error)
	DeriveRange(ctx context.Context, start, end uint64) ([]string, error)
	CheckPayment(ctx context.Context, index uint64, asset string) (*PaymentInfo, error)
	CheckAddress(ctx context.Context, address string) (bool, uint64, error)
}
