package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixbridge/bridge-scheduler/pkg/signer"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestClassify(t *testing.T) {
	expected := dec("100")
	tolerance := dec("0.1")

	tests := []struct {
		amount string
		status Status
	}{
		{"100", StatusCorrect},
		{"99.95", StatusCorrect},
		{"100.05", StatusCorrect},
		{"99.90", StatusCorrect},
		{"100.10", StatusCorrect},
		{"99.89", StatusInsufficient},
		{"50", StatusInsufficient},
		{"100.11", StatusExcess},
		{"100.15", StatusExcess},
		{"200", StatusExcess},
	}
	for _, test := range tests {
		assert.Equal(t, test.status, Classify(dec(test.amount), expected, tolerance), "amount %v", test.amount)
	}
}

func TestClassifyZeroTolerance(t *testing.T) {
	expected := dec("512.90")
	assert.Equal(t, StatusCorrect, Classify(dec("512.90"), expected, decimal.Zero))
	assert.Equal(t, StatusInsufficient, Classify(dec("512.89"), expected, decimal.Zero))
	assert.Equal(t, StatusExcess, Classify(dec("512.91"), expected, decimal.Zero))
}

type fakeSigner struct {
	signer.Signer
	info *signer.PaymentInfo
	err  error
}

func (s *fakeSigner) CheckPayment(ctx context.Context, index uint64, asset string) (*signer.PaymentInfo, error) {
	return s.info, s.err
}

type fakeHeights struct {
	tip       uint64
	tipErr    error
	txHeight  uint64
	confirmed bool
	txErr     error
}

func (h *fakeHeights) TipHeight(ctx context.Context) (uint64, error) {
	return h.tip, h.tipErr
}

func (h *fakeHeights) TxHeight(ctx context.Context, txid string) (uint64, bool, error) {
	return h.txHeight, h.confirmed, h.txErr
}

func TestCheckPaymentNotFound(t *testing.T) {
	m := NewMatcher(&fakeSigner{info: &signer.PaymentInfo{Found: false}}, &fakeHeights{}, "DEPIX")
	result, err := m.CheckPayment(context.Background(), 7, dec("100"), dec("0.1"))
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, StatusNotFound, result.Status)
}

func TestCheckPaymentSignerError(t *testing.T) {
	m := NewMatcher(&fakeSigner{err: errors.New("gateway down")}, &fakeHeights{}, "DEPIX")
	_, err := m.CheckPayment(context.Background(), 7, dec("100"), dec("0.1"))
	assert.Error(t, err)
}

func TestCheckPaymentConfirmations(t *testing.T) {
	info := &signer.PaymentInfo{
		Found:       true,
		TotalAmount: dec("100"),
		TxID:        "tx1",
		UTXOs: []signer.UTXO{
			{TxID: "tx1", Vout: 0, Height: 95},
			{TxID: "tx1", Vout: 1, Height: 97},
		},
	}
	m := NewMatcher(&fakeSigner{info: info}, &fakeHeights{tip: 100}, "DEPIX")
	result, err := m.CheckPayment(context.Background(), 7, dec("100"), dec("0.1"))
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, StatusCorrect, result.Status)
	// Lowest included height wins: 100 - 95 + 1.
	assert.Equal(t, uint32(6), result.Confirmations)
}

func TestCheckPaymentUnconfirmed(t *testing.T) {
	info := &signer.PaymentInfo{
		Found:       true,
		TotalAmount: dec("100"),
		TxID:        "tx1",
		UTXOs:       []signer.UTXO{{TxID: "tx1", Vout: 0, Height: 0}},
	}
	m := NewMatcher(&fakeSigner{info: info}, &fakeHeights{confirmed: false}, "DEPIX")
	result, err := m.CheckPayment(context.Background(), 7, dec("100"), dec("0.1"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), result.Confirmations)
}

func TestCheckPaymentTipUnavailable(t *testing.T) {
	info := &signer.PaymentInfo{
		Found:       true,
		TotalAmount: dec("100"),
		TxID:        "tx1",
		UTXOs:       []signer.UTXO{{TxID: "tx1", Vout: 0, Height: 95}},
	}
	m := NewMatcher(&fakeSigner{info: info}, &fakeHeights{tipErr: errors.New("explorer down")}, "DEPIX")
	result, err := m.CheckPayment(context.Background(), 7, dec("100"), dec("0.1"))
	require.NoError(t, err)
	// Inclusion is certain even when depth cannot be resolved.
	assert.Equal(t, uint32(1), result.Confirmations)
}

func TestCheckPaymentTipBehindInclusion(t *testing.T) {
	info := &signer.PaymentInfo{
		Found:       true,
		TotalAmount: dec("100"),
		TxID:        "tx1",
		UTXOs:       []signer.UTXO{{TxID: "tx1", Vout: 0, Height: 105}},
	}
	m := NewMatcher(&fakeSigner{info: info}, &fakeHeights{tip: 100}, "DEPIX")
	result, err := m.CheckPayment(context.Background(), 7, dec("100"), dec("0.1"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), result.Confirmations)
}

func TestCheckPaymentDifference(t *testing.T) {
	info := &signer.PaymentInfo{
		Found:       true,
		TotalAmount: dec("500.00"),
		TxID:        "tx1",
	}
	m := NewMatcher(&fakeSigner{info: info}, &fakeHeights{confirmed: false}, "DEPIX")
	result, err := m.CheckPayment(context.Background(), 7, dec("512.90"), dec("0.1"))
	require.NoError(t, err)
	assert.Equal(t, StatusInsufficient, result.Status)
	assert.True(t, result.Difference.Equal(dec("-12.90")))
}
