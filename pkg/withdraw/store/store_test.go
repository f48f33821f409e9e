package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusAwaitingPayment, StatusInsufficientPayment},
		{StatusAwaitingPayment, StatusPaymentDetected},
		{StatusAwaitingPayment, StatusExpired},
		{StatusAwaitingPayment, StatusCancelled},
		{StatusInsufficientPayment, StatusPaymentDetected},
		{StatusPaymentDetected, StatusProcessing},
		{StatusPaymentDetected, StatusCompleted},
		{StatusProcessing, StatusCompleted},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to), "%v -> %v", tr.from, tr.to)
	}

	denied := []struct{ from, to Status }{
		{StatusInsufficientPayment, StatusExpired},
		{StatusInsufficientPayment, StatusCancelled},
		{StatusPaymentDetected, StatusCancelled},
		{StatusPaymentDetected, StatusAwaitingPayment},
		{StatusProcessing, StatusAwaitingPayment},
		{StatusCompleted, StatusProcessing},
		{StatusExpired, StatusAwaitingPayment},
		{StatusCancelled, StatusAwaitingPayment},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr.from, tr.to), "%v -> %v", tr.from, tr.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []Status{
		StatusAwaitingPayment, StatusInsufficientPayment, StatusPaymentDetected,
		StatusProcessing, StatusCompleted, StatusExpired, StatusCancelled,
	}
	for _, terminal := range []Status{StatusCompleted, StatusExpired, StatusCancelled} {
		for _, to := range all {
			assert.False(t, CanTransition(terminal, to), "%v -> %v", terminal, to)
		}
	}
}

func TestActiveStatuses(t *testing.T) {
	assert.ElementsMatch(t,
		[]Status{StatusAwaitingPayment, StatusPaymentDetected, StatusProcessing},
		ActiveStatuses)
}
