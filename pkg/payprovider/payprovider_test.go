package payprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMap(t *testing.T) {
	tests := []struct {
		provider string
		status   Status
	}{
		{"pending", StatusPending},
		{"processing", StatusPending},
		{"paid", StatusCompleted},
		{"completed", StatusCompleted},
		{"canceled", StatusCanceled},
		{"cancelled", StatusCanceled},
		{"expired", StatusExpired},
		{"refunded", StatusRefunded},
		{"error", StatusError},
		{"failed", StatusError},
	}
	for _, test := range tests {
		assert.Equal(t, test.status, statusMap[test.provider], test.provider)
	}
	_, ok := statusMap["surprise"]
	assert.False(t, ok)
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusCompleted.Terminal())
	assert.False(t, StatusUnknown.Terminal())

	for _, status := range []Status{StatusCanceled, StatusExpired, StatusRefunded, StatusError} {
		assert.True(t, status.Terminal(), string(status))
	}
}
