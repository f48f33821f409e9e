package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenewRequiresHeldLock(t *testing.T) {
	err := Renew("scheduler:ghost", 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not held")
}

func TestUnlockRequiresHeldLock(t *testing.T) {
	err := Unlock("scheduler:ghost")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not held")
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "lock:scheduler:withdraw", lockKey("scheduler:withdraw"))
}
