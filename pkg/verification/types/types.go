package types

import (
	"github.com/pixbridge/bridge-scheduler/pkg/verification/store"
)

type PersistentVerification struct {
	*store.Verification
	NewStatus store.Status
	Reason    string
	Error     error
}
