package scheduler

import (
	"context"
	"sync"

	"github.com/pixbridge/bridge-scheduler/pkg/config"
)

type initializer struct {
	init  func(context.Context, context.CancelFunc)
	final func(context.Context)
}

var (
	subsystems      = map[string]initializer{}
	subsystemsMutex sync.Mutex
)

// RegisterSubsystem wires a long-running reconciliation subsystem into the
// lifecycle map. Registration happens at startup, before Initialize.
func RegisterSubsystem(name string, init func(context.Context, context.CancelFunc), final func(context.Context)) {
	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()
	subsystems[name] = initializer{init: init, final: final}
}

func Initialize(ctx context.Context, cancel context.CancelFunc) {
	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()
	for _, subsystem := range subsystems {
		subsystem.init(ctx, cancel)
	}
}

func Finalize(ctx context.Context) {
	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()
	for _, subsystem := range subsystems {
		subsystem.final(ctx)
	}
}

func InitializeSubsystem(ctx context.Context, system string) {
	subsystemsMutex.Lock()
	_initializer, ok := subsystems[system]
	subsystemsMutex.Unlock()
	if !ok {
		return
	}
	if b := config.SupportSubsystem(system); !b {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	_initializer.init(ctx, cancel)
}

func FinalizeSubsystem(ctx context.Context, system string) {
	subsystemsMutex.Lock()
	_finalizer, ok := subsystems[system]
	subsystemsMutex.Unlock()
	if !ok {
		return
	}
	_finalizer.final(ctx)
}
