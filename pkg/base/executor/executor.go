package executor

import (
	"context"

	"github.com/pixbridge/bridge-scheduler/pkg/action"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	"github.com/pixbridge/bridge-scheduler/pkg/watcher"
)

type Executor interface {
	Feed(ctx context.Context, ent interface{})
	Finalize(ctx context.Context)
}

type Exec interface {
	Exec(ctx context.Context, ent interface{}, persistent, notif, done chan interface{}) error
}

type handler struct {
	feeder     chan interface{}
	persistent chan interface{}
	notif      chan interface{}
	done       chan interface{}
	exec       Exec
	w          *watcher.Watcher
	subsystem  string
}

func NewExecutor(ctx context.Context, cancel context.CancelFunc, persistent, notif, done chan interface{}, exec Exec, subsystem string) Executor {
	e := &handler{
		feeder:     make(chan interface{}),
		persistent: persistent,
		notif:      notif,
		done:       done,
		w:          watcher.NewWatcher(),
		exec:       exec,
		subsystem:  subsystem,
	}
	go action.Watch(ctx, cancel, e.run)
	return e
}

func (e *handler) handler(ctx context.Context) bool {
	select {
	case ent := <-e.feeder:
		if err := e.exec.Exec(ctx, ent, e.persistent, e.notif, e.done); err != nil {
			logger.Sugar().Errorw(
				"handler",
				"State", "Exec",
				"Subsystem", e.subsystem,
				"Error", err,
			)
		}
		return false
	case <-ctx.Done():
		logger.Sugar().Infow(
			"handler",
			"State", "Done",
			"Subsystem", e.subsystem,
			"Error", ctx.Err(),
		)
		close(e.w.ClosedChan())
		return true
	case <-e.w.CloseChan():
		close(e.w.ClosedChan())
		return true
	}
}

func (e *handler) run(ctx context.Context) {
	for {
		if b := e.handler(ctx); b {
			break
		}
	}
}

func (e *handler) Finalize(ctx context.Context) {
	if e != nil && e.w != nil {
		e.w.Shutdown(ctx)
	}
}

func (e *handler) Feed(ctx context.Context, ent interface{}) {
	select {
	case <-ctx.Done():
	case e.feeder <- ent:
	}
}
