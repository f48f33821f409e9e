package watcher

import (
	"context"
	"time"
)

const shutdownGrace = 10 * time.Second

type Watcher struct {
	closeChan  chan struct{}
	closedChan chan struct{}
}

func NewWatcher() *Watcher {
	return &Watcher{
		closeChan:  make(chan struct{}),
		closedChan: make(chan struct{}),
	}
}

func (w *Watcher) CloseChan() chan struct{} {
	return w.closeChan
}

func (w *Watcher) ClosedChan() chan struct{} {
	return w.closedChan
}

// Shutdown closes the watcher and waits a bounded grace period for the
// watched routine to acknowledge through ClosedChan.
func (w *Watcher) Shutdown(ctx context.Context) {
	select {
	case <-w.closeChan:
	default:
		close(w.closeChan)
	}
	select {
	case <-w.closedChan:
	case <-ctx.Done():
	case <-time.After(shutdownGrace):
	}
}
