package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pixbridge/bridge-scheduler/pkg/alert"
	"github.com/pixbridge/bridge-scheduler/pkg/db"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	redis2 "github.com/pixbridge/bridge-scheduler/pkg/redis"
	"github.com/pixbridge/bridge-scheduler/pkg/tracker"
)

type JobFunc func(ctx context.Context) error

// Alerter is satisfied by alert.Alerter; faked in tests.
type Alerter interface {
	Notify(ctx context.Context, in *alert.Alert)
}

// Recorder is satisfied by tracker.Tracker; faked in tests.
type Recorder interface {
	Record(ctx context.Context, exec *tracker.Execution) error
	EverFailed(ctx context.Context, job string) (bool, error)
}

type job struct {
	name     string
	schedule string
	critical bool
	body     JobFunc
	entryID  cron.EntryID
	inflight atomic.Bool
}

// A sub-minute schedule is "high frequency": precondition skips stay quiet
// for it.
func (j *job) highFrequency() bool {
	if len(j.schedule) < 7 || j.schedule[:6] != "@every" {
		return false
	}
	d, err := time.ParseDuration(j.schedule[7:])
	if err != nil {
		return false
	}
	return d < time.Minute
}

// Orchestrator owns the registry of named recurring jobs. One job's failure
// never touches another job's timer: every body runs behind its own guard
// and recover.
type Orchestrator struct {
	cron     *cron.Cron
	jobs     map[string]*job
	mutex    sync.Mutex
	recorder  Recorder
	alerter   Alerter
	policy    RetryPolicy
	preflight func(ctx context.Context) error

	baseCtx      context.Context
	shuttingDown atomic.Bool
	inflightWG   sync.WaitGroup
	stopOnce     sync.Once
}

func NewOrchestrator(ctx context.Context, location *time.Location, recorder Recorder, alerter Alerter, policy RetryPolicy) *Orchestrator {
	return &Orchestrator{
		cron:      cron.New(cron.WithLocation(location)),
		jobs:      map[string]*job{},
		recorder:  recorder,
		alerter:   alerter,
		policy:    policy,
		preflight: preconditions,
		baseCtx:   ctx,
	}
}

func (o *Orchestrator) Start() {
	o.cron.Start()
}

// Register is idempotent: re-registering a name replaces the prior timer.
func (o *Orchestrator) Register(name, schedule string, critical bool, body JobFunc) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if prev, ok := o.jobs[name]; ok {
		o.cron.Remove(prev.entryID)
	}

	j := &job{
		name:     name,
		schedule: schedule,
		critical: critical,
		body:     body,
	}
	entryID, err := o.cron.AddFunc(schedule, func() {
		o.fire(j)
	})
	if err != nil {
		return fmt.Errorf("register %v: %w", name, err)
	}
	j.entryID = entryID
	o.jobs[name] = j

	logger.Sugar().Infow(
		"Register",
		"Job", name,
		"Schedule", schedule,
		"Critical", critical,
	)
	return nil
}

// TriggerManually runs a job once outside its schedule and returns the
// body's result synchronously. The outcome is still recorded.
func (o *Orchestrator) TriggerManually(ctx context.Context, name string) error {
	o.mutex.Lock()
	j, ok := o.jobs[name]
	o.mutex.Unlock()
	if !ok {
		return fmt.Errorf("invalid job %v", name)
	}
	if o.shuttingDown.Load() {
		return fmt.Errorf("shutting down")
	}
	if !j.inflight.CompareAndSwap(false, true) {
		return fmt.Errorf("job %v already running", name)
	}
	defer j.inflight.Store(false)

	o.inflightWG.Add(1)
	defer o.inflightWG.Done()

	// Same check every scheduled firing gets; an operator override does not
	// get to run against unreachable stores.
	if err := o.preflight(ctx); err != nil {
		return err
	}

	start := time.Now()
	err := safeCall(ctx, j.body)
	o.record(ctx, j, err == nil, 1, start, err)
	return err
}

func (o *Orchestrator) fire(j *job) {
	if o.shuttingDown.Load() {
		return
	}
	// At-most-one-in-flight: a tick arriving while the previous firing (or
	// its retry loop) still runs is a distinct firing and is skipped.
	if !j.inflight.CompareAndSwap(false, true) {
		logger.Sugar().Warnw(
			"fire",
			"Job", j.name,
			"State", "Overlap",
		)
		return
	}
	defer j.inflight.Store(false)

	o.inflightWG.Add(1)
	defer o.inflightWG.Done()

	ctx := o.baseCtx
	if err := o.preflight(ctx); err != nil {
		if j.highFrequency() {
			logger.Sugar().Debugw(
				"fire",
				"Job", j.name,
				"State", "Skip",
				"Error", err,
			)
		} else {
			logger.Sugar().Warnw(
				"fire",
				"Job", j.name,
				"State", "Skip",
				"Error", err,
			)
		}
		return
	}

	o.runJob(ctx, j)
}

// preconditions verifies the shared stores are reachable before any body
// runs, so bodies do not throw partial-state errors deep inside.
func preconditions(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := redis2.Ping(ctx); err != nil {
		return fmt.Errorf("cache unreachable: %w", err)
	}
	return nil
}

func (o *Orchestrator) runJob(ctx context.Context, j *job) {
	start := time.Now()

	var attempts int
	var err error
	if j.critical {
		attempts, err = o.policy.Run(ctx, j.body)
	} else {
		attempts = 1
		err = safeCall(ctx, j.body)
	}

	// Consult history before recording this outcome so "recurring" means
	// failures from earlier firings, not the one being reported.
	recurring := false
	if err != nil && j.critical {
		prior, herr := o.recorder.EverFailed(ctx, j.name)
		if herr != nil {
			logger.Sugar().Errorw(
				"runJob",
				"Job", j.name,
				"Error", herr,
			)
		}
		recurring = prior
	}

	o.record(ctx, j, err == nil, attempts, start, err)

	if err == nil {
		return
	}
	if j.critical {
		msg := fmt.Sprintf("job failed after %v attempts: %v", attempts, err)
		if recurring {
			msg += " (previous failures on record)"
		}
		o.alerter.Notify(ctx, &alert.Alert{
			Job:         j.name,
			Severity:    alert.SeverityCritical,
			Message:     msg,
			Remediation: "check database, cache and external gateways, then trigger the job manually",
		})
		return
	}
	o.alerter.Notify(ctx, &alert.Alert{
		Job:         j.name,
		Severity:    alert.SeverityWarning,
		Message:     fmt.Sprintf("job failed: %v", err),
		Remediation: "will retry on the next scheduled firing",
	})
}

func (o *Orchestrator) record(ctx context.Context, j *job, success bool, attempts int, start time.Time, err error) {
	exec := &tracker.Execution{
		Job:     j.name,
		Success: success,
		Metrics: map[string]string{
			"attempts":   strconv.Itoa(attempts),
			"elapsed_ms": strconv.FormatInt(time.Since(start).Milliseconds(), 10),
		},
		ExecutedAt: start,
	}
	if err != nil {
		exec.Error = err.Error()
	}
	if rerr := o.recorder.Record(ctx, exec); rerr != nil {
		logger.Sugar().Errorw(
			"record",
			"Job", j.name,
			"Error", rerr,
		)
	}
}

// Shutdown stops accepting new fires and waits a bounded grace period for
// in-flight bodies. Remaining timers are released regardless.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.stopOnce.Do(func() {
		o.shuttingDown.Store(true)
		stopCtx := o.cron.Stop()

		waitDone := make(chan struct{})
		go func() {
			o.inflightWG.Wait()
			close(waitDone)
		}()

		select {
		case <-waitDone:
		case <-stopCtx.Done():
		case <-ctx.Done():
		case <-time.After(30 * time.Second):
			logger.Sugar().Warnw(
				"Shutdown",
				"State", "Grace period elapsed with jobs in flight",
			)
		}
		logger.Sugar().Infow(
			"Shutdown",
			"State", "Done",
		)
	})
}

// ShuttingDown is the flag job bodies consult at safe checkpoints to shorten
// shutdown latency.
func (o *Orchestrator) ShuttingDown() bool {
	return o.shuttingDown.Load()
}
