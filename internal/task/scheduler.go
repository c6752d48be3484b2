// Package task schedules work for the dashboard runtime: fire-once reveal tasks
// with cancellation tokens on a Clock, and a periodic Scheduler that reloads the
// report source.
package task

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSchedulerInterval = time.Minute
	logEventSchedulerRun     = "scheduler_run"
	logFieldSchedulerName    = "scheduler"
	logFieldSchedulerReason  = "reason"
	runReasonTrigger         = "trigger"
	runReasonInterval        = "interval"
)

type RunnerFunc func(context.Context)

// Scheduler runs a RunnerFunc every interval and whenever Trigger is called.
// Triggers coalesce while a run is in progress.
type Scheduler struct {
	name         string
	interval     time.Duration
	runner       RunnerFunc
	logger       *zap.Logger
	trigger      chan struct{}
	controlMutex sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
}

func NewScheduler(name string, interval time.Duration, runner RunnerFunc, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultSchedulerInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		runner:   runner,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the loop; a second Start while running is a no-op.
func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.runner == nil {
		return
	}
	scheduler.controlMutex.Lock()
	if scheduler.cancel != nil {
		scheduler.controlMutex.Unlock()
		return
	}
	runtimeCtx, cancel := context.WithCancel(ctx)
	scheduler.cancel = cancel
	done := make(chan struct{})
	scheduler.done = done
	scheduler.controlMutex.Unlock()

	go scheduler.loop(runtimeCtx, done)
}

// Trigger requests a run without waiting for the interval.
func (scheduler *Scheduler) Trigger() {
	if scheduler == nil {
		return
	}
	select {
	case scheduler.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for it to exit.
func (scheduler *Scheduler) Stop() {
	if scheduler == nil {
		return
	}
	scheduler.controlMutex.Lock()
	cancel := scheduler.cancel
	done := scheduler.done
	scheduler.cancel = nil
	scheduler.done = nil
	scheduler.controlMutex.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Run blocks until ctx is cancelled, for use under an errgroup.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	scheduler.Start(ctx)
	<-ctx.Done()
	scheduler.Stop()
	return nil
}

func (scheduler *Scheduler) loop(ctx context.Context, done chan struct{}) {
	timer := time.NewTimer(scheduler.interval)
	defer func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}()
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-scheduler.trigger:
			scheduler.run(ctx, runReasonTrigger)
		case <-timer.C:
			scheduler.run(ctx, runReasonInterval)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(scheduler.interval)
	}
}

func (scheduler *Scheduler) run(ctx context.Context, reason string) {
	if scheduler.runner == nil {
		return
	}
	scheduler.logger.Debug(logEventSchedulerRun,
		zap.String(logFieldSchedulerName, scheduler.name),
		zap.String(logFieldSchedulerReason, reason),
	)
	scheduler.runner(ctx)
}
