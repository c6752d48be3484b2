package task

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	logEventTaskScheduled = "task_scheduled"
	logEventTaskFired     = "task_fired"
	logEventTaskCancelled = "task_cancelled"
	logFieldTaskLabel     = "label"
	logFieldTaskDelay     = "delay"
)

// TaskState is the lifecycle position of a ScheduledTask.
type TaskState int32

const (
	TaskPending TaskState = iota
	TaskFired
	TaskCancelled
)

func (state TaskState) String() string {
	switch state {
	case TaskPending:
		return "pending"
	case TaskFired:
		return "fired"
	case TaskCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// EventLoop serializes callbacks so page state sees one logical thread of control
// regardless of which goroutine a timer fires on.
type EventLoop struct {
	mutex sync.Mutex
}

// Run executes callback while holding the loop.
func (loop *EventLoop) Run(callback func()) {
	if loop == nil {
		callback()
		return
	}
	loop.mutex.Lock()
	defer loop.mutex.Unlock()
	callback()
}

// CancellationToken is shared between a scheduled task and whoever may cancel it.
type CancellationToken struct {
	cancelled atomic.Bool
}

// Cancel marks the token cancelled and reports whether this call changed it.
func (token *CancellationToken) Cancel() bool {
	return token.cancelled.CompareAndSwap(false, true)
}

// Cancelled reports whether the token was cancelled.
func (token *CancellationToken) Cancelled() bool {
	return token.cancelled.Load()
}

// ScheduledTask is a fire-once callback.
type ScheduledTask struct {
	label      string
	delay      time.Duration
	dueAt      time.Time
	token      *CancellationToken
	timerMutex sync.Mutex
	timer      Timer
	state      atomic.Int32
	logger     *zap.Logger
}

// Label names the task for logs and assertions.
func (scheduledTask *ScheduledTask) Label() string {
	return scheduledTask.label
}

// Delay is the requested delay.
func (scheduledTask *ScheduledTask) Delay() time.Duration {
	return scheduledTask.delay
}

// DueAt is the earliest time the callback may run.
func (scheduledTask *ScheduledTask) DueAt() time.Time {
	return scheduledTask.dueAt
}

// Token returns the task's cancellation token.
func (scheduledTask *ScheduledTask) Token() *CancellationToken {
	return scheduledTask.token
}

// State returns the current lifecycle state.
func (scheduledTask *ScheduledTask) State() TaskState {
	return TaskState(scheduledTask.state.Load())
}

// Cancel stops a pending task. It returns false once the task fired or was
// already cancelled.
func (scheduledTask *ScheduledTask) Cancel() bool {
	if !scheduledTask.state.CompareAndSwap(int32(TaskPending), int32(TaskCancelled)) {
		return false
	}
	scheduledTask.token.Cancel()
	scheduledTask.timerMutex.Lock()
	timer := scheduledTask.timer
	scheduledTask.timerMutex.Unlock()
	if timer != nil {
		timer.Stop()
	}
	scheduledTask.logger.Debug(logEventTaskCancelled, zap.String(logFieldTaskLabel, scheduledTask.label))
	return true
}

// OneShotScheduler creates fire-once tasks on a Clock and runs their callbacks on
// an EventLoop.
type OneShotScheduler struct {
	clock  Clock
	loop   *EventLoop
	logger *zap.Logger
	mutex  sync.Mutex
	tasks  []*ScheduledTask
}

// NewOneShotScheduler builds a scheduler; a nil clock means SystemClock and a nil
// logger means zap.NewNop.
func NewOneShotScheduler(clock Clock, loop *EventLoop, logger *zap.Logger) *OneShotScheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OneShotScheduler{
		clock:  clock,
		loop:   loop,
		logger: logger,
	}
}

// Clock returns the clock tasks are scheduled on.
func (scheduler *OneShotScheduler) Clock() Clock {
	return scheduler.clock
}

// Schedule runs callback once, no earlier than delay from now.
func (scheduler *OneShotScheduler) Schedule(label string, delay time.Duration, callback func()) *ScheduledTask {
	if delay < 0 {
		delay = 0
	}
	scheduledTask := &ScheduledTask{
		label:  label,
		delay:  delay,
		dueAt:  scheduler.clock.Now().Add(delay),
		token:  &CancellationToken{},
		logger: scheduler.logger,
	}
	scheduler.mutex.Lock()
	scheduler.tasks = append(scheduler.tasks, scheduledTask)
	scheduler.mutex.Unlock()

	scheduler.logger.Debug(logEventTaskScheduled,
		zap.String(logFieldTaskLabel, label),
		zap.Duration(logFieldTaskDelay, delay),
	)
	timer := scheduler.clock.AfterFunc(delay, func() {
		scheduler.fire(scheduledTask, callback)
	})
	scheduledTask.timerMutex.Lock()
	scheduledTask.timer = timer
	scheduledTask.timerMutex.Unlock()
	return scheduledTask
}

// Tasks returns every task scheduled so far.
func (scheduler *OneShotScheduler) Tasks() []*ScheduledTask {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()
	return append([]*ScheduledTask(nil), scheduler.tasks...)
}

// TasksLabelled returns the tasks scheduled under label.
func (scheduler *OneShotScheduler) TasksLabelled(label string) []*ScheduledTask {
	var matching []*ScheduledTask
	for _, scheduledTask := range scheduler.Tasks() {
		if scheduledTask.label == label {
			matching = append(matching, scheduledTask)
		}
	}
	return matching
}

// PendingCount reports how many tasks have neither fired nor been cancelled.
func (scheduler *OneShotScheduler) PendingCount() int {
	pending := 0
	for _, scheduledTask := range scheduler.Tasks() {
		if scheduledTask.State() == TaskPending {
			pending++
		}
	}
	return pending
}

func (scheduler *OneShotScheduler) fire(scheduledTask *ScheduledTask, callback func()) {
	if scheduledTask.token.Cancelled() {
		scheduledTask.state.CompareAndSwap(int32(TaskPending), int32(TaskCancelled))
		return
	}
	if !scheduledTask.state.CompareAndSwap(int32(TaskPending), int32(TaskFired)) {
		return
	}
	scheduler.logger.Debug(logEventTaskFired, zap.String(logFieldTaskLabel, scheduledTask.label))
	if callback == nil {
		return
	}
	scheduler.loop.Run(callback)
}
