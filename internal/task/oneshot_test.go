package task_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/qareport/internal/task"
)

var testClockStart = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func TestManualClockFiresInDueOrder(testingT *testing.T) {
	clock := task.NewManualClock(testClockStart)
	var fired []string
	clock.AfterFunc(600*time.Millisecond, func() { fired = append(fired, "third") })
	clock.AfterFunc(0, func() { fired = append(fired, "first") })
	clock.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "second") })
	clock.AfterFunc(300*time.Millisecond, func() { fired = append(fired, "second-tie") })

	clock.Advance(299 * time.Millisecond)
	require.Equal(testingT, []string{"first"}, fired)

	clock.Advance(time.Millisecond)
	require.Equal(testingT, []string{"first", "second", "second-tie"}, fired)
	require.Equal(testingT, testClockStart.Add(300*time.Millisecond), clock.Now())

	clock.Advance(time.Second)
	require.Equal(testingT, []string{"first", "second", "second-tie", "third"}, fired)
	require.Zero(testingT, clock.Pending())
	require.Equal(testingT, testClockStart.Add(1300*time.Millisecond), clock.Now())
}

func TestManualClockFiresTimersScheduledDuringAdvance(testingT *testing.T) {
	clock := task.NewManualClock(testClockStart)
	var firedAt []time.Duration
	clock.AfterFunc(100*time.Millisecond, func() {
		firedAt = append(firedAt, clock.Now().Sub(testClockStart))
		clock.AfterFunc(200*time.Millisecond, func() {
			firedAt = append(firedAt, clock.Now().Sub(testClockStart))
		})
	})

	clock.Advance(time.Second)
	require.Equal(testingT, []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}, firedAt)
}

func TestManualClockStopRemovesTimer(testingT *testing.T) {
	clock := task.NewManualClock(testClockStart)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	due, hasDue := clock.NextDue()
	require.True(testingT, hasDue)
	require.Equal(testingT, testClockStart.Add(time.Second), due)

	require.True(testingT, timer.Stop())
	require.False(testingT, timer.Stop())
	clock.Advance(2 * time.Second)
	require.False(testingT, fired)

	_, hasDue = clock.NextDue()
	require.False(testingT, hasDue)
}

func TestScheduledTaskFiresOnceAtOrAfterDelay(testingT *testing.T) {
	clock := task.NewManualClock(testClockStart)
	scheduler := task.NewOneShotScheduler(clock, &task.EventLoop{}, nil)

	var runs int64
	scheduledTask := scheduler.Schedule("center_percent", 1500*time.Millisecond, func() {
		atomic.AddInt64(&runs, 1)
	})
	require.Equal(testingT, "center_percent", scheduledTask.Label())
	require.Equal(testingT, 1500*time.Millisecond, scheduledTask.Delay())
	require.Equal(testingT, testClockStart.Add(1500*time.Millisecond), scheduledTask.DueAt())
	require.Equal(testingT, task.TaskPending, scheduledTask.State())
	require.Equal(testingT, 1, scheduler.PendingCount())

	clock.Advance(1499 * time.Millisecond)
	require.Zero(testingT, atomic.LoadInt64(&runs))

	clock.Advance(time.Millisecond)
	require.Equal(testingT, int64(1), atomic.LoadInt64(&runs))
	require.Equal(testingT, task.TaskFired, scheduledTask.State())
	require.False(testingT, scheduledTask.Cancel())
	require.False(testingT, scheduledTask.Token().Cancelled())

	clock.Advance(time.Hour)
	require.Equal(testingT, int64(1), atomic.LoadInt64(&runs))
	require.Zero(testingT, scheduler.PendingCount())
}

func TestScheduledTaskCancellation(testingT *testing.T) {
	clock := task.NewManualClock(testClockStart)
	scheduler := task.NewOneShotScheduler(clock, nil, nil)

	fired := false
	scheduledTask := scheduler.Schedule("progress_bars", 300*time.Millisecond, func() { fired = true })
	require.True(testingT, scheduledTask.Cancel())
	require.False(testingT, scheduledTask.Cancel())
	require.True(testingT, scheduledTask.Token().Cancelled())
	require.Equal(testingT, task.TaskCancelled, scheduledTask.State())

	clock.Advance(time.Second)
	require.False(testingT, fired)
}

func TestCancellationThroughTokenSkipsCallback(testingT *testing.T) {
	clock := task.NewManualClock(testClockStart)
	scheduler := task.NewOneShotScheduler(clock, nil, nil)

	fired := false
	scheduledTask := scheduler.Schedule("coverage_bar", 500*time.Millisecond, func() { fired = true })
	require.True(testingT, scheduledTask.Token().Cancel())

	clock.Advance(time.Second)
	require.False(testingT, fired)
	require.Equal(testingT, task.TaskCancelled, scheduledTask.State())
}

func TestTasksLabelledFiltersByLabel(testingT *testing.T) {
	scheduler := task.NewOneShotScheduler(task.NewManualClock(testClockStart), nil, nil)
	scheduler.Schedule("series_reveal", 0, nil)
	scheduler.Schedule("series_reveal", 300*time.Millisecond, nil)
	scheduler.Schedule("center_percent", 1500*time.Millisecond, nil)

	require.Len(testingT, scheduler.Tasks(), 3)
	require.Len(testingT, scheduler.TasksLabelled("series_reveal"), 2)
	require.Empty(testingT, scheduler.TasksLabelled("missing"))
}

func TestSystemClockSchedulesOnWallTime(testingT *testing.T) {
	scheduler := task.NewOneShotScheduler(nil, &task.EventLoop{}, nil)
	fired := make(chan struct{})
	scheduler.Schedule("wall", time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		testingT.Fatal("system clock task did not fire")
	}
}

func TestTaskStateNames(testingT *testing.T) {
	require.Equal(testingT, "pending", task.TaskPending.String())
	require.Equal(testingT, "fired", task.TaskFired.String())
	require.Equal(testingT, "cancelled", task.TaskCancelled.String())
	require.Equal(testingT, "unknown", task.TaskState(9).String())
}
