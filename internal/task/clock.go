package task

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. SystemClock uses wall time; ManualClock advances only
// when told to, which makes reveal sequences deterministic in tests and snapshots.
type Clock interface {
	Now() time.Time
	AfterFunc(delay time.Duration, callback func()) Timer
}

// SystemClock is backed by the time package.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) AfterFunc(delay time.Duration, callback func()) Timer {
	return time.AfterFunc(delay, callback)
}

// ManualClock fires callbacks synchronously from Advance, in due order. Callbacks
// scheduled while advancing fire in the same call when they fall due.
type ManualClock struct {
	mutex    sync.Mutex
	now      time.Time
	sequence uint64
	pending  []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	dueAt    time.Time
	sequence uint64
	callback func()
}

// NewManualClock starts a manual clock at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (clock *ManualClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

func (clock *ManualClock) AfterFunc(delay time.Duration, callback func()) Timer {
	if delay < 0 {
		delay = 0
	}
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.sequence++
	timer := &manualTimer{
		clock:    clock,
		dueAt:    clock.now.Add(delay),
		sequence: clock.sequence,
		callback: callback,
	}
	clock.pending = append(clock.pending, timer)
	return timer
}

// Advance moves the clock forward by duration, firing every callback that falls
// due on the way.
func (clock *ManualClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	target := clock.now.Add(duration)
	clock.mutex.Unlock()
	for {
		clock.mutex.Lock()
		next := clock.popDueLocked(target)
		if next == nil {
			if clock.now.Before(target) {
				clock.now = target
			}
			clock.mutex.Unlock()
			return
		}
		clock.now = next.dueAt
		clock.mutex.Unlock()
		if next.callback != nil {
			next.callback()
		}
	}
}

// Pending reports how many callbacks are waiting.
func (clock *ManualClock) Pending() int {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return len(clock.pending)
}

// NextDue returns the due time of the earliest pending callback.
func (clock *ManualClock) NextDue() (time.Time, bool) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	if len(clock.pending) == 0 {
		return time.Time{}, false
	}
	clock.sortLocked()
	return clock.pending[0].dueAt, true
}

func (clock *ManualClock) popDueLocked(target time.Time) *manualTimer {
	if len(clock.pending) == 0 {
		return nil
	}
	clock.sortLocked()
	next := clock.pending[0]
	if next.dueAt.After(target) {
		return nil
	}
	clock.pending = clock.pending[1:]
	return next
}

func (clock *ManualClock) sortLocked() {
	sort.SliceStable(clock.pending, func(left, right int) bool {
		if clock.pending[left].dueAt.Equal(clock.pending[right].dueAt) {
			return clock.pending[left].sequence < clock.pending[right].sequence
		}
		return clock.pending[left].dueAt.Before(clock.pending[right].dueAt)
	})
}

func (timer *manualTimer) Stop() bool {
	clock := timer.clock
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	for index, pending := range clock.pending {
		if pending == timer {
			clock.pending = append(clock.pending[:index], clock.pending[index+1:]...)
			return true
		}
	}
	return false
}
