// scheduler/schedulertest/manual.go

// Package schedulertest provides a hand-driven timer source for scheduler
// users that need deterministic refresh jobs.
package schedulertest

import (
	"sync"
	"time"

	"github.com/controlcoreio/control-core-012025-sub001/scheduler"
)

// Manual is a scheduler.AfterFunc source whose timers only fire when told to.
type Manual struct {
	mu     sync.Mutex
	timers []*ManualTimer
}

// ManualTimer is a timer handed out by Manual.
type ManualTimer struct {
	Delay time.Duration

	mu      sync.Mutex
	f       func()
	stopped bool
	fired   bool
}

// AfterFunc records a timer for f without starting it.
func (m *Manual) AfterFunc(d time.Duration, f func()) scheduler.Timer {
	t := &ManualTimer{Delay: d, f: f}
	m.mu.Lock()
	m.timers = append(m.timers, t)
	m.mu.Unlock()
	return t
}

// Pending returns timers that are neither stopped nor fired, oldest first.
func (m *Manual) Pending() []*ManualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ManualTimer
	for _, t := range m.timers {
		if t.pending() {
			out = append(out, t)
		}
	}
	return out
}

// FireAll fires every pending timer once and returns how many fired.
func (m *Manual) FireAll() int {
	n := 0
	for _, t := range m.Pending() {
		if t.Fire() {
			n++
		}
	}
	return n
}

func (t *ManualTimer) pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

func (t *ManualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// Fire runs the callback on the calling goroutine.
func (t *ManualTimer) Fire() bool {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	f := t.f
	t.mu.Unlock()
	f()
	return true
}
