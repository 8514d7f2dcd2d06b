package goasio

import "sync"

// taskWaker is constructed fresh for each poll attempt of a task (§4.4).
// Its slot holds the task while parked; the "woken" flag records a wake
// that arrived before the worker had a chance to store the task,
// guaranteeing the task is rescheduled exactly once regardless of
// ordering between poll-returns-pending and a reentrant/concurrent wake.
type taskWaker struct {
	handle *Handle
	mu     sync.Mutex
	slot   task
	woken  bool
}

func newTaskWaker(h *Handle) *taskWaker {
	return &taskWaker{handle: h}
}

// asWaker returns a [Waker] whose Wake action invokes tw.wake.
func (tw *taskWaker) asWaker() *Waker {
	return newWaker(tw.wake)
}

// store places t into the slot so a later wake can reschedule it. If a
// wake already arrived since this taskWaker was created (observed via
// the woken flag), store does not park the task at all: it clears the
// flag and reschedules t immediately instead, preserving the invariant
// that a wake occurring after poll started results in exactly one
// re-enqueue before the next poll attempt.
func (tw *taskWaker) store(t task) {
	tw.mu.Lock()
	if tw.woken {
		tw.woken = false
		tw.mu.Unlock()
		tw.handle.schedule(t)
		return
	}
	tw.slot = t
	tw.mu.Unlock()
}

// wake atomically takes the task out of the slot and schedules it. If
// the slot is empty — because poll has not yet returned pending, or
// because a prior wake already took and rescheduled it — wake instead
// records that a wake occurred, so the eventual store call reschedules
// immediately rather than parking a task that is already due to run.
func (tw *taskWaker) wake() {
	tw.mu.Lock()
	t := tw.slot
	tw.slot = nil
	if t == nil {
		tw.woken = true
	}
	tw.mu.Unlock()
	if t != nil {
		tw.handle.schedule(t)
	}
}
