package goasio

import "sync"

// parkState is the Parker's three-state word, per §4.1. It is a plain
// field guarded by the parker's mutex, not an atomic word.
type parkState uint32

const (
	parkEmpty parkState = iota
	parkParked
	parkNotified
)

// parker is a thread-level primitive allowing a worker to sleep until
// notified, with edge-triggered notification semantics that never lose a
// wakeup: a notification delivered before a park is consumed by that
// park instead of being lost.
//
// Follows the Empty/Parked/Notified state machine of
// original_source/dirtio/src/runtime/park.rs, but every state
// transition, including the fast path for a pending notification, is
// made while holding mu; there is no lock-free CAS path.
type parker struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state parkState
}

func newParker() *parker {
	p := &parker{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// park blocks the calling goroutine until a matching unpark occurs. If a
// notification already arrived (state == Notified), it returns
// immediately, consuming that notification.
func (p *parker) park() {
	p.mu.Lock()
	switch p.state {
	case parkNotified:
		p.state = parkEmpty
		p.mu.Unlock()
		return
	case parkParked:
		// Two concurrent parkers on one parker is a programming error.
		p.mu.Unlock()
		panic(ErrDoubleParked)
	}
	p.state = parkParked
	for p.state == parkParked {
		p.cond.Wait()
	}
	// state is now Notified (the only other state unpark can set while
	// we were parked); consume it.
	p.state = parkEmpty
	p.mu.Unlock()
}

// unpark delivers a notification. If the parker was parked, it wakes the
// waiter; if it was empty, the notification is stored for the next park;
// if it was already notified, this is a no-op.
//
// The mutex is released before the signal (rather than held across it)
// so that a waiter woken by the signal never immediately
// blocks again reacquiring the same mutex its own unlock just released,
// per the rationale in §4.1.
func (p *parker) unpark() {
	p.mu.Lock()
	prior := p.state
	if prior != parkParked {
		p.state = parkNotified
		p.mu.Unlock()
		return
	}
	p.state = parkNotified
	p.mu.Unlock()
	p.cond.Signal()
}

// Unparker is a detachable wake-up handle for a parker, usable from any
// goroutine without holding a reference to the parker's owner.
type Unparker struct {
	p *parker
}

// Unpark wakes the associated parker (see [parker.unpark]).
func (u *Unparker) Unpark() {
	u.p.unpark()
}

// waker returns a wake-up handle whose Unpark action invokes unpark.
func (p *parker) waker() *Unparker {
	return &Unparker{p: p}
}
