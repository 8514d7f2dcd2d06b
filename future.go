package goasio

import (
	"runtime/debug"
	"sync"
)

// Future is the poll-based computation interface every suspendable
// operation in this runtime implements, the Go analogue of the Rust
// Future/Waker pair described in §4.3 and §4.4: Poll advances the
// computation and returns its output together with whether it has
// completed (true) or must be polled again after being woken (false).
type Future[T any] interface {
	Poll(w *Waker) (T, bool)
}

// FutureFunc adapts a plain poll function to [Future].
type FutureFunc[T any] func(w *Waker) (T, bool)

// Poll implements [Future].
func (f FutureFunc[T]) Poll(w *Waker) (T, bool) { return f(w) }

// Waker is the type-erased wake-up object passed to a [Future]'s Poll
// method. Invoking Wake reschedules whatever owns it — a parked task via
// its [taskWaker], or a [BlockOn] caller's local [parker].
type Waker struct {
	wake func()
}

func newWaker(wake func()) *Waker {
	return &Waker{wake: wake}
}

// Wake invokes the wake action exactly once per call; it is safe to call
// from any goroutine, including reentrantly during the very Poll call
// that received this Waker.
func (w *Waker) Wake() {
	if w != nil && w.wake != nil {
		w.wake()
	}
}

// task is the scheduler's unit of work (§3 Task): a pinned, send-safe,
// opaque suspended computation producing unit. Every spawned [Future] is
// wrapped into one of these by Spawn.
type task interface {
	poll(w *Waker) bool
}

// Output is the result delivered through a [JoinHandle]: either the
// spawned computation's value, or the error recovered from a panicking
// task (see §7 — task panics are not specified further than "JoinHandle
// may fail").
type Output[T any] struct {
	Value T
	Err   error
}

// JoinHandle is the awaitable produced by [Spawn], resolving exactly
// once with the spawned computation's [Output]. It is itself a
// [Future[Output[T]]], so it composes with [Await] and with further
// spawns exactly as a leaf I/O future would, matching
// original_source/dirtio/src/runtime/scheduler/join_handle.rs.
type JoinHandle[T any] struct {
	mu    sync.Mutex
	ready bool
	value T
	err   error
	waker *Waker
}

func newJoinHandle[T any]() *JoinHandle[T] {
	return &JoinHandle[T]{}
}

// complete delivers the task's output (or recovered panic error) to the
// handle exactly once, waking any future polling it.
func (h *JoinHandle[T]) complete(v T, err error) {
	h.mu.Lock()
	h.ready = true
	h.value = v
	h.err = err
	w := h.waker
	h.waker = nil
	h.mu.Unlock()
	w.Wake()
}

// Poll implements [Future[Output[T]]].
func (h *JoinHandle[T]) Poll(w *Waker) (Output[T], bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready {
		return Output[T]{Value: h.value, Err: h.err}, true
	}
	h.waker = w
	return Output[T]{}, false
}

// Awaiter is the handle passed to every task body spawned via [Spawn] or
// driven via [BlockOn]. It bridges the dedicated goroutine
// running the task body onto the poll/wake protocol so the body can be
// written as ordinary sequential Go: Await blocks (from the body's
// point of view) until the awaited Future completes, suspending the
// underlying task (from the scheduler's point of view) in between.
//
// This is the Go-idiomatic substitute for async/await sugar: the task
// body's state lives on the stack of its own goroutine, satisfying the
// "pinning" requirement of §9 for free, since Go already treats a
// goroutine's stack as a stable, safely-relocated-by-the-runtime
// address space.
type Awaiter struct {
	waker     *Waker
	handle    *Handle
	pendingCh chan struct{}
	resumeCh  chan *Waker
}

// Handle returns the runtime handle this task body was spawned on,
// equivalent to the thread-local "current runtime" lookup described in
// §4.6 and §9, but threaded explicitly per the equivalence the
// specification sanctions ("equivalently acceptable: pass the handle
// explicitly").
func (aw *Awaiter) Handle() *Handle { return aw.handle }

// Await drives f to completion, suspending the enclosing task between
// polls. It must only be called from the goroutine running a task body
// (i.e. with the Awaiter passed into that body, or one derived from it).
func Await[T any](aw *Awaiter, f Future[T]) T {
	for {
		v, ready := f.Poll(aw.waker)
		if ready {
			return v
		}
		aw.pendingCh <- struct{}{}
		aw.waker = <-aw.resumeCh
	}
}

// goroutineTask bridges a task body func(aw *Awaiter) T, run on its own
// goroutine, onto the Future[T] poll protocol. Exactly one of {the
// worker/block_on goroutine calling Poll, the body goroutine} runs at a
// time: Poll blocks until the body either suspends (pendingCh) or
// finishes (doneCh), and the body blocks on resumeCh between awaits.
type goroutineTask[T any] struct {
	body      func(aw *Awaiter) T
	handle    *Handle
	started   bool
	pendingCh chan struct{}
	resumeCh  chan *Waker
	doneCh    chan struct{}
	result    T
	panicVal  any
	stack     []byte
}

func newGoroutineTask[T any](handle *Handle, body func(aw *Awaiter) T) *goroutineTask[T] {
	return &goroutineTask[T]{
		body:      body,
		handle:    handle,
		pendingCh: make(chan struct{}),
		resumeCh:  make(chan *Waker),
		doneCh:    make(chan struct{}),
	}
}

// Poll implements Future[T].
func (t *goroutineTask[T]) Poll(w *Waker) (T, bool) {
	if !t.started {
		t.started = true
		go t.run(w)
	} else {
		t.resumeCh <- w
	}
	select {
	case <-t.pendingCh:
		var zero T
		return zero, false
	case <-t.doneCh:
		return t.result, true
	}
}

func (t *goroutineTask[T]) run(w *Waker) {
	aw := &Awaiter{waker: w, handle: t.handle, pendingCh: t.pendingCh, resumeCh: t.resumeCh}
	defer func() {
		if r := recover(); r != nil {
			t.panicVal = r
			t.stack = debug.Stack()
		}
		close(t.doneCh)
	}()
	t.result = t.body(aw)
}

func (t *goroutineTask[T]) panicked() bool { return t.panicVal != nil }

func (t *goroutineTask[T]) panicErr() error {
	if t.panicVal == nil {
		return nil
	}
	return &PanicError{Value: t.panicVal, Stack: t.stack}
}
