package goasio

import (
	"sync"
	"sync/atomic"
	"time"
)

// token is the slab index identifying a registration to the driver and
// its OS poller (§3 Token): unique among live registrations, reused
// only after deregistration.
type token uint64

// ioInterest names the readiness directions a registration cares about.
type ioInterest struct {
	readable bool
	writable bool
}

// polledEvent is one OS readiness notification translated to our token
// space by the platform poller.
type polledEvent struct {
	tok      token
	readable bool
	writable bool
	errored  bool
}

// osPoller is implemented per-platform (poller_linux.go, poller_darwin.go,
// poller_windows.go), adapted from this pack's FastPoller epoll/kqueue/IOCP
// wrappers: the dispatch model changes from per-fd callbacks to per-token
// batched events, but the underlying syscalls and registration bookkeeping
// are the teacher's.
type osPoller interface {
	registerFD(fd int, tok token, interest ioInterest) error
	unregisterFD(fd int, tok token) error
	poll(timeout time.Duration) ([]polledEvent, error)
	close() error
}

// driverHandle owns the token→eventQueue slab and the shared OS poller
// handle used for register/deregister, mirroring the Driver/Handle split
// of original_source/dirtio/src/io/driver.rs: the Handle side is what
// Registrations hold, independent of whichever worker currently owns the
// driver's poll lock.
type driverHandle struct {
	poller osPoller
	mu     sync.Mutex
	queues []*eventQueue
	free   []token
	closed atomic.Bool
}

func newDriverHandle(poller osPoller) *driverHandle {
	return &driverHandle{poller: poller}
}

// register inserts a fresh event queue into the slab, reusing a freed
// slot if one exists, then asks the OS poller to start monitoring fd
// under the resulting token. Fails with [ErrDriverClosed] once the
// owning driver has been closed (§4.6 shutdown).
func (h *driverHandle) register(fd int, interest ioInterest) (token, *eventQueue, error) {
	if h.closed.Load() {
		return 0, nil, ErrDriverClosed
	}
	h.mu.Lock()
	q := newEventQueue()
	var tok token
	if n := len(h.free); n > 0 {
		tok = h.free[n-1]
		h.free = h.free[:n-1]
		h.queues[tok] = q
	} else {
		tok = token(len(h.queues))
		h.queues = append(h.queues, q)
	}
	h.mu.Unlock()

	if err := h.poller.registerFD(fd, tok, interest); err != nil {
		h.mu.Lock()
		h.queues[tok] = nil
		h.free = append(h.free, tok)
		h.mu.Unlock()
		return 0, nil, wrapIOError("register", err)
	}
	return tok, q, nil
}

// deregister detaches tok's queue (so later events for it are dropped),
// removes fd from the OS poller, then frees its slab slot for reuse.
// Outstanding events already pushed to the queue are simply discarded
// with it (§4.3's "registration dropped" contract). Returns
// [ErrTokenNotFound] if tok names a slot that was already freed (a
// double-deregister or a stale/forged token), without touching the poller.
func (h *driverHandle) deregister(fd int, tok token) error {
	h.mu.Lock()
	if int(tok) >= len(h.queues) || h.queues[tok] == nil {
		h.mu.Unlock()
		return ErrTokenNotFound
	}
	h.queues[tok] = nil
	h.mu.Unlock()

	err := h.poller.unregisterFD(fd, tok)

	h.mu.Lock()
	h.free = append(h.free, tok)
	h.mu.Unlock()
	if err != nil {
		return wrapIOError("deregister", err)
	}
	return nil
}

// dispatch delivers one OS event to its registration's queue. Events
// whose token has just been removed (q == nil) are silently dropped, as
// required by §4.2.
func (h *driverHandle) dispatch(tok token, ev ioEvent) {
	h.mu.Lock()
	var q *eventQueue
	if int(tok) < len(h.queues) {
		q = h.queues[tok]
	}
	h.mu.Unlock()
	if q != nil {
		q.push(ev)
	}
}

// ioEvent is what gets pushed onto a registration's event queue.
type ioEvent struct {
	readable bool
	writable bool
}

// defaultPollTimeout is the fixed, short OS-poll timeout required by
// §4.2: short enough that a worker which is the sole poller still
// rechecks the task queue promptly, without requiring any OS-level wake
// mechanism (the teacher's wakeup_linux.go/wakeup_darwin.go eventfd/pipe
// machinery is therefore not needed here — see DESIGN.md).
const defaultPollTimeout = 100 * time.Microsecond

// driver owns the OS poller (via handle) and mediates single-poller-at-
// a-time access for the worker pool's acquire_task loop (§4.5). Workers
// try_lock it; the one that wins calls pollEvents; the rest find other
// work or park.
type driver struct {
	handle  *driverHandle
	mu      sync.Mutex
	timeout time.Duration
	logger  Logger
	closed  bool
}

func newDriver(handle *driverHandle, timeout time.Duration, logger Logger) *driver {
	return &driver{handle: handle, timeout: timeout, logger: logger}
}

// tryLock attempts to acquire exclusive polling rights, per acquire_task.
func (d *driver) tryLock() bool { return d.mu.TryLock() }

// unlock releases polling rights acquired via tryLock.
func (d *driver) unlock() { d.mu.Unlock() }

// pollEvents blocks on the OS poller for the driver's timeout (the
// Linux poller rounds a positive timeout below 1ms up to 1ms, since
// epoll_wait counts whole milliseconds), then dispatches each returned event to its registration's queue by
// token. Must only be called while holding the driver's poll lock.
func (d *driver) pollEvents() {
	events, err := d.handle.poller.poll(d.timeout)
	if err != nil {
		d.logger.Errorf("goasio: driver poll: %v", err)
		return
	}
	for _, e := range events {
		d.handle.dispatch(e.tok, ioEvent{readable: e.readable || e.errored, writable: e.writable || e.errored})
	}
}

// close shuts down the underlying OS poller. Idempotent: calls after the
// first return nil without touching the poller.
func (d *driver) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.handle.closed.Store(true)
	return d.handle.poller.close()
}
