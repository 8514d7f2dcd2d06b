package goasio

import (
	"errors"
	"sync"
	"sync/atomic"
)

// eventQueue is the per-registration EventChannel (§3): an unbounded
// single-producer/single-consumer queue of readiness events. Only the
// driver produces (via push); only the owning Registration consumes
// (via poll). The consumer side stashes the most recent [Waker] so a
// later push can wake it, matching the "mutex held only across the
// single poll of the receiver, never across a syscall" contract of
// §4.3. Grounded on ingress.go's mutex-guarded queue idiom, generalized
// here to the single-consumer-with-stashed-waker shape this protocol
// needs (the teacher's MPSC ring buffer solves a different problem:
// lock-free multi-producer ingestion, which this single-producer queue
// does not require).
type eventQueue struct {
	mu    sync.Mutex
	items []ioEvent
	waker *Waker
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

// push enqueues ev. If a consumer is currently parked waiting (a waker
// was stashed by a prior empty poll), it is woken exactly once.
func (q *eventQueue) push(ev ioEvent) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	w := q.waker
	q.waker = nil
	q.mu.Unlock()
	w.Wake()
}

// poll attempts to dequeue one event. If the queue is empty, it stashes
// w so the next push wakes it, and returns (zero, false).
func (q *eventQueue) poll(w *Waker) (ioEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		q.waker = w
		return ioEvent{}, false
	}
	ev := q.items[0]
	q.items[0] = ioEvent{}
	q.items = q.items[1:]
	return ev, true
}

// readinessBits are the two atomic booleans backing a Registration's
// advisory "may be ready" state (§3/§4.3). They over-approximate: the
// syscall result is ground truth, which is why asyncIO clears a bit on
// WouldBlock instead of trusting the bits indefinitely.
type readinessBits struct {
	read  atomic.Bool
	write atomic.Bool
}

// merge folds a driver event into the bits. Each direction the event
// reports is set with a plain atomic.Bool.Store(true), which is
// sequentially consistent in Go; no fetch-or is needed because merge
// only ever sets bits true and each direction is its own atomic.
func (b *readinessBits) merge(ev ioEvent) {
	if ev.readable {
		b.read.Store(true)
	}
	if ev.writable {
		b.write.Store(true)
	}
}

// satisfies implements §4.3's "satisfies" predicate.
func (b *readinessBits) satisfies(i ioInterest) bool {
	if i.readable && !b.read.Load() {
		return false
	}
	if i.writable && !b.write.Load() {
		return false
	}
	return true
}

// clear clears exactly the bits named by i, atomically, so a concurrent
// merge of the other direction is never lost.
func (b *readinessBits) clear(i ioInterest) {
	if i.readable {
		b.read.Store(false)
	}
	if i.writable {
		b.write.Store(false)
	}
}

// errWouldBlock is the sentinel a syscall wrapper returns to indicate
// the operation must be retried once the relevant direction reports
// readiness again. It never surfaces to callers of asyncIO.
var errWouldBlock = errors.New("goasio: would block")

// Registration is the per-I/O-source object (§3) binding a single
// kernel handle to the runtime's event driver: it holds the token, the
// driver handle needed to deregister, the event queue, and the
// readiness bits. Exactly one exists per registered source and it
// outlives all in-flight operations on that source.
type Registration struct {
	fd     int
	tok    token
	dh     *driverHandle
	queue  *eventQueue
	bits   readinessBits
	closed atomic.Bool
}

// register creates a Registration for fd, interested initially in both
// directions (the interest passed to register only affects what the OS
// poller watches; asyncIO narrows per-call interest against the bits).
func register(dh *driverHandle, fd int) (*Registration, error) {
	tok, q, err := dh.register(fd, ioInterest{readable: true, writable: true})
	if err != nil {
		return nil, err
	}
	return &Registration{fd: fd, tok: tok, dh: dh, queue: q}, nil
}

// closeRegisteredFD is set by fd_unix.go's init to the platform's fd close
// routine. Left nil where no I/O Source Wrapper exists for the platform
// (currently Windows), in which case Close only deregisters.
var closeRegisteredFD func(fd int) error

// Close deregisters the source from the driver and closes its underlying
// descriptor, per §3's IOSource lifecycle. Idempotent: fd closing and
// deregistration both happen at most once, guarded by the same swap, so a
// caller that closes a wrapper (TCPStream, TCPListener, UDPSocket) twice
// never double-closes the descriptor.
func (r *Registration) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	err := r.dh.deregister(r.fd, r.tok)
	if closeRegisteredFD != nil {
		if cerr := closeRegisteredFD(r.fd); err == nil {
			err = cerr
		}
	}
	return err
}

// readinessFuture is the awaitable described in §4.3: it completes
// immediately if the bits already satisfy the interest; otherwise it
// consumes one event from the queue, merges it, and rechecks, looping
// until satisfied or the queue reports pending.
type readinessFuture struct {
	r *Registration
	i ioInterest
}

// Poll implements Future[struct{}].
func (f *readinessFuture) Poll(w *Waker) (struct{}, bool) {
	for {
		if f.r.bits.satisfies(f.i) {
			return struct{}{}, true
		}
		ev, ok := f.r.queue.poll(w)
		if !ok {
			return struct{}{}, false
		}
		f.r.bits.merge(ev)
	}
}

// asyncIOFuture implements §4.3's central async_io(interest, syscall)
// loop: await readiness, attempt the syscall, clear the bit and retry
// on would-block, otherwise return the result verbatim (including
// non-would-block errors, which propagate to the caller).
type asyncIOFuture[T any] struct {
	r        *Registration
	interest ioInterest
	syscall  func() (T, error)
	ready    *readinessFuture
}

// Poll implements Future[ioResult[T]].
func (f *asyncIOFuture[T]) Poll(w *Waker) (ioResult[T], bool) {
	for {
		if f.ready == nil {
			f.ready = &readinessFuture{r: f.r, i: f.interest}
		}
		if _, done := f.ready.Poll(w); !done {
			return ioResult[T]{}, false
		}
		f.ready = nil

		v, err := f.syscall()
		if errors.Is(err, errWouldBlock) {
			f.r.bits.clear(f.interest)
			continue
		}
		return ioResult[T]{value: v, err: err}, true
	}
}

// ioResult carries a syscall's (value, error) pair through the generic
// Future[T] interface, since Go futures can't return a bare tuple.
type ioResult[T any] struct {
	value T
	err   error
}

// AsyncIO builds the retry-on-readiness future described by §4.3 for a
// single syscall attempt. syscall must return an error matching
// errWouldBlock under errors.Is when the operation cannot currently
// proceed.
func AsyncIO[T any](r *Registration, readable, writable bool, syscall func() (T, error)) Future[ioResult[T]] {
	return &asyncIOFuture[T]{r: r, interest: ioInterest{readable: readable, writable: writable}, syscall: syscall}
}

// PollIO is the synchronous poll_io variant of §4.3: semantically
// identical to driving an AsyncIO future to one step, for integration
// with externally-polled futures. It returns (value, err, true) once
// ready, or (_, _, false) while pending.
func PollIO[T any](f Future[ioResult[T]], w *Waker) (T, error, bool) {
	res, done := f.Poll(w)
	if !done {
		var zero T
		return zero, nil, false
	}
	return res.value, res.err, true
}
