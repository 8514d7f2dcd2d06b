package goasio

import (
	"runtime"
	"sync"
)

// sharedState is the runtime-wide state shared by all workers, tasks,
// and registrations (§3 "Runtime Handle: shared pointer to Shared +
// Driver Handle").
type sharedState struct {
	queue    *taskQueue
	unparked *unparkQueue
	driver   *driver
	logger   Logger
}

// schedule pushes t onto the shared task queue then pops one unparker,
// if any, and unparks it (§4.5). The push-then-pop ordering, combined
// with workers pushing their own unparker before parking, guarantees at
// least one worker is awake to notice newly-scheduled work even when a
// worker is caught between "found nothing" and "about to park": per
// §4.1, unparking a parker that has not yet called park() is benign,
// since the parker's own state machine absorbs the pre-notification.
func (s *sharedState) schedule(t task) {
	s.queue.push(t)
	if u, ok := s.unparked.pop(); ok {
		u.Unpark()
	}
}

// Handle is the cloneable runtime handle of §3. It is what every task,
// registration, and Awaiter carries to reach the scheduler and driver.
type Handle struct {
	shared *sharedState
}

func (h *Handle) schedule(t task)             { h.shared.schedule(t) }
func (h *Handle) driverHandle() *driverHandle { return h.shared.driver.handle }
func (h *Handle) logger() Logger              { return h.shared.logger }

// currentHandles is the goroutine-ID-keyed analogue of a thread-local
// current-runtime slot (§4.6, §9): Go has no native thread-locals, and
// our workers are long-lived goroutines, so a goroutine-ID key is the
// correct analogue of Rust's thread_local!. Grounded on loop.go's
// getGoroutineID (runtime.Stack buffer parsing).
var currentHandles sync.Map // map[uint64]*Handle

func setCurrentHandle(h *Handle) { currentHandles.Store(getGoroutineID(), h) }
func clearCurrentHandle()        { currentHandles.Delete(getGoroutineID()) }

// CurrentHandle returns the runtime handle installed for the calling
// goroutine (populated for every worker goroutine and for the goroutine
// that calls [BlockOn]), or nil if none is installed. [Spawn] does not
// use this: it takes the handle explicitly from the [Awaiter], the
// equivalent design §9 explicitly sanctions ("equivalently acceptable:
// pass the handle explicitly"). CurrentHandle remains for callers
// driving a [Future] directly without the Await bridge.
func CurrentHandle() *Handle {
	v, ok := currentHandles.Load(getGoroutineID())
	if !ok {
		return nil
	}
	return v.(*Handle)
}

// getGoroutineID parses the current goroutine's numeric ID out of a
// runtime.Stack trace header, the same technique loop.go uses since Go
// deliberately does not expose goroutine IDs through a supported API.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// Builder constructs a [Runtime] (§4.6). The only recognized option is
// [WithWorkerThreads]; [WithLogger] and [WithPollTimeout] are ambient
// knobs this module's idiom always carries alongside it.
type Builder struct {
	opts *builderOptions
}

// NewBuilder creates a Builder, applying opts over the defaults.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{opts: resolveBuilderOptions(opts)}
}

// Build constructs the driver and its handle, creates the shared
// scheduler state, and spawns WorkerThreads worker goroutines, each
// installing the runtime handle into its own goroutine-local context
// before entering the worker loop.
func (b *Builder) Build() (*Runtime, error) {
	poller, err := newOSPoller()
	if err != nil {
		return nil, wrapIOError("poller init", err)
	}
	dh := newDriverHandle(poller)
	d := newDriver(dh, b.opts.pollTimeout, b.opts.logger)

	shared := &sharedState{
		queue:    newTaskQueue(),
		unparked: newUnparkQueue(),
		driver:   d,
		logger:   b.opts.logger,
	}
	handle := &Handle{shared: shared}

	rt := &Runtime{handle: handle, stopCh: make(chan struct{})}
	rt.wg.Add(b.opts.workerThreads)
	for i := 0; i < b.opts.workerThreads; i++ {
		go rt.runWorker()
	}
	return rt, nil
}

// NewRuntime is shorthand for NewBuilder(opts...).Build().
func NewRuntime(opts ...Option) (*Runtime, error) {
	return NewBuilder(opts...).Build()
}

// Runtime is the façade returned by [Builder.Build].
type Runtime struct {
	handle    *Handle
	wg        sync.WaitGroup
	stopCh    chan struct{}
	closeOnce sync.Once
}

// Handle returns the runtime's cloneable handle.
func (rt *Runtime) Handle() *Handle { return rt.handle }

func (rt *Runtime) runWorker() {
	defer rt.wg.Done()
	setCurrentHandle(rt.handle)
	defer clearCurrentHandle()
	runWorkerLoop(rt.handle, rt.stopCh)
}

// Shutdown stops the worker pool from accepting further acquire_task
// iterations and closes the driver's OS poller. Per §4.6, shutdown is
// otherwise unspecified at the core protocol level: outstanding
// per-source registrations are still responsible for their own
// Registration.Close on drop, independent of runtime shutdown.
//
// Closing stopCh alone does not wake a worker already parked in
// acquireTask's park branch, since a parker only wakes via a future
// schedule() popping its unparker. Shutdown therefore also drains
// sharedState.unparked and unparks every entry found there. This single
// drain pass, combined with acquireTask's own post-push recheck of
// stopCh before parking, covers every interleaving: any worker whose
// push onto unparked happens before this drain has its unparker
// consumed here (and parker's pre-notification means an unpark
// delivered just before park() is a no-op, not a missed wakeup); any
// worker whose push happens after this drain necessarily observed
// stopCh already closed when it rechecked, and returns without
// parking.
func (rt *Runtime) Shutdown() {
	rt.closeOnce.Do(func() {
		close(rt.stopCh)
		for {
			u, ok := rt.handle.shared.unparked.pop()
			if !ok {
				break
			}
			u.Unpark()
		}
		_ = rt.handle.shared.driver.close()
	})
	rt.wg.Wait()
}

// BlockOn drives body to completion on the calling goroutine (§4.6): it
// installs the handle into this goroutine's context, creates a local
// parker, and loops poll-or-park the resulting task until it completes.
// The calling goroutine does not act as a worker and does not poll the
// driver itself; progress on body depends on the worker pool serving
// any tasks it spawns via [Spawn].
func BlockOn[T any](rt *Runtime, body func(aw *Awaiter) T) T {
	setCurrentHandle(rt.handle)
	defer clearCurrentHandle()

	p := newParker()
	w := newWaker(p.unpark)
	t := newGoroutineTask[T](rt.handle, body)

	for {
		v, done := t.Poll(w)
		if done {
			return v
		}
		p.park()
	}
}

// runWorkerLoop implements §4.5's worker loop: pop-task / poll-driver /
// park, indefinitely, until stopCh is closed.
func runWorkerLoop(h *Handle, stopCh <-chan struct{}) {
	for {
		t, ok := acquireTask(h, stopCh)
		if !ok {
			return
		}
		tw := newTaskWaker(h)
		w := tw.asWaker()
		if !t.poll(w) {
			tw.store(t)
		}
	}
}

// acquireTask implements §4.5's acquire_task: pop the shared queue;
// failing that, try to become the sole driver poller; failing that,
// push this attempt's unparker and park. The unparker is pushed before
// parking in every iteration, satisfying the ordering §4.5 requires.
func acquireTask(h *Handle, stopCh <-chan struct{}) (task, bool) {
	s := h.shared
	for {
		select {
		case <-stopCh:
			return nil, false
		default:
		}
		if t, ok := s.queue.pop(); ok {
			return t, true
		}
		if s.driver.tryLock() {
			s.driver.pollEvents()
			s.driver.unlock()
			continue
		}
		p := newParker()
		s.unparked.push(p.waker())
		select {
		case <-stopCh:
			return nil, false
		default:
		}
		p.park()
	}
}

// unitTask wraps a user Future[T] task with its [JoinHandle], producing
// unit for the scheduler per §4.4 ("spawning a non-unit computation
// wraps it so the output is sent through a one-shot channel whose
// receiver is the JoinHandle").
type unitTask[T any] struct {
	inner *goroutineTask[T]
	join  *JoinHandle[T]
}

func (u *unitTask[T]) poll(w *Waker) bool {
	v, done := u.inner.Poll(w)
	if !done {
		return false
	}
	if u.inner.panicked() {
		var zero T
		u.join.complete(zero, u.inner.panicErr())
	} else {
		u.join.complete(v, nil)
	}
	return true
}

// Spawn enqueues body as a new task on aw's runtime and returns a
// [JoinHandle] resolving to its output (§4.6 spawn). aw must be a live
// [Awaiter] from a task currently running inside a runtime (the body
// passed to [BlockOn] counts); spawning with a handle-less Awaiter is a
// programmer error and panics with [ErrNoRuntime], matching §7's
// fail-fast policy for "spawn outside a runtime context".
func Spawn[T any](aw *Awaiter, body func(aw *Awaiter) T) *JoinHandle[T] {
	h := aw.Handle()
	if h == nil {
		panic(ErrNoRuntime)
	}
	inner := newGoroutineTask[T](h, body)
	join := newJoinHandle[T]()
	h.schedule(&unitTask[T]{inner: inner, join: join})
	return join
}
