package goasio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWakerNilSafe(t *testing.T) {
	var w *Waker
	require.NotPanics(t, func() { w.Wake() })
}

func TestWakerInvokesOnce(t *testing.T) {
	calls := 0
	w := newWaker(func() { calls++ })
	w.Wake()
	w.Wake()
	require.Equal(t, 2, calls)
}

func TestFutureFuncAdapter(t *testing.T) {
	var f Future[int] = FutureFunc[int](func(*Waker) (int, bool) { return 42, true })
	v, done := f.Poll(nil)
	require.True(t, done)
	require.Equal(t, 42, v)
}

func TestJoinHandleResolvesOnce(t *testing.T) {
	h := newJoinHandle[int]()

	woken := false
	w := newWaker(func() { woken = true })
	_, done := h.Poll(w)
	require.False(t, done)

	h.complete(7, nil)
	require.True(t, woken)

	out, done := h.Poll(nil)
	require.True(t, done)
	require.Equal(t, 7, out.Value)
	require.NoError(t, out.Err)
}

func TestJoinHandleCarriesError(t *testing.T) {
	h := newJoinHandle[string]()
	sentinel := errors.New("boom")
	h.complete("", sentinel)

	out, done := h.Poll(nil)
	require.True(t, done)
	require.ErrorIs(t, out.Err, sentinel)
}

// newNopHandle builds just enough of Handle's surface for goroutineTask
// tests that never actually schedule anything (the body under test never
// calls Spawn, only Await on leaf futures).
func newNopHandle() *Handle {
	return &Handle{shared: &sharedState{
		queue:    newTaskQueue(),
		unparked: newUnparkQueue(),
		logger:   nopLogger{},
	}}
}

func TestGoroutineTaskRunsBodyToCompletion(t *testing.T) {
	h := newNopHandle()
	gt := newGoroutineTask[int](h, func(aw *Awaiter) int {
		return 1 + 1
	})

	w := newWaker(func() {})
	v, done := gt.Poll(w)
	require.True(t, done)
	require.Equal(t, 2, v)
}

// countdownFuture resolves to true after N polls, waking itself
// immediately so a driving loop can make progress without an external
// event source.
type countdownFuture struct{ n int }

func (f *countdownFuture) Poll(w *Waker) (bool, bool) {
	if f.n <= 0 {
		return true, true
	}
	f.n--
	w.Wake()
	return false, false
}

func TestAwaitSuspendsAndResumes(t *testing.T) {
	h := newNopHandle()
	gt := newGoroutineTask[int](h, func(aw *Awaiter) int {
		cf := &countdownFuture{n: 3}
		Await(aw, cf)
		return 99
	})

	var w *Waker
	wakeCh := make(chan struct{}, 1)
	w = newWaker(func() {
		select {
		case wakeCh <- struct{}{}:
		default:
		}
	})

	for {
		v, done := gt.Poll(w)
		if done {
			require.Equal(t, 99, v)
			return
		}
		<-wakeCh
	}
}

func TestGoroutineTaskRecoversPanic(t *testing.T) {
	h := newNopHandle()
	gt := newGoroutineTask[int](h, func(aw *Awaiter) int {
		panic("kaboom")
	})

	w := newWaker(func() {})
	_, done := gt.Poll(w)
	require.True(t, done)
	require.True(t, gt.panicked())

	var pe *PanicError
	require.ErrorAs(t, gt.panicErr(), &pe)
	require.Equal(t, "kaboom", pe.Value)
}
