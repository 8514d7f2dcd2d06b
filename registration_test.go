package goasio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadinessBitsMergeSatisfyClear(t *testing.T) {
	var b readinessBits
	require.False(t, b.satisfies(ioInterest{readable: true}))

	b.merge(ioEvent{readable: true})
	require.True(t, b.satisfies(ioInterest{readable: true}))
	require.False(t, b.satisfies(ioInterest{writable: true}))

	b.merge(ioEvent{writable: true})
	require.True(t, b.satisfies(ioInterest{readable: true, writable: true}))

	b.clear(ioInterest{readable: true})
	require.False(t, b.satisfies(ioInterest{readable: true}))
	require.True(t, b.satisfies(ioInterest{writable: true}), "clearing read must not clear write")
}

func TestEventQueuePushWakesStashedWaker(t *testing.T) {
	q := newEventQueue()
	woken := false
	w := newWaker(func() { woken = true })

	_, ok := q.poll(w)
	require.False(t, ok)
	require.False(t, woken)

	q.push(ioEvent{readable: true})
	require.True(t, woken, "push must wake a waker stashed by an empty poll")

	ev, ok := q.poll(nil)
	require.True(t, ok)
	require.True(t, ev.readable)
}

func TestReadinessFutureCompletesOnceBitsSatisfy(t *testing.T) {
	dh := newDriverHandle(newFakePoller())
	tok, q, err := dh.register(1, ioInterest{readable: true})
	require.NoError(t, err)
	reg := &Registration{fd: 1, tok: tok, dh: dh, queue: q}

	f := &readinessFuture{r: reg, i: ioInterest{readable: true}}
	_, done := f.Poll(newWaker(func() {}))
	require.False(t, done)

	q.push(ioEvent{readable: true})
	_, done = f.Poll(newWaker(func() {}))
	require.True(t, done)
}

func TestAsyncIORetriesOnWouldBlockThenSucceeds(t *testing.T) {
	dh := newDriverHandle(newFakePoller())
	tok, q, err := dh.register(1, ioInterest{readable: true})
	require.NoError(t, err)
	reg := &Registration{fd: 1, tok: tok, dh: dh, queue: q}
	reg.bits.merge(ioEvent{readable: true})

	attempts := 0
	f := AsyncIO(reg, true, false, func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, errWouldBlock
		}
		return 7, nil
	})

	w := newWaker(func() {})
	_, done := f.Poll(w)
	require.False(t, done, "would-block must clear the bit and wait for the next readiness event")

	q.push(ioEvent{readable: true})
	res, done := f.Poll(w)
	require.True(t, done)
	require.Equal(t, 7, res.value)
	require.NoError(t, res.err)
	require.Equal(t, 2, attempts)
}

func TestAsyncIOPropagatesNonWouldBlockError(t *testing.T) {
	dh := newDriverHandle(newFakePoller())
	tok, q, err := dh.register(1, ioInterest{readable: true})
	require.NoError(t, err)
	reg := &Registration{fd: 1, tok: tok, dh: dh, queue: q}
	reg.bits.merge(ioEvent{readable: true})

	sentinel := errors.New("boom")
	f := AsyncIO(reg, true, false, func() (int, error) {
		return 0, sentinel
	})

	res, done := f.Poll(newWaker(func() {}))
	require.True(t, done)
	require.ErrorIs(t, res.err, sentinel)
}

func TestPollIOSynchronousVariant(t *testing.T) {
	dh := newDriverHandle(newFakePoller())
	tok, q, err := dh.register(1, ioInterest{readable: true})
	require.NoError(t, err)
	reg := &Registration{fd: 1, tok: tok, dh: dh, queue: q}
	reg.bits.merge(ioEvent{readable: true})

	f := AsyncIO(reg, true, false, func() (int, error) { return 5, nil })
	v, err, done := PollIO[int](f, newWaker(func() {}))
	require.True(t, done)
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestRegistrationCloseIsIdempotent(t *testing.T) {
	dh := newDriverHandle(newFakePoller())
	tok, q, err := dh.register(1, ioInterest{readable: true})
	require.NoError(t, err)
	reg := &Registration{fd: 1, tok: tok, dh: dh, queue: q}

	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())
}
