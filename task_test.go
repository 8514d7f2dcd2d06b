package goasio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskWakerStoreThenWakeReschedulesOnce(t *testing.T) {
	h := newNopHandle()
	tw := newTaskWaker(h)

	tw.store(fakeTask{id: 1})
	tw.wake()

	got, ok := h.shared.queue.pop()
	require.True(t, ok)
	require.Equal(t, 1, got.(fakeTask).id)

	_, ok = h.shared.queue.pop()
	require.False(t, ok)
}

// TestTaskWakerWakeBeforeStoreReschedulesImmediately exercises §4.4's
// correctness requirement: a wake that races ahead of store must not be
// lost, and store must not leave the task parked once a wake has already
// happened.
func TestTaskWakerWakeBeforeStoreReschedulesImmediately(t *testing.T) {
	h := newNopHandle()
	tw := newTaskWaker(h)

	tw.wake() // no task in the slot yet: records woken
	tw.store(fakeTask{id: 2})

	got, ok := h.shared.queue.pop()
	require.True(t, ok)
	require.Equal(t, 2, got.(fakeTask).id)
}

func TestTaskWakerExactlyOnceUnderConcurrency(t *testing.T) {
	for i := 0; i < 200; i++ {
		h := newNopHandle()
		tw := newTaskWaker(h)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			tw.store(fakeTask{id: i})
		}()
		go func() {
			defer wg.Done()
			tw.wake()
		}()
		wg.Wait()

		count := 0
		for {
			_, ok := h.shared.queue.pop()
			if !ok {
				break
			}
			count++
		}
		require.Equal(t, 1, count, "task must be rescheduled exactly once")
	}
}
