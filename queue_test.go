package goasio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTask struct{ id int }

func (fakeTask) poll(*Waker) bool { return true }

func TestTaskQueueFIFO(t *testing.T) {
	q := newTaskQueue()
	for i := 0; i < 5; i++ {
		q.push(fakeTask{id: i})
	}
	for i := 0; i < 5; i++ {
		got, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, i, got.(fakeTask).id)
	}
	_, ok := q.pop()
	require.False(t, ok)
}

func TestTaskQueueConcurrentProducers(t *testing.T) {
	q := newTaskQueue()
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push(fakeTask{id: i})
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		_, ok := q.pop()
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, producers*perProducer, count)
}

func TestUnparkQueueFIFO(t *testing.T) {
	q := newUnparkQueue()
	_, ok := q.pop()
	require.False(t, ok)

	p1, p2 := newParker(), newParker()
	q.push(p1.waker())
	q.push(p2.waker())

	got1, ok := q.pop()
	require.True(t, ok)
	require.Same(t, p1, got1.p)

	got2, ok := q.pop()
	require.True(t, ok)
	require.Same(t, p2, got2.p)

	_, ok = q.pop()
	require.False(t, ok)
}
