package goasio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParkerNotifyBeforePark(t *testing.T) {
	p := newParker()
	// Unpark before park must be remembered, not lost.
	p.unpark()

	done := make(chan struct{})
	go func() {
		p.park()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("park did not return after a prior unpark")
	}
}

func TestParkerUnparkWakesParked(t *testing.T) {
	p := newParker()
	woke := make(chan struct{})
	go func() {
		p.park()
		close(woke)
	}()

	time.Sleep(20 * time.Millisecond)
	p.unpark()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("park did not wake after unpark")
	}
}

func TestParkerDoubleParkPanics(t *testing.T) {
	p := newParker()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		close(started)
		p.park()
		<-release
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	require.Panics(t, func() {
		p.park()
	})
	close(release)
}

func TestUnparkerDetached(t *testing.T) {
	p := newParker()
	u := p.waker()

	done := make(chan struct{})
	go func() {
		p.park()
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	u.Unpark()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unparker.Unpark did not wake the parker")
	}
}
