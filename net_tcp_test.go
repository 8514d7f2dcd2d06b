//go:build linux || darwin

package goasio

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// echoResult carries outcomes out of Spawn/BlockOn task bodies, which run
// on dedicated goroutines (see future.go's goroutine-bridge): testify's
// require/assert must only be driven from the actual test goroutine, so
// task bodies report plain values/errors and the test function itself
// does all assertion after BlockOn returns.
type echoResult struct {
	value string
	err   error
}

func TestTCPEchoRoundTrip(t *testing.T) {
	rt := newTestRuntime(t, 4)

	ln, err := ListenTCP(rt.Handle(), &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	addr := ln.Addr()
	require.NotNil(t, addr)

	const msg = "hello, goasio"

	got := BlockOn(rt, func(aw *Awaiter) echoResult {
		server := Spawn(aw, func(aw *Awaiter) error {
			res := Await(aw, ln.Accept())
			if res.err != nil {
				return res.err
			}
			conn := res.value
			defer conn.Close()

			buf := make([]byte, len(msg))
			total := 0
			for total < len(buf) {
				r := Await(aw, conn.Read(buf[total:]))
				if r.err != nil {
					return r.err
				}
				total += r.value
			}

			written := 0
			for written < len(buf) {
				w := Await(aw, conn.Write(buf[written:total]))
				if w.err != nil {
					return w.err
				}
				written += w.value
			}
			return nil
		})

		client := Spawn(aw, func(aw *Awaiter) echoResult {
			dialRes := Await(aw, DialTCP(aw.Handle(), addr))
			if dialRes.err != nil {
				return echoResult{err: dialRes.err}
			}
			stream := dialRes.value
			defer stream.Close()

			written := 0
			for written < len(msg) {
				w := Await(aw, stream.Write([]byte(msg[written:])))
				if w.err != nil {
					return echoResult{err: w.err}
				}
				written += w.value
			}

			buf := make([]byte, len(msg))
			total := 0
			for total < len(buf) {
				r := Await(aw, stream.Read(buf[total:]))
				if r.err != nil {
					return echoResult{err: r.err}
				}
				total += r.value
			}
			return echoResult{value: string(buf)}
		})

		if serr := Await(aw, server).Value; serr != nil {
			return echoResult{err: serr}
		}
		return Await(aw, client).Value
	})

	require.NoError(t, got.err)
	require.Equal(t, msg, got.value)
}

func TestDialTCPConnectionRefused(t *testing.T) {
	rt := newTestRuntime(t, 2)

	// Bind and immediately close to obtain a very likely-unused port with
	// nothing listening on it.
	ln, err := ListenTCP(rt.Handle(), &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	addr := ln.Addr()
	require.NoError(t, ln.Close())

	res := BlockOn(rt, func(aw *Awaiter) ioResult[*TCPStream] {
		return Await(aw, DialTCP(aw.Handle(), addr))
	})
	require.Error(t, res.err)
}

func TestRegistrationCloseDeregistersUnderLoad(t *testing.T) {
	rt := newTestRuntime(t, 4)

	const n = 1000
	listeners := make([]*TCPListener, n)
	for i := range listeners {
		ln, err := ListenTCP(rt.Handle(), &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
		require.NoError(t, err)
		listeners[i] = ln
	}
	for _, ln := range listeners {
		require.NoError(t, ln.Close())
	}

	// Every one of the 1000 sources closed without error; the driver
	// still accepts a fresh registration afterwards.
	ln, err := ListenTCP(rt.Handle(), &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()
	require.NotNil(t, ln.Addr())
}

func TestTCPReadAfterPeerCloseReturnsEOFOrResult(t *testing.T) {
	rt := newTestRuntime(t, 2)
	ln, err := ListenTCP(rt.Handle(), &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()
	addr := ln.Addr()

	type readOutcome struct {
		n   int
		err error
	}

	outcome := BlockOn(rt, func(aw *Awaiter) readOutcome {
		server := Spawn(aw, func(aw *Awaiter) error {
			res := Await(aw, ln.Accept())
			if res.err != nil {
				return res.err
			}
			return res.value.Close()
		})

		client := Spawn(aw, func(aw *Awaiter) readOutcome {
			dialRes := Await(aw, DialTCP(aw.Handle(), addr))
			if dialRes.err != nil {
				return readOutcome{err: dialRes.err}
			}
			stream := dialRes.value
			defer stream.Close()

			buf := make([]byte, 16)
			r := Await(aw, stream.Read(buf))
			return readOutcome{n: r.value, err: r.err}
		})

		if serr := Await(aw, server).Value; serr != nil {
			return readOutcome{err: serr}
		}
		return Await(aw, client).Value
	})

	// A closed peer surfaces as n==0 (EOF) with no error, or ECONNRESET
	// depending on timing; either is an acceptable terminal outcome.
	if outcome.err == nil {
		require.Equal(t, 0, outcome.n)
	}
}
