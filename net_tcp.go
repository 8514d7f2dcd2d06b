//go:build linux || darwin

package goasio

import (
	"net"

	"golang.org/x/sys/unix"
)

// listenBacklog is the backlog passed to listen(2); unremarkable for a
// minimal runtime's test surface.
const listenBacklog = 128

// TCPListener is an I/O Source Wrapper (§2 component 7, §6): a thin
// adapter presenting a bound, listening TCP socket through the
// Registration protocol. Structurally grounded on
// original_source/dirtio/src/net/tcp.rs, expressed with this module's
// Future/Registration types instead of async fn.
type TCPListener struct {
	reg *Registration
}

// ListenTCP binds and listens on addr (port 0 picks an ephemeral port),
// registering the resulting non-blocking socket with h's driver.
func ListenTCP(h *Handle, addr *net.TCPAddr) (*TCPListener, error) {
	fd, err := socketTCP(addr)
	if err != nil {
		return nil, wrapIOError("socket", err)
	}
	if err := unix.Bind(fd, sockaddrFromTCP(addr)); err != nil {
		_ = unix.Close(fd)
		return nil, wrapIOError("bind", err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return nil, wrapIOError("listen", err)
	}
	reg, err := register(h.driverHandle(), fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &TCPListener{reg: reg}, nil
}

// Addr returns the socket's bound local address.
func (l *TCPListener) Addr() *net.TCPAddr {
	sa, err := unix.Getsockname(l.reg.fd)
	if err != nil {
		return nil
	}
	return tcpAddrFromSockaddr(sa)
}

// Accept returns a [Future] resolving to the next accepted connection,
// layered on [AsyncIO] exactly as §6 specifies for every I/O source
// wrapper operation.
func (l *TCPListener) Accept() Future[ioResult[*TCPStream]] {
	return AsyncIO(l.reg, true, false, func() (*TCPStream, error) {
		nfd, sa, err := acceptConn(l.reg.fd)
		if err != nil {
			return nil, err
		}
		reg, err := register(l.reg.dh, nfd)
		if err != nil {
			_ = unix.Close(nfd)
			return nil, err
		}
		return &TCPStream{reg: reg, remote: tcpAddrFromSockaddr(sa)}, nil
	})
}

// Close deregisters and closes the listening socket. Idempotent.
func (l *TCPListener) Close() error {
	return l.reg.Close()
}

// TCPStream is a connected TCP socket presented through the
// Registration protocol (§6).
type TCPStream struct {
	reg    *Registration
	remote *net.TCPAddr
}

// DialTCP connects to addr, returning a [TCPStream] once the connection
// completes (or fails). Non-blocking connect(2) reports in-progress via
// EINPROGRESS, which this treats as the Would-Block condition for the
// writable direction, per §4.3.
func DialTCP(h *Handle, addr *net.TCPAddr) Future[ioResult[*TCPStream]] {
	fd, err := socketTCP(addr)
	if err != nil {
		return constFuture[ioResult[*TCPStream]](ioResult[*TCPStream]{err: wrapIOError("socket", err)})
	}
	connErr := unix.Connect(fd, sockaddrFromTCP(addr))
	if connErr != nil && connErr != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return constFuture[ioResult[*TCPStream]](ioResult[*TCPStream]{err: wrapIOError("connect", connErr)})
	}
	reg, err := register(h.driverHandle(), fd)
	if err != nil {
		_ = unix.Close(fd)
		return constFuture[ioResult[*TCPStream]](ioResult[*TCPStream]{err: err})
	}
	return AsyncIO(reg, false, true, func() (*TCPStream, error) {
		soErr, gerr := unix.GetsockoptInt(reg.fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil {
			return nil, gerr
		}
		if soErr != 0 {
			return nil, unix.Errno(soErr)
		}
		return &TCPStream{reg: reg, remote: addr}, nil
	})
}

// RemoteAddr returns the stream's peer address.
func (s *TCPStream) RemoteAddr() *net.TCPAddr { return s.remote }

// Read returns a [Future] resolving to a non-blocking read attempt.
func (s *TCPStream) Read(buf []byte) Future[ioResult[int]] {
	return AsyncIO(s.reg, true, false, func() (int, error) {
		return readFD(s.reg.fd, buf)
	})
}

// Write returns a [Future] resolving to a non-blocking write attempt.
// Callers composing a write-all loop should re-invoke Write with the
// unwritten remainder, as with any non-blocking socket API.
func (s *TCPStream) Write(buf []byte) Future[ioResult[int]] {
	return AsyncIO(s.reg, false, true, func() (int, error) {
		return writeFD(s.reg.fd, buf)
	})
}

// Close deregisters and closes the connection. Idempotent.
func (s *TCPStream) Close() error {
	return s.reg.Close()
}

// constFuture is a trivial already-resolved Future, used to surface
// synchronous setup errors (socket/bind/connect failures before a
// Registration even exists) through the same Future[T] surface as
// every other operation.
func constFuture[T any](v T) Future[T] {
	return FutureFunc[T](func(*Waker) (T, bool) { return v, true })
}
