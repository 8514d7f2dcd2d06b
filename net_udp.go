//go:build linux || darwin

package goasio

import (
	"net"

	"golang.org/x/sys/unix"
)

// UDPSocket is an I/O Source Wrapper (§6) presenting a bound UDP socket
// through the Registration protocol, structurally grounded on
// original_source/dirtio/src/net/udp.rs.
type UDPSocket struct {
	reg *Registration
}

// ListenUDP binds addr (port 0 picks an ephemeral port) and registers
// the resulting non-blocking socket with h's driver.
func ListenUDP(h *Handle, addr *net.UDPAddr) (*UDPSocket, error) {
	fd, err := socketUDP(addr)
	if err != nil {
		return nil, wrapIOError("socket", err)
	}
	if err := unix.Bind(fd, sockaddrFromUDP(addr)); err != nil {
		_ = unix.Close(fd)
		return nil, wrapIOError("bind", err)
	}
	reg, err := register(h.driverHandle(), fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &UDPSocket{reg: reg}, nil
}

// Addr returns the socket's bound local address.
func (s *UDPSocket) Addr() *net.UDPAddr {
	sa, err := unix.Getsockname(s.reg.fd)
	if err != nil {
		return nil
	}
	return udpAddrFromSockaddr(sa)
}

// RecvFrom returns a [Future] resolving to (n, sender address) for the
// next inbound datagram.
func (s *UDPSocket) RecvFrom(buf []byte) Future[ioResult[udpRecv]] {
	return AsyncIO(s.reg, true, false, func() (udpRecv, error) {
		n, from, err := unix.Recvfrom(s.reg.fd, buf, 0)
		if err != nil {
			return udpRecv{}, translateWouldBlock(err)
		}
		return udpRecv{n: n, addr: udpAddrFromSockaddr(from)}, nil
	})
}

// SendTo returns a [Future] resolving once buf has been handed to the
// kernel for delivery to addr.
func (s *UDPSocket) SendTo(buf []byte, addr *net.UDPAddr) Future[ioResult[int]] {
	return AsyncIO(s.reg, false, true, func() (int, error) {
		if err := unix.Sendto(s.reg.fd, buf, 0, sockaddrFromUDP(addr)); err != nil {
			return 0, translateWouldBlock(err)
		}
		return len(buf), nil
	})
}

// Close deregisters and closes the socket. Idempotent.
func (s *UDPSocket) Close() error {
	return s.reg.Close()
}

// udpRecv is the result of a RecvFrom: the byte count and sender
// address, bundled so it can travel through the generic Future[T]
// surface (see ioResult).
type udpRecv struct {
	n    int
	addr *net.UDPAddr
}

// N returns the number of bytes received.
func (r udpRecv) N() int { return r.n }

// Addr returns the sender's address.
func (r udpRecv) Addr() *net.UDPAddr { return r.addr }
