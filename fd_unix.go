//go:build linux || darwin

package goasio

import (
	"net"

	"golang.org/x/sys/unix"
)

func init() {
	closeRegisteredFD = closeFD
}

// closeFD closes a file descriptor on Unix systems.
func closeFD(fd int) error {
	return unix.Close(fd)
}

// readFD reads from a file descriptor on Unix systems, translating
// EAGAIN/EWOULDBLOCK to errWouldBlock for asyncIO's retry protocol.
func readFD(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	return n, translateWouldBlock(err)
}

// writeFD writes to a file descriptor on Unix systems, translating
// EAGAIN/EWOULDBLOCK to errWouldBlock for asyncIO's retry protocol.
func writeFD(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	return n, translateWouldBlock(err)
}

// translateWouldBlock maps the platform's would-block errno onto the
// package's internal sentinel, so asyncIOFuture can recognize it via
// errors.Is regardless of which syscall produced it.
func translateWouldBlock(err error) error {
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return errWouldBlock
	}
	return err
}

// setNonblock puts fd into non-blocking mode, required for every
// source registered with the driver: syscalls on sources are
// non-blocking by construction (§5).
func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// socketTCP creates a non-blocking, close-on-exec TCP socket bound to
// the IP family implied by addr.
func socketTCP(addr *net.TCPAddr) (int, error) {
	domain := unix.AF_INET
	if addr != nil && addr.IP != nil && addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	if err := setNonblock(fd); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	return fd, nil
}

// socketUDP creates a non-blocking, close-on-exec UDP socket bound to
// the IP family implied by addr.
func socketUDP(addr *net.UDPAddr) (int, error) {
	domain := unix.AF_INET
	if addr != nil && addr.IP != nil && addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	if err := setNonblock(fd); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// sockaddrFromTCP converts a *net.TCPAddr to a unix.Sockaddr.
func sockaddrFromTCP(addr *net.TCPAddr) unix.Sockaddr {
	if addr == nil || addr.IP == nil || addr.IP.To4() != nil {
		var sa unix.SockaddrInet4
		if addr != nil {
			copy(sa.Addr[:], addr.IP.To4())
			sa.Port = addr.Port
		}
		return &sa
	}
	var sa unix.SockaddrInet6
	copy(sa.Addr[:], addr.IP.To16())
	sa.Port = addr.Port
	return &sa
}

// sockaddrFromUDP converts a *net.UDPAddr to a unix.Sockaddr.
func sockaddrFromUDP(addr *net.UDPAddr) unix.Sockaddr {
	if addr == nil || addr.IP == nil || addr.IP.To4() != nil {
		var sa unix.SockaddrInet4
		if addr != nil {
			copy(sa.Addr[:], addr.IP.To4())
			sa.Port = addr.Port
		}
		return &sa
	}
	var sa unix.SockaddrInet6
	copy(sa.Addr[:], addr.IP.To16())
	sa.Port = addr.Port
	return &sa
}

// tcpAddrFromSockaddr converts the kernel's sockaddr back to *net.TCPAddr.
func tcpAddrFromSockaddr(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	}
	return nil
}

// udpAddrFromSockaddr converts the kernel's sockaddr back to *net.UDPAddr.
func udpAddrFromSockaddr(sa unix.Sockaddr) *net.UDPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, a.Addr[:])
		return &net.UDPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, a.Addr[:])
		return &net.UDPAddr{IP: ip, Port: a.Port}
	}
	return nil
}
