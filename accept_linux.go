//go:build linux

package goasio

import "golang.org/x/sys/unix"

// acceptConn accepts one pending connection on fd, returning an already
// non-blocking, close-on-exec client socket.
func acceptConn(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	return nfd, sa, translateWouldBlock(err)
}
