//go:build darwin

package goasio

import "golang.org/x/sys/unix"

// acceptConn accepts one pending connection on fd. Darwin's kqueue
// stack lacks accept4, so non-blocking/close-on-exec are applied after
// the fact, mirroring poller_darwin.go's general style of adapting the
// BSD socket API to the same cross-platform contract as epoll/IOCP.
func acceptConn(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept(fd)
	if err != nil {
		return -1, nil, translateWouldBlock(err)
	}
	unix.CloseOnExec(nfd)
	if err := unix.SetNonblock(nfd, true); err != nil {
		_ = unix.Close(nfd)
		return -1, nil, err
	}
	return nfd, sa, nil
}
