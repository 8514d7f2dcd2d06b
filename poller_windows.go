//go:build windows

package goasio

import (
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

// iocpPoller implements [osPoller] using an I/O completion port, adapted
// from this pack's poller_windows.go FastPoller. IOCP is completion-based
// rather than readiness-based, so this is the "simplified stand-in"
// SPEC_FULL.md acknowledges for Windows: a completion notification is
// reported as both readable and writable, since distinguishing direction
// would require tracking per-operation OVERLAPPED structures that the
// socket-level I/O Source Wrappers (net_tcp.go, net_udp.go) don't use on
// this platform. CreateIoCompletionPort's completionKey parameter is a
// natural fit for carrying our token, avoiding a separate lookup table.
type iocpPoller struct {
	iocp windows.Handle
}

func newOSPoller() (osPoller, error) {
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &iocpPoller{iocp: iocp}, nil
}

func (p *iocpPoller) registerFD(fd int, tok token, _ ioInterest) error {
	handle := windows.Handle(fd)
	_, err := windows.CreateIoCompletionPort(handle, p.iocp, uintptr(tok), 0)
	return err
}

// unregisterFD is a no-op: IOCP removes a handle's association when the
// handle itself is closed, matching the teacher's own UnregisterFD note.
func (p *iocpPoller) unregisterFD(int, token) error {
	return nil
}

func (p *iocpPoller) poll(timeout time.Duration) ([]polledEvent, error) {
	ms := uint32(timeout / time.Millisecond)
	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped

	err := windows.GetQueuedCompletionStatus(p.iocp, &bytes, &key, &overlapped, ms)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok && errno == windows.WAIT_TIMEOUT {
			return nil, nil
		}
		return nil, err
	}
	if overlapped == nil {
		// Wake-up notification via PostQueuedCompletionStatus with no work.
		return nil, nil
	}
	return []polledEvent{{tok: token(key), readable: true, writable: true}}, nil
}

func (p *iocpPoller) close() error {
	return windows.CloseHandle(p.iocp)
}
