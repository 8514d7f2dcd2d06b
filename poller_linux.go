//go:build linux

package goasio

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller implements [osPoller] using epoll, adapted from this
// pack's poller_linux.go FastPoller: the registration bookkeeping and
// epoll_ctl/epoll_wait calls are the teacher's, but dispatch now
// produces a batch of [polledEvent] keyed by token instead of invoking
// a per-fd callback, matching §4.2's "push a copy of the event onto its
// channel" contract. The token is stored in the epoll event's Fd data
// field at registration and read back from it on poll, so no separate
// fd→token lookup is needed. epoll_wait counts its timeout in whole
// milliseconds, so a positive timeout below 1ms is rounded up to 1ms.
type epollPoller struct {
	epfd     int
	eventBuf [256]unix.EpollEvent
}

func newOSPoller() (osPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: epfd}, nil
}

func (p *epollPoller) registerFD(fd int, tok token, interest ioInterest) error {
	ev := unix.EpollEvent{
		Events: interestToEpoll(interest),
		Fd:     int32(tok),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) unregisterFD(fd int, _ token) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *epollPoller) poll(timeout time.Duration) ([]polledEvent, error) {
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]polledEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := &p.eventBuf[i]
		out = append(out, polledEvent{
			tok:      token(ev.Fd),
			readable: ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			writable: ev.Events&(unix.EPOLLOUT|unix.EPOLLERR) != 0,
			errored:  ev.Events&unix.EPOLLERR != 0,
		})
	}
	return out, nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}

// interestToEpoll converts an ioInterest to epoll event flags.
func interestToEpoll(i ioInterest) uint32 {
	var events uint32
	if i.readable {
		events |= unix.EPOLLIN
	}
	if i.writable {
		events |= unix.EPOLLOUT
	}
	return events
}
