//go:build darwin

package goasio

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// kqueuePoller implements [osPoller] using kqueue, adapted from this
// pack's poller_darwin.go FastPoller: the Kevent_t bookkeeping and
// kevent(2) calls are the teacher's, but dispatch now produces a batch
// of [polledEvent] keyed by token instead of invoking a per-fd
// callback. Unlike epoll, kqueue's Ident must stay the real fd (the
// kernel uses it to identify which descriptor a filter watches), so
// the token travels in Udata instead, preserved verbatim by the
// kernel across register/poll the same way epoll hands Fd back
// untouched on Linux.
type kqueuePoller struct {
	kq       int
	eventBuf [256]unix.Kevent_t
}

func newOSPoller() (osPoller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{kq: kq}, nil
}

func (p *kqueuePoller) registerFD(fd int, tok token, interest ioInterest) error {
	changes := eventsToKevents(fd, tok, interest, unix.EV_ADD|unix.EV_ENABLE)
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) unregisterFD(fd int, _ token) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *kqueuePoller) poll(timeout time.Duration) ([]polledEvent, error) {
	var ts unix.Timespec
	tsp := &ts
	if timeout > 0 {
		ts = unix.NsecToTimespec(timeout.Nanoseconds())
	} else {
		tsp = nil
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], tsp)
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
			tok:      udataToToken(ev.Udata),
			readable: ev.Filter == unix.EVFILT_READ,
			writable: ev.Filter == unix.EVFILT_WRITE,
			errored:  ev.Flags&unix.EV_ERROR != 0,
		})
	}
	return out, nil
}

func (p *kqueuePoller) close() error {
	return unix.Close(p.kq)
}

// eventsToKevents builds the kevent changelist for the requested
// interest, tagging each entry with tok via Udata so poll can report
// which registration an event belongs to.
func eventsToKevents(fd int, tok token, interest ioInterest, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	udata := tokenToUdata(tok)
	if interest.readable {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
			Udata:  udata,
		})
	}
	if interest.writable {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
			Udata:  udata,
		})
	}
	return kevents
}

// tokenToUdata and udataToToken round-trip a token through Kevent_t's
// Udata field.
func tokenToUdata(tok token) *byte {
	return (*byte)(unsafe.Pointer(uintptr(tok)))
}

func udataToToken(p *byte) token {
	return token(uintptr(unsafe.Pointer(p)))
}
