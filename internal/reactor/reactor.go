// Package reactor implements the readiness-based file-event loop plus
// timer min-heap that drives the whole server (component G of
// SPEC_FULL.md): a single thread polls a bounded set of file
// descriptors for readiness, dispatches read callbacks before write
// callbacks, then processes any timers whose fire-time has passed.
//
// Grounded on original_source/src/rr_event.c (the eventloop_t contract:
// el_event_add/del/get, el_loop_poll, el_timer_add/process, el_main)
// and rr_epoll.c (the Linux epoll backend: epoll_create, epoll_ctl,
// epoll_wait, and the RR_EV_READ/RR_EV_WRITE <-> EPOLLIN/EPOLLOUT
// translation). The teacher's own internal/ctrl and internal/uring
// packages establish the idiom of wrapping raw syscalls behind a small
// struct rather than reaching for a third-party event-loop library, so
// this package follows that shape directly with golang.org/x/sys/unix
// in place of cgo.
package reactor

import (
	"errors"
	"reflect"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rhino-rox/rhino-rox/internal/heap"
	"github.com/rhino-rox/rhino-rox/internal/logging"
)

// Mask is a bitset of readiness kinds, mirroring RR_EV_READ/RR_EV_WRITE.
type Mask int

const (
	Read Mask = 1 << iota
	Write
)

// FileCallback handles readiness of fd for the events set in mask.
type FileCallback func(r *Reactor, fd int, ud any, mask Mask)

// TimerCallback runs when a timer's deadline has passed. A positive
// return value reschedules the timer that many milliseconds into the
// future; zero or negative cancels it - the only cancellation
// primitive a timer has.
type TimerCallback func(r *Reactor, ud any) int64

// BeforePollHook runs once at the start of every iteration, before the
// poll timeout is computed. The server's hook only stops the loop once
// shutdown has been requested; pending replies are not drained here
// but flushed by the client's read path right after dispatch.
type BeforePollHook func(r *Reactor)

type fdState struct {
	mask    Mask
	readCB  FileCallback
	writeCB FileCallback
	ud      any
}

type timerEntry struct {
	id     uint64
	fireAt time.Time
	cb     TimerCallback
	ud     any
}

// Reactor is the single-threaded event loop. It is not safe for
// concurrent use - spec.md's threading model gives it sole ownership
// of all client/keyspace/object-refcount state, and callbacks are
// expected to be non-blocking.
type Reactor struct {
	size   int
	events []fdState
	maxFD  int

	epfd      int
	epollBuf  []unix.EpollEvent

	timers      *heap.Heap[*timerEntry]
	nextTimerID uint64

	beforePoll BeforePollHook
	stop       bool

	logger *logging.Logger
}

// New creates a reactor that can track fds in [0, size).
func New(size int) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	r := &Reactor{
		size:     size,
		events:   make([]fdState, size),
		maxFD:    -1,
		epfd:     epfd,
		epollBuf: make([]unix.EpollEvent, size),
		timers: heap.New[*timerEntry](func(a, b *timerEntry) bool {
			return a.fireAt.Before(b.fireAt)
		}),
		logger: logging.Default(),
	}
	return r, nil
}

// SetLogger overrides the reactor's logger (default logging.Default()).
func (r *Reactor) SetLogger(l *logging.Logger) { r.logger = l }

// Close releases the epoll fd. The reactor must not be used afterward.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}

// Size returns the fd-table capacity the reactor was created with.
func (r *Reactor) Size() int { return r.size }

// Stop requests that RunForever return after the current iteration.
func (r *Reactor) Stop() { r.stop = true }

// SetBeforePollHook installs hook to run at the start of every
// iteration, before the poll timeout is computed.
func (r *Reactor) SetBeforePollHook(hook BeforePollHook) { r.beforePoll = hook }

var errFDOutOfRange = errors.New("reactor: fd exceeds registered size")

func epollEvents(mask Mask) uint32 {
	var ev uint32
	if mask&Read != 0 {
		ev |= unix.EPOLLIN
	}
	if mask&Write != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// AddFd registers cb to run when fd becomes ready for any event in
// mask, merging with any mask already registered for fd (a MOD rather
// than ADD at the epoll layer, matching el_context_add).
func (r *Reactor) AddFd(fd int, mask Mask, cb FileCallback, ud any) error {
	if fd < 0 || fd >= r.size {
		return errFDOutOfRange
	}
	e := &r.events[fd]
	op := unix.EPOLL_CTL_ADD
	if e.mask != 0 {
		op = unix.EPOLL_CTL_MOD
	}
	merged := e.mask | mask
	ee := unix.EpollEvent{Events: epollEvents(merged), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, op, fd, &ee); err != nil {
		return err
	}
	e.mask = merged
	if mask&Read != 0 {
		e.readCB = cb
	}
	if mask&Write != 0 {
		e.writeCB = cb
	}
	e.ud = ud
	if fd > r.maxFD {
		r.maxFD = fd
	}
	return nil
}

// DelFd unregisters mask for fd. Unlike AddFd it never returns an
// error: a fd outside range or already unregistered is a silent no-op,
// matching el_event_del.
func (r *Reactor) DelFd(fd int, mask Mask) {
	if fd < 0 || fd >= r.size {
		return
	}
	e := &r.events[fd]
	if e.mask == 0 {
		return
	}
	remaining := e.mask &^ mask
	ee := unix.EpollEvent{Events: epollEvents(remaining), Fd: int32(fd)}
	if remaining != 0 {
		_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ee)
	} else {
		_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, &ee)
	}
	e.mask = remaining
	if mask&Read != 0 {
		e.readCB = nil
	}
	if mask&Write != 0 {
		e.writeCB = nil
	}
	if fd == r.maxFD && remaining == 0 {
		j := r.maxFD - 1
		for ; j >= 0; j-- {
			if r.events[j].mask != 0 {
				break
			}
		}
		r.maxFD = j
	}
}

// GetFd returns the readiness mask currently registered for fd.
func (r *Reactor) GetFd(fd int) Mask {
	if fd < 0 || fd >= r.size {
		return 0
	}
	return r.events[fd].mask
}

// AddTimer schedules cb to run after d elapses, returning an
// identifier for logging/introspection (the reactor has no del_timer -
// per spec.md §4.G a non-positive callback return is the only
// cancellation primitive).
func (r *Reactor) AddTimer(d time.Duration, cb TimerCallback, ud any) uint64 {
	r.nextTimerID++
	t := &timerEntry{id: r.nextTimerID, fireAt: time.Now().Add(d), cb: cb, ud: ud}
	r.timers.Push(t)
	return t.id
}

// pollTimeout returns the duration to block in epoll_wait: the delay
// until the earliest timer (0 if already due), or -1 (wait forever) if
// there are no timers.
func (r *Reactor) pollTimeout() time.Duration {
	t, ok := r.timers.Peek()
	if !ok {
		return -1
	}
	d := time.Until(t.fireAt)
	if d < 0 {
		return 0
	}
	return d
}

// Poll blocks for up to timeout (negative blocks forever) and
// dispatches read callbacks, then write callbacks, for every fd that
// became ready - unless the same callback handles both, matching
// el_loop_poll's "don't double-fire a single handler" rule. Returns
// the number of fds processed.
func (r *Reactor) Poll(timeout time.Duration) (int, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(r.epfd, r.epollBuf, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	processed := 0
	for i := 0; i < n; i++ {
		fd := int(r.epollBuf[i].Fd)
		ev := r.epollBuf[i].Events
		mask := Mask(0)
		if ev&unix.EPOLLIN != 0 {
			mask |= Read
		}
		if ev&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			mask |= Write
		}

		e := &r.events[fd]
		fired := mask & e.mask
		rfired := false
		if fired&Read != 0 && e.readCB != nil {
			rfired = true
			e.readCB(r, fd, e.ud, fired)
		}
		if fired&Write != 0 && e.writeCB != nil {
			if !rfired || !sameFunc(e.writeCB, e.readCB) {
				e.writeCB(r, fd, e.ud, fired)
			}
		}
		processed++
	}
	return processed, nil
}

// sameFunc approximates rr_loop_poll's "e->write_cb != e->read_cb"
// check. Go func values aren't comparable in general, so callers that
// register one callback for both events should pass the identical
// function value for both AddFd calls; reflect-based identity covers
// the common case without requiring callbacks to be comparable types.
func sameFunc(a, b FileCallback) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// ProcessTimers runs every timer whose fire-time has passed, earliest
// first, rescheduling any whose callback returns a positive
// millisecond delay. Returns the number processed.
func (r *Reactor) ProcessTimers() int {
	processed := 0
	for {
		t, ok := r.timers.Peek()
		if !ok || time.Now().Before(t.fireAt) {
			break
		}
		t, _ = r.timers.Pop()
		delay := t.cb(r, t.ud)
		if delay > 0 {
			t.fireAt = time.Now().Add(time.Duration(delay) * time.Millisecond)
			r.timers.Push(t)
		}
		processed++
	}
	return processed
}

// RunOnce executes a single iteration: before-poll hook, timeout
// computation, poll, then timer processing. Returns the number of fd
// events and timers processed.
func (r *Reactor) RunOnce() (events int, timers int, err error) {
	if r.beforePoll != nil {
		r.beforePoll(r)
	}
	events, err = r.Poll(r.pollTimeout())
	if err != nil {
		return events, 0, err
	}
	timers = r.ProcessTimers()
	r.logger.Debugf("reactor: processed %d file events, %d timers", events, timers)
	return events, timers, nil
}

// RunForever loops RunOnce until Stop is called or an iteration
// returns an error.
func (r *Reactor) RunForever() error {
	r.stop = false
	for !r.stop {
		if _, _, err := r.RunOnce(); err != nil {
			return err
		}
	}
	return nil
}
