// Package eventloop implements the core's event loop adapter (C1): a
// small, pluggable abstraction over timeouts and fd-readiness watches that
// every protocol plugs into. The scheduling model is strictly
// single-threaded and cooperative — see the package-level Loop doc comment.
package eventloop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Condition is the fd-readiness condition a watch is armed for.
type Condition int

const (
	ConditionRead Condition = 1 << iota
	ConditionWrite
)

// TimeoutFunc is invoked once when a scheduled timeout fires.
type TimeoutFunc func()

// WatchFunc is invoked whenever the watched fd becomes ready; cond
// reports which of the requested conditions is currently satisfied.
type WatchFunc func(cond Condition)

// Handle is an opaque, idempotent cancellation token.
type Handle uint64

// FdErrorFunc reports a socket's pending error in a platform-correct way
// (the getsockopt(SO_ERROR) equivalent). Implementations backed by a real
// reactor supply one to New; when New is given nil, FdGetError reports
// no error for any fd.
type FdErrorFunc func(fd int) error

// Loop is a single cooperative event loop: every callback registered
// through it runs on the loop's own goroutine (the "loop thread" in
// spec.md's terms), never concurrently. Blocking operations are forbidden
// inside callbacks — the resolver (C3) and xfer engine (C9) are the only
// subsystems allowed to use background goroutines internally, and they
// must re-enter the loop via ScheduleAfter/WatchFD before touching shared
// state, exactly as spec.md §4.1 requires.
type Loop struct {
	mu       sync.Mutex
	nextID   atomic.Uint64
	timers   map[Handle]*timerEntry
	watches  map[Handle]*watchEntry
	queue    []func()
	fdErrFn  FdErrorFunc
	stopping bool
	stopped  chan struct{}
}

type timerEntry struct {
	fire     time.Time
	fn       TimeoutFunc
	cancelled bool
	fired    bool
}

type watchEntry struct {
	fd        int
	cond      Condition
	fn        WatchFunc
	cancelled bool
	poll      func() (Condition, bool) // returns (ready conditions, should keep watching)
}

// New creates a Loop. fdErrFn may be nil, in which case FdGetError always
// reports no error (matching the source's "implementation optional").
func New(fdErrFn FdErrorFunc) *Loop {
	return &Loop{
		timers:  make(map[Handle]*timerEntry),
		watches: make(map[Handle]*watchEntry),
		fdErrFn: fdErrFn,
		stopped: make(chan struct{}),
	}
}

// ScheduleAfter runs fn once after d elapses, on the loop thread. Use this
// for sub-second precision; ScheduleAfterSeconds is the coarse-grained
// sibling for timers where waking up more often than once a second would
// be wasted work (keepalive timers, idle-eviction sweeps).
func (l *Loop) ScheduleAfter(d time.Duration, fn TimeoutFunc) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := Handle(l.nextID.Add(1))
	l.timers[id] = &timerEntry{fire: time.Now().Add(d), fn: fn}
	return id
}

// ScheduleAfterSeconds is ScheduleAfter rounded to whole seconds.
func (l *Loop) ScheduleAfterSeconds(seconds int, fn TimeoutFunc) Handle {
	return l.ScheduleAfter(time.Duration(seconds)*time.Second, fn)
}

// Cancel is idempotent: cancelling an unknown or already-fired one-shot
// handle returns false without error, matching spec.md's contract.
func (l *Loop) Cancel(h Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[h]; ok {
		if t.cancelled || t.fired {
			return false
		}
		t.cancelled = true
		return true
	}
	if w, ok := l.watches[h]; ok {
		if w.cancelled {
			return false
		}
		w.cancelled = true
		return true
	}
	return false
}

// WatchFD arms fn to run whenever fd is ready for cond. poll is supplied
// by the connection fabric (C4) or resolver (C3) and is called by the
// loop's run cycle to test readiness without blocking; it returns the
// subset of cond currently satisfied and whether the watch should remain
// armed afterwards.
func (l *Loop) WatchFD(fd int, cond Condition, poll func() (Condition, bool), fn WatchFunc) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := Handle(l.nextID.Add(1))
	l.watches[id] = &watchEntry{fd: fd, cond: cond, fn: fn, poll: poll}
	return id
}

// FdGetError reads the pending socket error for fd, via the
// platform-specific callback supplied at construction.
func (l *Loop) FdGetError(fd int) error {
	if l.fdErrFn == nil {
		return nil
	}
	return l.fdErrFn(fd)
}

// Post schedules fn to run on the loop thread at the next opportunity,
// with no ordering guarantee relative to timers other than FIFO among
// posted functions. This is the re-entry point the resolver and xfer
// engine use to hand a background result back to the loop thread.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
}

// Run drives the loop until Stop is called. It is meant to run on its own
// goroutine for the lifetime of the process; every TimeoutFunc, WatchFunc,
// and posted func runs serially from here, never concurrently with each
// other — this is the single-threaded cooperative guarantee the rest of
// the core depends on.
func (l *Loop) Run() {
	const pollInterval = 5 * time.Millisecond
	for {
		l.mu.Lock()
		if l.stopping {
			l.mu.Unlock()
			close(l.stopped)
			return
		}

		now := time.Now()
		var due []*timerEntry
		var duePosted []func()

		for id, t := range l.timers {
			if t.cancelled {
				delete(l.timers, id)
				continue
			}
			if !t.fire.After(now) {
				t.fired = true
				due = append(due, t)
				delete(l.timers, id)
			}
		}

		var fired []func()
		for id, w := range l.watches {
			if w.cancelled {
				delete(l.watches, id)
				continue
			}
			ready, keep := w.poll()
			if ready&w.cond != 0 {
				fn := w.fn
				c := ready & w.cond
				fired = append(fired, func() { fn(c) })
			}
			if !keep {
				delete(l.watches, id)
			}
		}

		duePosted, l.queue = l.queue, nil
		l.mu.Unlock()

		for _, t := range due {
			t.fn()
		}
		for _, fn := range fired {
			fn()
		}
		for _, fn := range duePosted {
			fn()
		}

		if len(due) == 0 && len(fired) == 0 && len(duePosted) == 0 {
			time.Sleep(pollInterval)
		}
	}
}

// Stop requests the loop to exit after its current iteration and blocks
// until it has.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopping = true
	l.mu.Unlock()
	<-l.stopped
}
