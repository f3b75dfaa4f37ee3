// Package resolver implements the core's name resolver (C3): asynchronous
// A/AAAA and SRV resolution with a pluggable backend, re-entering the
// event loop (eventloop.Loop) to deliver results rather than ever blocking
// the loop thread.
package resolver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"imcore/internal/debuglog"
	"imcore/internal/eventloop"
)

// MaxDNSChildren bounds the Unix child-process pool, matching the
// source's MAX_DNS_CHILDREN default.
const MaxDNSChildren = 4

// ErrorKind is the closed set of resolver failure reasons (spec.md §4.3
// "Failure semantics").
type ErrorKind int

const (
	ErrorBadHost ErrorKind = iota
	ErrorTemporaryFailure
	ErrorSpawnFailure
	ErrorEOF
)

// Error is the typed error a query's callback receives on failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("resolver: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Addr is one resolved address, in the order the backend returned it.
type Addr struct {
	IP   net.IP
	Port int
}

// Callback receives the resolution outcome exactly once. err is a
// *Error on failure.
type Callback func(addrs []Addr, err error)

// Token is a cancel handle for one outstanding query. Cancelling is
// idempotent and fire-and-forget: a callback already queued to run on the
// loop thread may still run, but Resolve guarantees it will observe the
// cancellation and not invoke the caller's Callback.
type Token struct {
	id        string
	cancelled atomic.Bool
}

// Cancel marks the query cancelled. Repeated calls are no-ops.
func (t *Token) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool { return t.cancelled.Load() }

// Backend performs the actual (hostname, port) -> []Addr lookup,
// off the loop thread. Resolver wraps whichever Backend is configured to
// guarantee delivery happens via loop.Post.
type Backend interface {
	Lookup(ctx context.Context, hostname string, port int) ([]Addr, error)
}

// Resolver is the C3 entry point: it owns a Backend and a bounded
// in-flight request pool (Unix child-process pool shape, generalized to
// any Backend) and guarantees every result is delivered on the loop
// thread.
type Resolver struct {
	loop    *eventloop.Loop
	backend Backend
	sink    *debuglog.Sink

	mu      sync.Mutex
	active  int
	maxInF  int
	queue   []func()
}

// New creates a Resolver bound to loop, delivering results through it.
// maxInFlight bounds concurrent backend lookups (the child-process-pool
// analogue for whichever backend is plugged in); pass 0 to use
// MaxDNSChildren.
func New(loop *eventloop.Loop, backend Backend, sink *debuglog.Sink, maxInFlight int) *Resolver {
	if maxInFlight <= 0 {
		maxInFlight = MaxDNSChildren
	}
	return &Resolver{loop: loop, backend: backend, sink: sink, maxInF: maxInFlight}
}

// Resolve looks up hostname:port asynchronously. The returned Token may
// be cancelled before the callback fires; cancelling after it has fired
// is a no-op per spec.md's contract. Requests beyond maxInFlight queue
// FIFO and are dispatched as capacity frees up, mirroring the Unix
// child-process pool's queueing discipline.
func (r *Resolver) Resolve(hostname string, port int, cb Callback) *Token {
	tok := &Token{id: uuid.NewString()}
	work := func() {
		ctx := context.Background()
		addrs, err := r.backend.Lookup(ctx, hostname, port)
		r.loop.Post(func() {
			defer r.release()
			if tok.Cancelled() {
				if r.sink != nil {
					r.sink.Misc("resolver", "dropping result for cancelled query %s (%s)", tok.id, hostname)
				}
				return
			}
			if err != nil {
				cb(nil, wrapError(err))
				return
			}
			cb(addrs, nil)
		})
	}

	r.mu.Lock()
	if r.active < r.maxInF {
		r.active++
		r.mu.Unlock()
		go work()
	} else {
		r.queue = append(r.queue, work)
		r.mu.Unlock()
	}
	return tok
}

func (r *Resolver) release() {
	r.mu.Lock()
	var next func()
	if len(r.queue) > 0 {
		next, r.queue = r.queue[0], r.queue[1:]
	} else {
		r.active--
	}
	r.mu.Unlock()
	if next != nil {
		go next()
	}
}

func wrapError(err error) error {
	if dnsErr, ok := err.(*net.DNSError); ok {
		if dnsErr.IsNotFound {
			return &Error{Kind: ErrorBadHost, Err: err}
		}
		if dnsErr.IsTemporary || dnsErr.IsTimeout {
			return &Error{Kind: ErrorTemporaryFailure, Err: err}
		}
	}
	return &Error{Kind: ErrorTemporaryFailure, Err: err}
}

// InFlight reports the number of queries currently dispatched to the
// backend (not counting queued ones); tests use this to assert the pool
// never exceeds maxInFlight.
func (r *Resolver) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Queued reports the number of requests waiting for a free backend slot.
func (r *Resolver) Queued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
