// Package signal implements the core's named signal bus (C2): typed,
// priority-ordered, re-entrant-safe publish/subscribe used throughout the
// core so protocol plugins and embedder extensions can observe and rewrite
// events in flight without the emitting code knowing they exist.
package signal

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Priority controls handler ordering within one emit; higher runs first.
type Priority int

const (
	PriorityLowest  Priority = -100
	PriorityLow     Priority = -10
	PriorityDefault Priority = 0
	PriorityHigh    Priority = 10
	PriorityHighest Priority = 100
)

// Handler receives the emitted arguments. Returning true vetoes the
// signal: no lower-priority handler after it runs, and Emit reports the
// veto to its caller. A handler that only observes returns false.
type Handler func(args ...any) (veto bool)

// Marshaller validates/describes a signal's argument shape. The core
// itself does not enforce types at runtime (Go already does, at the
// handler's call site); Marshaller exists so Register can record the
// parameter count and names for introspection/debugging, mirroring the
// GObject marshaller slot this bus replaces.
type Marshaller struct {
	ParamTypes []string
}

type handlerEntry struct {
	id       uint64
	priority Priority
	seq      uint64 // registration order, for stable sort among equal priorities
	handler  Handler
	data     any
	instance any
}

type signalDef struct {
	name       string
	marshaller Marshaller
	nParams    int
	handlers   []*handlerEntry
}

// Bus owns every registered signal and its handlers. One Bus is shared by
// an entire core instance (accounts, connections, protocol plugins all
// emit through the same bus, keyed by their own instance value).
type Bus struct {
	mu      sync.RWMutex
	signals map[string]*signalDef // key: name; instance identity is carried per-handler
	nextID  atomic.Uint64
	nextSeq atomic.Uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{signals: make(map[string]*signalDef)}
}

// Register defines a signal by name. Re-registering the same name with a
// different shape replaces the marshaller but keeps existing handlers —
// this matches the source's "signals are global, instances just emit
// them" model (a signal name is typically registered once per process).
func (b *Bus) Register(name string, marshaller Marshaller, nParams int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	def, ok := b.signals[name]
	if !ok {
		def = &signalDef{name: name}
		b.signals[name] = def
	}
	def.marshaller = marshaller
	def.nParams = nParams
}

// Handle is an opaque subscription token returned by Connect, usable with
// Disconnect.
type Handle uint64

// Connect subscribes handler to (instance, name) at the given priority.
// instance scopes the subscription: Emit(instance, name, ...) only invokes
// handlers connected with an equal instance (compared with ==), matching
// the source's per-object signal instances. Pass a shared sentinel
// instance (e.g. nil) for bus-wide signals.
func (b *Bus) Connect(instance any, name string, priority Priority, handler Handler, data any) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	def, ok := b.signals[name]
	if !ok {
		def = &signalDef{name: name}
		b.signals[name] = def
	}
	id := b.nextID.Add(1)
	entry := &handlerEntry{
		id:       id,
		priority: priority,
		seq:      b.nextSeq.Add(1),
		handler:  handler,
		data:     data,
		instance: instance,
	}
	def.handlers = append(def.handlers, entry)
	sortHandlers(def.handlers)
	return Handle(id)
}

func sortHandlers(entries []*handlerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
}

// Disconnect detaches a single handler by its handle. Safe to call from
// inside a handler invoked during the current emit (the in-flight
// invocation still completes; see Emit's snapshot semantics).
func (b *Bus) Disconnect(handle Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, def := range b.signals {
		for i, e := range def.handlers {
			if e.id == uint64(handle) {
				def.handlers = append(def.handlers[:i:i], def.handlers[i+1:]...)
				return
			}
		}
	}
}

// DisconnectByInstance detaches every handler registered against instance,
// across all signal names. Used when an account/connection/xfer is torn
// down, matching the source's unregister_by_instance.
func (b *Bus) DisconnectByInstance(instance any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, def := range b.signals {
		kept := def.handlers[:0:0]
		for _, e := range def.handlers {
			if e.instance != instance {
				kept = append(kept, e)
			}
		}
		def.handlers = kept
	}
}

// Emit runs every handler connected to (instance, name), in
// priority-descending then registration order. It returns true if any
// handler vetoed (returned true), at which point no further handler runs.
// Handlers are invoked against a snapshot taken under lock, so a handler
// that disconnects itself or another handler mid-emit does not affect the
// current invocation — re-entrant Emit calls (a handler emitting another
// signal) are safe because each Emit takes its own snapshot.
func (b *Bus) Emit(instance any, name string, args ...any) (vetoed bool) {
	b.mu.RLock()
	def, ok := b.signals[name]
	var snapshot []*handlerEntry
	if ok {
		for _, e := range def.handlers {
			if e.instance == instance {
				snapshot = append(snapshot, e)
			}
		}
	}
	b.mu.RUnlock()
	if !ok {
		return false
	}
	for _, e := range snapshot {
		if e.handler(args...) {
			return true
		}
	}
	return false
}

// HasHandlers reports whether any handler is connected for (instance,
// name); cheap enough for hot paths to skip building emit arguments when
// nothing is listening.
func (b *Bus) HasHandlers(instance any, name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	def, ok := b.signals[name]
	if !ok {
		return false
	}
	for _, e := range def.handlers {
		if e.instance == instance {
			return true
		}
	}
	return false
}
