package resolver

import (
	"context"
	"net"
	"strconv"
)

// BlockingBackend performs the lookup inline using the standard resolver,
// with no subprocess or dedicated goroutine pool of its own — Backend C
// from spec.md §4.3, used only when neither the Unix child-process pool
// nor a worker-thread-shaped backend is available.
type BlockingBackend struct {
	Resolver *net.Resolver // nil uses net.DefaultResolver
}

func (b *BlockingBackend) resolver() *net.Resolver {
	if b.Resolver != nil {
		return b.Resolver
	}
	return net.DefaultResolver
}

func (b *BlockingBackend) Lookup(ctx context.Context, hostname string, port int) ([]Addr, error) {
	ips, err := b.resolver().LookupIPAddr(ctx, hostname)
	if err != nil {
		return nil, err
	}
	out := make([]Addr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, Addr{IP: ip.IP, Port: port})
	}
	return out, nil
}

// WorkerThreadBackend is Backend B from spec.md §4.3: conceptually "each
// query spawns a one-shot thread that performs the lookup". Go has no
// separate worker-thread primitive distinct from a goroutine, so this
// backend's distinguishing behavior is purely about where cancellation is
// observed: the lookup always runs to completion once started (a real OS
// thread cannot be killed mid-getaddrinfo either), and it is the
// Resolver's loop.Post delivery — not this backend — that drops the
// result for a cancelled Token. Functionally it delegates to
// BlockingBackend.
type WorkerThreadBackend struct {
	inner BlockingBackend
}

func NewWorkerThreadBackend() *WorkerThreadBackend { return &WorkerThreadBackend{} }

func (w *WorkerThreadBackend) Lookup(ctx context.Context, hostname string, port int) ([]Addr, error) {
	return w.inner.Lookup(ctx, hostname, port)
}

// SRVTarget is one entry of a priority/weight-sorted SRV resolution.
type SRVTarget struct {
	Host     string
	Port     int
	Priority uint16
	Weight   uint16
}

// ResolveSRV resolves service/proto.domain and returns targets sorted
// ascending by priority, then ascending by weight on ties, matching
// spec.md §4.3's stable sort requirement.
func ResolveSRV(ctx context.Context, netResolver *net.Resolver, service, proto, domain string) ([]SRVTarget, error) {
	if netResolver == nil {
		netResolver = net.DefaultResolver
	}
	_, records, err := netResolver.LookupSRV(ctx, service, proto, domain)
	if err != nil {
		return nil, err
	}
	targets := make([]SRVTarget, 0, len(records))
	for _, rec := range records {
		targets = append(targets, SRVTarget{
			Host:     rec.Target,
			Port:     int(rec.Port),
			Priority: rec.Priority,
			Weight:   rec.Weight,
		})
	}
	stableSortSRV(targets)
	return targets, nil
}

func stableSortSRV(targets []SRVTarget) {
	// Insertion sort: the input sets are small (a handful of SRV
	// records) and this keeps the "stable: ascending priority, then
	// ascending weight on ties" rule obviously correct to read.
	for i := 1; i < len(targets); i++ {
		for j := i; j > 0 && less(targets[j], targets[j-1]); j-- {
			targets[j], targets[j-1] = targets[j-1], targets[j]
		}
	}
}

func less(a, b SRVTarget) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Weight < b.Weight
}

func addrString(a Addr) string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(a.Port))
}
