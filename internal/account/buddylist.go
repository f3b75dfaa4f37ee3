package account

import (
	"strings"
	"sync"
)

// Buddy is a remote identity the local user tracks. It belongs to exactly
// one owning Account but may appear, case-insensitively de-duplicated, in
// multiple Groups. ProtocolData replaces the source's per-object
// void* protocol_data (DESIGN NOTES §9): it is a typed extension slot
// owned by the Buddy and reclaimed via FreeFunc when the buddy is
// removed — allocated exactly once, matching spec.md §9's Open Question
// about the GG plugin's buddy_data leak.
type Buddy struct {
	mu sync.RWMutex

	name         string
	localAlias   string
	serverAlias  string
	groups       map[string]struct{} // lower-cased group name set
	presence     *Presence

	protocolData     any
	protocolDataFree func(any)
}

// NewBuddy creates a buddy identified by name, with no groups yet — the
// caller must add it to at least one group via BuddyList.AddToGroup
// before it satisfies the |G| >= 1 invariant.
func NewBuddy(name string) *Buddy {
	return &Buddy{
		name:     name,
		groups:   make(map[string]struct{}),
		presence: NewPresence(),
	}
}

func (b *Buddy) Name() string { return b.name }

// SetLocalAlias/SetServerAlias set the two alias tiers below "name" in
// spec.md's three-tier alias priority.
func (b *Buddy) SetLocalAlias(alias string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.localAlias = alias
}

func (b *Buddy) SetServerAlias(alias string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.serverAlias = alias
}

// Alias resolves the three-tier priority: local > server > name. Every
// read site in the core must go through this, per spec.md §4.5's
// invariant, rather than reading the fields directly.
func (b *Buddy) Alias() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.localAlias != "" {
		return b.localAlias
	}
	if b.serverAlias != "" {
		return b.serverAlias
	}
	return b.name
}

func (b *Buddy) Presence() *Presence { return b.presence }

// SetProtocolData installs the protocol-private pointer and its free
// callback. Calling this a second time without first clearing the slot
// via Free is a programming error in the
// protocol plugin (it would leak the first value) — SetProtocolData
// enforces the "exactly once per buddy" rule by panicking rather than
// silently overwriting, since a silent overwrite is exactly the source's
// documented leak.
func (b *Buddy) SetProtocolData(data any, free func(any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.protocolData != nil {
		panic("account: SetProtocolData called twice for the same buddy without a Free in between")
	}
	b.protocolData = data
	b.protocolDataFree = free
}

func (b *Buddy) ProtocolData() any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.protocolData
}

// Free reclaims the protocol-private data via its owning free callback,
// exactly once. Safe to call on a buddy with no protocol data installed.
func (b *Buddy) Free() {
	b.mu.Lock()
	data := b.protocolData
	free := b.protocolDataFree
	b.protocolData = nil
	b.protocolDataFree = nil
	b.mu.Unlock()
	if data != nil && free != nil {
		free(data)
	}
}

func (b *Buddy) groupKeys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.groups))
	for k := range b.groups {
		keys = append(keys, k)
	}
	return keys
}

// Group is a named collection of buddies.
type Group struct {
	Name string
}

// BuddyList is the global roster: every buddy belongs to exactly one
// Account (tracked by the embedder, not here) but may appear in several
// groups.
type BuddyList struct {
	mu      sync.RWMutex
	buddies map[string]*Buddy   // keyed by buddy.name
	groups  map[string][]string // lower-cased group name -> member buddy names (insertion order)
}

// NewBuddyList creates an empty roster.
func NewBuddyList() *BuddyList {
	return &BuddyList{
		buddies: make(map[string]*Buddy),
		groups:  make(map[string][]string),
	}
}

// AddToGroup adds buddy to group, case-insensitively de-duplicated:
// adding the same buddy to groups that differ only by case is a no-op
// after the first.
func (bl *BuddyList) AddToGroup(b *Buddy, group string) {
	key := strings.ToLower(group)
	bl.mu.Lock()
	defer bl.mu.Unlock()
	bl.buddies[b.name] = b

	b.mu.Lock()
	_, already := b.groups[key]
	if !already {
		b.groups[key] = struct{}{}
	}
	b.mu.Unlock()
	if already {
		return
	}
	bl.groups[key] = append(bl.groups[key], b.name)
}

// RemoveFromGroup removes buddy from group. If this was its last group,
// the buddy is fully removed from the list and its protocol data freed
// via Buddy.Free, matching spec.md's "freed via a protocol callback on
// removal".
func (bl *BuddyList) RemoveFromGroup(b *Buddy, group string) {
	key := strings.ToLower(group)
	bl.mu.Lock()
	b.mu.Lock()
	delete(b.groups, key)
	remaining := len(b.groups)
	b.mu.Unlock()

	members := bl.groups[key]
	for i, name := range members {
		if name == b.name {
			bl.groups[key] = append(members[:i:i], members[i+1:]...)
			break
		}
	}
	if remaining == 0 {
		delete(bl.buddies, b.name)
	}
	bl.mu.Unlock()

	if remaining == 0 {
		b.Free()
	}
}

// Groups returns the (lower-cased-de-duplicated) set of group names b
// currently belongs to.
func (bl *BuddyList) Groups(b *Buddy) []string {
	return b.groupKeys()
}

// Find looks up a buddy by exact name.
func (bl *BuddyList) Find(name string) (*Buddy, bool) {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	b, ok := bl.buddies[name]
	return b, ok
}

// Members returns the buddies in group, in insertion order.
func (bl *BuddyList) Members(group string) []*Buddy {
	bl.mu.RLock()
	defer bl.mu.RUnlock()
	names := bl.groups[strings.ToLower(group)]
	out := make([]*Buddy, 0, len(names))
	for _, n := range names {
		if b, ok := bl.buddies[n]; ok {
			out = append(out, b)
		}
	}
	return out
}
