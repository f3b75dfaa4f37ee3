// Package media implements the core's media capability glue (C12). The
// core never implements audio/video itself: it only tracks what each of
// a buddy's resources claims to support and exposes a probe the
// embedder's own media stack can act on, matching libpurple's
// media-caps union-over-resources design (media.c / mediamanager.c are
// the embedder's problem, not the core's).
package media

// Caps is the bitmask of capabilities a resource (or the union of a
// buddy's known resources) may report.
type Caps int

const (
	CapsNone            Caps = 0
	CapsAudio           Caps = 1 << 0
	CapsVideo           Caps = 1 << 1
	CapsAudioVideo      Caps = 1 << 2
	CapsModifySession   Caps = 1 << 3
	CapsChangeDirection Caps = 1 << 4
)

// SessionType names the kind of session InitiateMedia is asked to
// start.
type SessionType int

const (
	SessionAudio SessionType = iota
	SessionVideo
	SessionAudioVideo
)

// ResourceCaps tracks one known resource's (e.g. one XMPP full JID, or
// one logged-in client instance for a protocol without full-JID
// resources) advertised capability bitmask.
type ResourceCaps struct {
	Resource string
	Caps     Caps
}

// Registry tracks per-buddy resource capability sets, keyed by the
// buddy's bare identifier (username/bare JID), and an optional
// UI-imposed mask that further restricts what GetMediaCaps reports —
// matching spec.md's "A UI capability mask may further restrict what
// the probe reports."
type Registry struct {
	resources map[string][]ResourceCaps
	uiMask    Caps
	uiMaskSet bool
}

// NewRegistry creates an empty capability registry with no UI
// restriction (all caps reportable).
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string][]ResourceCaps)}
}

// SetResourceCaps records or replaces the capability bitmask for one of
// who's resources.
func (r *Registry) SetResourceCaps(who, resource string, caps Caps) {
	list := r.resources[who]
	for i, rc := range list {
		if rc.Resource == resource {
			list[i].Caps = caps
			r.resources[who] = list
			return
		}
	}
	r.resources[who] = append(list, ResourceCaps{Resource: resource, Caps: caps})
}

// RemoveResource drops one of who's resources (e.g. on presence
// unavailable for that full JID).
func (r *Registry) RemoveResource(who, resource string) {
	list := r.resources[who]
	for i, rc := range list {
		if rc.Resource == resource {
			r.resources[who] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// SetUIMask restricts every future GetMediaCaps result to this mask,
// matching the embedder-imposed capability ceiling spec.md describes.
func (r *Registry) SetUIMask(mask Caps) {
	r.uiMask = mask
	r.uiMaskSet = true
}

// GetMediaCaps returns the union of capabilities across every known
// resource of who, masked by any UI-imposed restriction, matching
// spec.md §4.12's get_media_caps(account, who) contract (the account
// argument is implicit: one Registry is scoped to a single account by
// the caller).
func (r *Registry) GetMediaCaps(who string) Caps {
	var union Caps
	for _, rc := range r.resources[who] {
		union |= rc.Caps
	}
	if r.uiMaskSet {
		union &= r.uiMask
	}
	return union
}

// CanInitiate reports whether initiating a session of typ with who is
// possible given the current known caps, the check InitiateMedia
// performs before handing off to the embedder's media stack.
func CanInitiate(caps Caps, typ SessionType) bool {
	switch typ {
	case SessionAudio:
		return caps&CapsAudio != 0
	case SessionVideo:
		return caps&CapsVideo != 0
	case SessionAudioVideo:
		return caps&CapsAudioVideo != 0 || (caps&CapsAudio != 0 && caps&CapsVideo != 0)
	default:
		return false
	}
}
