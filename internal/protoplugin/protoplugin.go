// Package protoplugin implements the protocol plugin framework (C7):
// protocol registration, the optional capability-interface surface, and
// the protocol-common per-connection state machine every protocol
// plugin drives. Grounded on libpurple's prpl.h interface-by-id design
// (_examples/original_source/libpurple, referenced throughout spec.md
// §4.7) and on the teacher's own single-registry style in
// server.go (one map keyed by an id, guarded by a mutex).
package protoplugin

import (
	"fmt"
	"sync"

	"imcore/internal/account"
)

// State is the per-connection state machine named in spec.md §4.7.
type State int

const (
	StateOffline State = iota
	StateConnecting
	StateInitializing
	StateInitializingEncryption
	StateAuthenticating
	StatePostAuth
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateConnecting:
		return "connecting"
	case StateInitializing:
		return "initializing"
	case StateInitializingEncryption:
		return "initializing-encryption"
	case StateAuthenticating:
		return "authenticating"
	case StatePostAuth:
		return "post-auth"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ErrorKind is the closed connection-error taxonomy from spec.md §7.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrNetwork
	ErrInvalidUsername
	ErrAuthenticationFailed
	ErrAuthenticationImpossible
	ErrNoSSLSupport
	ErrEncryption
	ErrNameInUse
	ErrInvalidSettings
	ErrCertNotProvided
	ErrCertUntrusted
	ErrCertExpired
	ErrCertSelfSigned
	ErrCertOther
	ErrOther
)

func (e ErrorKind) String() string {
	names := map[ErrorKind]string{
		ErrNone:                     "none",
		ErrNetwork:                  "network-error",
		ErrInvalidUsername:         "invalid-username",
		ErrAuthenticationFailed:    "authentication-failed",
		ErrAuthenticationImpossible: "authentication-impossible",
		ErrNoSSLSupport:            "no-ssl-support",
		ErrEncryption:              "encryption-error",
		ErrNameInUse:               "name-in-use",
		ErrInvalidSettings:         "invalid-settings",
		ErrCertNotProvided:         "certificate-not-provided",
		ErrCertUntrusted:           "certificate-untrusted",
		ErrCertExpired:             "certificate-expired",
		ErrCertSelfSigned:          "certificate-self-signed",
		ErrCertOther:               "certificate-other",
		ErrOther:                   "other-error",
	}
	if n, ok := names[e]; ok {
		return n
	}
	return "unknown-error"
}

// ConnFlags are the connection capability bits spec.md §3 names.
type ConnFlags int

const (
	FlagHTML ConnFlags = 1 << iota
	FlagNoNewlines
	FlagNoImages
	FlagSupportsCustomEmoji
	FlagAutoResponder
)

// Connection is one live protocol session, owned by its Account while
// it lives. Invariant (spec.md §3): a connection's state machine must
// emit exactly one signed-on or one connection-error during its
// lifetime — enforced here by terminalFired, not by trusting callers.
type Connection struct {
	Account *account.Account
	Proto   Protocol

	mu           sync.Mutex
	state        State
	flags        ConnFlags
	displayName  string
	lastReceived int64 // monotonic-ish: caller supplies its own clock source
	activeChats  []int64

	terminalFired bool
	onProgress    func(state State, numerator, denominator int)
	onSignedOn    func()
	onError       func(ErrorKind, string)
}

// NewConnection creates a connection in StateOffline for acct, bound to
// proto.
func NewConnection(acct *account.Account, proto Protocol) *Connection {
	return &Connection{Account: acct, Proto: proto, state: StateOffline}
}

// OnProgress/OnSignedOn/OnError register the UI-facing callbacks this
// connection drives as it moves through its state machine.
func (c *Connection) OnProgress(fn func(state State, numerator, denominator int)) { c.onProgress = fn }
func (c *Connection) OnSignedOn(fn func())                                        { c.onSignedOn = fn }
func (c *Connection) OnError(fn func(ErrorKind, string))                          { c.onError = fn }

// stateOrder is used to compute a progress fraction as a connection
// advances linearly through the happy path (encryption is optional and
// does not affect the denominator: a connection that skips it still
// reports against the same total so progress never jumps backward).
var stateOrder = []State{
	StateOffline, StateConnecting, StateInitializing, StateInitializingEncryption,
	StateAuthenticating, StatePostAuth, StateConnected,
}

// Transition moves the connection to next, publishing a progress
// fraction to onProgress. Moving to StateConnected past StateOffline's
// terminal is the one path that fires onSignedOn exactly once.
func (c *Connection) Transition(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = next
	if c.onProgress != nil {
		num := 0
		for i, s := range stateOrder {
			if s == next {
				num = i
				break
			}
		}
		c.onProgress(next, num, len(stateOrder)-1)
	}
	if next == StateConnected && !c.terminalFired {
		c.terminalFired = true
		if c.onSignedOn != nil {
			c.onSignedOn()
		}
	}
}

// Fail transitions back to StateOffline and fires the connection-error
// terminal exactly once, matching the "errors... always return to
// OFFLINE" rule and the one-terminal-event invariant.
func (c *Connection) Fail(kind ErrorKind, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateOffline
	if !c.terminalFired {
		c.terminalFired = true
		if c.onError != nil {
			c.onError(kind, msg)
		}
	}
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) SetFlags(f ConnFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = f
}

func (c *Connection) Flags() ConnFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

func (c *Connection) SetDisplayName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displayName = name
}

func (c *Connection) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayName
}

// TouchLastReceived records ts (any caller-chosen monotonic clock
// reading) as the moment the last byte arrived, for keepalive decisions.
func (c *Connection) TouchLastReceived(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastReceived = ts
}

func (c *Connection) LastReceived() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReceived
}

func (c *Connection) AddActiveChat(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeChats = append(c.activeChats, id)
}

func (c *Connection) ActiveChats() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.activeChats))
	copy(out, c.activeChats)
	return out
}

// OptionSchema describes a protocol's typed account options and its
// username split rule (e.g. "user@server" for XMPP), matching spec.md
// §4.7's "option schema (typed account options and a user-split rule)".
type OptionSchema struct {
	Options        map[string]any // option name -> default value (string/int/bool)
	UserSplitChar  string         // e.g. "@" for XMPP, "" if the protocol has no split
	UserSplitLabel string
}

// Protocol is the minimum every protocol plugin must implement.
type Protocol interface {
	ID() string
	Name() string
	OptionSchema() OptionSchema
	ListIcon() string
	StatusTypes(acct *account.Account) []account.StatusPrimitive
	Login(acct *account.Account) (*Connection, error)
	Close(conn *Connection) error
}

// Optional capability interfaces. A Protocol implementation satisfies
// whichever of these its wire protocol supports; the framework checks
// via type assertion rather than requiring every plugin to stub out
// every interface, matching spec.md's "unknown interfaces are
// tolerated" rule.

type ServerCapability interface {
	SetStatus(acct *account.Account, status account.StatusPrimitive) error
	GetInfo(acct *account.Account, who string) (string, error)
	SetBuddyIcon(acct *account.Account, data []byte) error
	AddBuddy(acct *account.Account, who string) error
	RemoveBuddy(acct *account.Account, who string) error
	AliasBuddy(acct *account.Account, who, alias string) error
	GroupBuddy(acct *account.Account, who, oldGroup, newGroup string) error
	RenameGroup(acct *account.Account, oldName, newName string) error
	Keepalive(acct *account.Account) error
	RegisterUser(acct *account.Account) error
	UnregisterUser(acct *account.Account) error
	SendRaw(acct *account.Account, raw string) error
}

type IMCapability interface {
	Send(acct *account.Account, who, msg string) (int, error)
	SendTyping(acct *account.Account, who string, typing bool) error
}

type ChatCapability interface {
	ChatInfo(acct *account.Account) []string
	ChatInfoDefaults(acct *account.Account, name string) map[string]string
	Join(acct *account.Account, components map[string]string) error
	Leave(acct *account.Account, chatID int64) error
	ChatSend(acct *account.Account, chatID int64, msg string) (int, error)
	Invite(acct *account.Account, chatID int64, who, msg string) error
	SetTopic(acct *account.Account, chatID int64, topic string) error
	GetChatName(components map[string]string) string
	GetUserRealName(acct *account.Account, who string) string
}

type PrivacyCapability interface {
	AddPermit(acct *account.Account, who string) error
	RemPermit(acct *account.Account, who string) error
	AddDeny(acct *account.Account, who string) error
	RemDeny(acct *account.Account, who string) error
	SetPermitDeny(acct *account.Account) error
}

type RoomlistCapability interface {
	GetRoomlist(acct *account.Account) ([]string, error)
}

type AttentionCapability interface {
	SendAttention(acct *account.Account, who string, typ int) error
}

type XferCapability interface {
	CanReceiveFile(acct *account.Account, who string) bool
	NewXfer(acct *account.Account, who string) (any, error)
	SendFile(acct *account.Account, who, path string) error
}

type RosterVersioningCapability interface {
	RosterVersion(acct *account.Account) string
	SetRosterVersion(acct *account.Account, ver string) error
}

// Registry is the process-wide protocol registry, matching spec.md
// §6's "protocol registry (protocols_add / find / remove)".
type Registry struct {
	mu        sync.RWMutex
	protocols map[string]Protocol
}

func NewRegistry() *Registry {
	return &Registry{protocols: make(map[string]Protocol)}
}

func (r *Registry) Add(p Protocol) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.protocols[p.ID()]; exists {
		return fmt.Errorf("protoplugin: protocol %q already registered", p.ID())
	}
	r.protocols[p.ID()] = p
	return nil
}

func (r *Registry) Find(id string) (Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.protocols[id]
	return p, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.protocols, id)
}

func (r *Registry) All() []Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Protocol, 0, len(r.protocols))
	for _, p := range r.protocols {
		out = append(out, p)
	}
	return out
}
