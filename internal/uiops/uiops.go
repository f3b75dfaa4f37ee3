// Package uiops defines the embedder-facing callback surface named in
// spec.md §6: a closed set of function-pointer structs per subsystem
// the core calls to surface UI requests. Grounded on the teacher's own
// narrow handler-injection pattern (server.go takes a small set of
// caller-supplied callbacks rather than a monolithic interface) and on
// libpurple's PurpleXxxUiOps struct family named directly in spec.md.
package uiops

import (
	"time"

	"imcore/internal/account"
	"imcore/internal/debuglog"
	"imcore/internal/protoplugin"
)

// DebugUiOps receives formatted debug output, matching spec.md §4.11's
// "a single UI op {print, is_enabled}".
type DebugUiOps struct {
	Print     func(level debuglog.Level, category, message string)
	IsEnabled func(level debuglog.Level, category string) bool
}

// EventLoopUiOps lets an embedder supply its own main-loop primitives
// instead of imcore's internal/eventloop.Loop, matching spec.md §4.1's
// "pluggable backend" requirement.
type EventLoopUiOps struct {
	ScheduleAfter func(ms int, fn func()) (handle int)
	Cancel        func(handle int) bool
	WatchFD       func(fd int, read, write bool, fn func(readReady, writeReady bool)) (handle int)
}

// RequestUiOps covers the generic prompt surfaces libpurple calls
// "requests": pick a file, ask a yes/no question, ask for input.
type RequestUiOps struct {
	RequestFile    func(title string, defaultPath string, forSave bool, onChoice func(path string, ok bool))
	RequestAction  func(title, text string, actions []string, onChoice func(actionIndex int))
	RequestInput   func(title, prompt, defaultValue string, onSubmit func(value string, ok bool))
}

// XferUiOps surfaces file-transfer prompts and progress to the
// embedder, matching spec.md §4.9/§6.
type XferUiOps struct {
	RequestAccept func(peer, filename string, size int64, onAccept func(localPath string, ok bool))
	Progress      func(transferred, size int64)
	Error         func(kind string, acct *account.Account, who, message string)
}

// BlistUiOps notifies the embedder of buddy-list changes so it can
// update a tree view or similar.
type BlistUiOps struct {
	BuddyAdded   func(b *account.Buddy, group string)
	BuddyRemoved func(b *account.Buddy, group string)
	PresenceChanged func(b *account.Buddy)
}

// ConversationUiOps notifies the embedder of conversation activity.
type ConversationUiOps struct {
	WroteIM   func(peer, sender, message string, ts time.Time)
	WroteChat func(chatID int64, sender, message string, ts time.Time)
	CreatedIM func(peer string)
}

// AccountUiOps surfaces account-level prompts (credentials, certificate
// trust decisions) and status notifications.
type AccountUiOps struct {
	RequestPassword func(acct *account.Account, onSubmit func(password string, remember bool))
	ConnectionProgress func(acct *account.Account, state protoplugin.State, numerator, denominator int)
	ConnectionError    func(acct *account.Account, kind protoplugin.ErrorKind, message string)
	SignedOn           func(acct *account.Account)
}

// DnsQueryUiOps is offered for completeness with spec.md §6's list; in
// practice internal/resolver drives DNS directly and most embedders
// leave this nil (only relevant to a UI that wants to show "resolving
// hostname..." progress).
type DnsQueryUiOps struct {
	Started   func(hostname string)
	Completed func(hostname string, err error)
}

// Ops bundles every per-subsystem UiOps struct an embedder fills in,
// matching spec.md §6's "UiOps structs per subsystem" list exactly:
// DebugUiOps, EventLoopUiOps, RequestUiOps, XferUiOps, BlistUiOps,
// ConversationUiOps, AccountUiOps, DnsQueryUiOps.
type Ops struct {
	Debug        DebugUiOps
	EventLoop    EventLoopUiOps
	Request      RequestUiOps
	Xfer         XferUiOps
	Blist        BlistUiOps
	Conversation ConversationUiOps
	Account      AccountUiOps
	DnsQuery     DnsQueryUiOps
}
