// Package ircfsm implements the IRC line FSM named as an example in
// spec.md §4.7: PASS/USER/NICK handshake, line dispatch by command
// code, keepalive PING, and ISON batching under the 450-byte stanza
// cap. Grounded on spec.md's own description (no literal libpurple IRC
// source was retrieved in this pack; the shape is summarized directly
// in spec prose) and on protoplugin's shared connection state machine.
package ircfsm

import (
	"fmt"
	"strings"

	"imcore/internal/protoplugin"
)

// MaxISONLineBytes is the hard cap spec.md §8 tests directly: "IRC
// ISON batch never exceeds 450 bytes per line."
const MaxISONLineBytes = 450

// BatchISON splits nicks into one or more "ISON " request lines, each
// at most MaxISONLineBytes bytes including the "ISON " prefix and
// trailing CRLF, matching spec.md's "build request in chunks, dispatch
// one at a time".
func BatchISON(nicks []string) []string {
	const prefix = "ISON"
	const crlf = "\r\n"

	var batches []string
	var cur strings.Builder
	cur.WriteString(prefix)
	curLen := len(prefix)

	flush := func() {
		if curLen > len(prefix) {
			batches = append(batches, cur.String()+crlf)
		}
		cur.Reset()
		cur.WriteString(prefix)
		curLen = len(prefix)
	}

	for _, nick := range nicks {
		added := 1 + len(nick) // leading space + nick
		if len(prefix)+added+len(crlf) > MaxISONLineBytes {
			// a single nick longer than the cap can't fit in any batch;
			// truncation here would corrupt the protocol, so it's dropped
			// entirely rather than emitted malformed.
			continue
		}
		if curLen+added+len(crlf) > MaxISONLineBytes {
			flush()
		}
		cur.WriteByte(' ')
		cur.WriteString(nick)
		curLen += added
	}
	flush()
	return batches
}

// Config is the login-time handshake configuration.
type Config struct {
	Password string // optional PASS
	Nick     string
	Username string
	RealName string
}

// HandshakeLines returns the PASS/USER/NICK lines to send on connect,
// in the order spec.md names them: "optional PASS, USER, NICK".
func HandshakeLines(cfg Config) []string {
	var lines []string
	if cfg.Password != "" {
		lines = append(lines, "PASS "+cfg.Password)
	}
	lines = append(lines, fmt.Sprintf("USER %s 0 * :%s", cfg.Username, cfg.RealName))
	lines = append(lines, "NICK "+cfg.Nick)
	return lines
}

// Line is one parsed IRC protocol line: optional prefix, command, and
// trailing parameter list (the last parameter may contain spaces if it
// was introduced with ':').
type Line struct {
	Prefix  string
	Command string
	Params  []string
}

// ParseLine parses one raw IRC line (without the trailing CRLF) into
// its prefix/command/params, the minimal grammar every dispatch table
// needs.
func ParseLine(raw string) (Line, error) {
	raw = strings.TrimRight(raw, "\r\n")
	if raw == "" {
		return Line{}, fmt.Errorf("ircfsm: empty line")
	}
	var l Line
	if strings.HasPrefix(raw, ":") {
		parts := strings.SplitN(raw, " ", 2)
		l.Prefix = parts[0][1:]
		if len(parts) < 2 {
			return Line{}, fmt.Errorf("ircfsm: line has prefix but no command")
		}
		raw = parts[1]
	}
	if idx := strings.Index(raw, " :"); idx >= 0 {
		head, trailing := raw[:idx], raw[idx+2:]
		fields := strings.Fields(head)
		if len(fields) == 0 {
			return Line{}, fmt.Errorf("ircfsm: line has no command")
		}
		l.Command = fields[0]
		l.Params = append(fields[1:], trailing)
		return l, nil
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Line{}, fmt.Errorf("ircfsm: line has no command")
	}
	l.Command = fields[0]
	l.Params = fields[1:]
	return l, nil
}

// CommandHandler is one dispatch-table entry; registered per numeric
// or textual command.
type CommandHandler func(l Line)

// Dispatcher routes parsed lines to registered handlers by command,
// matching spec.md's "dispatch by command code via a table".
type Dispatcher struct {
	handlers map[string]CommandHandler
	fallback CommandHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]CommandHandler)}
}

func (d *Dispatcher) On(command string, h CommandHandler) {
	d.handlers[strings.ToUpper(command)] = h
}

func (d *Dispatcher) OnUnhandled(h CommandHandler) { d.fallback = h }

func (d *Dispatcher) Dispatch(l Line) {
	if h, ok := d.handlers[strings.ToUpper(l.Command)]; ok {
		h(l)
		return
	}
	if d.fallback != nil {
		d.fallback(l)
	}
}

// KeepaliveIdleSeconds is the idle threshold before a PING is sent,
// matching spec.md's "keepalive sends PING when idle > 60 s".
const KeepaliveIdleSeconds = 60

// DriveHandshake runs the connection through Connecting -> Initializing
// -> Authenticating -> PostAuth -> Connected, matching the shared
// per-connection FSM (IRC has no separate encryption sub-state in the
// happy path this package models; a TLS-wrapped IRC connection
// negotiates TLS at the transport layer before Open is ever called).
func DriveHandshake(conn *protoplugin.Connection) {
	conn.Transition(protoplugin.StateConnecting)
	conn.Transition(protoplugin.StateInitializing)
	conn.Transition(protoplugin.StateAuthenticating)
	conn.Transition(protoplugin.StatePostAuth)
	conn.Transition(protoplugin.StateConnected)
}
