package xmppfsm

import (
	"fmt"
	"strings"

	"imcore/internal/protoplugin"
	"imcore/internal/xmltree"
)

// TLSPolicy controls whether/when STARTTLS is required, matching
// spec.md §4.7's "none | opportunistic | required | old_ssl".
type TLSPolicy int

const (
	TLSNone TLSPolicy = iota
	TLSOpportunistic
	TLSRequired
	TLSOldSSL
)

// StanzaErrorCondition is the stable IQ/stanza error sub-taxonomy from
// spec.md §7.
type StanzaErrorCondition string

const (
	ErrBadRequest             StanzaErrorCondition = "bad-request"
	ErrConflict               StanzaErrorCondition = "conflict"
	ErrForbidden              StanzaErrorCondition = "forbidden"
	ErrItemNotFound           StanzaErrorCondition = "item-not-found"
	ErrNotAllowed             StanzaErrorCondition = "not-allowed"
	ErrNotAuthorized          StanzaErrorCondition = "not-authorized"
	ErrRecipientUnavailable   StanzaErrorCondition = "recipient-unavailable"
	ErrRegistrationRequired   StanzaErrorCondition = "registration-required"
	ErrRemoteServerNotFound   StanzaErrorCondition = "remote-server-not-found"
	ErrRemoteServerTimeout    StanzaErrorCondition = "remote-server-timeout"
	ErrResourceConstraint     StanzaErrorCondition = "resource-constraint"
	ErrServiceUnavailable     StanzaErrorCondition = "service-unavailable"
	ErrUnexpectedRequest      StanzaErrorCondition = "unexpected-request"
	ErrUndefinedCondition     StanzaErrorCondition = "undefined-condition"
)

// ParseStanzaError extracts the first recognized child name of an
// <error> element as the stable condition, matching "Stream errors
// parse the server's <error> child into the taxonomy."
func ParseStanzaError(errorNode *xmltree.Node) (StanzaErrorCondition, bool) {
	known := []StanzaErrorCondition{
		ErrBadRequest, ErrConflict, ErrForbidden, ErrItemNotFound, ErrNotAllowed,
		ErrNotAuthorized, ErrRecipientUnavailable, ErrRegistrationRequired,
		ErrRemoteServerNotFound, ErrRemoteServerTimeout, ErrResourceConstraint,
		ErrServiceUnavailable, ErrUnexpectedRequest, ErrUndefinedCondition,
	}
	for _, c := range errorNode.Children() {
		for _, k := range known {
			if c.Name == string(k) {
				return k, true
			}
		}
	}
	return "", false
}

// defaultResourceTemplate is substituted with the local hostname when
// an account leaves its resource setting at the default, matching
// spec.md's "resource template __HOSTNAME__ substituted".
const defaultResourceTemplate = "__HOSTNAME__"

// ResolveResource substitutes __HOSTNAME__ in template with hostname.
func ResolveResource(template, hostname string) string {
	return strings.ReplaceAll(template, defaultResourceTemplate, hostname)
}

// Config is the login-time configuration the stream FSM consults.
type Config struct {
	JID             string
	Password        string
	ResourceTemplate string
	Hostname        string
	TLSPolicy       TLSPolicy
	SASLChain       *Chain

	// InactivityTimeoutSeconds is the whitespace-keepalive interval
	// (default 120s); PingIntervalSeconds/PingTimeoutSeconds are the
	// application ping pair (60s / 120s), matching spec.md §4.7.
	InactivityTimeoutSeconds int
	PingIntervalSeconds      int
	PingTimeoutSeconds       int
}

// DefaultConfig fills in the three timer defaults spec.md names.
func DefaultConfig() Config {
	return Config{
		ResourceTemplate:         defaultResourceTemplate,
		InactivityTimeoutSeconds: 120,
		PingIntervalSeconds:      60,
		PingTimeoutSeconds:       120,
	}
}

// Stream drives one XMPP login attempt through protoplugin.Connection's
// shared state machine, adding the XMPP-specific sub-steps (STARTTLS,
// SASL, bind, session, roster, initial presence) between
// StateInitializing and StateConnected.
type Stream struct {
	conn   *protoplugin.Connection
	config Config

	mechanism Mechanism
	resource  string
	jid       JID
}

func NewStream(conn *protoplugin.Connection, config Config) *Stream {
	return &Stream{conn: conn, config: config}
}

// Open begins the stream: parses and IDNA-normalizes the configured
// JID's domain, then transitions to Connecting then Initializing. A
// real implementation writes the opening <stream:stream> tag here;
// this package only drives the state machine and stanza-level logic,
// leaving the wire write to the connection fabric the caller supplies.
func (s *Stream) Open() error {
	jid, err := ParseJID(s.config.JID)
	if err != nil {
		s.conn.Fail(protoplugin.ErrInvalidUsername, err.Error())
		return fmt.Errorf("xmppfsm: invalid JID %q: %w", s.config.JID, err)
	}
	s.jid = jid
	s.conn.Transition(protoplugin.StateConnecting)
	s.conn.Transition(protoplugin.StateInitializing)
	return nil
}

// JID returns the parsed, domain-normalized JID once Open has run.
func (s *Stream) JID() JID { return s.jid }

// NegotiateSTARTTLS decides, from policy and whether the server
// advertised <starttls/>, whether encryption negotiation is required
// and transitions to StateInitializingEncryption if so.
func (s *Stream) NegotiateSTARTTLS(serverOffered bool) (shouldNegotiate bool, err error) {
	switch s.config.TLSPolicy {
	case TLSNone:
		return false, nil
	case TLSOldSSL:
		return false, nil // negotiated at the transport layer before stream open
	case TLSOpportunistic:
		if !serverOffered {
			return false, nil
		}
	case TLSRequired:
		if !serverOffered {
			s.conn.Fail(protoplugin.ErrEncryption, "You require encryption, but it is not available on this server.")
			return false, fmt.Errorf("xmppfsm: STARTTLS required but not offered")
		}
	}
	s.conn.Transition(protoplugin.StateInitializingEncryption)
	return true, nil
}

// BeginAuth selects the best SASL mechanism from the server's
// advertised list and transitions to StateAuthenticating.
func (s *Stream) BeginAuth(serverMechanisms []string) ([]byte, error) {
	mech, ok := s.config.SASLChain.SelectBest(serverMechanisms)
	if !ok {
		s.conn.Fail(protoplugin.ErrAuthenticationImpossible, "no common SASL mechanism")
		return nil, fmt.Errorf("xmppfsm: no common SASL mechanism with server")
	}
	s.mechanism = mech
	s.conn.Transition(protoplugin.StateAuthenticating)
	return mech.Start()
}

// HandleAuthChallenge forwards a SASL challenge to the selected
// mechanism.
func (s *Stream) HandleAuthChallenge(challenge []byte) ([]byte, error) {
	if s.mechanism == nil {
		return nil, fmt.Errorf("xmppfsm: no mechanism selected")
	}
	return s.mechanism.HandleChallenge(challenge)
}

// HandleAuthSuccess finalizes SASL and moves to StatePostAuth (bind +
// session + roster happen there, driven by the caller issuing the
// corresponding IQs over the connection fabric).
func (s *Stream) HandleAuthSuccess(data []byte) error {
	if s.mechanism == nil {
		return fmt.Errorf("xmppfsm: no mechanism selected")
	}
	if err := s.mechanism.HandleSuccess(data); err != nil {
		s.conn.Fail(protoplugin.ErrAuthenticationFailed, err.Error())
		return err
	}
	s.mechanism.Dispose()
	s.conn.Transition(protoplugin.StatePostAuth)
	return nil
}

// HandleAuthFailure fails the connection with the taxonomy's
// authentication-failed kind.
func (s *Stream) HandleAuthFailure(reason string) error {
	if s.mechanism != nil {
		_ = s.mechanism.HandleFailure(reason)
		s.mechanism.Dispose()
	}
	s.conn.Fail(protoplugin.ErrAuthenticationFailed, reason)
	return fmt.Errorf("xmppfsm: authentication failed: %s", reason)
}

// BindResource resolves the resource template and records it; the
// caller issues the actual <bind/> IQ.
func (s *Stream) BindResource() string {
	s.resource = ResolveResource(s.config.ResourceTemplate, s.config.Hostname)
	return s.resource
}

// Resource returns the bound resource, if BindResource has run.
func (s *Stream) Resource() string { return s.resource }

// CompleteLogin transitions to StateConnected once bind, session, and
// initial roster/presence have all been sent by the caller.
func (s *Stream) CompleteLogin() {
	s.conn.Transition(protoplugin.StateConnected)
}
