package xmppfsm

import (
	"strings"

	"golang.org/x/net/idna"
)

// JID is a parsed XMPP address (node@domain/resource).
type JID struct {
	Node     string
	Domain   string
	Resource string
}

// ParseJID splits a raw JID string into its node/domain/resource parts
// and normalizes the domain through IDNA, matching the source's
// jabber_id_new normalization of the domainpart before any comparison
// or wire use.
func ParseJID(raw string) (JID, error) {
	var j JID
	rest := raw

	if at := strings.IndexByte(rest, '@'); at >= 0 {
		j.Node = rest[:at]
		rest = rest[at+1:]
	}
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		j.Resource = rest[slash+1:]
		rest = rest[:slash]
	}
	domain, err := idna.Lookup.ToASCII(rest)
	if err != nil {
		return JID{}, err
	}
	j.Domain = domain
	return j, nil
}

// Bare returns the node@domain form without a resource.
func (j JID) Bare() string {
	if j.Node == "" {
		return j.Domain
	}
	return j.Node + "@" + j.Domain
}

// Full returns the node@domain/resource form, or Bare() if no resource
// is set.
func (j JID) Full() string {
	if j.Resource == "" {
		return j.Bare()
	}
	return j.Bare() + "/" + j.Resource
}

// EqualBare compares two JIDs' bare forms, case-insensitively on the
// domain (already IDNA-normalized) but case-sensitively on the node,
// matching XMPP nodeprep's own case sensitivity.
func (j JID) EqualBare(other JID) bool {
	return j.Node == other.Node && strings.EqualFold(j.Domain, other.Domain)
}
