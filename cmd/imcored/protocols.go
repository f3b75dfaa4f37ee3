package main

import (
	"fmt"

	"imcore/internal/account"
	"imcore/internal/bootstrap"
	"imcore/internal/protoplugin"
	"imcore/internal/protoplugin/ggfsm"
	"imcore/internal/protoplugin/ircfsm"
	"imcore/internal/protoplugin/xmppfsm"
)

// registerBuiltinProtocols adds the three demo Protocol implementations
// (XMPP, IRC, Gadu-Gadu) to the registry, each driving its FSM subpackage
// through protoplugin.Connection's shared state machine in Login. overrides
// supplies each protocol's default connect_server option, resolved from
// IMCORE_<ID>_SERVER / a YAML overrides file ahead of the protocol's own
// hardcoded fallback.
func registerBuiltinProtocols(registry *protoplugin.Registry, overrides bootstrap.Overrides) {
	protos := []protoplugin.Protocol{
		&xmppProtocol{connectServer: overrides.ServerFor("xmpp", "")},
		&ircProtocol{connectServer: overrides.ServerFor("irc", "irc.libera.chat")},
		&ggProtocol{connectServer: overrides.ServerFor("gg", "gg.gadu-gadu.pl")},
	}
	for _, p := range protos {
		if err := registry.Add(p); err != nil {
			panic(fmt.Sprintf("register built-in protocol %s: %v", p.ID(), err))
		}
	}
}

var defaultStatusTypes = []account.StatusPrimitive{
	account.StatusAvailable,
	account.StatusAway,
	account.StatusDoNotDisturb,
	account.StatusOffline,
}

type xmppProtocol struct {
	connectServer string
}

func (xmppProtocol) ID() string   { return "xmpp" }
func (xmppProtocol) Name() string { return "XMPP" }
func (p xmppProtocol) OptionSchema() protoplugin.OptionSchema {
	return protoplugin.OptionSchema{
		Options: map[string]any{
			"resource":       "imcore",
			"require_tls":    true,
			"connect_server": p.connectServer,
		},
		UserSplitChar:  "@",
		UserSplitLabel: "Domain",
	}
}
func (xmppProtocol) ListIcon() string { return "xmpp" }
func (xmppProtocol) StatusTypes(*account.Account) []account.StatusPrimitive { return defaultStatusTypes }

func (p xmppProtocol) Login(acct *account.Account) (*protoplugin.Connection, error) {
	conn := protoplugin.NewConnection(acct, p)
	cfg := xmppfsm.DefaultConfig()
	cfg.JID = acct.Key().Username
	cfg.Password = acct.Password()
	stream := xmppfsm.NewStream(conn, cfg)
	if err := stream.Open(); err != nil {
		return conn, err
	}
	return conn, nil
}

func (xmppProtocol) Close(conn *protoplugin.Connection) error {
	conn.Transition(protoplugin.StateOffline)
	return nil
}

type ircProtocol struct {
	connectServer string
}

func (ircProtocol) ID() string   { return "irc" }
func (ircProtocol) Name() string { return "IRC" }
func (p ircProtocol) OptionSchema() protoplugin.OptionSchema {
	return protoplugin.OptionSchema{
		Options: map[string]any{
			"server":   p.connectServer,
			"port":     6667,
			"ssl":      false,
			"realname": "imcore user",
		},
	}
}
func (ircProtocol) ListIcon() string { return "irc" }
func (ircProtocol) StatusTypes(*account.Account) []account.StatusPrimitive { return defaultStatusTypes }

func (p ircProtocol) Login(acct *account.Account) (*protoplugin.Connection, error) {
	conn := protoplugin.NewConnection(acct, p)
	ircfsm.DriveHandshake(conn)
	return conn, nil
}

func (ircProtocol) Close(conn *protoplugin.Connection) error {
	conn.Transition(protoplugin.StateOffline)
	return nil
}

type ggProtocol struct {
	connectServer string
}

func (ggProtocol) ID() string   { return "gg" }
func (ggProtocol) Name() string { return "Gadu-Gadu" }
func (p ggProtocol) OptionSchema() protoplugin.OptionSchema {
	return protoplugin.OptionSchema{
		Options: map[string]any{"server": p.connectServer, "port": 8074},
	}
}
func (ggProtocol) ListIcon() string { return "gadu-gadu" }
func (ggProtocol) StatusTypes(*account.Account) []account.StatusPrimitive { return defaultStatusTypes }

func (p ggProtocol) Login(acct *account.Account) (*protoplugin.Connection, error) {
	conn := protoplugin.NewConnection(acct, p)
	ggfsm.DriveHandshake(conn)
	return conn, nil
}

func (ggProtocol) Close(conn *protoplugin.Connection) error {
	conn.Transition(protoplugin.StateOffline)
	return nil
}
