package main

import (
	"fmt"

	"imcore/internal/account"
	"imcore/internal/debuglog"
	"imcore/internal/protoplugin"
	"imcore/internal/protoplugin/manifest"
)

// manifestProtocol is a protocol stub described entirely by a plugin.toml
// manifest. It registers its name, icon, and option schema so an account
// UI can offer it, but has no wire implementation: Login always fails.
// A real implementation is added by compiling in a Protocol (like
// xmppProtocol) and letting its manifest only supply metadata.
type manifestProtocol struct {
	m manifest.Manifest
}

func (p manifestProtocol) ID() string                             { return p.m.ID }
func (p manifestProtocol) Name() string                           { return p.m.Name }
func (p manifestProtocol) OptionSchema() protoplugin.OptionSchema { return p.m.OptionSchema() }
func (p manifestProtocol) ListIcon() string                       { return p.m.ListIcon }
func (p manifestProtocol) StatusTypes(*account.Account) []account.StatusPrimitive {
	return defaultStatusTypes
}

func (p manifestProtocol) Login(acct *account.Account) (*protoplugin.Connection, error) {
	conn := protoplugin.NewConnection(acct, p)
	err := fmt.Errorf("protocol %q has no compiled-in implementation, manifest-only", p.ID())
	conn.Fail(protoplugin.ErrOther, err.Error())
	return conn, err
}

func (p manifestProtocol) Close(conn *protoplugin.Connection) error {
	conn.Transition(protoplugin.StateOffline)
	return nil
}

// watchPluginManifests watches dir for plugin.toml-style manifests and
// registers (or re-registers) a manifestProtocol stub for each one whose
// abi_version constraint is satisfied by manifest.CoreABIVersion. It
// never overrides a protocol ID that a compiled-in Protocol already owns.
func watchPluginManifests(dir string, registry *protoplugin.Registry, dbg *debuglog.Sink) (*manifest.Watcher, error) {
	return manifest.NewWatcher(dir, manifest.CoreABIVersion, func(m manifest.Manifest) {
		if existing, exists := registry.Find(m.ID); exists {
			if _, isStub := existing.(manifestProtocol); !isStub {
				dbg.Info("plugins", "manifest %s ignored, compiled-in protocol already registered", m.ID)
				return
			}
			registry.Remove(m.ID)
		}
		if err := registry.Add(manifestProtocol{m: m}); err != nil {
			dbg.Error("plugins", "register %s: %v", m.ID, err)
			return
		}
		dbg.Info("plugins", "registered manifest-described protocol %s", m.ID)
	}, dbg)
}
