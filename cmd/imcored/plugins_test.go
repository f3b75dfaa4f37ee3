package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"imcore/internal/bootstrap"
	"imcore/internal/debuglog"
	"imcore/internal/protoplugin"
)

func TestWatchPluginManifestsRegistersStub(t *testing.T) {
	dir := t.TempDir()
	registry := protoplugin.NewRegistry()
	dbg := debuglog.New("IMCORE", debuglog.UiOps{})
	dbg.SetEnabled(true)

	watcher, err := watchPluginManifests(dir, registry, dbg)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Close()

	path := filepath.Join(dir, "icq.toml")
	if err := os.WriteFile(path, []byte(`id = "icq"
name = "ICQ"
list_icon = "icq"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := registry.Find("icq"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for manifest-described protocol to register")
}

func TestWatchPluginManifestsNeverOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	registry := protoplugin.NewRegistry()
	registerBuiltinProtocols(registry, bootstrap.Overrides{})
	dbg := debuglog.New("IMCORE", debuglog.UiOps{})
	dbg.SetEnabled(true)

	watcher, err := watchPluginManifests(dir, registry, dbg)
	if err != nil {
		t.Fatal(err)
	}
	defer watcher.Close()

	path := filepath.Join(dir, "xmpp.toml")
	if err := os.WriteFile(path, []byte(`id = "xmpp"
name = "Manifest-only XMPP"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	p, ok := registry.Find("xmpp")
	if !ok {
		t.Fatal("expected xmpp protocol to remain registered")
	}
	if _, isStub := p.(manifestProtocol); isStub {
		t.Fatal("compiled-in xmppProtocol was replaced by the manifest watcher's stub; it must stay registered")
	}
}
