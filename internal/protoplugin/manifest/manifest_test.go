package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesBasicFields(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "xmpp.toml", `
id = "xmpp"
name = "XMPP"
list_icon = "xmpp"
abi_version = "^0.1"
user_split_char = "@"
user_split_label = "Domain"

[options]
resource = "imcore"
require_tls = true
`)
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != "xmpp" || m.Name != "XMPP" || m.UserSplitChar != "@" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if m.Options["resource"] != "imcore" {
		t.Fatalf("expected resource option round-tripped, got %+v", m.Options)
	}
}

func TestLoadRejectsMissingID(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "broken.toml", `name = "No ID"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for manifest missing id")
	}
}

func TestCheckABIAcceptsCompatibleConstraint(t *testing.T) {
	m := Manifest{ID: "xmpp", ABIVersion: "^0.1"}
	if err := m.CheckABI("0.1.0"); err != nil {
		t.Fatalf("expected compatible constraint to pass, got %v", err)
	}
}

func TestCheckABIRejectsIncompatibleConstraint(t *testing.T) {
	m := Manifest{ID: "xmpp", ABIVersion: "^2.0"}
	if err := m.CheckABI("0.1.0"); err == nil {
		t.Fatal("expected incompatible constraint to fail")
	}
}

func TestCheckABIEmptyConstraintAlwaysPasses(t *testing.T) {
	m := Manifest{ID: "xmpp"}
	if err := m.CheckABI("anything"); err != nil {
		t.Fatalf("expected no constraint to always pass, got %v", err)
	}
}

func TestOptionSchemaCarriesUserSplit(t *testing.T) {
	m := Manifest{UserSplitChar: "@", UserSplitLabel: "Domain", Options: map[string]any{"port": 5222}}
	schema := m.OptionSchema()
	if schema.UserSplitChar != "@" || schema.UserSplitLabel != "Domain" {
		t.Fatalf("unexpected schema: %+v", schema)
	}
	if schema.Options["port"] != 5222 {
		t.Fatalf("expected option carried through, got %+v", schema.Options)
	}
}
