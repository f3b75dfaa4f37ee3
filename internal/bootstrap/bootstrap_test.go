package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingPathReturnsZeroValue(t *testing.T) {
	o, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Servers) != 0 {
		t.Fatalf("expected empty overrides, got %+v", o)
	}
}

func TestLoadNonexistentFileReturnsZeroValue(t *testing.T) {
	o, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Servers) != 0 {
		t.Fatalf("expected empty overrides, got %+v", o)
	}
}

func TestLoadParsesServersAndDebug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	if err := os.WriteFile(path, []byte(`
servers:
  xmpp: talk.example.com
  irc: irc.example.net
debug:
  verbose: true
  unsafe: false
`), 0o644); err != nil {
		t.Fatal(err)
	}
	o, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if o.Servers["xmpp"] != "talk.example.com" || o.Servers["irc"] != "irc.example.net" {
		t.Fatalf("unexpected servers: %+v", o.Servers)
	}
	if !o.Debug.Verbose || o.Debug.Unsafe {
		t.Fatalf("unexpected debug override: %+v", o.Debug)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("IMCORE_TEST_HOST", "staging.example.com")
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	if err := os.WriteFile(path, []byte("servers:\n  xmpp: ${IMCORE_TEST_HOST}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	o, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if o.Servers["xmpp"] != "staging.example.com" {
		t.Fatalf("expected env expansion, got %q", o.Servers["xmpp"])
	}
}

func TestServerForPrefersEnvOverYAMLOverFallback(t *testing.T) {
	o := Overrides{Servers: map[string]string{"xmpp": "from-yaml.example.com"}}
	if got := o.ServerFor("xmpp", "default.example.com"); got != "from-yaml.example.com" {
		t.Fatalf("expected yaml override, got %q", got)
	}

	t.Setenv("IMCORE_XMPP_SERVER", "from-env.example.com")
	if got := o.ServerFor("xmpp", "default.example.com"); got != "from-env.example.com" {
		t.Fatalf("expected env override to win, got %q", got)
	}
}

func TestServerForFallsBackWhenUnconfigured(t *testing.T) {
	o := Overrides{}
	if got := o.ServerFor("gg", "fallback.example.com"); got != "fallback.example.com" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
