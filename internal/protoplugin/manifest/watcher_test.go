package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	reloaded := make(chan Manifest, 1)

	w, err := NewWatcher(dir, "0.1.0", func(m Manifest) { reloaded <- m }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	path := filepath.Join(dir, "irc.toml")
	if err := os.WriteFile(path, []byte(`id = "irc"
name = "IRC"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-reloaded:
		if m.ID != "irc" {
			t.Fatalf("unexpected reloaded manifest: %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}

func TestWatcherSkipsManifestFailingABICheck(t *testing.T) {
	dir := t.TempDir()
	reloaded := make(chan Manifest, 1)

	w, err := NewWatcher(dir, "0.1.0", func(m Manifest) { reloaded <- m }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	path := filepath.Join(dir, "incompatible.toml")
	if err := os.WriteFile(path, []byte(`id = "future"
abi_version = "^9.0"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-reloaded:
		t.Fatalf("expected ABI-incompatible manifest to be rejected, got %+v", m)
	case <-time.After(600 * time.Millisecond):
		// expected: no reload callback fires
	}
}

func TestWatcherIgnoresNonTomlFiles(t *testing.T) {
	dir := t.TempDir()
	reloaded := make(chan Manifest, 1)

	w, err := NewWatcher(dir, "0.1.0", func(m Manifest) { reloaded <- m }, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-reloaded:
		t.Fatalf("expected non-toml file to be ignored, got %+v", m)
	case <-time.After(600 * time.Millisecond):
		// expected: no reload callback fires
	}
}
