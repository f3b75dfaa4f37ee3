package debuglog

import "testing"

func TestRedact(t *testing.T) {
	s := New("IMCORE", UiOps{})
	if got := s.Redact("hunter2"); got != "***" {
		t.Fatalf("expected redaction by default, got %q", got)
	}

	s.unsafe = true
	if got := s.Redact("hunter2"); got != "hunter2" {
		t.Fatalf("expected unredacted value in unsafe mode, got %q", got)
	}
}

func TestEnabledForRespectsLevelAndVerbose(t *testing.T) {
	var captured []string
	s := New("IMCORE", UiOps{
		Print: func(level Level, category, message string) {
			captured = append(captured, category+":"+message)
		},
	})

	s.Misc("core", "quiet by default")
	if len(captured) != 0 {
		t.Fatalf("expected misc level to be suppressed without verbose, got %v", captured)
	}

	s.verbose = true
	s.Misc("core", "now visible")
	if len(captured) != 1 || captured[0] != "core:now visible" {
		t.Fatalf("unexpected captured log: %v", captured)
	}
}

func TestSetEnabledSuppressesAll(t *testing.T) {
	calls := 0
	s := New("IMCORE", UiOps{Print: func(Level, string, string) { calls++ }})
	s.SetEnabled(false)
	s.Error("core", "boom")
	if calls != 0 {
		t.Fatalf("expected disabled sink to drop messages, got %d calls", calls)
	}
}
