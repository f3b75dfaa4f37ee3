package debuglog

import "testing"

func TestTeeForwardsToAllPrints(t *testing.T) {
	var a, b []string
	opsA := UiOps{Print: func(_ Level, category, message string) { a = append(a, category+":"+message) }}
	opsB := UiOps{Print: func(_ Level, category, message string) { b = append(b, category+":"+message) }}

	s := New("IMCORE", Tee(opsA, opsB))
	s.Info("core", "hello")

	if len(a) != 1 || a[0] != "core:hello" {
		t.Fatalf("expected sink A to receive the line, got %v", a)
	}
	if len(b) != 1 || b[0] != "core:hello" {
		t.Fatalf("expected sink B to receive the line, got %v", b)
	}
}

func TestTeeEnabledIfAnyBackendEnabled(t *testing.T) {
	calls := 0
	quiet := UiOps{
		Print:     func(Level, string, string) { calls++ },
		IsEnabled: func(Level, string) bool { return false },
	}
	loud := UiOps{
		Print:     func(Level, string, string) { calls++ },
		IsEnabled: func(Level, string) bool { return true },
	}

	s := New("IMCORE", Tee(quiet, loud))
	s.Info("core", "should print")
	if calls != 2 {
		t.Fatalf("expected both backends to receive the line when any IsEnabled is true, got %d calls", calls)
	}
}

func TestTeeDisabledWhenAllBackendsDisabled(t *testing.T) {
	calls := 0
	quiet := UiOps{
		Print:     func(Level, string, string) { calls++ },
		IsEnabled: func(Level, string) bool { return false },
	}

	s := New("IMCORE", Tee(quiet, quiet))
	s.Info("core", "suppressed")
	if calls != 0 {
		t.Fatalf("expected no backend to print when all report disabled, got %d calls", calls)
	}
}
