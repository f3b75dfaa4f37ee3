package protoplugin

import (
	"testing"

	"imcore/internal/account"
)

func TestConnectionFiresSignedOnExactlyOnce(t *testing.T) {
	acct := account.New(account.Key{ProtocolID: "xmpp", Username: "u"})
	conn := NewConnection(acct, nil)

	var signedOnCount int
	conn.OnSignedOn(func() { signedOnCount++ })

	conn.Transition(StateConnecting)
	conn.Transition(StateInitializing)
	conn.Transition(StateAuthenticating)
	conn.Transition(StatePostAuth)
	conn.Transition(StateConnected)
	conn.Transition(StateConnected) // re-entering Connected must not refire

	if signedOnCount != 1 {
		t.Fatalf("expected signed-on fired exactly once, got %d", signedOnCount)
	}
}

func TestConnectionFailFiresErrorOnceAndReturnsToOffline(t *testing.T) {
	acct := account.New(account.Key{ProtocolID: "xmpp", Username: "u"})
	conn := NewConnection(acct, nil)

	var errCount int
	var lastKind ErrorKind
	conn.OnError(func(kind ErrorKind, msg string) {
		errCount++
		lastKind = kind
	})

	conn.Transition(StateConnecting)
	conn.Fail(ErrNetwork, "connection reset")
	conn.Fail(ErrOther, "should not refire")

	if errCount != 1 {
		t.Fatalf("expected connection-error fired exactly once, got %d", errCount)
	}
	if lastKind != ErrNetwork {
		t.Fatalf("expected first failure kind preserved, got %v", lastKind)
	}
	if conn.State() != StateOffline {
		t.Fatalf("expected state to return to offline after failure, got %v", conn.State())
	}
}

func TestFailAfterSignedOnDoesNotDoubleFireTerminal(t *testing.T) {
	acct := account.New(account.Key{ProtocolID: "xmpp", Username: "u"})
	conn := NewConnection(acct, nil)

	var signedOn, errored int
	conn.OnSignedOn(func() { signedOn++ })
	conn.OnError(func(ErrorKind, string) { errored++ })

	conn.Transition(StateConnected)
	conn.Fail(ErrNetwork, "dropped after connect")

	if signedOn != 1 || errored != 0 {
		t.Fatalf("expected only signed-on to have fired, got signedOn=%d errored=%d", signedOn, errored)
	}
}

func TestRegistryAddFindRemove(t *testing.T) {
	r := NewRegistry()
	p := &stubProtocol{id: "xmpp"}
	if err := r.Add(p); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(p); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	found, ok := r.Find("xmpp")
	if !ok || found.ID() != "xmpp" {
		t.Fatal("expected to find registered protocol")
	}
	r.Remove("xmpp")
	if _, ok := r.Find("xmpp"); ok {
		t.Fatal("expected protocol removed")
	}
}

type stubProtocol struct{ id string }

func (s *stubProtocol) ID() string                 { return s.id }
func (s *stubProtocol) Name() string               { return s.id }
func (s *stubProtocol) OptionSchema() OptionSchema { return OptionSchema{} }
func (s *stubProtocol) ListIcon() string           { return "" }
func (s *stubProtocol) StatusTypes(*account.Account) []account.StatusPrimitive {
	return []account.StatusPrimitive{account.StatusAvailable}
}
func (s *stubProtocol) Login(acct *account.Account) (*Connection, error) {
	return NewConnection(acct, s), nil
}
func (s *stubProtocol) Close(*Connection) error { return nil }
