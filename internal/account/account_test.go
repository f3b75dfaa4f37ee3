package account

import "testing"

func TestPurgeUnsavedPasswordRespectsRememberFlag(t *testing.T) {
	a := New(Key{ProtocolID: "xmpp", Username: "a@b.com"})
	a.SetPassword("secret", false)
	a.PurgeUnsavedPassword()
	if a.Password() != "" {
		t.Fatalf("expected unsaved password purged, got %q", a.Password())
	}

	a.SetPassword("secret", true)
	a.PurgeUnsavedPassword()
	if a.Password() != "secret" {
		t.Fatalf("expected remembered password kept, got %q", a.Password())
	}
}

func TestPrivacyCheckRoundTripIsIdempotent(t *testing.T) {
	a := New(Key{ProtocolID: "irc", Username: "bob"})
	a.SetPrivacyPolicy(PrivacyDenyUsers)

	before := a.PrivacyCheck("eve")
	a.DenyAdd("eve")
	a.DenyRemove("eve")
	after := a.PrivacyCheck("eve")

	if before != after {
		t.Fatalf("privacy_check should be unchanged by add+remove round trip: before=%v after=%v", before, after)
	}
}

func TestPrivacyPolicies(t *testing.T) {
	a := New(Key{ProtocolID: "irc", Username: "bob"})

	a.SetPrivacyPolicy(PrivacyAllowAll)
	if !a.PrivacyCheck("anyone") {
		t.Fatal("allow-all should permit anyone")
	}

	a.SetPrivacyPolicy(PrivacyDenyAll)
	if a.PrivacyCheck("anyone") {
		t.Fatal("deny-all should block everyone")
	}

	a.SetPrivacyPolicy(PrivacyAllowUsers)
	if a.PrivacyCheck("stranger") {
		t.Fatal("allow-users should block unknown users")
	}
	a.PermitAdd("friend")
	if !a.PrivacyCheck("friend") {
		t.Fatal("allow-users should permit an explicitly permitted user")
	}

	a.SetPrivacyPolicy(PrivacyDenyUsers)
	if !a.PrivacyCheck("stranger") {
		t.Fatal("deny-users should allow anyone not explicitly denied")
	}
	a.DenyAdd("blocked")
	if a.PrivacyCheck("blocked") {
		t.Fatal("deny-users should block an explicitly denied user")
	}
}

func TestStateTransitionClearsWeakConnectionReference(t *testing.T) {
	a := New(Key{ProtocolID: "xmpp", Username: "u"})
	a.SetState(StateConnecting)
	a.BindConnection("fake-connection")
	if a.Connection() == nil {
		t.Fatal("expected connection bound while connecting")
	}

	a.SetState(StateDisconnected)
	if a.Connection() != nil {
		t.Fatal("expected weak connection reference cleared on disconnect")
	}
}
