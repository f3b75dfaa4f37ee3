package ggfsm

import (
	"testing"
	"time"

	"imcore/internal/account"
	"imcore/internal/protoplugin"
)

func TestTypingSuppressionWindowExactlyOneSecond(t *testing.T) {
	n := NewTypingNotifier()
	base := time.Unix(0, 0)

	if !n.ShouldSend("peer1", true, base) {
		t.Fatal("expected first typing notification to send")
	}
	if n.ShouldSend("peer1", true, base.Add(999*time.Millisecond)) {
		t.Fatal("expected suppression just before the 1s window elapses")
	}
	if !n.ShouldSend("peer1", true, base.Add(1*time.Second)) {
		t.Fatal("expected send allowed exactly at the 1s boundary")
	}
}

func TestStoppedTypingBypassesSuppression(t *testing.T) {
	n := NewTypingNotifier()
	base := time.Unix(0, 0)
	n.ShouldSend("peer1", true, base)
	if !n.ShouldSend("peer1", false, base.Add(10*time.Millisecond)) {
		t.Fatal("expected stop-typing to bypass suppression")
	}
	// after a stop, a fresh typing=true should be allowed immediately
	if !n.ShouldSend("peer1", true, base.Add(20*time.Millisecond)) {
		t.Fatal("expected typing allowed again after an intervening stop")
	}
}

func TestDispatcherRoutesByEventType(t *testing.T) {
	d := NewDispatcher()
	var gotMsg bool
	d.On(EventMsg, func(e Event) { gotMsg = true })
	d.Dispatch(Event{Type: EventMsg, From: "friend"})
	d.Dispatch(Event{Type: EventAck}) // no handler registered, must not panic
	if !gotMsg {
		t.Fatal("expected msg handler invoked")
	}
}

func TestDriveHandshakeReachesConnected(t *testing.T) {
	acct := account.New(account.Key{ProtocolID: "gg", Username: "u"})
	conn := protoplugin.NewConnection(acct, nil)
	DriveHandshake(conn)
	if conn.State() != protoplugin.StateConnected {
		t.Fatalf("expected StateConnected, got %v", conn.State())
	}
}
