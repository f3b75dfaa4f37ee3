package conversation

import (
	"testing"
	"time"

	"imcore/internal/account"
	"imcore/internal/signal"
)

func TestAutoResponseSuppressionWindowExactly600Seconds(t *testing.T) {
	acct := account.New(account.Key{ProtocolID: "xmpp", Username: "u"})
	acct.Presence().SetCurrent(account.StatusAway)
	im := NewIM(acct, "peer")

	base := time.Unix(0, 0)
	if !im.AutoResponseEligible(base, false, false) {
		t.Fatal("expected eligible with no prior auto-response")
	}
	im.RecordAutoResponse(base)

	if im.AutoResponseEligible(base.Add(599*time.Second), false, false) {
		t.Fatal("expected suppressed 1s before the window elapses")
	}
	if !im.AutoResponseEligible(base.Add(600*time.Second), false, false) {
		t.Fatal("expected eligible exactly at the 600s window boundary")
	}
}

func TestAutoResponseNeverEligibleWhenAvailable(t *testing.T) {
	acct := account.New(account.Key{ProtocolID: "xmpp", Username: "u"})
	acct.Presence().SetCurrent(account.StatusAvailable)
	im := NewIM(acct, "peer")
	if im.AutoResponseEligible(time.Now(), false, false) {
		t.Fatal("available accounts must never auto-respond")
	}
}

func TestGotChatInDistinguishesSelfEcho(t *testing.T) {
	chat := NewChat(1, "#room")
	recv := chat.GotChatIn("alice", "bob", "hi", time.Now())
	if recv.Flags != FlagRecv {
		t.Fatalf("expected FlagRecv for a peer's message, got %v", recv.Flags)
	}
	sent := chat.GotChatIn("bob", "bob", "hi back", time.Now())
	if sent.Flags != FlagSend {
		t.Fatalf("expected FlagSend for self-echo, got %v", sent.Flags)
	}
}

func TestDeliverInboundIMBlockedByPrivacy(t *testing.T) {
	bus := signal.New()
	acct := account.New(account.Key{ProtocolID: "irc", Username: "u"})
	acct.SetPrivacyPolicy(account.PrivacyDenyAll)

	var blocked bool
	bus.Connect(acct, SignalBlockedIMMsg, signal.PriorityDefault, func(args ...any) bool {
		blocked = true
		return false
	}, nil)

	convs := map[string]*IM{}
	_, ok := DeliverInboundIM(bus, acct, "eve", time.Now(), "hi", func(peer string) *IM {
		c := NewIM(acct, peer)
		convs[peer] = c
		return c
	})
	if ok {
		t.Fatal("expected delivery blocked by privacy")
	}
	if !blocked {
		t.Fatal("expected blocked-im-msg to fire")
	}
	if len(convs) != 0 {
		t.Fatal("a blocked message must not create a conversation")
	}
}

func TestDeliverInboundIMVetoedByHandler(t *testing.T) {
	bus := signal.New()
	acct := account.New(account.Key{ProtocolID: "irc", Username: "u"})

	bus.Connect(acct, SignalReceivingIMMsg, signal.PriorityHighest, func(args ...any) bool {
		return true // veto
	}, nil)

	var receivedFired bool
	bus.Connect(acct, SignalReceivedIMMsg, signal.PriorityDefault, func(args ...any) bool {
		receivedFired = true
		return false
	}, nil)

	_, ok := DeliverInboundIM(bus, acct, "eve", time.Now(), "hi", func(peer string) *IM {
		return NewIM(acct, peer)
	})
	if ok {
		t.Fatal("expected veto to block delivery")
	}
	if receivedFired {
		t.Fatal("received-im-msg must never fire once vetoed")
	}
}

func TestDeliverInboundIMRewriteAndAppend(t *testing.T) {
	bus := signal.New()
	acct := account.New(account.Key{ProtocolID: "irc", Username: "u"})

	bus.Connect(acct, SignalReceivingIMMsg, signal.PriorityHighest, func(args ...any) bool {
		m := args[0].(*MutableIncoming)
		m.Content = m.Content + " [rewritten]"
		return false
	}, nil)

	var conv *IM
	msg, ok := DeliverInboundIM(bus, acct, "eve", time.Now(), "hi", func(peer string) *IM {
		conv = NewIM(acct, peer)
		return conv
	})
	if !ok {
		t.Fatal("expected delivery to succeed")
	}
	if msg.Content != "hi [rewritten]" {
		t.Fatalf("expected rewritten content, got %q", msg.Content)
	}
	if len(conv.History()) != 1 {
		t.Fatalf("expected message appended to conversation history")
	}
}
