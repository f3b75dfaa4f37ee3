package ircfsm

import (
	"strings"
	"testing"

	"imcore/internal/account"
	"imcore/internal/protoplugin"
)

func TestBatchISONNeverExceedsCap(t *testing.T) {
	nicks := make([]string, 200)
	for i := range nicks {
		nicks[i] = "nickname_number_of_this_user_" + strings.Repeat("x", i%5)
	}
	batches := BatchISON(nicks)
	if len(batches) == 0 {
		t.Fatal("expected at least one batch")
	}
	for _, b := range batches {
		if len(b) > MaxISONLineBytes {
			t.Fatalf("batch exceeds cap: %d bytes: %q", len(b), b)
		}
	}
}

func TestBatchISONCoversEveryNick(t *testing.T) {
	nicks := []string{"alice", "bob", "carol", "dave"}
	batches := BatchISON(nicks)
	joined := strings.Join(batches, "")
	for _, n := range nicks {
		if !strings.Contains(joined, n) {
			t.Fatalf("expected nick %q present in batches, got %q", n, joined)
		}
	}
}

func TestBatchISONEmptyInput(t *testing.T) {
	if batches := BatchISON(nil); len(batches) != 0 {
		t.Fatalf("expected no batches for empty input, got %v", batches)
	}
}

func TestHandshakeLinesOrderAndOptionalPass(t *testing.T) {
	lines := HandshakeLines(Config{Nick: "nick1", Username: "user1", RealName: "Real Name"})
	if len(lines) != 2 {
		t.Fatalf("expected USER+NICK without PASS, got %v", lines)
	}
	if !strings.HasPrefix(lines[0], "USER ") || !strings.HasPrefix(lines[1], "NICK ") {
		t.Fatalf("expected USER before NICK, got %v", lines)
	}

	withPass := HandshakeLines(Config{Password: "secret", Nick: "n", Username: "u", RealName: "R"})
	if len(withPass) != 3 || !strings.HasPrefix(withPass[0], "PASS ") {
		t.Fatalf("expected PASS first when set, got %v", withPass)
	}
}

func TestParseLineWithPrefixAndTrailing(t *testing.T) {
	l, err := ParseLine(":nick!user@host PRIVMSG #chan :hello there\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if l.Prefix != "nick!user@host" || l.Command != "PRIVMSG" {
		t.Fatalf("unexpected parse: %+v", l)
	}
	if len(l.Params) != 2 || l.Params[0] != "#chan" || l.Params[1] != "hello there" {
		t.Fatalf("unexpected params: %+v", l.Params)
	}
}

func TestParseLineWithoutPrefix(t *testing.T) {
	l, err := ParseLine("PING :server1")
	if err != nil {
		t.Fatal(err)
	}
	if l.Command != "PING" || len(l.Params) != 1 || l.Params[0] != "server1" {
		t.Fatalf("unexpected parse: %+v", l)
	}
}

func TestDispatcherRoutesByCommand(t *testing.T) {
	d := NewDispatcher()
	var gotPing, gotFallback bool
	d.On("PING", func(l Line) { gotPing = true })
	d.OnUnhandled(func(l Line) { gotFallback = true })

	d.Dispatch(Line{Command: "PING"})
	d.Dispatch(Line{Command: "999"})

	if !gotPing || !gotFallback {
		t.Fatalf("expected both handler and fallback invoked, got ping=%v fallback=%v", gotPing, gotFallback)
	}
}

func TestDriveHandshakeReachesConnected(t *testing.T) {
	acct := account.New(account.Key{ProtocolID: "irc", Username: "u"})
	conn := protoplugin.NewConnection(acct, nil)
	var signedOn bool
	conn.OnSignedOn(func() { signedOn = true })

	DriveHandshake(conn)

	if conn.State() != protoplugin.StateConnected {
		t.Fatalf("expected StateConnected, got %v", conn.State())
	}
	if !signedOn {
		t.Fatal("expected signed-on fired")
	}
}
