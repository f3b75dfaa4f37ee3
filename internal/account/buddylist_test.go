package account

import "testing"

func TestAliasPriorityLocalOverServerOverName(t *testing.T) {
	b := NewBuddy("user@example.com")
	if b.Alias() != "user@example.com" {
		t.Fatalf("expected name fallback, got %q", b.Alias())
	}
	b.SetServerAlias("Server Nick")
	if b.Alias() != "Server Nick" {
		t.Fatalf("expected server alias, got %q", b.Alias())
	}
	b.SetLocalAlias("My Nick")
	if b.Alias() != "My Nick" {
		t.Fatalf("expected local alias to win, got %q", b.Alias())
	}
}

func TestGroupMembershipCaseInsensitiveDedup(t *testing.T) {
	bl := NewBuddyList()
	b := NewBuddy("friend")
	bl.AddToGroup(b, "Friends")
	bl.AddToGroup(b, "FRIENDS")
	bl.AddToGroup(b, "friends")

	groups := bl.Groups(b)
	if len(groups) != 1 {
		t.Fatalf("expected case-insensitive de-dup to one group, got %v", groups)
	}
	if len(bl.Members("friends")) != 1 {
		t.Fatalf("expected exactly one member in group, got %d", len(bl.Members("friends")))
	}
}

func TestRemoveFromLastGroupFreesProtocolData(t *testing.T) {
	bl := NewBuddyList()
	b := NewBuddy("friend")
	bl.AddToGroup(b, "Friends")

	freed := false
	b.SetProtocolData(struct{}{}, func(any) { freed = true })

	bl.RemoveFromGroup(b, "Friends")
	if !freed {
		t.Fatal("expected protocol data freed when buddy leaves its last group")
	}
	if _, ok := bl.Find("friend"); ok {
		t.Fatal("expected buddy removed from the list entirely")
	}
}

func TestSetProtocolDataTwiceWithoutFreePanics(t *testing.T) {
	b := NewBuddy("friend")
	b.SetProtocolData(1, func(any) {})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double SetProtocolData without an intervening Free")
		}
	}()
	b.SetProtocolData(2, func(any) {})
}
