package main

import (
	"testing"

	"voxelsession.ai/internal/chat"
	"voxelsession.ai/internal/protocol"
)

func sigOf(b byte) chat.Signature {
	var s chat.Signature
	s[0] = b
	return s
}

func TestSeenWindow_MatchesServerWindow(t *testing.T) {
	server := chat.NewWindow(4)
	client := newSeenWindow(4, 16)

	for i := byte(1); i <= 6; i++ {
		s := sigOf(i)
		server.AddPending(s)
		if !client.received(&protocol.PlayerChatMsg{Type: protocol.TypePlayerChat, Signature: s.Bytes()}) {
			t.Fatalf("received %d: unresolved", i)
		}
	}
	update, sigs := client.update()
	if update.Offset != 6 || len(sigs) != 4 {
		t.Fatalf("update=%+v sigs=%d", update, len(sigs))
	}
	got, err := server.ApplyUpdate(update.Offset, update.Acknowledged)
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if len(got) != 4 || got[0] != sigOf(3) || got[3] != sigOf(6) {
		t.Fatalf("acknowledged=%v", got)
	}

	// A repeat of the newest signature is not tracked twice.
	server.AddPending(sigOf(6))
	client.received(&protocol.PlayerChatMsg{Signature: sigOf(6).Bytes()})
	if client.pending != server.Pending() {
		t.Fatalf("pending client=%d server=%d", client.pending, server.Pending())
	}
}

func TestSeenWindow_UnpacksCachedReferences(t *testing.T) {
	client := newSeenWindow(4, 16)
	first := sigOf(9)
	client.received(&protocol.PlayerChatMsg{Signature: first.Bytes()})

	ok := client.received(&protocol.PlayerChatMsg{
		Signature: sigOf(10).Bytes(),
		Body:      protocol.PackedBody{LastSeen: []protocol.PackedSignature{{ID: 0}}},
	})
	if !ok {
		t.Fatalf("cached id 0 should resolve")
	}
	if client.received(&protocol.PlayerChatMsg{
		Body: protocol.PackedBody{LastSeen: []protocol.PackedSignature{{ID: 12}}},
	}) {
		t.Fatalf("empty slot should not resolve")
	}
	if client.ack() != 2 || client.pending != 0 {
		t.Fatalf("ack did not consume pending")
	}
}
