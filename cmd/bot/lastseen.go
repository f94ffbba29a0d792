package main

import (
	"voxelsession.ai/internal/chat"
	"voxelsession.ai/internal/protocol"
)

// seenWindow is the client half of the last-seen protocol: it mirrors the
// server's tracked list so outgoing messages can acknowledge exactly what
// the server expects.
type seenWindow struct {
	slots   []*chat.Signature
	last    *chat.Signature
	pending int
	cache   *chat.SignatureCache
}

func newSeenWindow(capacity, cacheCapacity int) *seenWindow {
	return &seenWindow{
		slots: make([]*chat.Signature, capacity),
		cache: chat.NewSignatureCache(cacheCapacity),
	}
}

// received records an incoming PLAYER_CHAT. It returns false when a
// packed last-seen id cannot be resolved against the local cache.
func (w *seenWindow) received(m *protocol.PlayerChatMsg) bool {
	lastSeen := make([]chat.Signature, 0, len(m.Body.LastSeen))
	ok := true
	for _, p := range m.Body.LastSeen {
		if p.ID == chat.NotFound {
			s, err := chat.ParseSignature(p.Full)
			if err != nil {
				ok = false
				continue
			}
			lastSeen = append(lastSeen, s)
			continue
		}
		s, found := w.cache.Unpack(p.ID)
		if !found {
			ok = false
			continue
		}
		lastSeen = append(lastSeen, s)
	}
	if len(m.Signature) == 0 {
		return ok
	}
	sig, err := chat.ParseSignature(m.Signature)
	if err != nil {
		return false
	}
	w.cache.Push(lastSeen, &sig)
	if w.last != nil && *w.last == sig {
		return ok
	}
	w.last = &sig
	copy(w.slots, w.slots[1:])
	w.slots[len(w.slots)-1] = &sig
	w.pending++
	return ok
}

// update builds the last-seen claim for an outgoing message and the
// signatures it covers, oldest first. The pending count is consumed.
func (w *seenWindow) update() (protocol.LastSeenUpdate, []chat.Signature) {
	u := protocol.LastSeenUpdate{Offset: w.pending, Acknowledged: make([]bool, len(w.slots))}
	var sigs []chat.Signature
	for i, s := range w.slots {
		if s != nil {
			u.Acknowledged[i] = true
			sigs = append(sigs, *s)
		}
	}
	w.pending = 0
	return u, sigs
}

// ack consumes the pending count for a standalone CHAT_ACK.
func (w *seenWindow) ack() int {
	n := w.pending
	w.pending = 0
	return n
}
