package hub

import (
	"go.uber.org/zap"

	"voxelsession.ai/internal/chat"
	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/session"
	"voxelsession.ai/internal/sim/physics"
)

// BroadcastChat runs on the sender's dispatch goroutine.
func (h *Hub) BroadcastChat(from *session.Session, msg chat.Message) {
	for _, m := range h.snapshot() {
		m.s.SendPlayerChat(msg)
	}
	h.cfg.Metrics.RecordChatBroadcast()
	h.log.Debug("chat",
		zap.String("player_id", from.ID().String()),
		zap.Int32("index", msg.Link.Index),
		zap.Bool("signed", msg.Signed()))
}

func (h *Hub) BroadcastInfo(info protocol.PlayerInfoMsg) {
	for _, m := range h.snapshot() {
		if m.s.Closed() {
			continue
		}
		out := info
		m.send(&out)
	}
}

// Recenter sends CHUNK_CENTER when the session crossed into another
// chunk. Called on the hub goroutine after a committed move.
func (h *Hub) Recenter(s *session.Session, pos physics.Vec3) {
	m := h.byID[s.ID()]
	if m == nil {
		return
	}
	cx, cz := physics.ChunkOf(pos)
	if m.hasChunk && m.chunkX == cx && m.chunkZ == cz {
		return
	}
	m.chunkX, m.chunkZ, m.hasChunk = cx, cz, true
	if !s.Closed() {
		m.send(&protocol.ChunkCenterMsg{Type: protocol.TypeChunkCenter, X: cx, Z: cz})
	}
}
