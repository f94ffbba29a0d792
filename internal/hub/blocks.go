package hub

import (
	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/sim/physics"
)

const (
	eyeHeight   = 1.62
	reachSq     = 6 * 6
	blockCenter = 0.5
)

// applyBlockAction mutates the grid when the block is in reach and then
// records the sequence for the end-of-tick ack. Refused actions are acked
// too so the client can roll back its prediction.
func (h *Hub) applyBlockAction(m *member, a *protocol.BlockActionMsg) {
	pos := physics.BlockPos(a.Pos)
	if h.inReach(m.avatar, pos) {
		switch a.Action {
		case protocol.ActionBreak:
			h.cfg.Grid.Set(pos, false)
		case protocol.ActionPlace:
			if !h.occupied(pos) {
				h.cfg.Grid.Set(pos, true)
			}
		}
	}
	m.s.OnBlockChangeAck(a.Sequence)
}

func (h *Hub) inReach(a *Avatar, pos physics.BlockPos) bool {
	eye := a.Position().Add(physics.Vec3{Y: eyeHeight})
	center := physics.Vec3{
		X: float64(pos[0]) + blockCenter,
		Y: float64(pos[1]) + blockCenter,
		Z: float64(pos[2]) + blockCenter,
	}
	return eye.DistanceSqr(center) <= reachSq
}

func (h *Hub) occupied(pos physics.BlockPos) bool {
	lo := physics.Vec3{X: float64(pos[0]), Y: float64(pos[1]), Z: float64(pos[2])}
	box := physics.AABB{Min: lo, Max: lo.Add(physics.Vec3{X: 1, Y: 1, Z: 1})}
	for _, m := range h.members {
		if m.avatar.BoundingBox().Intersects(box) {
			return true
		}
	}
	return false
}
