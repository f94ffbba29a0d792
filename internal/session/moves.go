package session

import (
	"go.uber.org/zap"

	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/session/movement"
	"voxelsession.ai/internal/session/teleport"
	"voxelsession.ai/internal/sim/physics"
)

const (
	ViolationSpeed            = "speed"
	ViolationWrongMove        = "wrong_move"
	ViolationVehicleSpeed     = "vehicle_speed"
	ViolationVehicleWrongMove = "vehicle_wrong_move"
)

func (s *Session) playerConditions() movement.Conditions {
	c := s.player.Conditions()
	c.SingleplayerOwner = s.player.SingleplayerOwner()
	c.FlightAllowed = c.FlightAllowed || s.cfg.Tuning.FlightAllowed
	return c
}

// OnMovementPacket handles MOVE_PLAYER. Absent fields keep the server's
// current value.
func (s *Session) OnMovementPacket(m *protocol.MovePlayerMsg) {
	if s.Closed() {
		return
	}
	p := s.player
	req := movement.Request{Pos: p.Position(), Rot: p.Rotation(), OnGround: m.OnGround}
	if m.X != nil && m.Y != nil && m.Z != nil {
		req.Pos = physics.Vec3{X: *m.X, Y: *m.Y, Z: *m.Z}
	}
	if m.Yaw != nil && m.Pitch != nil {
		req.Rot = physics.Rotation{Yaw: *m.Yaw, Pitch: *m.Pitch}
	}
	req, ok := s.moves.Sanitize(req)
	if !ok {
		s.fail(&DisconnectError{Reason: protocol.ReasonInvalidPlayerMovement, Detail: "non-finite position or rotation"})
		return
	}
	if req.Pos != p.Position() || req.Rot != p.Rotation() {
		s.markActive()
	}
	if s.awaitingTeleport() {
		p.SetPose(p.Position(), req.Rot)
		return
	}

	res := s.moves.Apply(s.track, p, req, s.playerConditions(), movement.PlayerPolicy)
	switch res.Outcome {
	case movement.Rejected:
		s.fail(&DisconnectError{Reason: protocol.ReasonInvalidPlayerMovement})
	case movement.SnappedBack:
		if res.Violation != "" {
			s.recordViolation(playerViolation(res.Violation), req.Pos, res.Moved)
		}
		s.Teleport(res.SnapTo, res.SnapRot, 0)
	case movement.Accepted:
		if s.cfg.Chunks != nil {
			s.cfg.Chunks.Recenter(s, p.Position())
		}
	}
}

// OnVehicleMovementPacket handles MOVE_VEHICLE for the vehicle the player
// drove at the start of this tick.
func (s *Session) OnVehicleMovementPacket(m *protocol.MoveVehicleMsg) {
	if s.Closed() {
		return
	}
	req, ok := s.moves.Sanitize(movement.Request{
		Pos: physics.Vec3{X: m.X, Y: m.Y, Z: m.Z},
		Rot: physics.Rotation{Yaw: m.Yaw, Pitch: m.Pitch},
	})
	if !ok {
		s.fail(&DisconnectError{Reason: protocol.ReasonInvalidVehicleMovement, Detail: "non-finite vehicle pose"})
		return
	}
	if s.awaitingTeleport() {
		return
	}
	v := s.player.ControlledVehicle()
	if v == nil || s.vehicle == nil || s.vehicle.id != v.ID() {
		return
	}
	s.markActive()

	cond := v.Conditions()
	cond.SingleplayerOwner = s.player.SingleplayerOwner()
	cond.FlightAllowed = cond.FlightAllowed || s.cfg.Tuning.FlightAllowed
	res := s.moves.Apply(s.vehicle.track, v, req, cond, movement.VehiclePolicy)
	switch res.Outcome {
	case movement.Rejected:
		s.fail(&DisconnectError{Reason: protocol.ReasonInvalidVehicleMovement})
	case movement.SnappedBack:
		kind := ViolationVehicleSpeed
		if res.Violation == movement.ViolationWrongMove {
			kind = ViolationVehicleWrongMove
		}
		s.recordViolation(kind, req.Pos, res.Moved)
		s.sendVehiclePose(v)
	case movement.Accepted:
		// The passenger rides along at the server-validated vehicle position.
		s.player.SetPose(v.Position(), s.player.Rotation())
		if s.cfg.Chunks != nil {
			s.cfg.Chunks.Recenter(s, v.Position())
		}
	}
}

func playerViolation(v string) string {
	if v == movement.ViolationWrongMove {
		return ViolationWrongMove
	}
	return ViolationSpeed
}

// awaitingTeleport reports whether a teleport is outstanding, reissuing it
// under a fresh id once the client has ignored it for too long.
func (s *Session) awaitingTeleport() bool {
	if _, ok := s.teleports.Pending(); !ok {
		return false
	}
	tick := s.tick.Load()
	if s.teleports.Expired(tick) {
		if req, ok := s.teleports.Reissue(s.player.Rotation(), tick); ok {
			s.log.Debug("reissuing unacknowledged teleport", zap.Int32("teleport_id", req.ID))
			s.sendTeleport(req)
		}
	}
	return true
}

// Teleport forcibly repositions the player. Components flagged in rel are
// offsets from the current pose.
func (s *Session) Teleport(pos physics.Vec3, rot physics.Rotation, rel teleport.Relative) {
	from := teleport.Pose{Pos: s.player.Position(), Rot: s.player.Rotation()}
	req, ok := s.teleports.Issue(from, teleport.Pose{Pos: pos, Rot: rot}, rel, s.tick.Load())
	if !ok {
		return
	}
	s.player.SetPose(req.Target.Pos, req.Target.Rot)
	s.sendTeleport(req)
}

func (s *Session) sendTeleport(req teleport.Request) {
	s.send(&protocol.TeleportMsg{
		Type:       protocol.TypeTeleport,
		TeleportID: req.ID,
		X:          req.Wire.Pos.X,
		Y:          req.Wire.Pos.Y,
		Z:          req.Wire.Pos.Z,
		Yaw:        req.Wire.Rot.Yaw,
		Pitch:      req.Wire.Rot.Pitch,
		Relative:   req.Relative.Names(),
	})
}

func (s *Session) sendVehiclePose(v Vehicle) {
	pos, rot := v.Position(), v.Rotation()
	s.send(&protocol.VehiclePoseMsg{
		Type:  protocol.TypeVehiclePose,
		X:     pos.X,
		Y:     pos.Y,
		Z:     pos.Z,
		Yaw:   rot.Yaw,
		Pitch: rot.Pitch,
	})
}

// OnTeleportAck commits the teleport target if id is the outstanding one.
// Stale and duplicate acks are ignored.
func (s *Session) OnTeleportAck(id int32) {
	if s.Closed() {
		return
	}
	req, ok := s.teleports.Acknowledge(id)
	if !ok {
		return
	}
	s.player.SetPose(req.Target.Pos, s.player.Rotation())
	s.track.Commit(req.Target.Pos)
}

// OnBlockChangeAck records that the server applied the client's block
// action with this sequence number.
func (s *Session) OnBlockChangeAck(seq int32) {
	if s.Closed() {
		return
	}
	s.acks.Record(seq)
}
