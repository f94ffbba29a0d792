package session

import (
	"time"

	"go.uber.org/zap"

	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/session/movement"
)

// Tick runs once per server tick on the hub goroutine.
func (s *Session) Tick() {
	if s.Closed() {
		return
	}
	s.acks.Flush(func(seq int32) {
		s.send(&protocol.BlockChangedAckMsg{Type: protocol.TypeBlockChangedAck, Sequence: seq})
	})

	p := s.player
	s.track.Reset(p.Position())
	tick := s.tick.Add(1)

	if s.moves.TickFloating(s.track, p, s.playerConditions()) {
		s.log.Warn("kicked for floating too long", zap.Int("ticks", s.track.FloatingTicks))
		s.Disconnect(protocol.ReasonFlying, "")
		return
	}

	if v := p.ControlledVehicle(); v != nil {
		if s.vehicle == nil || s.vehicle.id != v.ID() {
			s.vehicle = &vehicleLink{id: v.ID(), track: movement.NewTrack(v.Position())}
		}
		s.vehicle.track.Reset(v.Position())
		cond := v.Conditions()
		cond.FlightAllowed = cond.FlightAllowed || s.cfg.Tuning.FlightAllowed
		if s.moves.TickFloating(s.vehicle.track, v, cond) {
			s.log.Warn("kicked for floating a vehicle too long", zap.String("vehicle", v.ID()))
			s.Disconnect(protocol.ReasonFlying, "vehicle")
			return
		}
	} else {
		s.vehicle = nil
	}

	if !s.keepAlive() {
		return
	}

	if idle := s.cfg.Tuning.IdleTimeoutTicks; idle > 0 && tick-s.lastAction.Load() > uint64(idle) {
		s.Disconnect(protocol.ReasonIdling, "")
	}
}

// keepAlive sends a challenge every interval. A challenge still pending
// when the next one is due times the connection out.
func (s *Session) keepAlive() bool {
	now := s.cfg.Now()
	interval := time.Duration(s.cfg.Tuning.Network.KeepAliveIntervalMs) * time.Millisecond
	if now.Sub(s.keepAliveAt) < interval {
		return true
	}
	if s.keepAlivePending {
		s.Disconnect(protocol.ReasonTimeout, "keep-alive not answered")
		return false
	}
	s.keepAlivePending = true
	s.keepAliveAt = now
	s.keepAliveID = now.UnixMilli()
	s.send(&protocol.KeepAliveMsg{Type: protocol.TypeKeepAlive, ID: s.keepAliveID})
	return true
}

func (s *Session) OnKeepAlive(id int64) {
	if s.Closed() {
		return
	}
	if s.keepAlivePending && id == s.keepAliveID {
		rtt := s.cfg.Now().Sub(s.keepAliveAt).Milliseconds()
		s.latencyMs = (s.latencyMs*3 + rtt) / 4
		s.keepAlivePending = false
		return
	}
	if !s.player.SingleplayerOwner() {
		s.Disconnect(protocol.ReasonTimeout, "unexpected keep-alive")
	}
}
