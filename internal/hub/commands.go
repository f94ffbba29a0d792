package hub

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"voxelsession.ai/internal/session"
	"voxelsession.ai/internal/sim/physics"
)

// Dispatch runs on the sender's dispatch goroutine; the command itself is
// executed on the hub goroutine at the next tick.
func (h *Hub) Dispatch(from *session.Session, command string) {
	select {
	case h.commands <- commandReq{playerID: from.ID(), command: command}:
	case <-h.stop:
	default:
		h.log.Warn("command queue full, dropping", zap.String("player_id", from.ID().String()))
		from.SendSystem("server busy, try again")
	}
}

func (h *Hub) drainCommands() {
	for {
		select {
		case c := <-h.commands:
			if m := h.byID[c.playerID]; m != nil && !m.s.Closed() {
				h.guard(m, "command", func() { h.runCommand(m, c.command) })
			}
		default:
			return
		}
	}
}

func (h *Hub) runCommand(m *member, command string) {
	args := strings.Fields(strings.TrimPrefix(strings.TrimSpace(command), "/"))
	if len(args) == 0 {
		return
	}
	s, av := m.s, m.avatar
	switch args[0] {
	case "spawn":
		s.Teleport(h.cfg.Spawn, av.Rotation(), 0)
	case "tp":
		if !av.Operator() {
			s.SendSystem("permission denied")
			return
		}
		pos, ok := parseVec(args[1:])
		if !ok {
			s.SendSystem("usage: tp <x> <y> <z>")
			return
		}
		s.Teleport(pos, av.Rotation(), 0)
	case "fly":
		if !av.Operator() {
			s.SendSystem("permission denied")
			return
		}
		av.flying = !av.flying
		s.SendSystem("flight " + onOff(av.flying))
	case "boat":
		if av.boat != nil {
			av.boat = nil
			s.SendSystem("left boat")
			return
		}
		av.boat = newBoat(av.Position())
		s.SendSystem("boarded " + av.boat.ID())
	case "chat":
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			s.SendSystem("usage: chat on|off")
			return
		}
		av.chatHidden.Store(args[1] == "off")
		s.SendSystem("chat " + args[1])
	default:
		s.SendSystem("unknown command: " + args[0])
	}
}

func parseVec(args []string) (physics.Vec3, bool) {
	if len(args) != 3 {
		return physics.Vec3{}, false
	}
	var v [3]float64
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return physics.Vec3{}, false
		}
		v[i] = f
	}
	out := physics.Vec3{X: v[0], Y: v[1], Z: v[2]}
	return out, out.IsFinite()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
