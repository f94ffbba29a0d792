package session

import (
	"math"
	"testing"
	"time"

	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/sim/physics"
)

func TestMovement_SpeedViolationTeleportsBack(t *testing.T) {
	start := physics.Vec3{X: 0.5, Z: 0.5}
	h := newHarness(t, start)

	h.s.OnMovementPacket(moveTo(physics.Vec3{X: 20.5, Z: 0.5}))
	tps := h.out.teleports()
	if len(tps) != 1 || tps[0].TeleportID != 1 || tps[0].X != 0.5 {
		t.Fatalf("teleports=%+v", tps)
	}
	if h.player.Pos != start || h.s.LastGood() != start {
		t.Fatalf("player moved: %+v lastGood=%+v", h.player.Pos, h.s.LastGood())
	}
	if kinds := h.rec.kinds(); len(kinds) != 1 || kinds[0] != ViolationSpeed {
		t.Fatalf("violations=%v", kinds)
	}

	// While the teleport is outstanding only rotation is applied.
	m := moveTo(physics.Vec3{X: 1.5, Z: 0.5})
	m.Yaw, m.Pitch = f64(90), f64(10)
	h.s.OnMovementPacket(m)
	if h.player.Pos != start || h.player.Rot.Yaw != 90 {
		t.Fatalf("pending teleport: pos=%+v rot=%+v", h.player.Pos, h.player.Rot)
	}

	h.s.OnTeleportAck(0)
	if _, ok := h.s.PendingTeleport(); !ok {
		t.Fatalf("stale ack cleared the teleport")
	}
	h.s.OnTeleportAck(1)
	if _, ok := h.s.PendingTeleport(); ok {
		t.Fatalf("teleport still pending after ack")
	}

	h.s.OnMovementPacket(moveTo(physics.Vec3{X: 1.5, Z: 0.5}))
	if h.player.Pos.X != 1.5 || h.s.LastGood().X != 1.5 {
		t.Fatalf("move after ack not applied: %+v", h.player.Pos)
	}
}

func TestMovement_TeleportReissuedAfterTimeout(t *testing.T) {
	h := newHarness(t, physics.Vec3{X: 0.5, Z: 0.5})
	h.s.Teleport(physics.Vec3{X: 3.5, Z: 3.5}, physics.Rotation{}, 0)

	for i := 0; i < 20; i++ {
		h.s.Tick()
	}
	h.s.OnMovementPacket(moveTo(physics.Vec3{X: 3.5, Z: 3.5}))
	if n := len(h.out.teleports()); n != 1 {
		t.Fatalf("reissued before timeout: %d teleports", n)
	}
	h.s.Tick()
	h.s.OnMovementPacket(moveTo(physics.Vec3{X: 3.5, Z: 3.5}))
	tps := h.out.teleports()
	if len(tps) != 2 || tps[1].TeleportID != 2 || tps[1].X != 3.5 {
		t.Fatalf("teleports=%+v", tps)
	}
	h.s.OnTeleportAck(1)
	if _, ok := h.s.PendingTeleport(); !ok {
		t.Fatalf("obsolete id confirmed the teleport")
	}
	h.s.OnTeleportAck(2)
	if h.s.LastGood() != (physics.Vec3{X: 3.5, Z: 3.5}) {
		t.Fatalf("lastGood=%+v", h.s.LastGood())
	}
}

func TestMovement_NonFiniteDisconnects(t *testing.T) {
	h := newHarness(t, physics.Vec3{})
	m := moveTo(physics.Vec3{X: math.Inf(1)})
	h.s.OnMovementPacket(m)
	h.s.OnMovementPacket(m)
	ds := h.out.disconnects()
	if len(ds) != 1 || ds[0].Reason != protocol.ReasonInvalidPlayerMovement {
		t.Fatalf("disconnects=%+v", ds)
	}
	if got := <-h.reasons; got != protocol.ReasonInvalidPlayerMovement {
		t.Fatalf("callback reason=%q", got)
	}
	if !h.s.Closed() {
		t.Fatalf("session not closed")
	}
}

func TestTick_FloatingKicksOnce(t *testing.T) {
	h := newHarness(t, physics.Vec3{X: 0.5, Y: 5, Z: 0.5})
	hover := moveTo(physics.Vec3{X: 0.5, Y: 5, Z: 0.5})
	hover.OnGround = false

	for i := 0; i < 80; i++ {
		h.s.OnMovementPacket(hover)
		h.s.Tick()
	}
	if h.s.Closed() || h.s.FloatingTicks() != 80 {
		t.Fatalf("closed=%v floating=%d", h.s.Closed(), h.s.FloatingTicks())
	}
	for i := 0; i < 10; i++ {
		h.s.OnMovementPacket(hover)
		h.s.Tick()
	}
	ds := h.out.disconnects()
	if len(ds) != 1 || ds[0].Reason != protocol.ReasonFlying {
		t.Fatalf("disconnects=%+v", ds)
	}
}

func TestTick_FloatingResetsOnLanding(t *testing.T) {
	h := newHarness(t, physics.Vec3{X: 0.5, Y: 3, Z: 0.5})
	hover := moveTo(physics.Vec3{X: 0.5, Y: 3, Z: 0.5})
	hover.OnGround = false
	for i := 0; i < 40; i++ {
		h.s.OnMovementPacket(hover)
		h.s.Tick()
	}
	h.s.OnMovementPacket(moveTo(physics.Vec3{X: 0.5, Z: 0.5}))
	h.s.Tick()
	if h.s.FloatingTicks() != 0 || h.s.Closed() {
		t.Fatalf("floating=%d closed=%v", h.s.FloatingTicks(), h.s.Closed())
	}
}

func TestTick_FlushesBlockAcks(t *testing.T) {
	h := newHarness(t, physics.Vec3{})
	h.s.OnBlockChangeAck(3)
	h.s.OnBlockChangeAck(7)
	h.s.OnBlockChangeAck(5)
	h.s.Tick()
	h.s.Tick()
	var acks []int32
	for _, m := range h.out.all() {
		if a, ok := m.(*protocol.BlockChangedAckMsg); ok {
			acks = append(acks, a.Sequence)
		}
	}
	if len(acks) != 1 || acks[0] != 7 {
		t.Fatalf("acks=%v", acks)
	}
}

func TestTick_KeepAlive(t *testing.T) {
	h := newHarness(t, physics.Vec3{})
	h.s.Tick()
	h.clock.Advance(15 * time.Second)
	h.s.Tick()
	var ka *protocol.KeepAliveMsg
	for _, m := range h.out.all() {
		if k, ok := m.(*protocol.KeepAliveMsg); ok {
			ka = k
		}
	}
	if ka == nil {
		t.Fatalf("no keep-alive sent")
	}
	h.clock.Advance(40 * time.Millisecond)
	h.s.OnKeepAlive(ka.ID)
	if h.s.Closed() || h.s.Latency() != 10*time.Millisecond {
		t.Fatalf("closed=%v latency=%v", h.s.Closed(), h.s.Latency())
	}

	h.clock.Advance(15 * time.Second)
	h.s.Tick()
	h.clock.Advance(15 * time.Second)
	h.s.Tick()
	ds := h.out.disconnects()
	if len(ds) != 1 || ds[0].Reason != protocol.ReasonTimeout {
		t.Fatalf("disconnects=%+v", ds)
	}
}

func TestKeepAlive_WrongID(t *testing.T) {
	h := newHarness(t, physics.Vec3{})
	h.s.OnKeepAlive(42)
	if ds := h.out.disconnects(); len(ds) != 1 || ds[0].Reason != protocol.ReasonTimeout {
		t.Fatalf("disconnects=%+v", ds)
	}
}

func TestTick_IdleKick(t *testing.T) {
	h := newHarness(t, physics.Vec3{}, func(c *Config) { c.Tuning.IdleTimeoutTicks = 5 })
	for i := 0; i < 5; i++ {
		h.s.Tick()
	}
	if h.s.Closed() {
		t.Fatalf("kicked too early")
	}
	h.s.Tick()
	if ds := h.out.disconnects(); len(ds) != 1 || ds[0].Reason != protocol.ReasonIdling {
		t.Fatalf("disconnects=%+v", ds)
	}
}

func TestVehicle_WrongMoveSnapsBack(t *testing.T) {
	h := newHarness(t, physics.Vec3{X: 0.5, Z: 0.5})
	h.grid.Set(physics.BlockPos{2, 0, 0}, true)
	v := &fakeVehicle{Body: &physics.Body{Pos: physics.Vec3{X: 0.5, Z: 0.5}, Width: 1, Height: 1, Grav: 0.04}, id: "boat-1"}
	h.player.vehicle = v

	// No link until the tick has seen the vehicle.
	h.s.OnVehicleMovementPacket(&protocol.MoveVehicleMsg{X: 1.5, Z: 0.5})
	if v.Pos.X != 0.5 {
		t.Fatalf("vehicle moved without a link")
	}
	h.s.Tick()
	h.s.OnVehicleMovementPacket(&protocol.MoveVehicleMsg{X: 2.5, Z: 0.5})
	var pose *protocol.VehiclePoseMsg
	for _, m := range h.out.all() {
		if p, ok := m.(*protocol.VehiclePoseMsg); ok {
			pose = p
		}
	}
	if pose == nil || pose.X != 0.5 || v.Pos.X != 0.5 {
		t.Fatalf("pose=%+v vehicle=%+v", pose, v.Pos)
	}
	if kinds := h.rec.kinds(); len(kinds) != 1 || kinds[0] != ViolationVehicleWrongMove {
		t.Fatalf("violations=%v", kinds)
	}

	h.s.OnVehicleMovementPacket(&protocol.MoveVehicleMsg{X: 1.5, Z: 0.5})
	if v.Pos.X != 1.5 {
		t.Fatalf("valid vehicle move rejected: %+v", v.Pos)
	}
	if got := h.player.Position(); got != v.Pos {
		t.Fatalf("passenger did not follow vehicle: player=%+v vehicle=%+v", got, v.Pos)
	}
}

func TestDisconnect_RecordsOnce(t *testing.T) {
	h := newHarness(t, physics.Vec3{})
	h.s.Disconnect(protocol.ReasonQuit, "bye")
	h.s.Disconnect(protocol.ReasonTimeout, "")
	h.s.Tick()
	if len(h.rec.disconnects) != 1 || h.rec.disconnects[0].Reason != protocol.ReasonQuit {
		t.Fatalf("disconnects=%+v", h.rec.disconnects)
	}
	if len(h.out.all()) != 1 {
		t.Fatalf("messages after disconnect: %+v", h.out.all())
	}
}
