package movement

import "voxelsession.ai/internal/sim/physics"

// Track is the per-connection movement bookkeeping for one mover (the
// player, or the vehicle it controls).
type Track struct {
	// FirstGood is the position at the start of the current tick.
	FirstGood physics.Vec3
	// LastGood is the last position the server accepted.
	LastGood physics.Vec3

	Received int
	Known    int

	Floating      bool
	FloatingTicks int
}

func NewTrack(pos physics.Vec3) *Track {
	return &Track{FirstGood: pos, LastGood: pos}
}

// Reset re-anchors the track at pos; called once per tick.
func (t *Track) Reset(pos physics.Vec3) {
	t.FirstGood = pos
	t.LastGood = pos
	t.Known = t.Received
}

// Commit records an authoritative position (accepted move or teleport ack).
func (t *Track) Commit(pos physics.Vec3) {
	t.LastGood = pos
}
