package teleport

import (
	"math"
	"sync"

	"voxelsession.ai/internal/sim/physics"
)

// Relative marks the teleport components the client applies as offsets
// from its current pose.
type Relative uint8

const (
	RelX Relative = 1 << iota
	RelY
	RelZ
	RelYaw
	RelPitch
)

var relNames = []struct {
	f    Relative
	name string
}{
	{RelX, "X"}, {RelY, "Y"}, {RelZ, "Z"}, {RelYaw, "YAW"}, {RelPitch, "PITCH"},
}

func (r Relative) Names() []string {
	var out []string
	for _, n := range relNames {
		if r&n.f != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

type Pose struct {
	Pos physics.Vec3
	Rot physics.Rotation
}

type Request struct {
	ID int32
	// Target is the absolute pose the client must confirm.
	Target Pose
	// Wire is the pose as sent: components flagged in Relative are offsets.
	Wire     Pose
	Relative Relative
	IssuedAt uint64
}

// Sequencer owns the single outstanding teleport of a connection.
type Sequencer struct {
	mu      sync.Mutex
	last    int32
	pending *Request
	closed  bool
	timeout uint64
}

func NewSequencer(timeoutTicks int) *Sequencer {
	if timeoutTicks <= 0 {
		timeoutTicks = 20
	}
	return &Sequencer{timeout: uint64(timeoutTicks)}
}

func (s *Sequencer) nextID() int32 {
	if s.last == math.MaxInt32 {
		s.last = 0
	} else {
		s.last++
	}
	return s.last
}

// Issue supersedes any outstanding teleport. from is the pose relative
// components are resolved against.
func (s *Sequencer) Issue(from, to Pose, rel Relative, tick uint64) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issue(from, to, rel, tick)
}

func (s *Sequencer) issue(from, to Pose, rel Relative, tick uint64) (Request, bool) {
	if s.closed {
		return Request{}, false
	}
	target := to
	if rel&RelX != 0 {
		target.Pos.X += from.Pos.X
	}
	if rel&RelY != 0 {
		target.Pos.Y += from.Pos.Y
	}
	if rel&RelZ != 0 {
		target.Pos.Z += from.Pos.Z
	}
	if rel&RelYaw != 0 {
		target.Rot.Yaw += from.Rot.Yaw
	}
	if rel&RelPitch != 0 {
		target.Rot.Pitch += from.Rot.Pitch
	}
	req := Request{ID: s.nextID(), Target: target, Wire: to, Relative: rel, IssuedAt: tick}
	s.pending = &req
	return req, true
}

// Acknowledge clears the outstanding teleport if id is current and returns
// it. Any other id is stale and ignored.
func (s *Sequencer) Acknowledge(id int32) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending == nil || s.pending.ID != id {
		return Request{}, false
	}
	req := *s.pending
	s.pending = nil
	return req, true
}

func (s *Sequencer) Pending() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Request{}, false
	}
	return *s.pending, true
}

func (s *Sequencer) Expired(tick uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil && tick-s.pending.IssuedAt > s.timeout
}

// Reissue resends the outstanding target under a fresh id, keeping rot as
// the client's current facing.
func (s *Sequencer) Reissue(rot physics.Rotation, tick uint64) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending == nil {
		return Request{}, false
	}
	to := Pose{Pos: s.pending.Target.Pos, Rot: rot}
	return s.issue(to, to, 0, tick)
}

// Invalidate drops the outstanding teleport and ignores everything after.
func (s *Sequencer) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
}

func (s *Sequencer) LastID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
