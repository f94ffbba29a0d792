package teleport

import (
	"math"
	"reflect"
	"testing"

	"voxelsession.ai/internal/sim/physics"
)

func TestIssue_MonotonicIDsWrap(t *testing.T) {
	s := NewSequencer(20)
	s.last = math.MaxInt32 - 2
	var got []int32
	for i := 0; i < 4; i++ {
		req, ok := s.Issue(Pose{}, Pose{}, 0, 0)
		if !ok {
			t.Fatalf("issue failed")
		}
		got = append(got, req.ID)
	}
	want := []int32{math.MaxInt32 - 1, math.MaxInt32, 0, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ids=%v want %v", got, want)
	}

	fresh := NewSequencer(20)
	if req, _ := fresh.Issue(Pose{}, Pose{}, 0, 0); req.ID != 1 {
		t.Fatalf("first id: %d", req.ID)
	}
}

func TestAcknowledge_OnlyCurrent(t *testing.T) {
	s := NewSequencer(20)
	first, _ := s.Issue(Pose{}, Pose{Pos: physics.Vec3{X: 1}}, 0, 0)
	second, _ := s.Issue(Pose{}, Pose{Pos: physics.Vec3{X: 2}}, 0, 1)

	if _, ok := s.Acknowledge(first.ID); ok {
		t.Fatalf("stale ack accepted")
	}
	if _, ok := s.Pending(); !ok {
		t.Fatalf("stale ack cleared pending")
	}
	req, ok := s.Acknowledge(second.ID)
	if !ok || req.Target.Pos.X != 2 {
		t.Fatalf("ack current: ok=%v req=%+v", ok, req)
	}
	if _, ok := s.Acknowledge(second.ID); ok {
		t.Fatalf("duplicate ack accepted")
	}
	if _, ok := s.Pending(); ok {
		t.Fatalf("pending not cleared")
	}
}

func TestReissue_AfterTimeout(t *testing.T) {
	s := NewSequencer(20)
	orig, _ := s.Issue(Pose{}, Pose{Pos: physics.Vec3{Y: 64}}, 0, 100)
	if s.Expired(120) {
		t.Fatalf("expired at exactly the timeout")
	}
	if !s.Expired(121) {
		t.Fatalf("not expired after timeout")
	}
	re, ok := s.Reissue(physics.Rotation{Yaw: 90}, 121)
	if !ok || re.ID == orig.ID || re.Target.Pos != orig.Target.Pos || re.Target.Rot.Yaw != 90 || re.IssuedAt != 121 {
		t.Fatalf("reissue: %+v", re)
	}
	if _, ok := s.Acknowledge(orig.ID); ok {
		t.Fatalf("obsolete id confirmed")
	}
	if _, ok := s.Acknowledge(re.ID); !ok {
		t.Fatalf("reissued id rejected")
	}
}

func TestIssue_RelativeResolvesTarget(t *testing.T) {
	s := NewSequencer(20)
	from := Pose{Pos: physics.Vec3{X: 10, Y: 64, Z: -5}, Rot: physics.Rotation{Yaw: 30}}
	req, _ := s.Issue(from, Pose{Pos: physics.Vec3{X: 1, Y: 70, Z: 1}, Rot: physics.Rotation{Yaw: 15}}, RelX|RelZ|RelYaw, 0)
	if req.Target.Pos != (physics.Vec3{X: 11, Y: 70, Z: -4}) || req.Target.Rot.Yaw != 45 {
		t.Fatalf("target: %+v", req.Target)
	}
	if req.Wire.Pos.X != 1 {
		t.Fatalf("wire pose changed: %+v", req.Wire)
	}
	if names := req.Relative.Names(); !reflect.DeepEqual(names, []string{"X", "Z", "YAW"}) {
		t.Fatalf("names: %v", names)
	}
}

func TestInvalidate_IgnoresLateAcks(t *testing.T) {
	s := NewSequencer(20)
	req, _ := s.Issue(Pose{}, Pose{}, 0, 0)
	s.Invalidate()
	if _, ok := s.Acknowledge(req.ID); ok {
		t.Fatalf("ack after invalidate")
	}
	if _, ok := s.Issue(Pose{}, Pose{}, 0, 0); ok {
		t.Fatalf("issue after invalidate")
	}
}
