package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"voxelsession.ai/internal/chat"
	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/session/movement"
	"voxelsession.ai/internal/sim/physics"
	"voxelsession.ai/internal/sim/tuning"
)

type fakePlayer struct {
	*physics.Body
	cond    movement.Conditions
	vehicle Vehicle
	op      bool
	owner   bool
	hidden  bool
}

func (p *fakePlayer) Conditions() movement.Conditions { return p.cond }
func (p *fakePlayer) ControlledVehicle() Vehicle      { return p.vehicle }
func (p *fakePlayer) Operator() bool                  { return p.op }
func (p *fakePlayer) SingleplayerOwner() bool         { return p.owner }
func (p *fakePlayer) ChatHidden() bool                { return p.hidden }

type fakeVehicle struct {
	*physics.Body
	id string
}

func (v *fakeVehicle) ID() string                      { return v.id }
func (v *fakeVehicle) Conditions() movement.Conditions { return movement.Conditions{} }

type sink struct {
	mu   sync.Mutex
	msgs []any
	ch   chan any
}

func newSink() *sink { return &sink{ch: make(chan any, 8192)} }

func (k *sink) send(v any) {
	k.mu.Lock()
	k.msgs = append(k.msgs, v)
	k.mu.Unlock()
	select {
	case k.ch <- v:
	default:
	}
}

func (k *sink) all() []any {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]any(nil), k.msgs...)
}

func (k *sink) teleports() []*protocol.TeleportMsg {
	var out []*protocol.TeleportMsg
	for _, m := range k.all() {
		if tp, ok := m.(*protocol.TeleportMsg); ok {
			out = append(out, tp)
		}
	}
	return out
}

func (k *sink) disconnects() []*protocol.DisconnectMsg {
	var out []*protocol.DisconnectMsg
	for _, m := range k.all() {
		if d, ok := m.(*protocol.DisconnectMsg); ok {
			out = append(out, d)
		}
	}
	return out
}

// waitFor reads from the sink until match returns true.
func (k *sink) waitFor(t *testing.T, match func(any) bool) any {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v := <-k.ch:
			if match(v) {
				return v
			}
		case <-timeout:
			t.Fatalf("timed out waiting for message")
			return nil
		}
	}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu          sync.Mutex
	violations  []Violation
	disconnects []DisconnectRecord
}

func (r *recorder) RecordViolation(v Violation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, v)
}

func (r *recorder) RecordDisconnect(d DisconnectRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects = append(r.disconnects, d)
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, v := range r.violations {
		out = append(out, v.Kind)
	}
	return out
}

type harness struct {
	s       *Session
	player  *fakePlayer
	out     *sink
	clock   *clock
	rec     *recorder
	grid    *physics.Grid
	reasons chan string
}

type option func(*Config)

func newHarness(t *testing.T, pos physics.Vec3, opts ...option) *harness {
	t.Helper()
	g := physics.NewGrid()
	g.Floor(-1, 32)
	h := &harness{
		player:  &fakePlayer{Body: physics.NewPlayerBody(pos)},
		out:     newSink(),
		clock:   &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		rec:     &recorder{},
		grid:    g,
		reasons: make(chan string, 4),
	}
	cfg := Config{
		ID:       uuid.New(),
		Name:     "tester",
		Player:   h.player,
		Oracle:   g,
		Tuning:   tuning.Defaults(),
		Filter:   chat.PassThrough{},
		Recorder: h.rec,
		Send:     h.out.send,
		Now:      h.clock.Now,
		Log:      zaptest.NewLogger(t),
		OnDisconnect: func(_ *Session, reason string) {
			h.reasons <- reason
		},
	}
	for _, o := range opts {
		o(&cfg)
	}
	h.s = New(cfg)
	t.Cleanup(func() { h.s.Disconnect(protocol.ReasonQuit, "") })
	return h
}

func f64(v float64) *float64 { return &v }

func moveTo(pos physics.Vec3) *protocol.MovePlayerMsg {
	return &protocol.MovePlayerMsg{Type: protocol.TypeMovePlayer, X: f64(pos.X), Y: f64(pos.Y), Z: f64(pos.Z), OnGround: true}
}
