package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/session"
	"voxelsession.ai/internal/sim/physics"
	"voxelsession.ai/internal/sim/tuning"
)

type outbox struct {
	mu   sync.Mutex
	msgs []any
	ch   chan any
}

func newOutbox() *outbox { return &outbox{ch: make(chan any, 1024)} }

func (o *outbox) send(v any) {
	o.mu.Lock()
	o.msgs = append(o.msgs, v)
	o.mu.Unlock()
	select {
	case o.ch <- v:
	default:
	}
}

func (o *outbox) all() []any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]any(nil), o.msgs...)
}

func (o *outbox) last(match func(any) bool) any {
	msgs := o.all()
	for i := len(msgs) - 1; i >= 0; i-- {
		if match(msgs[i]) {
			return msgs[i]
		}
	}
	return nil
}

func (o *outbox) systemText() string {
	if v := o.last(func(v any) bool { _, ok := v.(*protocol.SystemChatMsg); return ok }); v != nil {
		return v.(*protocol.SystemChatMsg).Text
	}
	return ""
}

func (o *outbox) disconnect() *protocol.DisconnectMsg {
	if v := o.last(func(v any) bool { _, ok := v.(*protocol.DisconnectMsg); return ok }); v != nil {
		return v.(*protocol.DisconnectMsg)
	}
	return nil
}

var spawn = physics.Vec3{X: 0.5, Z: 0.5}

func newTestHub(t *testing.T, mutate ...func(*Config)) *Hub {
	t.Helper()
	g := physics.NewGrid()
	g.Floor(-1, 16)
	cfg := Config{
		Tuning:    tuning.Defaults(),
		Grid:      g,
		Spawn:     spawn,
		Operators: []string{"admin"},
		Log:       zaptest.NewLogger(t),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	h := New(cfg)
	t.Cleanup(h.closeAll)
	return h
}

func join(t *testing.T, h *Hub, name string) (*session.Session, *outbox) {
	t.Helper()
	out := newOutbox()
	resp := make(chan JoinResponse, 1)
	h.StepOnce([]JoinRequest{{Name: name, Send: out.send, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Welcome.PlayerID != r.Session.ID().String() || r.Welcome.TickRateHz != 20 {
		t.Fatalf("welcome=%+v", r.Welcome)
	}
	return r.Session, out
}

func env(s *session.Session, msg any) Envelope { return Envelope{PlayerID: s.ID(), Msg: msg} }

func f64(v float64) *float64 { return &v }

func TestHub_JoinTeleportsToSpawn(t *testing.T) {
	h := newTestHub(t)
	s, out := join(t, h, "alice")
	if h.Sessions() != 1 {
		t.Fatalf("sessions=%d", h.Sessions())
	}
	msgs := out.all()
	if len(msgs) < 2 {
		t.Fatalf("msgs=%+v", msgs)
	}
	tp, ok := msgs[0].(*protocol.TeleportMsg)
	if !ok || tp.TeleportID != 1 || tp.X != spawn.X || tp.Z != spawn.Z {
		t.Fatalf("first message=%+v", msgs[0])
	}
	if cc, ok := msgs[1].(*protocol.ChunkCenterMsg); !ok || cc.X != 0 || cc.Z != 0 {
		t.Fatalf("second message=%+v", msgs[1])
	}

	h.StepOnce(nil, nil, []Envelope{
		env(s, &protocol.TeleportAckMsg{TeleportID: 1}),
		env(s, &protocol.MovePlayerMsg{X: f64(1.5), Y: f64(0), Z: f64(0.5), OnGround: true}),
	})
	if got := s.Player().Position(); got.X != 1.5 || s.LastGood().X != 1.5 {
		t.Fatalf("position=%+v", got)
	}
}

func TestHub_ChunkCenterOnCrossing(t *testing.T) {
	h := newTestHub(t)
	s, out := join(t, h, "alice")
	h.StepOnce(nil, nil, []Envelope{env(s, &protocol.TeleportAckMsg{TeleportID: 1})})
	h.StepOnce(nil, nil, []Envelope{env(s, &protocol.MovePlayerMsg{X: f64(-0.5), Y: f64(0), Z: f64(0.5), OnGround: true})})
	v := out.last(func(v any) bool { _, ok := v.(*protocol.ChunkCenterMsg); return ok })
	if cc := v.(*protocol.ChunkCenterMsg); cc.X != -1 || cc.Z != 0 {
		t.Fatalf("chunk center=%+v", cc)
	}
}

func TestHub_PanicDisconnectsOnlyThatSession(t *testing.T) {
	h := newTestHub(t)
	a, outA := join(t, h, "alice")
	b, _ := join(t, h, "bob")

	h.StepOnce(nil, nil, []Envelope{
		env(a, &protocol.BlockActionMsg{Sequence: -1, Action: protocol.ActionBreak, Pos: [3]int{0, -1, 0}}),
	})
	if d := outA.disconnect(); d == nil || d.Reason != protocol.ReasonInternal {
		t.Fatalf("disconnect=%+v", d)
	}
	if !a.Closed() || b.Closed() {
		t.Fatalf("a closed=%v b closed=%v", a.Closed(), b.Closed())
	}
	if h.Sessions() != 1 {
		t.Fatalf("sessions=%d", h.Sessions())
	}
}

func TestHub_BlockActionsAreAcked(t *testing.T) {
	h := newTestHub(t)
	s, out := join(t, h, "alice")
	target := physics.BlockPos{2, 0, 0}
	far := physics.BlockPos{12, 0, 0}

	h.StepOnce(nil, nil, []Envelope{
		env(s, &protocol.BlockActionMsg{Sequence: 4, Action: protocol.ActionPlace, Pos: target}),
		env(s, &protocol.BlockActionMsg{Sequence: 9, Action: protocol.ActionPlace, Pos: far}),
		env(s, &protocol.BlockActionMsg{Sequence: 6, Action: protocol.ActionBreak, Pos: [3]int{0, -1, 3}}),
	})
	if !h.cfg.Grid.Solid(target) || h.cfg.Grid.Solid(far) || h.cfg.Grid.Solid(physics.BlockPos{0, -1, 3}) {
		t.Fatalf("grid not updated as expected")
	}
	var acks []int32
	for _, m := range out.all() {
		if a, ok := m.(*protocol.BlockChangedAckMsg); ok {
			acks = append(acks, a.Sequence)
		}
	}
	if len(acks) != 1 || acks[0] != 9 {
		t.Fatalf("acks=%v", acks)
	}
}

func TestHub_PlaceRefusedInsidePlayer(t *testing.T) {
	h := newTestHub(t)
	s, _ := join(t, h, "alice")
	h.StepOnce(nil, nil, []Envelope{
		env(s, &protocol.BlockActionMsg{Sequence: 1, Action: protocol.ActionPlace, Pos: [3]int{0, 1, 0}}),
	})
	if h.cfg.Grid.Solid(physics.BlockPos{0, 1, 0}) {
		t.Fatalf("block placed inside the player")
	}
}

func TestHub_LeaveClosesSession(t *testing.T) {
	h := newTestHub(t)
	s, out := join(t, h, "alice")
	h.StepOnce(nil, []uuid.UUID{s.ID()}, nil)
	if d := out.disconnect(); d == nil || d.Reason != protocol.ReasonQuit {
		t.Fatalf("disconnect=%+v", d)
	}
	if h.Sessions() != 0 {
		t.Fatalf("sessions=%d", h.Sessions())
	}
}

func TestHub_Commands(t *testing.T) {
	h := newTestHub(t)
	user, userOut := join(t, h, "bob")
	admin, _ := join(t, h, "admin")

	h.Dispatch(user, "/tp 5 0 5")
	h.Dispatch(admin, "tp 5.5 0 5.5")
	h.StepOnce(nil, nil, nil)
	if userOut.systemText() != "permission denied" {
		t.Fatalf("user notice=%q", userOut.systemText())
	}
	if got := admin.Player().Position(); got.X != 5.5 || got.Z != 5.5 {
		t.Fatalf("admin position=%+v", got)
	}
	tp, ok := admin.PendingTeleport()
	if !ok || tp.ID != 2 {
		t.Fatalf("pending=%+v ok=%v", tp, ok)
	}

	h.Dispatch(user, "boat")
	h.StepOnce(nil, nil, nil)
	if user.Player().ControlledVehicle() == nil {
		t.Fatalf("boat not boarded")
	}
	h.Dispatch(user, "chat off")
	h.Dispatch(user, "dance")
	h.StepOnce(nil, nil, nil)
	if !user.Player().ChatHidden() || userOut.systemText() != "unknown command: dance" {
		t.Fatalf("hidden=%v notice=%q", user.Player().ChatHidden(), userOut.systemText())
	}
}

func TestHub_ChatReachesOtherSessions(t *testing.T) {
	h := newTestHub(t, func(c *Config) { c.Tuning.Chat.EnforceSecureChat = false })
	a, _ := join(t, h, "alice")
	_, outB := join(t, h, "bob")

	a.OnChatPacket(&protocol.ChatMsg{Type: protocol.TypeChat, Message: "hello bob", Timestamp: time.Now().UnixMilli()})
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-outB.ch:
			if pc, ok := v.(*protocol.PlayerChatMsg); ok {
				if pc.Body.Content != "hello bob" || pc.Sender != a.ID().String() {
					t.Fatalf("chat=%+v", pc)
				}
				return
			}
		case <-deadline:
			t.Fatalf("chat not delivered")
		}
	}
}

func TestHub_RunStopsAndClosesSessions(t *testing.T) {
	h := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	out := newOutbox()
	resp := make(chan JoinResponse, 1)
	h.Join() <- JoinRequest{Name: "alice", Send: out.send, Resp: resp}
	var r JoinResponse
	select {
	case r = <-resp:
	case <-time.After(2 * time.Second):
		t.Fatalf("join not processed")
	}

	h.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return")
	}
	if !r.Session.Closed() {
		t.Fatalf("session still open")
	}
	if d := out.disconnect(); d == nil || d.Reason != protocol.ReasonServerClosing {
		t.Fatalf("disconnect=%+v", d)
	}
}

func TestDeliver_NeverBlocks(t *testing.T) {
	h := newTestHub(t)
	id := uuid.New()
	for i := 0; i < cap(h.inbox); i++ {
		if !h.Deliver(Envelope{PlayerID: id, Msg: &protocol.KeepAliveMsg{ID: int64(i)}}) {
			t.Fatalf("deliver %d refused with room in the inbox", i)
		}
	}
	if h.Deliver(Envelope{PlayerID: id}) {
		t.Fatalf("deliver accepted into a full inbox")
	}

	h2 := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h2.Run(ctx); err != context.Canceled {
		t.Fatalf("Run: %v", err)
	}
	if h2.Deliver(Envelope{PlayerID: id}) {
		t.Fatalf("deliver accepted after Run returned")
	}
}
