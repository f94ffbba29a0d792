package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxelsession.ai/internal/chat"
	"voxelsession.ai/internal/metrics"
	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/session"
	"voxelsession.ai/internal/sim/physics"
	"voxelsession.ai/internal/sim/tuning"
)

type Config struct {
	Tuning    tuning.Tuning
	Grid      *physics.Grid
	Spawn     physics.Vec3
	Operators []string

	Keys     chat.KeyProvider
	Filter   chat.TextFilter
	Recorder session.Recorder
	Metrics  *metrics.Metrics

	Now func() time.Time
	Log *zap.Logger
}

// JoinRequest is sent by the transport once a client completed HELLO.
// Send must not block and must be safe for concurrent use.
type JoinRequest struct {
	Name         string
	Send         func(v any)
	OnDisconnect func(reason string)
	Resp         chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Session *session.Session
}

// Envelope is one decoded packet routed to the hub goroutine.
type Envelope struct {
	PlayerID uuid.UUID
	Msg      any
}

type commandReq struct {
	playerID uuid.UUID
	command  string
}

type member struct {
	s      *session.Session
	avatar *Avatar
	send   func(v any)

	chunkX, chunkZ int
	hasChunk       bool
}

// Hub owns every session and runs their handlers and ticks on a single
// goroutine. Chat packets bypass it and go straight to the session.
type Hub struct {
	cfg       Config
	log       *zap.Logger
	operators map[string]bool

	join     chan JoinRequest
	leave    chan uuid.UUID
	inbox    chan Envelope
	commands chan commandReq
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once

	tick  atomic.Uint64
	count atomic.Int64

	// mu guards members and byID. Only the hub goroutine writes them;
	// chat broadcasts read them from dispatch goroutines.
	mu      sync.RWMutex
	members []*member
	byID    map[uuid.UUID]*member
}

func New(cfg Config) *Hub {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Grid == nil {
		cfg.Grid = physics.NewGrid()
	}
	if cfg.Tuning.TickRateHz <= 0 {
		cfg.Tuning = tuning.Defaults()
	}
	ops := make(map[string]bool, len(cfg.Operators))
	for _, name := range cfg.Operators {
		ops[name] = true
	}
	return &Hub{
		cfg:       cfg,
		log:       cfg.Log,
		operators: ops,
		join:      make(chan JoinRequest, 64),
		leave:     make(chan uuid.UUID, 64),
		inbox:     make(chan Envelope, 1024),
		commands:  make(chan commandReq, 256),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		byID:      map[uuid.UUID]*member{},
	}
}

func (h *Hub) Join() chan<- JoinRequest { return h.join }
func (h *Hub) Leave() chan<- uuid.UUID  { return h.leave }
func (h *Hub) Sessions() int            { return int(h.count.Load()) }
func (h *Hub) Tick() uint64             { return h.tick.Load() }
func (h *Hub) TickRateHz() int          { return h.cfg.Tuning.TickRateHz }

// Run processes queued joins, leaves and packets once per tick until ctx
// is done or Stop is called. Remaining sessions are closed on return.
func (h *Hub) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(h.cfg.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer h.doneOnce.Do(func() { close(h.done) })
	defer h.closeAll()

	var pendingJoins []JoinRequest
	var pendingLeaves []uuid.UUID
	var pendingPackets []Envelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.stop:
			return nil
		case req := <-h.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-h.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-h.inbox:
			pendingPackets = append(pendingPackets, env)
		case <-ticker.C:
			h.step(pendingJoins, pendingLeaves, pendingPackets)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingPackets = pendingPackets[:0]
		}
	}
}

func (h *Hub) Stop() { h.stopOnce.Do(func() { close(h.stop) }) }

// Deliver queues a packet for the next tick without blocking. It reports
// false when the inbox is full or the hub is no longer running.
func (h *Hub) Deliver(env Envelope) bool {
	select {
	case <-h.done:
		return false
	case <-h.stop:
		return false
	default:
	}
	select {
	case h.inbox <- env:
		return true
	default:
		return false
	}
}

// StepOnce advances the hub by a single tick with the same ordering as
// Run. It is meant for tests and must not be mixed with Run.
func (h *Hub) StepOnce(joins []JoinRequest, leaves []uuid.UUID, packets []Envelope) uint64 {
	tick := h.tick.Load()
	h.step(joins, leaves, packets)
	return tick
}

func (h *Hub) step(joins []JoinRequest, leaves []uuid.UUID, packets []Envelope) {
	start := time.Now()
	for _, req := range joins {
		h.handleJoin(req)
	}
	for _, id := range leaves {
		if m := h.byID[id]; m != nil {
			m.s.Disconnect(protocol.ReasonQuit, "")
		}
	}
	h.drainCommands()
	for _, env := range packets {
		m := h.byID[env.PlayerID]
		if m == nil || m.s.Closed() {
			continue
		}
		h.guard(m, "packet", func() { h.route(m, env.Msg) })
	}

	depth := 0
	for _, m := range h.members {
		h.guard(m, "tick", m.s.Tick)
		depth += m.s.DispatchDepth()
	}
	h.sweep()
	h.tick.Add(1)
	h.cfg.Metrics.RecordTick(time.Since(start).Seconds(), depth)
}

func (h *Hub) handleJoin(req JoinRequest) {
	id := uuid.New()
	name := req.Name
	if name == "" {
		name = "player"
	}
	av := newAvatar(h.cfg.Spawn, h.operators[name])
	m := &member{avatar: av, send: req.Send}
	onDisconnect := req.OnDisconnect
	m.s = session.New(session.Config{
		ID:          id,
		Name:        name,
		Player:      av,
		Oracle:      h.cfg.Grid,
		Tuning:      h.cfg.Tuning,
		Keys:        h.cfg.Keys,
		Filter:      h.cfg.Filter,
		Broadcaster: h,
		Commands:    h,
		Chunks:      h,
		Recorder:    h.cfg.Recorder,
		Send:        req.Send,
		Now:         h.cfg.Now,
		Log:         h.log.Named("session"),
		OnDisconnect: func(_ *session.Session, reason string) {
			if onDisconnect != nil {
				onDisconnect(reason)
			}
		},
	})

	h.mu.Lock()
	h.members = append(h.members, m)
	h.byID[id] = m
	h.mu.Unlock()
	h.count.Add(1)
	h.cfg.Metrics.RecordJoin()
	h.log.Info("player joined", zap.String("player_id", id.String()), zap.String("name", name))

	if req.Resp != nil {
		req.Resp <- JoinResponse{
			Welcome: protocol.WelcomeMsg{
				Type:            protocol.TypeWelcome,
				ProtocolVersion: protocol.Version,
				PlayerID:        id.String(),
				Spawn:           h.cfg.Spawn.ToArray(),
				TickRateHz:      h.cfg.Tuning.TickRateHz,
			},
			Session: m.s,
		}
	}
	m.s.Teleport(h.cfg.Spawn, physics.Rotation{}, 0)
	h.Recenter(m.s, h.cfg.Spawn)
}

// guard isolates one session's handler: a panic disconnects only that
// session.
func (h *Hub) guard(m *member, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("session handler panicked",
				zap.String("player_id", m.s.ID().String()),
				zap.String("handler", what),
				zap.Any("panic", r))
			m.s.Disconnect(protocol.ReasonInternal, fmt.Sprint(r))
		}
	}()
	fn()
}

func (h *Hub) route(m *member, msg any) {
	s := m.s
	switch p := msg.(type) {
	case *protocol.MovePlayerMsg:
		s.OnMovementPacket(p)
	case *protocol.MoveVehicleMsg:
		s.OnVehicleMovementPacket(p)
	case *protocol.TeleportAckMsg:
		s.OnTeleportAck(p.TeleportID)
	case *protocol.BlockActionMsg:
		h.applyBlockAction(m, p)
	case *protocol.KeepAliveMsg:
		s.OnKeepAlive(p.ID)
	default:
		h.log.Debug("unexpected packet on hub", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (h *Hub) sweep() {
	var closed []*member
	for _, m := range h.members {
		if m.s.Closed() {
			closed = append(closed, m)
		}
	}
	if len(closed) == 0 {
		return
	}
	h.mu.Lock()
	kept := h.members[:0]
	for _, m := range h.members {
		if m.s.Closed() {
			delete(h.byID, m.s.ID())
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(h.members); i++ {
		h.members[i] = nil
	}
	h.members = kept
	h.mu.Unlock()
	for _, m := range closed {
		h.count.Add(-1)
		h.cfg.Metrics.RecordLeave()
		h.log.Info("player left", zap.String("player_id", m.s.ID().String()), zap.String("name", m.s.Name()))
	}
}

func (h *Hub) closeAll() {
	for _, m := range h.members {
		m.s.Disconnect(protocol.ReasonServerClosing, "")
	}
	h.sweep()
}

func (h *Hub) snapshot() []*member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*member(nil), h.members...)
}
