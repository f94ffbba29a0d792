package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxelsession.ai/internal/chat"
	"voxelsession.ai/internal/dispatch"
	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/session/ack"
	"voxelsession.ai/internal/session/movement"
	"voxelsession.ai/internal/session/teleport"
	"voxelsession.ai/internal/sim/physics"
	"voxelsession.ai/internal/sim/tuning"
)

// Player is the server-side entity a session controls. Operator,
// SingleplayerOwner and ChatHidden are also called from the chat
// goroutine and must be safe for concurrent use.
type Player interface {
	movement.Mover
	Conditions() movement.Conditions
	// ControlledVehicle is the vehicle the player is driving, or nil.
	ControlledVehicle() Vehicle
	Operator() bool
	SingleplayerOwner() bool
	ChatHidden() bool
}

type Vehicle interface {
	movement.Mover
	ID() string
	Conditions() movement.Conditions
}

// Broadcaster fans chat out to every connected session.
type Broadcaster interface {
	BroadcastChat(from *Session, msg chat.Message)
	BroadcastInfo(info protocol.PlayerInfoMsg)
}

type CommandDispatcher interface {
	Dispatch(from *Session, command string)
}

// ChunkTracker re-centers chunk loading after a committed move.
type ChunkTracker interface {
	Recenter(s *Session, pos physics.Vec3)
}

type Violation struct {
	PlayerID string
	Name     string
	Kind     string
	Tick     uint64
	Pos      physics.Vec3
	Moved    float64
	At       time.Time
}

type DisconnectRecord struct {
	PlayerID string
	Name     string
	Reason   string
	Detail   string
	Tick     uint64
	At       time.Time
}

// Recorder receives physics violations and disconnects for audit.
type Recorder interface {
	RecordViolation(v Violation)
	RecordDisconnect(d DisconnectRecord)
}

// Recorders fans every record out to each recorder in order.
type Recorders []Recorder

func (rs Recorders) RecordViolation(v Violation) {
	for _, r := range rs {
		r.RecordViolation(v)
	}
}

func (rs Recorders) RecordDisconnect(d DisconnectRecord) {
	for _, r := range rs {
		r.RecordDisconnect(d)
	}
}

// DisconnectError is raised by validation layers and turned into a
// disconnect at the packet handler boundary.
type DisconnectError struct {
	Reason string
	Detail string
}

func (e *DisconnectError) Error() string {
	if e.Detail == "" {
		return "disconnect: " + e.Reason
	}
	return "disconnect: " + e.Reason + ": " + e.Detail
}

type Config struct {
	ID     uuid.UUID
	Name   string
	Player Player
	Oracle physics.Oracle
	Tuning tuning.Tuning

	Keys        chat.KeyProvider
	Filter      chat.TextFilter
	Broadcaster Broadcaster
	Commands    CommandDispatcher
	Chunks      ChunkTracker
	Recorder    Recorder

	// Send delivers one outbound message. It must not block and must be
	// safe to call from any goroutine.
	Send         func(v any)
	OnDisconnect func(s *Session, reason string)
	Now          func() time.Time
	Log          *zap.Logger
}

type vehicleLink struct {
	id    string
	track *movement.Track
}

// Session is the protocol state of one connected player. Movement,
// teleport, block acks, keep-alive and Tick run on the hub goroutine;
// chat handlers run on the connection's reader goroutine.
type Session struct {
	cfg  Config
	id   uuid.UUID
	name string
	log  *zap.Logger

	player    Player
	moves     *movement.Reconciler
	track     *movement.Track
	vehicle   *vehicleLink
	teleports *teleport.Sequencer
	acks      *ack.Tracker

	chat  *chat.Authenticator
	chain *dispatch.Chain
	// outMu makes tracking an outgoing chat and delivering it one step, so
	// the client sees messages in the order the last-seen window holds them.
	outMu sync.Mutex

	tick       atomic.Uint64
	lastAction atomic.Uint64

	keepAlivePending bool
	keepAliveID      int64
	keepAliveAt      time.Time
	latencyMs        int64

	closed atomic.Bool
	once   sync.Once
}

func New(cfg Config) *Session {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Filter == nil {
		cfg.Filter = chat.PassThrough{}
	}
	if cfg.Send == nil {
		cfg.Send = func(any) {}
	}
	log := cfg.Log.With(zap.String("player_id", cfg.ID.String()), zap.String("name", cfg.Name))
	s := &Session{
		cfg:       cfg,
		id:        cfg.ID,
		name:      cfg.Name,
		log:       log,
		player:    cfg.Player,
		moves:     movement.NewReconciler(cfg.Oracle, cfg.Tuning.Movement, log),
		track:     movement.NewTrack(cfg.Player.Position()),
		teleports: teleport.NewSequencer(cfg.Tuning.Movement.TeleportTimeoutTicks),
		acks:      ack.NewTracker(),
		chat:      chat.NewAuthenticator(cfg.ID, cfg.Tuning.Chat, log.Named("chat")),
		chain:     dispatch.NewChain(log.Named("dispatch")),
	}
	s.keepAliveAt = cfg.Now()
	return s
}

func (s *Session) ID() uuid.UUID  { return s.id }
func (s *Session) Name() string   { return s.name }
func (s *Session) Player() Player { return s.player }
func (s *Session) Closed() bool   { return s.closed.Load() }
func (s *Session) TickCount() uint64 {
	return s.tick.Load()
}

// LastGood is the last position the server accepted for the player.
func (s *Session) LastGood() physics.Vec3 { return s.track.LastGood }

func (s *Session) FloatingTicks() int { return s.track.FloatingTicks }

func (s *Session) PendingTeleport() (teleport.Request, bool) { return s.teleports.Pending() }

func (s *Session) PendingChats() int { return s.chat.Pending() }

func (s *Session) DispatchDepth() int { return s.chain.Depth() }

func (s *Session) Latency() time.Duration { return time.Duration(s.latencyMs) * time.Millisecond }

func (s *Session) ChatSession() (chat.SessionKey, bool) { return s.chat.Session() }

func (s *Session) send(v any) {
	if s.closed.Load() {
		return
	}
	s.cfg.Send(v)
}

func (s *Session) SendSystem(text string) {
	s.send(&protocol.SystemChatMsg{Type: protocol.TypeSystemChat, Text: text})
}

// Disconnect closes the session once. Later calls are no-ops. Queued chat
// work is dropped and late teleport acks are ignored.
func (s *Session) Disconnect(reason, detail string) {
	s.once.Do(func() {
		s.closed.Store(true)
		s.chain.Close()
		s.teleports.Invalidate()
		s.log.Info("disconnect", zap.String("reason", reason), zap.String("detail", detail))
		if s.cfg.Recorder != nil {
			s.cfg.Recorder.RecordDisconnect(DisconnectRecord{
				PlayerID: s.id.String(),
				Name:     s.name,
				Reason:   reason,
				Detail:   detail,
				Tick:     s.tick.Load(),
				At:       s.cfg.Now(),
			})
		}
		s.cfg.Send(&protocol.DisconnectMsg{Type: protocol.TypeDisconnect, Reason: reason, Detail: detail})
		if s.cfg.OnDisconnect != nil {
			s.cfg.OnDisconnect(s, reason)
		}
	})
}

// fail turns a handler error into the matching disconnect or notice.
func (s *Session) fail(err error) {
	var de *DisconnectError
	if errors.As(err, &de) {
		s.Disconnect(de.Reason, de.Detail)
		return
	}
	var ce *chat.DecodeError
	if errors.As(err, &ce) {
		s.log.Warn("failed to update secure chat state", zap.String("reason", ce.Reason))
		s.SendSystem(ce.Reason)
		if ce.Disconnect {
			s.Disconnect(ce.Reason, "")
		}
		return
	}
	s.log.Error("session handler failed", zap.Error(err))
	s.Disconnect(protocol.ReasonInternal, err.Error())
}

func (s *Session) markActive() { s.lastAction.Store(s.tick.Load()) }

func (s *Session) recordViolation(kind string, pos physics.Vec3, moved float64) {
	if s.cfg.Recorder == nil {
		return
	}
	s.cfg.Recorder.RecordViolation(Violation{
		PlayerID: s.id.String(),
		Name:     s.name,
		Kind:     kind,
		Tick:     s.tick.Load(),
		Pos:      pos,
		Moved:    moved,
		At:       s.cfg.Now(),
	})
}
