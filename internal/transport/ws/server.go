package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"voxelsession.ai/internal/hub"
	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/session"
	"voxelsession.ai/internal/sim/tuning"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	outboundQueue    = 1024
)

type Server struct {
	hub       *hub.Hub
	validator *protocol.Validator
	net       tuning.Network
	log       *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(h *hub.Hub, v *protocol.Validator, net tuning.Network, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		hub:       h,
		validator: v,
		net:       net,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type outbound struct {
	b     []byte
	final bool
}

// peer is the outbound half of one connection. send never blocks: a
// client that cannot keep up with its queue is dropped.
type peer struct {
	log  *zap.Logger
	out  chan outbound
	slow chan struct{}
	once sync.Once
}

func newPeer(log *zap.Logger) *peer {
	return &peer{log: log, out: make(chan outbound, outboundQueue), slow: make(chan struct{})}
}

func (p *peer) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		p.log.Error("encode outbound message", zap.Error(err))
		return
	}
	_, final := v.(*protocol.DisconnectMsg)
	select {
	case p.out <- outbound{b: b, final: final}:
	default:
		p.once.Do(func() {
			p.log.Warn("outbound queue full, dropping connection")
			close(p.slow)
		})
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		p := newPeer(s.log)
		sess := s.handshake(conn, p)
		if sess == nil {
			return
		}
		log := s.log.With(zap.String("player_id", sess.ID().String()))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.slow:
					_ = conn.Close()
					return
				case o := <-p.out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, o.b); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
					if o.final {
						closeWith(conn, websocket.CloseNormalClosure, "disconnected")
						_ = conn.Close()
						return
					}
				}
			}
		}()

		limiter := rate.NewLimiter(rate.Limit(s.net.InboundPacketsPerSecond), s.net.InboundBurst)
		dropped := 0
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if !limiter.Allow() {
				dropped++
				if dropped%100 == 1 {
					log.Debug("inbound rate exceeded, dropping packets", zap.Int("dropped", dropped))
				}
				continue
			}
			if err := s.validator.Validate(msg); err != nil {
				log.Info("invalid packet", zap.Error(err))
				closeWith(conn, websocket.ClosePolicyViolation, protocol.ReasonBadPacket)
				break
			}
			v, err := protocol.DecodeClient(msg)
			if err != nil {
				log.Info("undecodable packet", zap.Error(err))
				closeWith(conn, websocket.ClosePolicyViolation, protocol.ReasonBadPacket)
				break
			}
			if sess.Closed() {
				continue
			}
			s.route(sess, v)
		}

		// Cleanup.
		cancel()
		select {
		case s.hub.Leave() <- sess.ID():
		case <-time.After(time.Second):
			log.Warn("hub did not accept leave")
		}
	}
}

// route hands chat packets to the session on this goroutine; everything
// else is queued for the hub tick.
func (s *Server) route(sess *session.Session, v any) {
	switch p := v.(type) {
	case *protocol.ChatMsg:
		sess.OnChatPacket(p)
	case *protocol.CommandMsg:
		sess.OnCommandPacket(p)
	case *protocol.ChatAckMsg:
		sess.OnChatAck(p.Offset)
	case *protocol.ChatSessionMsg:
		sess.OnChatSessionUpdate(p)
	default:
		if !s.hub.Deliver(hub.Envelope{PlayerID: sess.ID(), Msg: v}) {
			s.log.Debug("hub inbox unavailable, dropping packet", zap.String("player_id", sess.ID().String()))
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn, p *peer) *session.Session {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil
	}
	if err := s.validator.Validate(msg); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, protocol.ReasonBadPacket)
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return nil
	}

	respCh := make(chan hub.JoinResponse, 1)
	select {
	case s.hub.Join() <- hub.JoinRequest{Name: hello.Name, Send: p.send, Resp: respCh}:
	case <-time.After(handshakeTimeout):
		closeWith(conn, websocket.CloseTryAgainLater, "server busy")
		return nil
	}
	var resp hub.JoinResponse
	select {
	case resp = <-respCh:
	case <-time.After(handshakeTimeout):
		closeWith(conn, websocket.CloseTryAgainLater, "server busy")
		return nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		resp.Session.Disconnect(protocol.ReasonQuit, "welcome not delivered")
		return nil
	}
	return resp.Session
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
