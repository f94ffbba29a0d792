package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxelsession.ai/internal/chat"
	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/sim/tuning"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name        = flag.String("name", "bot", "player name")
		authority   = flag.String("authority_priv", "", "file with the hex ed25519 authority private key; enables signed chat")
		chatEvery   = flag.Duration("chat_every", 10*time.Second, "interval between chat messages (0 disables)")
		walk        = flag.Bool("walk", true, "walk back and forth along x")
		ackInterval = flag.Int("ack_every", 32, "send CHAT_ACK once this many signed messages are pending")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger = logger.Named("bot")

	var authPriv ed25519.PrivateKey
	if *authority != "" {
		authPriv, err = loadPrivateKey(*authority)
		if err != nil {
			logger.Fatal("load authority key", zap.Error(err))
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer conn.Close()

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: *name}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatal("send HELLO", zap.Error(err))
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil || welcome.Type != protocol.TypeWelcome {
		logger.Fatal("read WELCOME", zap.Error(err), zap.String("type", welcome.Type))
	}
	playerID, err := uuid.Parse(welcome.PlayerID)
	if err != nil {
		logger.Fatal("bad player id", zap.Error(err))
	}
	logger.Info("WELCOME", zap.String("player_id", welcome.PlayerID), zap.Int("tick_rate", welcome.TickRateHz))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	defaults := tuning.Defaults()
	b := &bot{
		conn:     conn,
		log:      logger,
		id:       playerID,
		pos:      welcome.Spawn,
		window:   newSeenWindow(defaults.Chat.LastSeenCapacity, defaults.Chat.SignatureCacheCapacity),
		ackEvery: *ackInterval,
	}
	if authPriv != nil {
		if err := b.startChatSession(authPriv); err != nil {
			logger.Fatal("chat session", zap.Error(err))
		}
	}

	inbound := make(chan []byte, 64)
	go func() {
		defer close(inbound)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Info("connection closed", zap.Error(err))
				return
			}
			inbound <- msg
		}
	}()

	rate := welcome.TickRateHz
	if rate <= 0 {
		rate = 20
	}
	step := time.NewTicker(time.Second / time.Duration(rate))
	defer step.Stop()
	var chatC <-chan time.Time
	if *chatEvery > 0 {
		t := time.NewTicker(*chatEvery)
		defer t.Stop()
		chatC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			b.handle(msg)
		case <-step.C:
			if *walk {
				b.walk()
			}
		case <-chatC:
			b.chat(fmt.Sprintf("pos=%.2f,%.2f,%.2f", b.pos[0], b.pos[1], b.pos[2]))
		}
	}
}

type bot struct {
	conn *websocket.Conn
	log  *zap.Logger
	id   uuid.UUID

	pos       [3]float64
	dir       float64
	walked    int
	teleports int

	signer   *chat.Signer
	window   *seenWindow
	ackEvery int
}

func (b *bot) send(v any) {
	if err := b.conn.WriteJSON(v); err != nil {
		b.log.Warn("write", zap.Error(err))
	}
}

func (b *bot) startChatSession(authPriv ed25519.PrivateKey) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	sid := uuid.New()
	expires := time.Now().Add(24 * time.Hour)
	b.send(protocol.ChatSessionMsg{
		Type:         protocol.TypeChatSession,
		SessionID:    sid.String(),
		PublicKey:    pub,
		ExpiresAt:    expires.UnixMilli(),
		KeySignature: chat.SignSessionKey(authPriv, b.id, pub, expires),
	})
	b.signer = chat.NewSigner(priv, b.id, sid)
	b.log.Info("chat session started", zap.String("session_id", sid.String()))
	return nil
}

func (b *bot) handle(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeTeleport:
		var t protocol.TeleportMsg
		if json.Unmarshal(msg, &t) != nil {
			return
		}
		b.pos = [3]float64{t.X, t.Y, t.Z}
		b.teleports++
		b.log.Debug("TELEPORT", zap.Int32("id", t.TeleportID), zap.Float64s("pos", b.pos[:]))
		b.send(protocol.TeleportAckMsg{Type: protocol.TypeTeleportAck, TeleportID: t.TeleportID})
	case protocol.TypeKeepAlive:
		var k protocol.KeepAliveMsg
		if json.Unmarshal(msg, &k) != nil {
			return
		}
		b.send(protocol.KeepAliveMsg{Type: protocol.TypeKeepAlive, ID: k.ID})
	case protocol.TypePlayerChat:
		var pc protocol.PlayerChatMsg
		if json.Unmarshal(msg, &pc) != nil {
			return
		}
		if !b.window.received(&pc) {
			b.log.Warn("unresolved last-seen reference", zap.String("sender", pc.Sender))
		}
		text := pc.Body.Content
		if pc.Filtered != "" {
			text = pc.Filtered
		}
		b.log.Info("chat", zap.String("sender", pc.Sender), zap.Bool("signed", len(pc.Signature) > 0), zap.String("text", text))
		if b.window.pending >= b.ackEvery {
			b.send(protocol.ChatAckMsg{Type: protocol.TypeChatAck, Offset: b.window.ack()})
		}
	case protocol.TypeSystemChat:
		var s protocol.SystemChatMsg
		if json.Unmarshal(msg, &s) == nil {
			b.log.Info("system", zap.String("text", s.Text))
		}
	case protocol.TypeBlockChangedAck, protocol.TypeChunkCenter, protocol.TypePlayerInfo, protocol.TypeVehiclePose:
		b.log.Debug(base.Type, zap.ByteString("raw", msg))
	case protocol.TypeDisconnect:
		var d protocol.DisconnectMsg
		if json.Unmarshal(msg, &d) == nil {
			b.log.Warn("DISCONNECT", zap.String("reason", d.Reason), zap.String("detail", d.Detail))
		}
	}
}

// walk moves 0.2 blocks per tick, turning around every 40 steps.
func (b *bot) walk() {
	if b.teleports == 0 {
		return
	}
	if b.dir == 0 {
		b.dir = 1
	}
	b.walked++
	if b.walked%40 == 0 {
		b.dir = -b.dir
	}
	b.pos[0] += 0.2 * b.dir
	x, y, z := b.pos[0], b.pos[1], b.pos[2]
	b.send(protocol.MovePlayerMsg{Type: protocol.TypeMovePlayer, X: &x, Y: &y, Z: &z, OnGround: true})
}

func (b *bot) chat(text string) {
	if strings.HasPrefix(text, "/") {
		b.send(protocol.CommandMsg{Type: protocol.TypeCommand, Command: text[1:], Timestamp: time.Now().UnixMilli()})
		return
	}
	now := time.Now()
	salt := randomSalt()
	update, lastSeen := b.window.update()
	m := protocol.ChatMsg{
		Type:      protocol.TypeChat,
		Message:   text,
		Timestamp: now.UnixMilli(),
		Salt:      salt,
		LastSeen:  update,
	}
	if b.signer != nil {
		m.Signature = b.signer.Sign(text, time.UnixMilli(now.UnixMilli()), salt, lastSeen).Bytes()
	}
	b.send(m)
}

func randomSalt() int64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return int64(binary.BigEndian.Uint64(buf[:]))
}

func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	switch len(b) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	default:
		return nil, fmt.Errorf("%s: want %d or %d byte key, got %d", path, ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
}
