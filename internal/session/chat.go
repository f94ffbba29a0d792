package session

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxelsession.ai/internal/chat"
	"voxelsession.ai/internal/dispatch"
	"voxelsession.ai/internal/protocol"
)

// OnChatPacket handles CHAT on the connection's reader goroutine. The
// message is decoded here; filtering and broadcast go through the ordered
// chain so other players see messages in submission order.
func (s *Session) OnChatPacket(m *protocol.ChatMsg) {
	if s.Closed() {
		return
	}
	if chat.Illegal(m.Message, s.cfg.Tuning.Chat.MaxLength) {
		s.fail(&DisconnectError{Reason: protocol.ReasonIllegalCharacters})
		return
	}
	ts := time.UnixMilli(m.Timestamp)
	lastSeen, ok, err := s.acceptChat(ts, m.LastSeen)
	if err != nil {
		s.fail(err)
		return
	}
	if !ok {
		return
	}
	body := chat.Body{Content: m.Message, Timestamp: ts, Salt: m.Salt, LastSeen: lastSeen}
	msg, err := s.chat.Decode(m.Signature, body, s.cfg.Now())
	if err != nil {
		s.fail(err)
		return
	}
	fut := s.cfg.Filter.Filter(s.name, msg.Body.Content)
	dispatch.Then(s.chain, fut, func(ft chat.FilteredText, err error) {
		if err != nil {
			s.log.Error("chat filter failed", zap.Error(err))
			return
		}
		msg.Filtered = ft.Filtered
		if s.cfg.Broadcaster != nil {
			s.cfg.Broadcaster.BroadcastChat(s, msg)
		}
		s.detectSpam()
	})
}

// OnCommandPacket handles COMMAND. Commands share the ordering, last-seen
// and spam checks of chat.
func (s *Session) OnCommandPacket(m *protocol.CommandMsg) {
	if s.Closed() {
		return
	}
	if chat.Illegal(m.Command, s.cfg.Tuning.Chat.MaxLength) {
		s.fail(&DisconnectError{Reason: protocol.ReasonIllegalCharacters})
		return
	}
	_, ok, err := s.acceptChat(time.UnixMilli(m.Timestamp), m.LastSeen)
	if err != nil {
		s.fail(err)
		return
	}
	if !ok {
		return
	}
	command := m.Command
	s.chain.Append(nil, func() {
		if s.cfg.Commands != nil {
			s.cfg.Commands.Dispatch(s, command)
		}
		s.detectSpam()
	})
}

// acceptChat runs the checks shared by chat and commands. ok is false
// when the player has chat hidden; they are told so and nothing else
// happens.
func (s *Session) acceptChat(ts time.Time, update protocol.LastSeenUpdate) (lastSeen []chat.Signature, ok bool, err error) {
	if !s.chat.CheckOrder(ts) {
		s.log.Warn("sent out-of-order chat", zap.Time("timestamp", ts))
		return nil, false, &DisconnectError{Reason: protocol.ReasonOutOfOrderChat}
	}
	lastSeen, err = s.chat.ApplyLastSeen(update)
	if err != nil {
		s.log.Error("failed to validate message acknowledgements", zap.Error(err))
		return nil, false, &DisconnectError{Reason: protocol.ReasonChatValidationFailed, Detail: err.Error()}
	}
	s.markActive()
	if s.player.ChatHidden() {
		s.SendSystem(protocol.NoticeChatDisabled)
		return nil, false, nil
	}
	return lastSeen, true, nil
}

func (s *Session) detectSpam() {
	if s.chat.Hit(s.tick.Load()) {
		return
	}
	if s.player.Operator() || s.player.SingleplayerOwner() {
		return
	}
	s.Disconnect(protocol.ReasonSpam, "")
}

// OnChatAck handles CHAT_ACK: the client shifted offset messages out of
// its last-seen window.
func (s *Session) OnChatAck(offset int) {
	if s.Closed() {
		return
	}
	if err := s.chat.ApplyAck(offset); err != nil {
		s.fail(&DisconnectError{Reason: protocol.ReasonChatValidationFailed, Detail: err.Error()})
	}
}

// OnChatSessionUpdate installs the client's chat key after validating it
// with the key provider. The new session is announced to everyone through
// the ordered chain.
func (s *Session) OnChatSessionUpdate(m *protocol.ChatSessionMsg) {
	if s.Closed() {
		return
	}
	sid, err := uuid.Parse(m.SessionID)
	if err != nil {
		s.fail(&DisconnectError{Reason: protocol.ReasonInvalidPublicKey, Detail: "bad session id"})
		return
	}
	data := chat.SessionData{
		SessionID:    sid,
		PublicKey:    ed25519.PublicKey(m.PublicKey),
		ExpiresAt:    time.UnixMilli(m.ExpiresAt),
		KeySignature: m.KeySignature,
	}
	old, had := s.chat.Session()
	if had && old.Same(data) {
		return
	}
	if had && data.ExpiresAt.Before(old.ExpiresAt) {
		s.fail(&DisconnectError{Reason: protocol.ReasonExpiredPublicKey})
		return
	}
	if s.cfg.Keys == nil {
		s.log.Warn("ignoring chat session, no key authority configured")
		return
	}
	key, err := s.cfg.Keys.Validate(s.id, data)
	if errors.Is(err, chat.ErrNoAuthority) {
		s.log.Warn("ignoring chat session, no key authority configured")
		return
	}
	if err != nil {
		s.log.Error("failed to validate profile key", zap.Error(err))
		s.fail(&DisconnectError{Reason: protocol.ReasonInvalidPublicKey})
		return
	}
	s.chat.ResetSession(key)
	info := protocol.PlayerInfoMsg{
		Type:          protocol.TypePlayerInfo,
		PlayerID:      s.id.String(),
		Name:          s.name,
		ChatSessionID: key.SessionID.String(),
		PublicKey:     []byte(key.PublicKey),
		ExpiresAt:     key.ExpiresAt.UnixMilli(),
	}
	s.chain.Append(nil, func() {
		if s.cfg.Broadcaster != nil {
			s.cfg.Broadcaster.BroadcastInfo(info)
		}
	})
}

// SendPlayerChat delivers a broadcast message to this connection and
// tracks it as pending until the client acknowledges it.
func (s *Session) SendPlayerChat(msg chat.Message) {
	if s.Closed() {
		return
	}
	s.outMu.Lock()
	body, err := s.chat.Track(msg)
	out := &protocol.PlayerChatMsg{
		Type:   protocol.TypePlayerChat,
		Sender: msg.Link.Sender.String(),
		Index:  msg.Link.Index,
		Body:   body,
	}
	if msg.Signature != nil {
		out.Signature = msg.Signature.Bytes()
	}
	if msg.Filtered != msg.Body.Content {
		out.Filtered = msg.Filtered
	}
	s.send(out)
	s.outMu.Unlock()
	if err != nil {
		s.Disconnect(protocol.ReasonTooManyPendingChats, err.Error())
	}
}
