package chat

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/sim/tuning"
)

var ErrTooManyPending = errors.New("too many pending chat messages")

// Authenticator holds one connection's chat state: the chain of its own
// signed messages, and the last-seen window and signature cache for the
// messages broadcast to it. Chat and ack packets arrive on the network
// goroutine while broadcasts come from other connections, so all state
// is guarded by one mutex.
type Authenticator struct {
	player uuid.UUID
	cfg    tuning.Chat
	log    *zap.Logger

	lastTS atomic.Int64 // unix millis of the newest chat or command

	mu       sync.Mutex
	window   *Window
	cache    *SignatureCache
	session  *SessionKey
	chain    *Chain
	throttle Throttle
}

func NewAuthenticator(player uuid.UUID, cfg tuning.Chat, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{
		player:   player,
		cfg:      cfg,
		log:      log,
		window:   NewWindow(cfg.LastSeenCapacity),
		cache:    NewSignatureCache(cfg.SignatureCacheCapacity),
		throttle: Throttle{Window: uint64(cfg.SpamWindowTicks), Max: cfg.SpamMax},
	}
}

// CheckOrder accepts ts only if it is not older than every previous chat
// or command timestamp.
func (a *Authenticator) CheckOrder(ts time.Time) bool {
	ms := ts.UnixMilli()
	for {
		old := a.lastTS.Load()
		if ms < old {
			return false
		}
		if a.lastTS.CompareAndSwap(old, ms) {
			return true
		}
	}
}

// ApplyLastSeen validates the client's last-seen update and returns the
// signatures it acknowledged.
func (a *Authenticator) ApplyLastSeen(u protocol.LastSeenUpdate) ([]Signature, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window.ApplyUpdate(u.Offset, u.Acknowledged)
}

func (a *Authenticator) ApplyAck(offset int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window.ApplyOffset(offset)
}

// Decode turns an incoming chat into a message of the sender's chain.
// Without a chat session the message is unsigned, which is only allowed
// when secure chat is not enforced.
func (a *Authenticator) Decode(rawSig []byte, body Body, now time.Time) (Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.chain == nil {
		if a.cfg.EnforceSecureChat {
			return Message{}, ErrMissingKey
		}
		return Message{Link: Link{Sender: a.player}, Body: body, Filtered: body.Content}, nil
	}
	var sig *Signature
	if len(rawSig) > 0 {
		s, err := ParseSignature(rawSig)
		if err != nil {
			a.chain.Break()
			return Message{}, ErrInvalidSignature
		}
		sig = &s
	}
	msg, err := a.chain.Unpack(sig, body, now)
	if err != nil {
		return Message{}, err
	}
	ttl := time.Duration(a.cfg.MessageExpirySeconds) * time.Second
	if ttl > 0 && msg.Expired(now, ttl) {
		a.log.Warn("received expired chat, clocks may be out of sync",
			zap.Time("timestamp", body.Timestamp), zap.Int32("index", msg.Link.Index))
	}
	return msg, nil
}

// ResetSession installs a new validated key and restarts the chain.
func (a *Authenticator) ResetSession(key SessionKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = &key
	a.chain = NewChain(a.player, key)
}

func (a *Authenticator) Session() (SessionKey, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return SessionKey{}, false
	}
	return *a.session, true
}

func (a *Authenticator) MarkChainBroken() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.chain != nil {
		a.chain.Break()
	}
}

// Hit counts one processed chat action and reports whether the
// connection is still under the spam limit.
func (a *Authenticator) Hit(nowTick uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.throttle.Hit(nowTick)
}

// Track prepares msg for delivery to this connection: the body is packed
// against the signature cache, then the cache and the pending list are
// updated. ErrTooManyPending is returned alongside the packed body once
// the client has fallen too far behind; the caller still sends it.
func (a *Authenticator) Track(msg Message) (protocol.PackedBody, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	body := protocol.PackedBody{
		Content:   msg.Body.Content,
		Timestamp: msg.Body.Timestamp.UnixMilli(),
		Salt:      msg.Body.Salt,
		LastSeen:  make([]protocol.PackedSignature, 0, len(msg.Body.LastSeen)),
	}
	for _, s := range msg.Body.LastSeen {
		if id := a.cache.Pack(s); id != NotFound {
			body.LastSeen = append(body.LastSeen, protocol.PackedSignature{ID: id})
		} else {
			body.LastSeen = append(body.LastSeen, protocol.PackedSignature{ID: NotFound, Full: s.Bytes()})
		}
	}
	if msg.Signature == nil {
		return body, nil
	}
	a.cache.Push(msg.Body.LastSeen, msg.Signature)
	a.window.AddPending(*msg.Signature)
	if n := a.window.Pending(); n > a.cfg.MaxPendingChats {
		return body, fmt.Errorf("%w: %d", ErrTooManyPending, n)
	}
	return body, nil
}

func (a *Authenticator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window.Pending()
}
