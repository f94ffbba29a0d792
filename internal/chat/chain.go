package chat

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"

	"voxelsession.ai/internal/protocol"
)

const payloadVersion = 1

// Link positions a message in its sender's chain.
type Link struct {
	Sender  uuid.UUID
	Session uuid.UUID
	Index   int32
}

// Next returns the following link, or false once the index is exhausted.
func (l Link) Next() (Link, bool) {
	if l.Index == math.MaxInt32 {
		return Link{}, false
	}
	l.Index++
	return l, true
}

type Body struct {
	Content   string
	Timestamp time.Time
	Salt      int64
	LastSeen  []Signature
}

// Hash is the body digest carried in audit records.
func (b Body) Hash() [32]byte {
	var buf bytes.Buffer
	writeBody(&buf, b)
	return sha256.Sum256(buf.Bytes())
}

type Message struct {
	Link Link
	// Signature is nil for unsigned messages.
	Signature *Signature
	Body      Body
	// Filtered is the text shown to other players after filtering; equal to
	// Body.Content when nothing was masked.
	Filtered string
}

func (m Message) Signed() bool { return m.Signature != nil }

// Expired reports whether the message is older than ttl at now.
func (m Message) Expired(now time.Time, ttl time.Duration) bool {
	return m.Body.Timestamp.Add(ttl).Before(now)
}

// SignablePayload is the exact byte string a client signs for a message.
func SignablePayload(l Link, b Body) []byte {
	var buf bytes.Buffer
	writeInt32(&buf, payloadVersion)
	buf.Write(l.Sender[:])
	buf.Write(l.Session[:])
	writeInt32(&buf, l.Index)
	writeBody(&buf, b)
	return buf.Bytes()
}

func writeBody(buf *bytes.Buffer, b Body) {
	writeInt64(buf, b.Salt)
	writeInt64(buf, b.Timestamp.Unix())
	content := []byte(b.Content)
	writeInt32(buf, int32(len(content)))
	buf.Write(content)
	writeInt32(buf, int32(len(b.LastSeen)))
	for _, s := range b.LastSeen {
		buf.Write(s[:])
	}
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

// DecodeError is a failure to accept a chat message into the sender's
// chain. Disconnect errors are fatal for the connection; the rest are
// reported to the sender only.
type DecodeError struct {
	Reason     string
	Disconnect bool
}

func (e *DecodeError) Error() string { return "chat decode: " + e.Reason }

var (
	ErrMissingKey       = &DecodeError{Reason: protocol.NoticeMissingKey}
	ErrExpiredKey       = &DecodeError{Reason: protocol.NoticeExpiredKey}
	ErrChainBroken      = &DecodeError{Reason: protocol.NoticeChainBroken}
	ErrOutOfOrder       = &DecodeError{Reason: protocol.ReasonOutOfOrderChat, Disconnect: true}
	ErrInvalidSignature = &DecodeError{Reason: protocol.ReasonInvalidSignature, Disconnect: true}
)

// Chain is the server-side view of one sender's signed chain for a single
// chat session.
type Chain struct {
	key    SessionKey
	next   *Link
	lastTS time.Time
}

func NewChain(sender uuid.UUID, key SessionKey) *Chain {
	root := Link{Sender: sender, Session: key.SessionID}
	return &Chain{key: key, next: &root, lastTS: time.Unix(0, 0)}
}

// Unpack verifies sig over body at the chain's next link and advances the
// chain. Out-of-order and forged messages break the chain for good.
func (c *Chain) Unpack(sig *Signature, body Body, now time.Time) (Message, error) {
	if sig == nil {
		return Message{}, ErrMissingKey
	}
	if c.key.Expired(now) {
		return Message{}, ErrExpiredKey
	}
	if c.next == nil {
		return Message{}, ErrChainBroken
	}
	if body.Timestamp.Before(c.lastTS) {
		c.next = nil
		return Message{}, ErrOutOfOrder
	}
	c.lastTS = body.Timestamp
	link := *c.next
	if !ed25519.Verify(c.key.PublicKey, SignablePayload(link, body), sig[:]) {
		c.next = nil
		return Message{}, ErrInvalidSignature
	}
	if n, ok := link.Next(); ok {
		c.next = &n
	} else {
		c.next = nil
	}
	return Message{Link: link, Signature: sig, Body: body, Filtered: body.Content}, nil
}

func (c *Chain) Break() { c.next = nil }

func (c *Chain) Broken() bool { return c.next == nil }
