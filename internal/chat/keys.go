package chat

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidKey = errors.New("invalid public key")
	// ErrNoAuthority means the server cannot validate keys at all; updates
	// are ignored rather than rejected.
	ErrNoAuthority = errors.New("no key authority configured")
)

// SessionData is a client's claim about its chat key, countersigned by
// the key authority.
type SessionData struct {
	SessionID    uuid.UUID
	PublicKey    ed25519.PublicKey
	ExpiresAt    time.Time
	KeySignature []byte
}

// Same reports whether d carries the same key material as o.
func (d SessionData) Same(o SessionData) bool {
	return d.SessionID == o.SessionID && d.PublicKey.Equal(o.PublicKey) &&
		d.ExpiresAt.Equal(o.ExpiresAt) && bytes.Equal(d.KeySignature, o.KeySignature)
}

// SessionKey is a validated chat session.
type SessionKey struct {
	SessionData
}

func (k SessionKey) Expired(now time.Time) bool { return now.After(k.ExpiresAt) }

// KeyProvider validates the key material a client presents for its chat
// session.
type KeyProvider interface {
	Validate(player uuid.UUID, data SessionData) (SessionKey, error)
}

// Authority is a KeyProvider backed by a single ed25519 authority key.
type Authority struct {
	pub ed25519.PublicKey
}

func NewAuthority(pub ed25519.PublicKey) *Authority { return &Authority{pub: pub} }

func (a *Authority) Validate(player uuid.UUID, data SessionData) (SessionKey, error) {
	if a == nil || len(a.pub) != ed25519.PublicKeySize {
		return SessionKey{}, ErrNoAuthority
	}
	if len(data.PublicKey) != ed25519.PublicKeySize {
		return SessionKey{}, ErrInvalidKey
	}
	if !ed25519.Verify(a.pub, keyPayload(player, data.PublicKey, data.ExpiresAt), data.KeySignature) {
		return SessionKey{}, ErrInvalidKey
	}
	return SessionKey{SessionData: data}, nil
}

// SignSessionKey countersigns a player's chat key with the authority key.
func SignSessionKey(authority ed25519.PrivateKey, player uuid.UUID, pub ed25519.PublicKey, expiresAt time.Time) []byte {
	return ed25519.Sign(authority, keyPayload(player, pub, expiresAt))
}

func keyPayload(player uuid.UUID, pub ed25519.PublicKey, expiresAt time.Time) []byte {
	var buf bytes.Buffer
	buf.Write(player[:])
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(expiresAt.UnixMilli()))
	buf.Write(ts[:])
	buf.Write(pub)
	return buf.Bytes()
}
